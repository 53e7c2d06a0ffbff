// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Command stress is scaffolding, not part of the library's contract: an
// external collaborator that drives orderedset.Set and deque.Deque from many
// goroutines and prints the resulting operation counts and final sizes, the
// same role the reference sources' hand-rolled pthread drivers play. The
// only check it enforces is that every popped value is the magic value; any
// other value aborts the run with exit status 1.
//
// Unlike the reference drivers, which hard-code a fixed worker count and
// split workers evenly between two roles, stress accepts any worker count
// and assigns roles (set-inserter, set-deleter, deque-pusher, deque-popper)
// round-robin, and staggers each worker's start time through a small
// min-heap of scheduled start events rather than launching everything at
// once.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/addrummond/heap"

	"github.com/gammazero-labs/lockfree/deque"
	"github.com/gammazero-labs/lockfree/internal/cerr"
	"github.com/gammazero-labs/lockfree/orderedset"
)

const (
	errBadWorkerCount   = cerr.Error("stress: -workers must be positive")
	errBadOpsPerWorker  = cerr.Error("stress: -ops must be positive")
	errBadStaggerWindow = cerr.Error("stress: -stagger must not be negative")
)

type config struct {
	workers  int
	opsPer   int
	keySpace int
	stagger  time.Duration
	magic    int
}

func (c config) validate() error {
	if c.workers <= 0 {
		return cerr.Wrapped{Err: errBadWorkerCount, Context: fmt.Sprintf("-workers=%d", c.workers)}
	}
	if c.opsPer <= 0 {
		return cerr.Wrapped{Err: errBadOpsPerWorker, Context: fmt.Sprintf("-ops=%d", c.opsPer)}
	}
	if c.stagger < 0 {
		return cerr.Wrapped{Err: errBadStaggerWindow, Context: fmt.Sprintf("-stagger=%s", c.stagger)}
	}
	return nil
}

func parseConfig() (config, error) {
	var c config
	flag.IntVar(&c.workers, "workers", 8, "number of concurrent worker goroutines")
	flag.IntVar(&c.opsPer, "ops", 10000, "operations performed by each worker")
	flag.IntVar(&c.keySpace, "keyspace", 1024, "distinct keys inserted/deleted into the set")
	flag.DurationVar(&c.stagger, "stagger", time.Millisecond, "maximum jitter applied to each worker's start time")
	flag.IntVar(&c.magic, "magic", 0x5eed, "sentinel value pushed into the deque and checked on every pop")
	flag.Parse()

	if err := c.validate(); err != nil {
		return config{}, err
	}
	return c, nil
}

// startEvent schedules a single worker's launch at an offset from the run's
// start time, ordered by that offset in the min-heap used to stagger
// goroutine starts.
type startEvent struct {
	at  time.Duration
	run func()
}

func (e *startEvent) Cmp(other *startEvent) int {
	if e.at < other.at {
		return -1
	}
	if e.at > other.at {
		return 1
	}
	return 0
}

// role identifies which collection operation a worker performs.
type role int

const (
	roleSetInsert role = iota
	roleSetDelete
	roleDequePush
	roleDequePop
	roleCount
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	set := orderedset.New[int](cfg.workers)
	dq := deque.New[int]()

	var events heap.Heap[startEvent, heap.Min]
	var wg sync.WaitGroup

	var inserted, deleted, pushed, popped, emptyPops int64
	var mu sync.Mutex

	for i := 0; i < cfg.workers; i++ {
		i := i
		r := role(i % int(roleCount))
		// A deterministic, evenly-spread stagger rather than a random one
		// keeps a given -workers/-stagger pair reproducible across runs.
		offset := time.Duration(i) * cfg.stagger / time.Duration(cfg.workers)

		wg.Add(1)
		heap.PushOrderable(&events, startEvent{
			at: offset,
			run: func() {
				defer wg.Done()
				switch r {
				case roleSetInsert:
					th := set.RegisterThread()
					var n int64
					for j := 0; j < cfg.opsPer; j++ {
						if set.Insert(th, (i+j)%cfg.keySpace) {
							n++
						}
					}
					mu.Lock()
					inserted += n
					mu.Unlock()
				case roleSetDelete:
					th := set.RegisterThread()
					var n int64
					for j := 0; j < cfg.opsPer; j++ {
						if set.Delete(th, (i+j)%cfg.keySpace) {
							n++
						}
					}
					mu.Lock()
					deleted += n
					mu.Unlock()
				case roleDequePush:
					for j := 0; j < cfg.opsPer; j++ {
						dq.PushRight(cfg.magic)
					}
					mu.Lock()
					pushed += int64(cfg.opsPer)
					mu.Unlock()
				case roleDequePop:
					var n, empty int64
					for j := 0; j < cfg.opsPer; j++ {
						v, ok := dq.PopLeft()
						if !ok {
							empty++
							continue
						}
						if v != cfg.magic {
							fmt.Fprintf(os.Stderr, "stress: popped %d, want magic %d\n", v, cfg.magic)
							os.Exit(1)
						}
						n++
					}
					mu.Lock()
					popped += n
					emptyPops += empty
					mu.Unlock()
				}
			},
		})
	}

	start := time.Now()
	for events.Len() > 0 {
		ev, _ := heap.PopOrderable(&events)
		if d := ev.at - time.Since(start); d > 0 {
			time.Sleep(d)
		}
		go ev.run()
	}
	wg.Wait()

	set.Destroy()
	dq.Destroy()

	fmt.Printf("set:   inserted=%d deleted=%d final_len=%d\n", inserted, deleted, set.Len())
	fmt.Printf("deque: pushed=%d popped=%d empty_pops=%d remaining_len=%d\n", pushed, popped, emptyPops, dq.Len())
}
