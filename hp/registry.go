// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package hp implements a hazard pointer registry: a per-thread table of
// atomic slots that let a thread declare "I am about to dereference this
// address, do not reclaim it" to every other thread that might otherwise
// free or recycle the same memory.
//
// The registry is generic over the pointee type T so that each slot can hold
// a genuine *T rather than an untyped address. In a garbage-collected
// runtime this matters for more than bookkeeping: an *T stored in an
// atomic.Pointer[T] is a real GC root, so the referenced node stays alive for
// as long as it is hazard-pinned even if every other path to it has already
// been unlinked. Reclamation in this package therefore doesn't mean "free the
// memory" so much as "the caller-supplied delete function may now recycle or
// mutate this node without another goroutine observing a half-written node
// through a stale pointer" -- the same correctness property the algorithm
// provides in a manually-managed language, expressed in GC terms.
package hp

import (
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/gammazero-labs/lockfree/internal/align"
)

// ThreadHandle is a dense index into a Registry's per-thread tables, obtained
// once per goroutine via RegisterThread and threaded explicitly through every
// subsequent call. This replaces the reference algorithm's thread-local
// storage seeded by a monotonic counter: Go has no portable equivalent of TLS
// keyed by OS thread, and goroutines migrate between OS threads anyway, so an
// explicit handle obtained per logical worker goroutine is both more portable
// and more honest about what's actually being identified.
type ThreadHandle int

type row[T any] struct {
	slots []atomic.Pointer[T]
	_     align.Pad64
}

type retiredRow[T any] struct {
	list deque.Deque[*T]
	_    align.Pad64
}

// Registry is a hazard pointer table parameterized by the pointee type T, the
// maximum number of distinct threads that will ever call RegisterThread, and
// the number of hazard slots each thread gets. The zero value is not usable;
// construct with New.
type Registry[T any] struct {
	maxThreads int
	maxHPs     int
	deleteFn   func(*T)

	scanThreshold atomic.Int64
	nextThread    atomic.Int64

	rows    []row[T]
	retired []retiredRow[T]
}

// New constructs a Registry that supports up to maxThreads concurrently
// registered threads, each with maxHPsPerThread hazard pointer slots.
// deleteFn is invoked, at most once per retired address, once no hazard slot
// anywhere in the registry references that address.
func New[T any](maxThreads, maxHPsPerThread int, deleteFn func(*T)) *Registry[T] {
	if maxThreads <= 0 {
		panic("hp: maxThreads must be positive")
	}
	if maxHPsPerThread <= 0 {
		panic("hp: maxHPsPerThread must be positive")
	}
	if deleteFn == nil {
		panic("hp: deleteFn must not be nil")
	}
	r := &Registry[T]{
		maxThreads: maxThreads,
		maxHPs:     maxHPsPerThread,
		deleteFn:   deleteFn,
		rows:       make([]row[T], maxThreads),
		retired:    make([]retiredRow[T], maxThreads),
	}
	for t := range r.rows {
		r.rows[t].slots = make([]atomic.Pointer[T], maxHPsPerThread)
	}
	return r
}

// SetScanThreshold sets the number of retired-but-unreclaimed pointers a
// thread accumulates before Retire triggers a reclamation scan. The paper
// this algorithm is drawn from calls this threshold R and notes that larger
// values amortize scanning cost at the expense of holding more retired nodes
// live longer; this implementation defaults to 0 (scan on every retire),
// which is correct but not necessarily fast under heavy churn.
func (r *Registry[T]) SetScanThreshold(threshold int) {
	r.scanThreshold.Store(int64(threshold))
}

// RegisterThread assigns the calling goroutine a dense ThreadHandle. It must
// be called at most once per logical worker and the returned handle reused
// for every subsequent call that goroutine makes against this Registry.
// Registering more than maxThreads distinct handles is a programming error.
func (r *Registry[T]) RegisterThread() ThreadHandle {
	id := r.nextThread.Add(1) - 1
	if id >= int64(r.maxThreads) {
		panic("hp: number of registered threads exceeds maxThreads")
	}
	return ThreadHandle(id)
}

// MaxHPs returns the number of hazard slots available per thread.
func (r *Registry[T]) MaxHPs() int {
	return r.maxHPs
}

// Clear stores nil into every hazard slot owned by th, release-ordered with
// respect to any subsequent scan.
func (r *Registry[T]) Clear(th ThreadHandle) {
	row := &r.rows[th]
	for i := range row.slots {
		row.slots[i].Store(nil)
	}
}

// ClearOne stores nil into hazard slot i owned by th.
func (r *Registry[T]) ClearOne(th ThreadHandle, i int) {
	r.rows[th].slots[i].Store(nil)
}

// Protect repeatedly loads the current value of the caller-supplied source,
// publishes it into hazard slot i, and reloads the source, returning once two
// consecutive loads agree. This is the safe way to hazard-pin a pointer read
// from a link that may be concurrently retired: if the object were reclaimed
// between the first load and the publish, the second load will observe a
// different value (the link will have moved on) and the loop retries with
// the now-current value, never pinning and then dereferencing a pointer that
// could already be gone.
func (r *Registry[T]) Protect(th ThreadHandle, i int, load func() *T) *T {
	for {
		p := load()
		r.rows[th].slots[i].Store(p)
		p2 := load()
		if p2 == p {
			return p
		}
	}
}

// ProtectPtr unconditionally installs p in hazard slot i and returns p. Use
// this when the caller has already validated p by some other means (for
// instance, it was just returned by Protect on another slot) and merely
// wants to extend the same pin to a second slot.
func (r *Registry[T]) ProtectPtr(th ThreadHandle, i int, p *T) *T {
	r.rows[th].slots[i].Store(p)
	return p
}

// ProtectRelease is equivalent to ProtectPtr. It exists as a distinct name so
// call sites can document that the store is publishing a pin the caller just
// acquired by other means (e.g. a successful CAS) rather than re-validating
// an existing read, matching the reference algorithm's protect_release.
func (r *Registry[T]) ProtectRelease(th ThreadHandle, i int, p *T) *T {
	return r.ProtectPtr(th, i, p)
}

// Retire records p as logically unlinked and eligible for reclamation, then
// attempts to reclaim th's retired pointers: any retired address currently
// observed in no hazard slot anywhere in the registry is removed, in order,
// and passed to deleteFn exactly once.
func (r *Registry[T]) Retire(th ThreadHandle, p *T) {
	row := &r.retired[th]
	row.list.PushBack(p)

	threshold := r.scanThreshold.Load()
	if threshold > 0 && int64(row.list.Len()) < threshold {
		return
	}
	r.scan(th)
}

// Scan forces an immediate reclamation pass over th's retired list,
// regardless of the configured scan threshold. It is exposed for tests and
// for callers that want to bound worst-case retired-list growth explicitly.
func (r *Registry[T]) Scan(th ThreadHandle) {
	r.scan(th)
}

func (r *Registry[T]) scan(th ThreadHandle) {
	row := &r.retired[th]
	// Draining the whole list and re-queuing the survivors preserves their
	// relative order and bounds this pass to the list's length at entry,
	// rather than looping forever if another goroutine keeps retiring into
	// the same row concurrently (which Retire's contract forbids: each
	// retired[t] row is only ever written by its owning thread).
	pending := row.list.Len()
	for j := 0; j < pending; j++ {
		p := row.list.PopFront()
		if r.isHazardous(p) {
			row.list.PushBack(p)
		} else {
			r.deleteFn(p)
		}
	}
}

func (r *Registry[T]) isHazardous(p *T) bool {
	for t := range r.rows {
		slots := r.rows[t].slots
		for i := range slots {
			if slots[i].Load() == p {
				return true
			}
		}
	}
	return false
}

// Destroy reclaims every pointer still present in any thread's retired list,
// regardless of hazard status. It is the caller's responsibility to call
// Destroy only after every worker thread that might still hold a hazard
// pointer into this registry has quiesced and cleared its slots.
func (r *Registry[T]) Destroy() {
	for t := range r.retired {
		row := &r.retired[t]
		for row.list.Len() > 0 {
			r.deleteFn(row.list.PopFront())
		}
	}
}
