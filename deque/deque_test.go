// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package deque_test

import (
	"sync"
	"testing"

	"github.com/gammazero-labs/lockfree/deque"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestDequeFIFOOneSide is scenario S3: push_right(A,B,C), pop_left drains
// them in arrival order, and a further pop_left reports empty.
func TestDequeFIFOOneSide(t *testing.T) {
	d := deque.New[string]()

	d.PushRight("A")
	d.PushRight("B")
	d.PushRight("C")

	for _, want := range []string{"A", "B", "C"} {
		got, ok := d.PopLeft()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := d.PopLeft()
	require.False(t, ok)
}

// TestDequeLIFOOneSide is scenario S4: push_right(A,B), pop_right drains
// them in reverse arrival order, and a further pop_right reports empty.
func TestDequeLIFOOneSide(t *testing.T) {
	d := deque.New[string]()

	d.PushRight("A")
	d.PushRight("B")

	got, ok := d.PopRight()
	require.True(t, ok)
	require.Equal(t, "B", got)

	got, ok = d.PopRight()
	require.True(t, ok)
	require.Equal(t, "A", got)

	_, ok = d.PopRight()
	require.False(t, ok)
}

// TestDequeSingleThreadMixedEnds exercises pushes and pops from both ends in
// a single goroutine, checking the resulting order against a plain slice
// model maintained alongside it.
func TestDequeSingleThreadMixedEnds(t *testing.T) {
	d := deque.New[int]()
	var model []int

	pushLeft := func(v int) {
		d.PushLeft(v)
		model = append([]int{v}, model...)
	}
	pushRight := func(v int) {
		d.PushRight(v)
		model = append(model, v)
	}
	popLeft := func() {
		got, ok := d.PopLeft()
		if len(model) == 0 {
			require.False(t, ok)
			return
		}
		require.True(t, ok)
		require.Equal(t, model[0], got)
		model = model[1:]
	}
	popRight := func() {
		got, ok := d.PopRight()
		if len(model) == 0 {
			require.False(t, ok)
			return
		}
		require.True(t, ok)
		require.Equal(t, model[len(model)-1], got)
		model = model[:len(model)-1]
	}

	pushRight(1)
	pushRight(2)
	pushLeft(0)
	popLeft()
	pushRight(3)
	popRight()
	popLeft()
	popLeft()
	popLeft()
}

// TestDequeConcurrentInterleavedStress is scenario S5: four goroutines each
// push or pop from one side; after they join, successful pops plus
// remaining length equals total pushes, and every popped value is the
// sentinel MAGIC that this test exclusively pushes.
func TestDequeConcurrentInterleavedStress(t *testing.T) {
	const (
		magic           = 0x5eed
		pushesPerWorker = 2000
	)
	d := deque.New[int]()

	var wg sync.WaitGroup
	var totalPushes, totalPops int64

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < pushesPerWorker; i++ {
			d.PushRight(magic)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < pushesPerWorker; i++ {
			d.PushLeft(magic)
		}
	}()
	var poppedRight, poppedLeft int
	var wrongRight, wrongLeft int
	go func() {
		defer wg.Done()
		for i := 0; i < pushesPerWorker; i++ {
			if v, ok := d.PopRight(); ok {
				poppedRight++
				if v != magic {
					wrongRight++
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < pushesPerWorker; i++ {
			if v, ok := d.PopLeft(); ok {
				poppedLeft++
				if v != magic {
					wrongLeft++
				}
			}
		}
	}()
	wg.Wait()
	require.Zero(t, wrongRight+wrongLeft, "every popped value must be magic")

	totalPushes = 2 * pushesPerWorker
	totalPops = int64(poppedRight + poppedLeft)

	// Drain whatever's left to learn the true remaining count.
	var remaining int64
	for {
		if _, ok := d.PopLeft(); ok {
			remaining++
		} else {
			break
		}
	}

	require.Equal(t, totalPushes, totalPops+remaining)
}

// TestDequeRapidModel drives PushLeft/PushRight/PopLeft/PopRight against a
// plain Go slice reference model using rapid's state-machine testing,
// following the same pattern as orderedset's TestSetRapidModel.
func TestDequeRapidModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := deque.New[int]()
		var model []int

		t.Repeat(map[string]func(*rapid.T){
			"pushLeft": func(t *rapid.T) {
				v := rapid.IntRange(0, 1000).Draw(t, "v")
				d.PushLeft(v)
				model = append([]int{v}, model...)
			},
			"pushRight": func(t *rapid.T) {
				v := rapid.IntRange(0, 1000).Draw(t, "v")
				d.PushRight(v)
				model = append(model, v)
			},
			"popLeft": func(t *rapid.T) {
				got, ok := d.PopLeft()
				if len(model) == 0 {
					require.False(t, ok)
					return
				}
				require.True(t, ok)
				require.Equal(t, model[0], got)
				model = model[1:]
			},
			"popRight": func(t *rapid.T) {
				got, ok := d.PopRight()
				if len(model) == 0 {
					require.False(t, ok)
					return
				}
				require.True(t, ok)
				require.Equal(t, model[len(model)-1], got)
				model = model[:len(model)-1]
			},
		})
	})
}
