// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package orderedset_test

import (
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/gammazero-labs/lockfree/orderedset"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSetSingleThreadRoundTrip is scenario S1 from the collections'
// testable-properties list.
func TestSetSingleThreadRoundTrip(t *testing.T) {
	s := orderedset.New[int](1)
	th := s.RegisterThread()

	require.True(t, s.Insert(th, 1))
	require.True(t, s.Insert(th, 2))
	require.False(t, s.Insert(th, 1))
	require.True(t, s.Contains(th, 2))
	require.True(t, s.Delete(th, 2))
	require.False(t, s.Contains(th, 2))

	s.Destroy()
}

// TestSetIdempotentDeletion confirms that delete on an absent key is a no-op
// and insert on a present key is a no-op, both returning false.
func TestSetIdempotentDeletion(t *testing.T) {
	s := orderedset.New[int](1)
	th := s.RegisterThread()

	require.False(t, s.Delete(th, 99))
	require.True(t, s.Insert(th, 5))
	require.False(t, s.Insert(th, 5))
	require.True(t, s.Delete(th, 5))
	require.False(t, s.Delete(th, 5))

	s.Destroy()
}

// TestSetSortednessInvariant checks that a single-threaded snapshot of the
// chain is always strictly increasing.
func TestSetSortednessInvariant(t *testing.T) {
	s := orderedset.New[int](1)
	th := s.RegisterThread()

	for _, k := range []int{5, 1, 9, 3, 7, 1, 3} {
		s.Insert(th, k)
	}
	s.Delete(th, 9)

	keys := s.Snapshot()
	require.True(t, sort.IntsAreSorted(keys))
	for i := 1; i < len(keys); i++ {
		require.NotEqual(t, keys[i-1], keys[i], "chain must be strictly increasing")
	}
	require.Equal(t, []int{1, 3, 5, 7}, keys)

	s.Destroy()
}

// TestSetConcurrentSymmetricStress is scenario S2: N/2 inserters and N/2
// deleters work disjoint key ranges; afterward the set's contents must match
// the net effect of successful inserts minus successful deletes.
func TestSetConcurrentSymmetricStress(t *testing.T) {
	const (
		workersPerSide = 4
		extentPerRange = 64
	)
	maxThreads := workersPerSide * 2
	s := orderedset.New[int](maxThreads)

	var wg sync.WaitGroup
	insertedByRange := make([][]bool, workersPerSide)
	deletedByRange := make([][]bool, workersPerSide)
	var mu [workersPerSide]sync.Mutex

	for tid := 0; tid < workersPerSide; tid++ {
		insertedByRange[tid] = make([]bool, extentPerRange)
		deletedByRange[tid] = make([]bool, extentPerRange)

		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			th := s.RegisterThread()
			base := tid * extentPerRange
			for i := 0; i < extentPerRange; i++ {
				if s.Insert(th, base+i) {
					mu[tid].Lock()
					insertedByRange[tid][i] = true
					mu[tid].Unlock()
				}
			}
		}(tid)

		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			th := s.RegisterThread()
			base := tid * extentPerRange
			for i := 0; i < extentPerRange; i++ {
				if s.Delete(th, base+i) {
					mu[tid].Lock()
					deletedByRange[tid][i] = true
					mu[tid].Unlock()
				}
			}
		}(tid)
	}
	wg.Wait()

	var expected []int
	for tid := 0; tid < workersPerSide; tid++ {
		base := tid * extentPerRange
		for i := 0; i < extentPerRange; i++ {
			if insertedByRange[tid][i] && !deletedByRange[tid][i] {
				expected = append(expected, base+i)
			}
		}
	}
	sort.Ints(expected)

	// Snapshot already confirms every survivor is present and in order;
	// a Contains pass would add nothing but would need a 9th ThreadHandle,
	// one more than maxThreads provisions for the 8 worker goroutines above.
	keys := s.Snapshot()
	require.Equal(t, expected, keys)
	require.True(t, sort.IntsAreSorted(keys))

	s.Destroy()
}

// TestSetRapidModel drives Insert/Delete/Contains against a plain Go map
// reference model using rapid's state-machine testing.
func TestSetRapidModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := orderedset.New[int](1)
		th := s.RegisterThread()
		model := map[int]bool{}

		t.Repeat(map[string]func(*rapid.T){
			"insert": func(t *rapid.T) {
				k := rapid.IntRange(0, 20).Draw(t, "key")
				got := s.Insert(th, k)
				require.Equal(t, !model[k], got)
				model[k] = true
			},
			"delete": func(t *rapid.T) {
				k := rapid.IntRange(0, 20).Draw(t, "key")
				got := s.Delete(th, k)
				require.Equal(t, model[k], got)
				model[k] = false
			},
			"contains": func(t *rapid.T) {
				k := rapid.IntRange(0, 20).Draw(t, "key")
				require.Equal(t, model[k], s.Contains(th, k))
			},
			"check": func(t *rapid.T) {
				var want []int
				for k, present := range model {
					if present {
						want = append(want, k)
					}
				}
				sort.Ints(want)
				got := s.Snapshot()
				slices.Sort(got)
				require.Equal(t, want, got)
			},
		})
		s.Destroy()
	})
}
