// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package orderedset implements a lock-free sorted set of keys as a singly
// linked list, following the Harris/Michael algorithm: logical deletion via a
// mark bit carried alongside a node's next pointer, physical unlinking
// helped along by any thread that encounters a marked node while searching,
// and safe reclamation of unlinked nodes via the hp package's hazard pointer
// registry.
package orderedset

import (
	"cmp"
	"sync/atomic"

	"github.com/gammazero-labs/lockfree/hp"
	"github.com/gammazero-labs/lockfree/internal/backoff"
	"github.com/gammazero-labs/lockfree/internal/marklink"
)

// hazard pointer slot assignments used by find and its callers.
const (
	hpPrev = 0
	hpCurr = 1
	hpNext = 2

	hpSlotsPerThread = 3
)

// node is a set element. The mark bit carried in next denotes that this
// node -- the one owning the field, not the one it points at -- has been
// logically deleted.
type node[K any] struct {
	key    K
	isTail bool
	next   marklink.Link[node[K]]
}

// Set is a lock-free sorted set of keys of type K. The zero value is not
// usable; construct with New.
type Set[K cmp.Ordered] struct {
	head, tail *node[K]
	reg        *hp.Registry[node[K]]
	length     atomic.Int64
}

// New constructs an empty Set backed by a hazard pointer registry sized for
// up to maxThreads concurrently registered callers.
func New[K cmp.Ordered](maxThreads int) *Set[K] {
	tail := &node[K]{isTail: true}
	head := &node[K]{}
	head.next.Store(marklink.Ptr[node[K]]{P: tail})

	s := &Set[K]{head: head, tail: tail}
	s.reg = hp.New[node[K]](maxThreads, hpSlotsPerThread, func(n *node[K]) {
		// Nothing to manually free in a garbage-collected runtime; clearing
		// the link breaks any reference cycle through a stale next pointer
		// so the node becomes collectible once every other reference (most
		// notably a lingering local variable in a racing goroutine) drops.
		n.next.Store(marklink.Ptr[node[K]]{})
	})
	return s
}

// RegisterThread assigns the calling goroutine a ThreadHandle for use with
// Insert, Delete, and Contains. Call once per worker goroutine.
func (s *Set[K]) RegisterThread() hp.ThreadHandle {
	return s.reg.RegisterThread()
}

// Len returns an approximate count of the set's elements. It is not
// linearizable with respect to concurrent Insert/Delete calls: it is provided
// for diagnostics and test invariant checks, not as part of the set's
// contractual external interface.
func (s *Set[K]) Len() int {
	return int(s.length.Load())
}

// Destroy reclaims any nodes still pending reclamation in the hazard pointer
// registry. Call only after every worker goroutine holding a ThreadHandle
// into this Set has quiesced.
func (s *Set[K]) Destroy() {
	s.reg.Destroy()
}

// findResult captures the three-node window search fixes before the caller
// decides how to mutate it: prevLink is the link field to CAS (&prevNode.next),
// prevNode must stay hazard-pinned for as long as prevLink is dereferenced,
// and curr is the first node, scanning forward from the head, whose key is
// greater than or equal to the target (or the tail sentinel).
type findResult[K cmp.Ordered] struct {
	prevLink *marklink.Link[node[K]]
	prevNode *node[K]
	curr     *node[K]
	found    bool
}

// find is the shared traversal at the heart of Insert, Delete, and Contains.
// It walks from head maintaining three hazard pointer slots -- prev, curr,
// and next -- physically unlinking and retiring any logically-deleted node
// it passes through along the way, exactly as the reference algorithm's
// helping protocol requires. A node whose own next pointer is marked is
// always skipped regardless of how its key compares to the target: this
// resolves an ordering ambiguity in the written algorithm description by
// following the original C search() routine, whose loop condition
// (`is_marked_reference(t_next) || t->key < search_key`) checks the mark
// before the key comparison on every node, including the one that would
// otherwise terminate the scan.
func (s *Set[K]) find(th hp.ThreadHandle, key K) findResult[K] {
	var bo backoff.Backoff
restart:
	prevNode := s.head
	prevLink := &prevNode.next
	s.reg.ProtectPtr(th, hpPrev, prevNode)

	curr := s.reg.Protect(th, hpCurr, func() *node[K] {
		return prevLink.Load().P
	})
	if prevLink.Load().P != curr {
		bo.Wait()
		goto restart
	}

	for {
		if curr.isTail {
			return findResult[K]{prevLink: prevLink, prevNode: prevNode, curr: curr, found: false}
		}

		next := s.reg.Protect(th, hpNext, func() *node[K] {
			return curr.next.Load().P
		})
		currLink := curr.next.Load()
		if currLink.P != next {
			bo.Wait()
			goto restart
		}

		if currLink.Mark {
			if prevLink.CompareAndSwap(marklink.Ptr[node[K]]{P: curr}, marklink.Ptr[node[K]]{P: next}) {
				s.reg.Retire(th, curr)
				curr = next
				s.reg.ProtectPtr(th, hpCurr, curr)
				continue
			}
			bo.Wait()
			goto restart
		}

		if curr.key >= key {
			found := curr.key == key
			return findResult[K]{prevLink: prevLink, prevNode: prevNode, curr: curr, found: found}
		}

		// Advance: prev := &curr.next, shifting HP_PREV <- HP_CURR and
		// HP_CURR <- HP_NEXT.
		prevNode = curr
		prevLink = &curr.next
		s.reg.ProtectPtr(th, hpPrev, prevNode)
		curr = next
		s.reg.ProtectPtr(th, hpCurr, curr)
	}
}

// Insert adds key to the set, returning true if it was not already present.
// If key is already present, Insert is a no-op and returns false.
func (s *Set[K]) Insert(th hp.ThreadHandle, key K) bool {
	n := &node[K]{key: key}
	var bo backoff.Backoff
	for {
		res := s.find(th, key)
		if res.found {
			s.reg.Clear(th)
			return false
		}

		n.next.Store(marklink.Ptr[node[K]]{P: res.curr})
		if res.prevLink.CompareAndSwap(marklink.Ptr[node[K]]{P: res.curr}, marklink.Ptr[node[K]]{P: n}) {
			s.length.Add(1)
			s.reg.Clear(th)
			return true
		}
		// Lost the race to publish n; retry from a fresh find.
		bo.Wait()
	}
}

// Delete removes key from the set, returning true if it was present. If key
// is absent, Delete is a no-op and returns false.
func (s *Set[K]) Delete(th hp.ThreadHandle, key K) bool {
	var bo backoff.Backoff
	for {
		res := s.find(th, key)
		if !res.found {
			s.reg.Clear(th)
			return false
		}

		curr := res.curr
		currLink := curr.next.Load()
		if currLink.Mark {
			// Raced with another deleter; find() will have skipped this
			// node on its next pass. Retry.
			bo.Wait()
			continue
		}
		if !curr.next.CompareAndSwap(currLink, marklink.Ptr[node[K]]{P: currLink.P, Mark: true}) {
			bo.Wait()
			continue
		}

		// Linearization point: the key is logically gone as of here,
		// regardless of whether the physical unlink below succeeds.
		s.length.Add(-1)

		if res.prevLink.CompareAndSwap(marklink.Ptr[node[K]]{P: curr}, marklink.Ptr[node[K]]{P: currLink.P}) {
			s.reg.Retire(th, curr)
		}
		// A failed physical unlink is harmless: some future find() call, by
		// any thread, will finish unlinking and retiring curr.

		s.reg.Clear(th)
		return true
	}
}

// Contains reports whether key is currently a member of the set.
func (s *Set[K]) Contains(th hp.ThreadHandle, key K) bool {
	res := s.find(th, key)
	s.reg.Clear(th)
	return res.found
}

// Snapshot returns the set's keys in ascending order by walking the chain of
// unmarked next pointers from head to tail. It does not use hazard pointers
// and is only safe to call once every mutator has quiesced -- it exists for
// tests and diagnostics, not as a concurrent iteration primitive with
// stability guarantees across concurrent mutation.
func (s *Set[K]) Snapshot() []K {
	var keys []K
	for n := s.head.next.Load().P; !n.isTail; {
		link := n.next.Load()
		if !link.Mark {
			keys = append(keys, n.key)
		}
		n = link.P
	}
	return keys
}
