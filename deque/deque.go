// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package deque implements a lock-free doubly-linked deque following the
// Sundell-Tsigas algorithm: nodes carry a mark bit on their link fields for
// logical deletion, exactly as in the orderedset package, but reclamation
// here is by per-node reference counting plus a claim bit rather than
// hazard pointers. A node is freed once its reference count -- bumped by
// copy and dropped by release every time a link or a local variable starts
// or stops pointing at it -- reaches zero and the claim bit has been won by
// exactly one releasing goroutine.
//
// push_left and push_right are mirror images of each other under the
// substitution prev<->next, head<->tail, and this package expresses them
// once as pushSide parameterized by a direction. pop_left and pop_right share
// popSide, but are not a pure mirror: a node is always deleted by marking its
// next link, helpDelete always splices it out of the next chain, and the
// prev link left stale is repaired afterwards.
package deque

import (
	"sync/atomic"

	"github.com/gammazero-labs/lockfree/internal/backoff"
	"github.com/gammazero-labs/lockfree/internal/marklink"
)

// direction selects which of a node's two link fields an operation treats
// as "forward" for the purpose of a single push/pop/help call.
const (
	dirPrev = 0
	dirNext = 1
)

func opposite(d int) int { return 1 - d }

// node is a deque element. The mark bit on prev or next denotes that this
// node -- the one owning the field, not the one the link references -- is
// logically deleted: next is marked first, then prev. refctClaim packs the external
// reference count in its upper bits, incremented and decremented in steps
// of two; the low bit stays 0 for a live node's entire lifetime and is used
// only as the one-shot CompareAndSwap(0, 1) that arbitrates which of
// possibly several releasers observing the count reach zero wins the right
// to reclaim this node (see DESIGN.md for why this departs from the claim
// bit's literal spec encoding).
type node[V any] struct {
	value V
	prev  marklink.Link[node[V]]
	next  marklink.Link[node[V]]

	refctClaim atomic.Uint64
}

func (n *node[V]) link(dir int) *marklink.Link[node[V]] {
	if dir == dirPrev {
		return &n.prev
	}
	return &n.next
}

// copyNode acquires one more strong reference to n. The caller must already
// hold a reference (either as a local variable or because n was just
// returned by read/readDel), and n must not be the marked/deleted sentinel
// value (nil).
func copyNode[V any](n *node[V]) *node[V] {
	if n == nil {
		return nil
	}
	n.refctClaim.Add(2)
	return n
}

// release drops one strong reference to n. If that was the last external
// reference, release attempts to win the claim bit; whichever goroutine
// wins it reclaims n.
func release[V any](n *node[V]) {
	if n == nil {
		return
	}
	if n.refctClaim.Add(^uint64(1)) == 0 {
		if n.refctClaim.CompareAndSwap(0, 1) {
			reclaim(n)
		}
	}
}

// reclaim releases n's own outbound references and drops its links, making
// n collectible once every other path to it (if any remain briefly, e.g. a
// racing reader's local variable) also lets go.
func reclaim[V any](n *node[V]) {
	p := n.prev.Load().P
	nx := n.next.Load().P
	n.prev.Store(marklink.Ptr[node[V]]{})
	n.next.Store(marklink.Ptr[node[V]]{})
	release(p)
	release(nx)
}

// read loads link, acquires a reference on the node it currently names, and
// validates the read against a second load: this is the same
// load/publish/reload protocol the hp package's Protect uses for hazard
// pointers, adapted to reference counting instead of a hazard slot. Returns
// nil if the link is marked (the node owning the link is logically deleted)
// or if the link is itself empty.
func read[V any](link *marklink.Link[node[V]]) *node[V] {
	for {
		n := link.Load().P
		if n == nil {
			return nil
		}
		copyNode(n)
		again := link.Load()
		if again.P != n {
			release(n)
			continue
		}
		if again.Mark {
			release(n)
			return nil
		}
		return n
	}
}

// readDel is read, except a marked link still yields its (marked) referent
// with a reference held, rather than nil. Helper routines that must keep
// walking through logically-deleted nodes use this instead of read.
func readDel[V any](link *marklink.Link[node[V]]) *node[V] {
	for {
		n := link.Load().P
		if n == nil {
			return nil
		}
		copyNode(n)
		again := link.Load()
		if again.P != n {
			release(n)
			continue
		}
		return n
	}
}

// Deque is a lock-free doubly-linked sequence of values of type V. The zero
// value is not usable; construct with New.
type Deque[V any] struct {
	head, tail *node[V]
	length     atomic.Int64
}

// New constructs an empty Deque. Its two sentinels self-loop (head.prev ==
// head, tail.next == tail) and cross-reference each other (head.next ==
// tail, tail.prev == head); their reference counts are seeded to account
// for those four permanent links so that ordinary copy/release traffic
// during pushes and pops never drives a sentinel to zero.
func New[V any]() *Deque[V] {
	head := &node[V]{}
	tail := &node[V]{}
	head.prev.Store(marklink.Ptr[node[V]]{P: head})
	head.next.Store(marklink.Ptr[node[V]]{P: tail})
	tail.prev.Store(marklink.Ptr[node[V]]{P: head})
	tail.next.Store(marklink.Ptr[node[V]]{P: tail})
	head.refctClaim.Store(4)
	tail.refctClaim.Store(4)
	return &Deque[V]{head: head, tail: tail}
}

// Destroy tears down the sentinels' permanent self-loops and cross-edges,
// mirroring their construction in New. Call only once every worker
// goroutine has quiesced and the deque is empty.
func (d *Deque[V]) Destroy() {
	release(d.head) // head.prev self-loop
	release(d.head) // tail.prev cross-edge
	release(d.tail) // tail.next self-loop
	release(d.tail) // head.next cross-edge
}

// Len returns an approximate element count. Like orderedset.Set.Len, it is
// not linearizable with respect to concurrent pushes and pops and exists for
// diagnostics and test invariant checks only.
func (d *Deque[V]) Len() int {
	return int(d.length.Load())
}

func (d *Deque[V]) sentinel(dir int) *node[V] {
	if dir == dirPrev {
		return d.head
	}
	return d.tail
}

// PushRight appends v at the tail end of the deque.
func (d *Deque[V]) PushRight(v V) {
	d.pushSide(dirNext, v)
	d.length.Add(1)
}

// PushLeft prepends v at the head end of the deque.
func (d *Deque[V]) PushLeft(v V) {
	d.pushSide(dirPrev, v)
	d.length.Add(1)
}

// PopLeft removes and returns the value nearest the head end, or reports ok
// == false if the deque was empty at the observation instant.
func (d *Deque[V]) PopLeft() (v V, ok bool) {
	return d.popSide(dirNext)
}

// PopRight removes and returns the value nearest the tail end, or reports ok
// == false if the deque was empty at the observation instant.
func (d *Deque[V]) PopRight() (v V, ok bool) {
	return d.popSide(dirPrev)
}

// pushSide implements push_left/push_right generically: outer names the
// direction of the sentinel being extended towards (dirNext/tail for a
// right push, dirPrev/head for a left push); inner is the opposite
// direction, used for the new node's back-pointer.
func (d *Deque[V]) pushSide(outer int, v V) {
	inner := opposite(outer)

	n := &node[V]{value: v}
	n.refctClaim.Store(2)

	outerNode := copyNode(d.sentinel(outer))
	innerNode := read(outerNode.link(inner))

	var bo backoff.Backoff
	for {
		if innerNode.link(outer).Load().P != outerNode {
			innerNode = d.helpInsert(inner, innerNode, outerNode)
			continue
		}

		n.link(inner).Store(marklink.Ptr[node[V]]{P: innerNode})
		n.link(outer).Store(marklink.Ptr[node[V]]{P: outerNode})

		if innerNode.link(outer).CompareAndSwap(
			marklink.Ptr[node[V]]{P: outerNode},
			marklink.Ptr[node[V]]{P: n},
		) {
			copyNode(n)
			break
		}
		bo.Wait()
	}

	d.pushCommon(outer, n, outerNode)
}

// pushCommon finalizes the new node's back-pointer on the far sentinel's
// side, matching the shared tail of push_left and push_right in the
// reference algorithm.
func (d *Deque[V]) pushCommon(outer int, n, outerNode *node[V]) {
	inner := opposite(outer)

	var bo backoff.Backoff
	for {
		link1 := outerNode.link(inner).Load()
		if link1.Mark || n.link(outer).Load().P != outerNode {
			break
		}
		if outerNode.link(inner).CompareAndSwap(link1, marklink.Ptr[node[V]]{P: n}) {
			copyNode(n)
			release(link1.P)
			if n.link(inner).Load().Mark {
				bad := n.link(inner).Load().P
				fixed := d.helpInsert(inner, bad, n)
				release(fixed)
			}
			break
		}
		bo.Wait()
	}
	release(outerNode)
	release(n)
}

// popSide implements pop_left/pop_right: approach names the direction
// walked away from the near sentinel to find the first live node
// (dirNext/head for a left pop, dirPrev/tail for a right pop); away is the
// opposite direction, naming that near sentinel. Both sides delete the
// popped node by marking its next link, and both repair a prev link once
// it is spliced out: the successor's for a left pop, tail's for a right pop.
func (d *Deque[V]) popSide(approach int) (v V, ok bool) {
	away := opposite(approach)

	cur := copyNode(d.sentinel(away))
	var bo backoff.Backoff
	for {
		n := read(cur.link(approach))
		if approach == dirPrev && n.next.Load() != (marklink.Ptr[node[V]]{P: cur}) {
			// tail.prev is stale: repair it before trusting n.
			release(d.helpInsert(dirPrev, n, cur))
			continue
		}
		if n == d.sentinel(approach) {
			release(cur)
			release(n)
			var zero V
			return zero, false
		}

		link1 := n.next.Load()
		if link1.Mark {
			d.helpDelete(n)
			release(n)
			continue
		}

		if n.next.CompareAndSwap(link1, marklink.Ptr[node[V]]{P: link1.P, Mark: true}) {
			d.helpDelete(n)

			next := readDel(n.link(approach))
			if approach == dirNext {
				cur = d.helpInsert(dirPrev, cur, next)
			} else {
				next = d.helpInsert(dirPrev, next, cur)
			}
			release(cur)
			release(next)

			value := n.value
			d.removeCrossReference(n)
			release(n)
			d.length.Add(-1)
			return value, true
		}

		release(n)
		bo.Wait()
	}
}

// helpDelete completes the physical unlink of a node whose forward link (in
// whichever direction it was reached) has already been marked: it marks the
// node's other link too, then walks outward from both neighbors until they
// agree, splicing the node out of the live chain.
func (d *Deque[V]) helpDelete(n *node[V]) {
	var bo backoff.Backoff
	for {
		link1 := n.prev.Load()
		if link1.Mark {
			break
		}
		if n.prev.CompareAndSwap(link1, marklink.Ptr[node[V]]{P: link1.P, Mark: true}) {
			break
		}
		bo.Wait()
	}

	prev := readDel(&n.prev)
	next := readDel(&n.next)
	lastlink := false
	bo.Reset()
	for prev != next {
		if next.next.Load().Mark {
			old := next
			next = readDel(&next.next)
			release(old)
			continue
		}

		prev2 := read(&prev.next)
		if prev2 == nil {
			if !lastlink {
				d.helpDelete(prev)
				lastlink = true
			}
			old := prev
			prev = readDel(&prev.prev)
			release(old)
			continue
		}
		if prev2 != n {
			release(prev)
			prev = prev2
			lastlink = false
			continue
		}

		release(prev2)
		if prev.next.CompareAndSwap(
			marklink.Ptr[node[V]]{P: n},
			marklink.Ptr[node[V]]{P: next},
		) {
			copyNode(next)
			release(n)
			break
		}
		bo.Wait()
	}
	release(prev)
	release(next)
}

// helpInsert restores nodeToFix's fix-direction link to candidate when a
// concurrent deletion left it stale, walking candidate forward along the
// opposite direction until it reaches nodeToFix. It returns the
// (possibly advanced) node that nodeToFix's fix-direction link now names,
// with a reference held that the caller is responsible for releasing.
func (d *Deque[V]) helpInsert(fix int, candidate, nodeToFix *node[V]) *node[V] {
	walk := opposite(fix)
	lastlink := false
	var bo backoff.Backoff
	for {
		candNext := read(candidate.link(walk))
		if candNext == nil {
			if !lastlink {
				d.helpDelete(candidate)
				lastlink = true
			}
			old := candidate
			candidate = readDel(candidate.link(fix))
			release(old)
			continue
		}
		if candNext != nodeToFix {
			release(candidate)
			candidate = candNext
			lastlink = false
			continue
		}
		release(candNext)

		oldLink := nodeToFix.link(fix).Load()
		if nodeToFix.link(fix).CompareAndSwap(oldLink, marklink.Ptr[node[V]]{P: candidate}) {
			copyNode(candidate)
			release(oldLink.P)
			if candidate.link(fix).Load().Mark {
				continue
			}
			return candidate
		}
		bo.Wait()
	}
}

// removeCrossReference rewrites a physically-unlinked node's prev and next
// to marked pointers at the nearest still-live neighbors on each side, so
// that the node's own release doesn't keep a live list node reachable
// through a now-pointless reference any longer than necessary.
func (d *Deque[V]) removeCrossReference(n *node[V]) {
	for {
		prev := n.prev.Load()
		if prev.P.next.Load().Mark {
			newPrev := readDel(&prev.P.prev)
			n.prev.Store(marklink.Ptr[node[V]]{P: newPrev, Mark: true})
			release(prev.P)
			continue
		}

		next := n.next.Load()
		if next.P.prev.Load().Mark {
			newNext := readDel(&next.P.next)
			n.next.Store(marklink.Ptr[node[V]]{P: newNext, Mark: true})
			release(next.P)
			continue
		}

		break
	}
}
