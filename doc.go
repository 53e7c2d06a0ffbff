// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package lockfree provides lock-free concurrent collections with safe
// memory reclamation. It ships two collections built on two different
// reclamation strategies:
//
//   - orderedset.Set, a sorted singly-linked set (insert/delete/contains)
//     that reclaims unlinked nodes through a hazard-pointer registry (hp).
//   - deque.Deque, a doubly-linked deque (push/pop at either end) that
//     reclaims nodes through per-node reference counting instead of hazard
//     pointers, since its operations walk in both directions and a deleted
//     node may still be reachable from a neighbor mid-unlink.
//
// Both collections are non-blocking: every operation retries a bounded
// compare-and-swap loop rather than acquiring a lock, so no goroutine can
// stall the others by being descheduled mid-operation.
//
// # Hazard pointers
//
// hp.Registry lets a goroutine publish "I am about to dereference this
// address" before doing so, so that another goroutine that has unlinked that
// address defers freeing it until no registry slot still names it. orderedset
// is the one collection in this module built on hp: a goroutine calls
// RegisterThread once, obtaining a hp.ThreadHandle, and threads that handle
// through every subsequent call.
//
// # Reference counting
//
// deque nodes instead carry an atomic reference count packed together with a
// one-bit reclamation claim, following Valois and Sundell-Tsigas: a node's
// count only reaches zero once every neighbor and every in-flight read of it
// has released its reference, at which point exactly one releaser wins the
// compare-and-swap that claims the right to reclaim it.
//
// # Instrumentation
//
// Neither hp nor orderedset nor deque import a logging, metrics, or tracing
// library; the hot CAS-retry paths stay dependency-light. Structured
// logging, OpenTelemetry spans, and counters/histograms live in the separate
// otlfc submodule, which wraps these packages rather than being built into
// them.
//
// # Out of scope
//
// cmd/stress is a driver that exercises orderedset and deque from many
// goroutines and prints the resulting operation counts; it is an external
// collaborator, not part of this module's API.
package lockfree
