// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package align provides cache-line padding helpers for data structures whose
// per-thread or per-node rows are stored contiguously and would otherwise
// suffer false sharing under concurrent, independently-owned access.
package align

// CacheLineSize is a conservative upper bound for the size of an x86-64 or
// arm64 cache line. Padding to this size keeps two independently-written
// rows of a table from landing in the same line.
const CacheLineSize = 64

// Pad64 is embedded (by value, not pointer) after the live fields of a row
// struct to push the next row's fields onto a new cache line. Its size is
// deliberately oversized relative to any single row's live fields; the Go
// compiler does not guarantee cache-line alignment of slice elements, so this
// is a best-effort measure rather than a hard guarantee.
type Pad64 [CacheLineSize]byte
