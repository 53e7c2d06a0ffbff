// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otlfc

import (
	"cmp"
	"context"

	"github.com/gammazero-labs/lockfree/deque"
	"github.com/gammazero-labs/lockfree/hp"
	"github.com/gammazero-labs/lockfree/orderedset"
	"go.opentelemetry.io/otel"
)

const tracerName = "otlfc"

// TracedSet wraps an orderedset.Set[K], opening a span around each Insert
// and Delete call. Spans are rooted via context.Background() since the
// collections themselves never accept or propagate a caller context --
// there is no cancellation or deadline concept at this layer -- so these
// spans are never nested under a caller's trace.
type TracedSet[K cmp.Ordered] struct {
	inner *orderedset.Set[K]
	name  string
}

// TraceSet attaches tracing to an existing Set under the given span name
// prefix.
func TraceSet[K cmp.Ordered](name string, s *orderedset.Set[K]) *TracedSet[K] {
	return &TracedSet[K]{inner: s, name: name}
}

func (s *TracedSet[K]) RegisterThread() hp.ThreadHandle {
	return s.inner.RegisterThread()
}

func (s *TracedSet[K]) Insert(th hp.ThreadHandle, key K) bool {
	_, span := otel.Tracer(tracerName).Start(context.Background(), s.name+".insert")
	defer span.End()
	return s.inner.Insert(th, key)
}

func (s *TracedSet[K]) Delete(th hp.ThreadHandle, key K) bool {
	_, span := otel.Tracer(tracerName).Start(context.Background(), s.name+".delete")
	defer span.End()
	return s.inner.Delete(th, key)
}

func (s *TracedSet[K]) Contains(th hp.ThreadHandle, key K) bool {
	return s.inner.Contains(th, key)
}

func (s *TracedSet[K]) Len() int {
	return s.inner.Len()
}

func (s *TracedSet[K]) Destroy() {
	s.inner.Destroy()
}

// TracedDeque wraps a deque.Deque[V], opening a span around each push and
// pop call.
type TracedDeque[V any] struct {
	inner *deque.Deque[V]
	name  string
}

// TraceDeque attaches tracing to an existing Deque under the given span name
// prefix.
func TraceDeque[V any](name string, d *deque.Deque[V]) *TracedDeque[V] {
	return &TracedDeque[V]{inner: d, name: name}
}

func (d *TracedDeque[V]) PushLeft(v V) {
	_, span := otel.Tracer(tracerName).Start(context.Background(), d.name+".push_left")
	defer span.End()
	d.inner.PushLeft(v)
}

func (d *TracedDeque[V]) PushRight(v V) {
	_, span := otel.Tracer(tracerName).Start(context.Background(), d.name+".push_right")
	defer span.End()
	d.inner.PushRight(v)
}

func (d *TracedDeque[V]) PopLeft() (V, bool) {
	_, span := otel.Tracer(tracerName).Start(context.Background(), d.name+".pop_left")
	defer span.End()
	return d.inner.PopLeft()
}

func (d *TracedDeque[V]) PopRight() (V, bool) {
	_, span := otel.Tracer(tracerName).Start(context.Background(), d.name+".pop_right")
	defer span.End()
	return d.inner.PopRight()
}

func (d *TracedDeque[V]) Len() int {
	return d.inner.Len()
}

func (d *TracedDeque[V]) Destroy() {
	d.inner.Destroy()
}
