// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otlfc

import (
	"cmp"
	"context"
	"time"

	"github.com/gammazero-labs/lockfree/deque"
	"github.com/gammazero-labs/lockfree/hp"
	"github.com/gammazero-labs/lockfree/orderedset"
	"go.opentelemetry.io/otel"
)

const meterName = "otlfc"

// MetricsSet wraps an orderedset.Set[K], recording count and duration
// metrics for Insert and Delete.
type MetricsSet[K cmp.Ordered] struct {
	inner *orderedset.Set[K]
	name  string
}

// MeterSet attaches metrics to an existing Set under the given metric name
// prefix.
func MeterSet[K cmp.Ordered](name string, s *orderedset.Set[K]) *MetricsSet[K] {
	return &MetricsSet[K]{inner: s, name: name}
}

func (s *MetricsSet[K]) RegisterThread() hp.ThreadHandle {
	return s.inner.RegisterThread()
}

func (s *MetricsSet[K]) Insert(th hp.ThreadHandle, key K) bool {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, _ := meter.Int64Counter(s.name + ".insert.count")
	duration, _ := meter.Float64Histogram(s.name + ".insert.duration")

	start := time.Now()
	counter.Add(ctx, 1)
	changed := s.inner.Insert(th, key)
	duration.Record(ctx, time.Since(start).Seconds())
	return changed
}

func (s *MetricsSet[K]) Delete(th hp.ThreadHandle, key K) bool {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, _ := meter.Int64Counter(s.name + ".delete.count")
	duration, _ := meter.Float64Histogram(s.name + ".delete.duration")

	start := time.Now()
	counter.Add(ctx, 1)
	changed := s.inner.Delete(th, key)
	duration.Record(ctx, time.Since(start).Seconds())
	return changed
}

func (s *MetricsSet[K]) Contains(th hp.ThreadHandle, key K) bool {
	return s.inner.Contains(th, key)
}

func (s *MetricsSet[K]) Len() int {
	return s.inner.Len()
}

func (s *MetricsSet[K]) Destroy() {
	s.inner.Destroy()
}

// MetricsDeque wraps a deque.Deque[V], counting every push per side and
// every pop per side that observed an empty deque. Successful pops are not
// counted, and no duration is recorded for pushes or pops.
type MetricsDeque[V any] struct {
	inner *deque.Deque[V]
	name  string
}

// MeterDeque attaches metrics to an existing Deque under the given metric
// name prefix.
func MeterDeque[V any](name string, d *deque.Deque[V]) *MetricsDeque[V] {
	return &MetricsDeque[V]{inner: d, name: name}
}

func (d *MetricsDeque[V]) PushLeft(v V) {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, _ := meter.Int64Counter(d.name + ".push_left.count")
	counter.Add(ctx, 1)
	d.inner.PushLeft(v)
}

func (d *MetricsDeque[V]) PushRight(v V) {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, _ := meter.Int64Counter(d.name + ".push_right.count")
	counter.Add(ctx, 1)
	d.inner.PushRight(v)
}

func (d *MetricsDeque[V]) PopLeft() (V, bool) {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	emptyCounter, _ := meter.Int64Counter(d.name + ".pop_left.empty")

	v, ok := d.inner.PopLeft()
	if !ok {
		emptyCounter.Add(ctx, 1)
	}
	return v, ok
}

func (d *MetricsDeque[V]) PopRight() (V, bool) {
	ctx := context.Background()
	meter := otel.GetMeterProvider().Meter(meterName)
	emptyCounter, _ := meter.Int64Counter(d.name + ".pop_right.empty")

	v, ok := d.inner.PopRight()
	if !ok {
		emptyCounter.Add(ctx, 1)
	}
	return v, ok
}

func (d *MetricsDeque[V]) Len() int {
	return d.inner.Len()
}

func (d *MetricsDeque[V]) Destroy() {
	d.inner.Destroy()
}
