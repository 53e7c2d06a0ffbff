// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otlfc adds optional observability to the lockfree collections:
// structured logging via zap, metrics and tracing via OpenTelemetry. It is a
// separate module from the core collections so that a caller who only wants
// the lock-free collections never pulls in zap or the otel SDK transitively.
package otlfc

import (
	"cmp"
	"time"

	"github.com/gammazero-labs/lockfree/deque"
	"github.com/gammazero-labs/lockfree/hp"
	"github.com/gammazero-labs/lockfree/orderedset"
	"go.uber.org/zap"
)

// LoggedSet wraps an orderedset.Set[K], logging the operation name, key,
// outcome, and duration of every Insert and Delete call at debug level.
// Contains is passed through without logging, and no call is logged above
// debug level regardless of its latency.
type LoggedSet[K cmp.Ordered] struct {
	inner *orderedset.Set[K]
	name  string
}

// LogSet attaches logging to an existing Set under the given component name,
// used to tell multiple instrumented sets apart in shared log output.
func LogSet[K cmp.Ordered](name string, s *orderedset.Set[K]) *LoggedSet[K] {
	return &LoggedSet[K]{inner: s, name: name}
}

func (s *LoggedSet[K]) RegisterThread() hp.ThreadHandle {
	return s.inner.RegisterThread()
}

func (s *LoggedSet[K]) Insert(th hp.ThreadHandle, key K) bool {
	logger := zap.L()
	start := time.Now()
	changed := s.inner.Insert(th, key)
	logger.Debug("orderedset insert",
		zap.String("set", s.name),
		zap.Any("key", key),
		zap.Bool("changed", changed),
		zap.Duration("duration", time.Since(start)))
	return changed
}

func (s *LoggedSet[K]) Delete(th hp.ThreadHandle, key K) bool {
	logger := zap.L()
	start := time.Now()
	changed := s.inner.Delete(th, key)
	logger.Debug("orderedset delete",
		zap.String("set", s.name),
		zap.Any("key", key),
		zap.Bool("changed", changed),
		zap.Duration("duration", time.Since(start)))
	return changed
}

func (s *LoggedSet[K]) Contains(th hp.ThreadHandle, key K) bool {
	return s.inner.Contains(th, key)
}

func (s *LoggedSet[K]) Len() int {
	return s.inner.Len()
}

func (s *LoggedSet[K]) Snapshot() []K {
	return s.inner.Snapshot()
}

func (s *LoggedSet[K]) Destroy() {
	zap.L().Debug("orderedset destroy", zap.String("set", s.name))
	s.inner.Destroy()
}

// LoggedDeque wraps a deque.Deque[V], logging the operation name and outcome
// of every push and pop at debug level.
type LoggedDeque[V any] struct {
	inner *deque.Deque[V]
	name  string
}

// LogDeque attaches logging to an existing Deque under the given component
// name.
func LogDeque[V any](name string, d *deque.Deque[V]) *LoggedDeque[V] {
	return &LoggedDeque[V]{inner: d, name: name}
}

func (d *LoggedDeque[V]) PushLeft(v V) {
	start := time.Now()
	d.inner.PushLeft(v)
	zap.L().Debug("deque push_left",
		zap.String("deque", d.name),
		zap.Duration("duration", time.Since(start)))
}

func (d *LoggedDeque[V]) PushRight(v V) {
	start := time.Now()
	d.inner.PushRight(v)
	zap.L().Debug("deque push_right",
		zap.String("deque", d.name),
		zap.Duration("duration", time.Since(start)))
}

func (d *LoggedDeque[V]) PopLeft() (V, bool) {
	start := time.Now()
	v, ok := d.inner.PopLeft()
	zap.L().Debug("deque pop_left",
		zap.String("deque", d.name),
		zap.Bool("ok", ok),
		zap.Duration("duration", time.Since(start)))
	return v, ok
}

func (d *LoggedDeque[V]) PopRight() (V, bool) {
	start := time.Now()
	v, ok := d.inner.PopRight()
	zap.L().Debug("deque pop_right",
		zap.String("deque", d.name),
		zap.Bool("ok", ok),
		zap.Duration("duration", time.Since(start)))
	return v, ok
}

func (d *LoggedDeque[V]) Len() int {
	return d.inner.Len()
}

func (d *LoggedDeque[V]) Destroy() {
	zap.L().Debug("deque destroy", zap.String("deque", d.name))
	d.inner.Destroy()
}
