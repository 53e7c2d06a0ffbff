// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otlfc_test

import (
	"context"
	"fmt"

	"github.com/gammazero-labs/lockfree/orderedset"
	"github.com/gammazero-labs/lockfree/otlfc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Example demonstrating how to trace orderedset operations.
func Example_tracing() {
	exporter, _ := stdouttrace.New(stdouttrace.WithPrettyPrint())
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	set := orderedset.New[int](1)
	traced := otlfc.TraceSet("inventory", set)
	th := traced.RegisterThread()

	traced.Insert(th, 7)
	fmt.Println(traced.Contains(th, 7))
	traced.Destroy()

	// Output:
	// true
}
