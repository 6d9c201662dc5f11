package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/born-train/internal/train"
)

// newTracer returns a tracer that writes spans to path as JSON. An empty
// path returns a nil tracer, which the epoch runners treat as disabled.
// shutdown flushes pending spans and closes the file.
func newTracer(path string) (tracer trace.Tracer, shutdown func(context.Context) error, err error) {
	if path == "" {
		return nil, func(context.Context) error { return nil }, nil
	}

	f, err := os.Create(path) //nolint:gosec // user-supplied output path.
	if err != nil {
		return nil, nil, fmt.Errorf("trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	shutdown = func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), f.Close())
	}
	return tp.Tracer(train.TracerName), shutdown, nil
}
