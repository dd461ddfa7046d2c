package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Swind/go-thread-manager/core"
	"go.opentelemetry.io/otel"
)

func TestInit_Disabled(t *testing.T) {
	tracer, shutdown, err := Init(context.Background(), false, Options{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if tracer == nil {
		t.Fatal("disabled Init returned a nil tracer")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

// TestInit_StdoutExport verifies dispatch spans reach the stdout exporter
// Given: Tracing enabled without an endpoint, writing to a buffer
// When: A manager dispatches a job and the provider shuts down
// Then: The exported output contains the dispatch span and family name
func TestInit_StdoutExport(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	tracer, shutdown, err := Init(context.Background(), true, Options{ServiceName: "test", Writer: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	m := core.NewThreadManager(&core.ManagerConfig{Logger: core.NewNoOpLogger(), Tracer: tracer})
	h, err := m.Register(func(context.Context, any) error { return nil }, "exported")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_ = m.Post(h, nil, 1)
	if err := m.Flush(h, true); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	m.Close()

	// Shutdown flushes the batcher.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "threadmanager.job.dispatch") || !strings.Contains(out, "exported") {
		t.Fatalf("span not exported: %s", out)
	}
}
