package observability

import (
	"context"
	"io"
	"testing"

	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

func TestInitTracingWithoutExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), nil, "reviewsync", "test", log.NewStdLogger(io.Discard))
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), &conf.Trace{Exporter: "zipkin"}, "reviewsync", "test", log.NewStdLogger(io.Discard))
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSampleRatio(t *testing.T) {
	cases := map[float64]float64{0: 0.1, -1: 0.1, 0.5: 0.5, 3: 1}
	for in, want := range cases {
		if got := sampleRatio(in); got != want {
			t.Fatalf("sampleRatio(%v) = %v, want %v", in, got, want)
		}
	}
}
