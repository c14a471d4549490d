package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/teamgraph/graph/emit"
)

// tracing records engine spans in memory and prints them when the command
// ends.
type tracing struct {
	provider *sdktrace.TracerProvider
	exporter *tracetest.InMemoryExporter
	emitter  *emit.OTelEmitter
}

func newTracing() *tracing {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	return &tracing{
		provider: tp,
		exporter: exporter,
		emitter:  emit.NewOTelEmitter(tp.Tracer("teamgraph")),
	}
}

// report flushes the provider and prints one line per span, indented by
// nesting depth, in start order.
func (t *tracing) report(ctx context.Context, w io.Writer) error {
	if err := t.emitter.Flush(ctx); err != nil {
		return err
	}
	spans := t.exporter.GetSpans()
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].StartTime.Before(spans[j].StartTime) })

	depth := map[string]int{}
	fmt.Fprintln(w, labelColor.Sprint("trace:"))
	for _, s := range spans {
		d := 0
		if s.Parent.IsValid() {
			d = depth[s.Parent.SpanID().String()] + 1
		}
		depth[s.SpanContext.SpanID().String()] = d
		status := ""
		if s.Status.Code == codes.Error {
			status = " " + failColor.Sprint(s.Status.Description)
		}
		width := 28 - 2*d
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(w, "  %s%-*s %8s%s\n", strings.Repeat("  ", d), width, s.Name, s.EndTime.Sub(s.StartTime).Round(time.Microsecond), status)
	}
	t.exporter.Reset()
	return t.provider.Shutdown(ctx)
}
