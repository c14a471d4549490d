package emit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns engine events into OpenTelemetry spans.
//
// A run becomes a "teamgraph.run" span opened by run_start and closed by
// run_end or run_error. Every node invocation becomes a child span opened by
// node_start and closed by node_end or node_error. A subgraph run nests
// under the outer node span that started it. Any other event is recorded as
// a span event on the innermost open span, or as an instant span when its
// run is unknown.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	engine, _ := b.Compile() // with graph.WithEmitter(emit.NewOTelEmitter(otel.Tracer("teamgraph")))
type OTelEmitter struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*otelRun
}

type otelRun struct {
	ctx     context.Context
	span    trace.Span
	nodeCtx context.Context
	node    trace.Span
}

// NewOTelEmitter creates an OTelEmitter that starts spans with tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer, runs: make(map[string]*otelRun)}
}

// Emit implements Emitter.
func (o *OTelEmitter) Emit(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Msg {
	case "run_start":
		parent := context.Background()
		if p, ok := o.runs[parentRunID(event.RunID)]; ok && p.node != nil {
			parent = p.nodeCtx
		}
		ctx, span := o.tracer.Start(parent, "teamgraph.run")
		setAttributes(span, event)
		o.runs[event.RunID] = &otelRun{ctx: ctx, span: span}

	case "node_start":
		r, ok := o.runs[event.RunID]
		if !ok {
			o.instant(event)
			return
		}
		r.endNode(nil)
		r.nodeCtx, r.node = o.tracer.Start(r.ctx, "node "+event.NodeID)
		setAttributes(r.node, event)

	case "node_end", "node_error":
		r, ok := o.runs[event.RunID]
		if !ok || r.node == nil {
			o.instant(event)
			return
		}
		setAttributes(r.node, event)
		r.endNode(eventError(event))

	case "run_end", "run_error":
		r, ok := o.runs[event.RunID]
		if !ok {
			o.instant(event)
			return
		}
		err := eventError(event)
		r.endNode(err)
		setAttributes(r.span, event)
		if err != nil {
			r.span.SetStatus(codes.Error, err.Error())
			r.span.RecordError(err)
		}
		r.span.End()
		delete(o.runs, event.RunID)

	default:
		r, ok := o.runs[event.RunID]
		if !ok {
			o.instant(event)
			return
		}
		target := r.span
		if r.node != nil {
			target = r.node
		}
		target.AddEvent(event.Msg, trace.WithAttributes(attributes(event)...))
	}
}

func (r *otelRun) endNode(err error) {
	if r.node == nil {
		return
	}
	if err != nil {
		r.node.SetStatus(codes.Error, err.Error())
		r.node.RecordError(err)
	}
	r.node.End()
	r.node, r.nodeCtx = nil, nil
}

func (o *OTelEmitter) instant(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	setAttributes(span, event)
	if err := eventError(event); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// Open returns the number of runs with an unfinished span.
func (o *OTelEmitter) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

// Flush forces the global tracer provider to export pending spans when it
// supports ForceFlush.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// parentRunID strips the "/node/uuid" suffix a subgraph adds to its outer run ID.
func parentRunID(runID string) string {
	i := strings.LastIndex(runID, "/")
	if i <= 0 {
		return ""
	}
	j := strings.LastIndex(runID[:i], "/")
	if j <= 0 {
		return ""
	}
	return runID[:j]
}

func eventError(event Event) error {
	if msg := event.Str("error"); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func setAttributes(span trace.Span, event Event) {
	span.SetAttributes(attributes(event)...)
}

func attributes(event Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("teamgraph.run_id", event.RunID),
		attribute.Int("teamgraph.step", event.Step),
	}
	if event.NodeID != "" {
		attrs = append(attrs, attribute.String("teamgraph.node_id", event.NodeID))
	}
	for key, value := range event.Meta {
		if key == "error" {
			continue
		}
		attrs = append(attrs, metaAttribute(attrKey(key), value))
	}
	return attrs
}

func attrKey(key string) string {
	switch key {
	case "tokens_in", "tokens_out", "cost_usd", "model":
		return "teamgraph.llm." + key
	case "latency_ms":
		return "teamgraph.node.latency_ms"
	default:
		return "teamgraph." + key
	}
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
