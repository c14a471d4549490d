package graph

import (
	"time"

	"github.com/dshills/teamgraph/graph/emit"
	"github.com/dshills/teamgraph/graph/store"
)

// DefaultRecursionLimit is the iteration cap applied when none is configured.
const DefaultRecursionLimit = 25

// Options holds the execution configuration collected by Option values.
//
// Zero values are valid: the engine falls back to DefaultRecursionLimit, an
// in-memory store and a null emitter.
type Options struct {
	// Name labels the graph in events and metrics.
	Name string

	// RecursionLimit caps the number of node invocations per run.
	RecursionLimit int

	// DefaultNodeTimeout bounds each node invocation unless its NodePolicy
	// overrides it. Zero means no timeout.
	DefaultNodeTimeout time.Duration

	// Store persists the state after every step.
	Store store.Store[State]

	// Emitter receives observability events.
	Emitter emit.Emitter

	// Metrics records Prometheus metrics. Nil disables metrics.
	Metrics *PrometheusMetrics
}

// Option is a functional option for configuring a Builder.
//
// Example:
//
//	b := graph.New(
//	    graph.WithName("research"),
//	    graph.WithRecursionLimit(100),
//	    graph.WithDefaultNodeTimeout(2*time.Minute),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	opts Options
}

// WithName labels the graph. The name appears in events, metrics and
// derived subgraph run IDs.
func WithName(name string) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Name = name
		return nil
	}
}

// WithRecursionLimit caps the number of node invocations per run.
//
// Default: 25. When the cap is hit, Run returns the partial state together
// with a *RecursionLimitError.
func WithRecursionLimit(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return &EngineError{Message: "recursion limit must be positive", Code: "INVALID_OPTION"}
		}
		cfg.opts.RecursionLimit = n
		return nil
	}
}

// WithDefaultNodeTimeout bounds every node invocation. A node that exceeds
// it is recorded as a NODE_TIMEOUT failure and the run continues.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "node timeout cannot be negative", Code: "INVALID_OPTION"}
		}
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithStore sets the persistence backend for step snapshots and checkpoints.
func WithStore(st store.Store[State]) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Store = st
		return nil
	}
}

// WithEmitter sets the observability event receiver.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// RunOption adjusts a single Run call.
type RunOption func(*runConfig)

type runConfig struct {
	limit   int
	timeout time.Duration
}

// WithRunLimit overrides the recursion limit for one run.
func WithRunLimit(n int) RunOption {
	return func(rc *runConfig) {
		if n > 0 {
			rc.limit = n
		}
	}
}

// WithRunTimeout bounds the wall-clock time of one run.
func WithRunTimeout(d time.Duration) RunOption {
	return func(rc *runConfig) {
		rc.timeout = d
	}
}
