package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/teamgraph/agents"
	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/collab/sandbox"
	"github.com/dshills/teamgraph/collab/search"
	"github.com/dshills/teamgraph/collab/workspace"
	"github.com/dshills/teamgraph/config"
	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/emit"
	"github.com/dshills/teamgraph/graph/model"
)

// app is one configured team ready to run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *graph.Engine
	costs  *model.CostTracker
	tracer *tracing
	out    io.Writer

	closers []func() error
}

// newApp wires the configured collaborators, model, store and observers
// into the named team.
func newApp(ctx context.Context, cfg *config.Config, team string, out io.Writer) (*app, error) {
	t, ok := agents.Lookup(team)
	if !ok {
		return nil, fmt.Errorf("unknown team %q (run 'teamgraph teams' to list them)", team)
	}

	logger, err := newLogger(debugMode)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, costs: model.NewCostTracker(), out: out}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	base, closeModel, err := newChatModel(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeModel != nil {
		a.closers = append(a.closers, closeModel)
	}
	retrying := model.WithRetry(base)

	ws, err := workspace.New(cfg.Workspace.Root, logger.Named("workspace"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening workspace: %w", err)
	}

	st, closeStore, err := newStore(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	emitters := []emit.Emitter{newStreamEmitter(out), emit.NewZapEmitter(logger.Named("engine"))}
	if traceRun {
		a.tracer = newTracing()
		emitters = append(emitters, a.tracer.emitter)
	}

	opts := []graph.Option{
		graph.WithRecursionLimit(cfg.Graph.RecursionLimit),
		graph.WithDefaultNodeTimeout(cfg.Graph.NodeTimeout),
		graph.WithStore(st),
		graph.WithEmitter(emit.Multi(emitters...)),
	}
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		opts = append(opts, graph.WithMetrics(graph.NewPrometheusMetrics(registry)))
		a.serveMetrics(registry)
	}

	sbCfg := sandbox.DefaultConfig()
	sbCfg.Interpreter = cfg.Sandbox.Interpreter
	sbCfg.Extension = cfg.Sandbox.Extension
	sbCfg.Timeout = cfg.Sandbox.Timeout
	if cfg.Sandbox.MaxOutputBytes > 0 {
		sbCfg.MaxOutputBytes = cfg.Sandbox.MaxOutputBytes
	}

	deps := agents.Deps{
		Model: retrying,
		ModelFor: func(agent string) model.ChatModel {
			return a.costs.Meter(retrying, cfg.Model.Name, agent)
		},
		Repo: repo.NewClient(cfg.GitHub.Token,
			repo.WithBaseURL(cfg.GitHub.BaseURL),
			repo.WithLimits(cfg.GitHub.MaxDepth, cfg.GitHub.MaxEntries),
			repo.WithMaxDirs(cfg.GitHub.MaxDirs),
			repo.WithLogger(logger.Named("repo")),
		),
		Search: search.NewClient(search.Config{
			APIKey:     cfg.Search.APIKey,
			Endpoint:   cfg.Search.Endpoint,
			MaxResults: cfg.Search.MaxResults,
		}, logger.Named("search")),
		Workspace:     ws,
		Sandbox:       sandbox.New(sbCfg, logger.Named("sandbox")),
		Trimmer:       agents.NewTrimmer(cfg.Model.TokenBudget, logger.Named("trim")),
		Logger:        logger,
		SearchResults: cfg.Search.MaxResults,
		Options:       opts,
	}

	a.engine, err = t.Build(deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building %s team: %w", team, err)
	}
	logger.Debug("team ready",
		zap.String("team", team),
		zap.String("provider", cfg.Model.Provider),
		zap.String("model", cfg.Model.Name),
		zap.String("store", cfg.Store.Driver),
		zap.Strings("nodes", a.engine.Nodes()),
	)
	return a, nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", a.cfg.Metrics.Addr))
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// finish prints the trace and cost summaries.
func (a *app) finish(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.report(ctx, a.out); err != nil {
			a.logger.Warn("trace summary failed", zap.Error(err))
		}
	}
	printCosts(a.out, a.costs)
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.OutputPaths = []string{"stderr"}
		logger, err = cfg.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// reportedError marks an error already printed to the user.
type reportedError struct{ error }

func (r reportedError) Unwrap() error { return r.error }

// fatal prints the error category and message of an aborted run.
func fatal(w io.Writer, err error) error {
	fmt.Fprintf(w, "%s %s: %v\n", failColor.Sprint("error"), graph.Category(err), err)
	return reportedError{err}
}
