package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seantiz/groundstate/internal/algorithm"
	"github.com/seantiz/groundstate/internal/assemble"
	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/ctxlog"
	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/resolve"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/runconfig"
	"github.com/seantiz/groundstate/internal/store"
)

const tracerName = "github.com/seantiz/groundstate/internal/engine"

// Engine runs algorithms and records their outcome.
type Engine struct {
	registry *registry.Registry
	store    store.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	broker   *ProgressBroker
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records every run in s.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithTracerProvider traces runs with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// New creates an engine over a frozen registry.
func New(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		broker:   NewProgressBroker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine resolves against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Broker returns the engine's progress broker for SSE subscription.
func (e *Engine) Broker() *ProgressBroker {
	return e.broker
}

// Request is a programmatic run: components the caller built directly.
type Request struct {
	Algorithm algorithm.Algorithm
	Input     any
	// Backend is the execution context; nil for classical algorithms.
	Backend backend.Backend
	// Problem selects the core result fields; empty means an energy problem.
	Problem result.ProblemType
}

// Run executes a programmatic request.
func (e *Engine) Run(ctx context.Context, req Request) (result.Record, error) {
	if req.Algorithm == nil {
		return nil, errors.New("run: no algorithm")
	}
	problem := req.Problem
	if problem == "" {
		problem = result.ProblemEnergy
	}

	run := newRun(model.ModeProgrammatic, req.Algorithm.Name(), string(problem), nil)
	if err := e.begin(ctx, run); err != nil {
		return nil, err
	}
	return e.execute(ctx, run, func(ctx context.Context, _ *model.Run) (result.Record, error) {
		return e.invoke(ctx, req.Algorithm, req.Input, req.Backend, problem)
	})
}

// RunConfig resolves, assembles and runs a configuration.
func (e *Engine) RunConfig(ctx context.Context, cfg runconfig.Configuration, payload any) (result.Record, error) {
	_, rec, err := e.Execute(ctx, cfg, payload)
	return rec, err
}

// Execute is RunConfig that also returns the run record. The record is
// non-nil whenever the run was started, including failed runs.
func (e *Engine) Execute(ctx context.Context, cfg runconfig.Configuration, payload any) (*model.Run, result.Record, error) {
	run, err := e.newDeclarativeRun(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := e.begin(ctx, run); err != nil {
		return nil, nil, err
	}
	rec, err := e.execute(ctx, run, e.declarative(cfg, payload))
	return run, rec, err
}

// Submit records a pending run and executes it in the background. The
// returned record reflects the pending state; poll the store for progress
// or subscribe to the broker.
func (e *Engine) Submit(ctx context.Context, cfg runconfig.Configuration, payload any) (*model.Run, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	run, err := e.newDeclarativeRun(cfg)
	if err != nil {
		return nil, err
	}
	if err := e.begin(ctx, run); err != nil {
		return nil, err
	}

	runCopy := *run
	e.wg.Go(func() {
		// The run outlives the submitting request.
		_, _ = e.execute(context.WithoutCancel(ctx), &runCopy, e.declarative(cfg, payload))
	})
	return run, nil
}

// Wait blocks until all submitted runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func newRun(mode, algorithmName, problem string, cfg json.RawMessage) *model.Run {
	return &model.Run{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Mode:      mode,
		Algorithm: algorithmName,
		Problem:   problem,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
}

func (e *Engine) newDeclarativeRun(cfg runconfig.Configuration) (*model.Run, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}
	var algo, problem string
	if s := cfg.Of(registry.KindAlgorithm); len(s) == 1 {
		algo = s[0].Name
	}
	if s := cfg.Of(registry.KindProblem); len(s) == 1 {
		problem = s[0].Name
	}
	return newRun(model.ModeDeclarative, algo, problem, raw), nil
}

// begin records the pending run.
func (e *Engine) begin(ctx context.Context, run *model.Run) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

type runFunc func(ctx context.Context, run *model.Run) (result.Record, error)

// execute drives a recorded run through running to completed or failed.
func (e *Engine) execute(ctx context.Context, run *model.Run, fn runFunc) (result.Record, error) {
	defer e.broker.Close(run.ID)

	logger := e.logger.With("run_id", run.ID)
	if e.store != nil {
		if err := e.store.UpdateRunStatus(ctx, run.ID, model.StatusRunning); err != nil {
			logger.Error("failed to transition to running", "error", err)
		}
	}

	start := time.Now().UTC()
	run.Status = model.StatusRunning
	run.StartedAt = &start

	var seq atomic.Int32
	ctx = ctxlog.WithLogger(ctx, logger)
	ctx = ctxlog.WithProgress(ctx, func(line string) {
		n := int(seq.Add(1) - 1)
		if e.store != nil {
			if err := e.store.InsertProgressLine(context.WithoutCancel(ctx), run.ID, n, line); err != nil {
				logger.Error("failed to persist progress line", "seq", n, "error", err)
			}
		}
		e.broker.Publish(run.ID, line)
	})

	ctx, span := e.tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.mode", run.Mode),
		),
	)
	defer span.End()

	activeRuns.Inc()
	rec, err := fn(ctx, run)
	activeRuns.Dec()

	span.SetAttributes(attribute.String("run.algorithm", run.Algorithm))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if energy, ok := rec.Energy(); ok {
		span.SetAttributes(attribute.Float64("run.energy", energy))
	}

	e.finish(logger, run, start, rec, err)
	return rec, err
}

// finish writes the outcome of a run to its record, the metrics and the store.
func (e *Engine) finish(logger *slog.Logger, run *model.Run, start time.Time, rec result.Record, runErr error) {
	now := time.Now().UTC()
	elapsed := now.Sub(start)
	durationMS := int(elapsed.Milliseconds())
	run.DurationMS = &durationMS
	run.FinishedAt = &now

	payload := map[string]any(rec)
	if runErr != nil {
		run.Status = model.StatusFailed
		run.Error = runErr.Error()
		var execErr *AlgorithmExecutionError
		if errors.As(runErr, &execErr) {
			payload = execErr.Partial
		}
	} else {
		run.Status = model.StatusCompleted
	}

	if payload != nil {
		if raw, err := json.Marshal(payload); err != nil {
			logger.Warn("result not encodable", "error", err)
		} else {
			run.Result = raw
		}
		if energy, ok := payload[result.FieldEnergy].(float64); ok {
			run.Energy = &energy
		}
	}

	runsTotal.WithLabelValues(run.Algorithm, run.Status).Inc()
	runDuration.WithLabelValues(run.Algorithm).Observe(elapsed.Seconds())

	if runErr != nil {
		logger.Warn("run failed", "algorithm", run.Algorithm, "duration", elapsed, "error", runErr)
	} else {
		logger.Info("run completed", "algorithm", run.Algorithm, "duration", elapsed)
	}

	if e.store != nil {
		if err := e.store.UpdateRun(context.Background(), run); err != nil {
			logger.Error("failed to update finished run", "error", err)
		}
	}
}

// declarative resolves and assembles cfg before invoking the algorithm.
func (e *Engine) declarative(cfg runconfig.Configuration, payload any) runFunc {
	return func(ctx context.Context, run *model.Run) (result.Record, error) {
		var specs []resolve.Spec
		err := e.phase(ctx, phaseResolve, func(context.Context) error {
			var err error
			specs, err = resolve.Resolve(e.registry, cfg)
			return err
		})
		if err != nil {
			return nil, err
		}

		root := specs[len(specs)-1]
		run.Algorithm = root.Name
		if p, ok := resolve.Find(specs, registry.KindProblem); ok {
			run.Problem = p.Name
		}
		ctxlog.FromContext(ctx).Debug("configuration resolved", "components", resolve.Describe(specs))

		var graph *assemble.Graph
		err = e.phase(ctx, phaseAssemble, func(ctx context.Context) error {
			var err error
			graph, err = assemble.Assemble(ctx, e.registry, specs, payload)
			return err
		})
		if err != nil {
			return nil, err
		}
		run.Problem = string(graph.Problem)

		return e.invoke(ctx, graph.Algorithm, graph.Input, graph.Backend, graph.Problem)
	}
}

// invoke is the facade proper: the backend check, the algorithm's run and
// result normalisation.
func (e *Engine) invoke(ctx context.Context, algo algorithm.Algorithm, input any, be backend.Backend, problem result.ProblemType) (result.Record, error) {
	if algo.RequiresBackend() && be == nil {
		return nil, &MissingExecutionContextError{Algorithm: algo.Name()}
	}

	var raw map[string]any
	err := e.phase(ctx, phaseRun, func(ctx context.Context) error {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("algorithm", algo.Name()))
		if be != nil {
			span.SetAttributes(attribute.String("backend", be.Name()))
		}
		var err error
		raw, err = algo.Run(ctx, input, be)
		if err != nil {
			return &AlgorithmExecutionError{Algorithm: algo.Name(), Partial: raw, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Normalize(problem, raw)
}

// phase times fn and wraps it in a child span.
func (e *Engine) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "engine."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	phaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
