// Package temporal is the reserved, non-required concurrency engine adapter
// for the future distributed-RPC phase (SPEC_FULL.md §2): it backs the
// `Stage` declaration (spec.md §3, "App/Stage") by running a Task's body as
// a durable Temporal workflow instead of a goroutine, so a Stage's spawned
// tasks survive process restarts the way spec.md §4.12's production and
// test adapters never need to. It is not wired into the compiler pipeline
// and is not required for phase-1 conformance; Stage remains reserved
// syntax until a later phase targets this adapter.
//
// Adapted from the teacher's runtime/agent/engine/temporal.Engine: the same
// Options{Client, ClientOptions, WorkerOptions, Instrumentation} shape, the
// same lazy-client-plus-OTEL-interceptor construction in New, and the same
// per-task-queue workerBundle lifecycle, generalized from named
// WorkflowDefinition/ActivityDefinition registration to the single
// anonymous `func(context.Context) (any, error)` shape engine.Engine.Spawn
// takes.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/plutolang/pluto/internal/telemetry"
	"github.com/plutolang/pluto/runtime/concurrency/engine"
)

// stageWorkflowName is the single workflow type every Spawn call registers
// and executes under; Stage tasks are distinguished by workflow ID, not by
// workflow type, since every Stage task shares the same
// func(context.Context)(any,error) shape.
const stageWorkflowName = "pluto.stage.task"

// stageTaskTimeout bounds how long a Stage task's body may run before
// Temporal gives up on it; Stage tasks are reserved/future syntax so there
// is no spec-derived deadline to follow yet, this is a conservative
// placeholder.
const stageTaskTimeout = 24 * time.Hour

// Options configures the Temporal-backed Stage adapter.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, New constructs a
	// lazy client from ClientOptions.
	Client client.Client

	// ClientOptions constructs the client when Client is nil. Required in
	// that case.
	ClientOptions *client.Options

	// WorkerOptions configures the single worker this adapter runs; every
	// Stage task shares one task queue, since Stage itself (spec.md §3) is
	// one deployable unit, unlike the teacher's per-workflow queue routing.
	WorkerOptions WorkerOptions

	// Instrumentation toggles OTEL tracing/metrics on the client and
	// worker, mirroring the teacher's adapter; both default to enabled.
	Instrumentation InstrumentationOptions

	Logger telemetry.Logger
	Tracer telemetry.Tracer
}

// WorkerOptions configures the adapter's single worker.
type WorkerOptions struct {
	// TaskQueue is required: the queue this Stage's worker polls.
	TaskQueue string
	Options   worker.Options
}

// InstrumentationOptions mirrors the teacher's adapter's instrumentation
// toggles.
type InstrumentationOptions struct {
	DisableTracing bool
	DisableMetrics bool
	TracerOptions  temporalotel.TracerOptions
}

// Engine implements engine.Engine by running each Spawn'd function body as
// a Temporal workflow. It does not implement NewChannel/NewRWLock/Select
// beyond an in-process fallback: Temporal has no native analog for an
// arbitrary buffered channel or rwlock shared between durable workflows,
// so channel/rwlock primitives inside a Stage task still run against the
// production adapter's in-memory primitives. Only the outermost Spawn
// boundary (a task's durability) is actually backed by Temporal; this
// matches SPEC_FULL.md §2's description of Stage as a reserved future
// phase, not a complete distributed-primitives redesign.
type Engine struct {
	client      client.Client
	closeClient bool
	fallback    engine.Engine

	queue      string
	workerOpts worker.Options

	logger telemetry.Logger
	tracer telemetry.Tracer

	mu       sync.Mutex
	worker   worker.Worker
	spawnSeq uint64
}

var _ engine.Engine = (*Engine)(nil)

// New constructs the Temporal-backed Stage adapter. fallback supplies the
// channel/rwlock/select primitives this adapter does not itself implement
// (ordinarily runtime/concurrency/engine/production.New()).
func New(opts Options, fallback engine.Engine) (*Engine, error) {
	if opts.WorkerOptions.TaskQueue == "" {
		return nil, fmt.Errorf("temporal stage engine: worker options must include a task queue")
	}
	if fallback == nil {
		return nil, fmt.Errorf("temporal stage engine: a fallback engine is required for channel/rwlock/select")
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	inst, err := configureInstrumentation(opts.Instrumentation)
	if err != nil {
		return nil, err
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal stage engine: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		if inst != nil && inst.tracer != nil {
			clientOpts.Interceptors = append(clientOpts.Interceptors, inst.tracer)
		}
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal stage engine: create client: %w", err)
		}
		closeClient = true
	}

	workerOpts := opts.WorkerOptions.Options
	if inst != nil && inst.tracer != nil {
		workerOpts.Interceptors = append(workerOpts.Interceptors, inst.tracer)
	}

	return &Engine{
		client:      cli,
		closeClient: closeClient,
		fallback:    fallback,
		queue:       opts.WorkerOptions.TaskQueue,
		workerOpts:  workerOpts,
		logger:      logger,
		tracer:      tracer,
	}, nil
}

// Spawn registers the stage workflow type on first use, starts a worker if
// one is not already running, then starts fn as a new Temporal workflow
// execution and returns a Task handle wrapping its run.
//
// fn itself cannot be shipped across the wire as workflow input (it is a
// closure, not serializable data); instead Spawn registers a fresh workflow
// function bound to this particular fn and executes that. Each Spawn call
// therefore registers its own workflow type rather than reusing
// stageWorkflowName directly, since Temporal resolves workflow code by
// type at worker-registration time, not by payload.
func (e *Engine) Spawn(ctx context.Context, fn func(context.Context) (any, error)) engine.Task {
	// Each Spawn gets a unique workflow type name so the closure fn can be
	// bound to it without a registry keyed on serializable workflow input.
	e.mu.Lock()
	e.spawnSeq++
	wfName := fmt.Sprintf("%s.%d", stageWorkflowName, e.spawnSeq)
	e.mu.Unlock()

	w := e.ensureWorker()
	w.RegisterWorkflowWithOptions(func(wctx workflow.Context) (any, error) {
		return runStageBody(wctx, fn)
	}, workflow.RegisterOptions{Name: wfName})

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: e.queue,
	}, wfName)
	if err != nil {
		return &failedTask{err: err}
	}
	return &stageTask{client: e.client, run: run}
}

func (e *Engine) NewChannel(capacity int) engine.Channel { return e.fallback.NewChannel(capacity) }
func (e *Engine) NewRWLock() engine.RWLock               { return e.fallback.NewRWLock() }
func (e *Engine) Select(ctx context.Context, cases []engine.SelectCase) (int, error) {
	return e.fallback.Select(ctx, cases)
}

// Close shuts down the worker (if started) and the client (if this adapter
// created it).
func (e *Engine) Close() {
	e.mu.Lock()
	w := e.worker
	e.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

func (e *Engine) ensureWorker() worker.Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.worker == nil {
		e.worker = worker.New(e.client, e.queue, e.workerOpts)
		go func() {
			if err := e.worker.Run(worker.InterruptCh()); err != nil {
				e.logger.Error(context.Background(), "temporal stage worker exited", "queue", e.queue, "err", err)
			}
		}()
	}
	return e.worker
}

type instrumentation struct {
	tracer interceptor.Interceptor
}

func configureInstrumentation(opts InstrumentationOptions) (*instrumentation, error) {
	if opts.DisableTracing {
		return nil, nil
	}
	tracer, err := temporalotel.NewTracingInterceptor(opts.TracerOptions)
	if err != nil {
		return nil, fmt.Errorf("temporal stage engine: configure tracing interceptor: %w", err)
	}
	return &instrumentation{tracer: tracer}, nil
}

// runStageBody is the deterministic workflow body every Spawn'd task runs
// under. Since fn itself performs arbitrary (non-deterministic) work, it is
// executed inside a local activity so Temporal's determinism constraint
// only applies to the thin workflow wrapper, not to fn's body.
func runStageBody(wctx workflow.Context, fn func(context.Context) (any, error)) (any, error) {
	ctx := workflow.WithLocalActivityOptions(wctx, workflow.LocalActivityOptions{
		ScheduleToCloseTimeout: stageTaskTimeout,
	})
	var result any
	err := workflow.ExecuteLocalActivity(ctx, func(actx context.Context) (any, error) {
		return fn(actx)
	}).Get(ctx, &result)
	return result, err
}

// stageTask implements engine.Task over a running Temporal workflow.
type stageTask struct {
	client client.Client
	run    client.WorkflowRun

	mu        sync.Mutex
	cancelled bool
}

func (t *stageTask) Get(ctx context.Context) (any, error) {
	var result any
	if err := t.run.Get(ctx, &result); err != nil {
		t.mu.Lock()
		cancelled := t.cancelled
		t.mu.Unlock()
		if cancelled {
			return nil, engine.ErrTaskCancelled
		}
		return nil, err
	}
	return result, nil
}

func (t *stageTask) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	_ = t.client.CancelWorkflow(context.Background(), t.run.GetID(), t.run.GetRunID())
}

func (t *stageTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// failedTask implements engine.Task for a Spawn call that failed to start
// the underlying workflow execution (e.g. the Temporal server was
// unreachable); Get reports the start error rather than panicking Spawn's
// otherwise error-free signature.
type failedTask struct{ err error }

func (t *failedTask) Get(ctx context.Context) (any, error) { return nil, t.err }
func (t *failedTask) Cancel()                               {}
func (t *failedTask) Cancelled() bool                       { return false }
