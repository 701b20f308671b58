package service

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cryptomon/internal/cache"
	"cryptomon/internal/expr"
	"cryptomon/internal/graph"
	"cryptomon/internal/models"
)

// ExchangeDirectory resolves exchange clients by binding name.
type ExchangeDirectory interface {
	Get(name string) (ExchangeClient, error)
}

// ExchangeClient is the slice of the exchange driver the engine needs.
type ExchangeClient interface {
	Call(ctx context.Context, function string, args []any, kwargs map[string]any) (any, error)
}

// ActionSink receives fire notifications for tasks whose condition held.
// client is the firing task's exchange client, nil when the task has no
// exchange binding.
type ActionSink interface {
	Has(name string) bool
	Dispatch(ctx context.Context, name string, task *models.Task, message string, vars expr.ExecContext, client ExchangeClient) error
}

// compiledTask carries a task together with its expressions, parsed once at
// load time so a malformed expression kills the process instead of a tick.
type compiledTask struct {
	task      *models.Task
	returnP   *expr.Program
	condition *expr.Program
	logT      *expr.Template
}

// Engine owns one timer per interval-bearing task. Every tick fetches the
// task's data, folds it through the return expression into the cache and
// walks the dependent cascade.
type Engine struct {
	graph      *graph.Graph
	cache      *cache.ResultCache
	exchanges  ExchangeDirectory
	actions    ActionSink
	tracer     opentracing.Tracer
	log        *zap.Logger
	defaultTTL time.Duration

	compiled map[string]*compiledTask

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates the graph and compiles every task's expressions. Any
// validation or syntax failure here is fatal for the process.
func New(
	g *graph.Graph,
	c *cache.ResultCache,
	exchanges ExchangeDirectory,
	actions ActionSink,
	tracer opentracing.Tracer,
	log *zap.Logger,
	defaultTTL time.Duration,
) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		graph:      g,
		cache:      c,
		exchanges:  exchanges,
		actions:    actions,
		tracer:     tracer,
		log:        log,
		defaultTTL: defaultTTL,
		compiled:   make(map[string]*compiledTask),
	}

	for _, task := range g.Tasks() {
		ct, err := e.compile(task)
		if err != nil {
			return nil, err
		}
		e.compiled[task.Name] = ct
	}
	return e, nil
}

func (e *Engine) compile(task *models.Task) (*compiledTask, error) {
	ct := &compiledTask{task: task}

	var err error
	if task.Return != "" {
		if ct.returnP, err = expr.Compile(task.Return); err != nil {
			return nil, errors.Wrapf(err, "task %s: return expression", task.Name)
		}
	}
	if task.Condition != "" {
		if ct.condition, err = expr.Compile(task.Condition); err != nil {
			return nil, errors.Wrapf(err, "task %s: condition expression", task.Name)
		}
		scope := e.graph.TransitiveDeps(task.Name)
		for _, v := range ct.condition.Vars() {
			if v == task.Name {
				continue
			}
			if _, ok := scope[v]; !ok {
				return nil, errors.Errorf("task %s: condition references %s outside its dependency set", task.Name, v)
			}
		}
	}
	if task.Log != "" {
		if ct.logT, err = expr.CompileTemplate(task.Log); err != nil {
			return nil, errors.Wrapf(err, "task %s: log template", task.Name)
		}
	}
	if task.Action != "" && !e.actions.Has(task.Action) {
		e.log.Warn("action not registered yet",
			zap.String("task", task.Name),
			zap.String("action", task.Action))
	}
	return ct, nil
}

// Start launches one timer goroutine per interval-bearing task. Every timer
// fires immediately, then on its own period.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	for _, ct := range e.compiled {
		if !ct.task.HasInterval() {
			continue
		}
		e.wg.Add(1)
		go e.runTimer(ctx, ct)
	}
}

// Stop ceases scheduling and waits for in-flight ticks to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) runTimer(ctx context.Context, ct *compiledTask) {
	defer e.wg.Done()

	e.tick(ctx, ct)

	ticker := time.NewTicker(ct.task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, ct)
		}
	}
}

// tick runs one full pass for a root task: its own execution, then the
// cascade over interval-less dependents in topological order.
func (e *Engine) tick(ctx context.Context, ct *compiledTask) {
	span := e.tracer.StartSpan("engine.tick")
	span.SetTag("task", ct.task.Name)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	now := time.Now()
	if !e.execute(ctx, ct, now) {
		return
	}
	for _, name := range e.graph.CascadeFrom(ct.task.Name) {
		e.execute(ctx, e.compiled[name], now)
	}
}

// execute runs one task in isolation: fetch, return expression, cache write,
// condition, log and action. It reports whether the task produced a value,
// which is what gates the caller's cascade.
func (e *Engine) execute(ctx context.Context, ct *compiledTask, now time.Time) bool {
	task := ct.task
	env := e.buildEnv(task, now)

	var value any
	updated := false

	if task.IsFetch() {
		raw, err := e.fetch(ctx, task)
		if err != nil {
			e.log.Error("fetch failed",
				zap.String("task", task.Name),
				zap.String("exchange", task.Exchange),
				zap.Error(err))
			return false
		}
		value, updated = raw, true
		env[task.Name] = raw
	}

	if ct.returnP != nil {
		derived, err := ct.returnP.Evaluate(env)
		if err != nil {
			if isUnbound(err) {
				e.log.Warn("tick skipped, dependency not yet valid",
					zap.String("task", task.Name),
					zap.Error(err))
			} else {
				e.log.Error("return expression failed",
					zap.String("task", task.Name),
					zap.Error(err))
			}
			return false
		}
		value, updated = derived, true
		env[task.Name] = derived
	}

	if updated {
		e.cache.Put(task.Name, value, now)
	}

	fire := true
	if ct.condition != nil {
		ok, err := ct.condition.EvaluateCondition(env)
		if err != nil {
			if isUnbound(err) {
				e.log.Warn("condition skipped, dependency not yet valid",
					zap.String("task", task.Name),
					zap.Error(err))
			} else {
				e.log.Error("condition failed",
					zap.String("task", task.Name),
					zap.Error(err))
			}
			return updated
		}
		fire = ok
	}
	if !fire {
		return updated
	}

	message := ""
	if ct.logT != nil {
		message = ct.logT.Render(env)
		e.log.Info(message, zap.String("task", task.Name))
	}
	if task.Action != "" {
		if err := e.actions.Dispatch(ctx, task.Action, task, message, env, e.clientFor(task)); err != nil {
			e.log.Error("action dispatch failed",
				zap.String("task", task.Name),
				zap.String("action", task.Action),
				zap.Error(err))
		}
	}
	return updated
}

// clientFor resolves the task's exchange client for action handlers.
func (e *Engine) clientFor(task *models.Task) ExchangeClient {
	if task.Exchange == "" {
		return nil
	}
	client, err := e.exchanges.Get(task.Exchange)
	if err != nil {
		return nil
	}
	return client
}

func (e *Engine) fetch(ctx context.Context, task *models.Task) (any, error) {
	client, err := e.exchanges.Get(task.Exchange)
	if err != nil {
		return nil, &FetchError{Task: task.Name, Exchange: task.Exchange, Err: err}
	}
	raw, err := client.Call(ctx, task.Function, task.Args, task.Kwargs)
	if err != nil {
		return nil, &FetchError{Task: task.Name, Exchange: task.Exchange, Err: err}
	}
	return raw, nil
}

// buildEnv binds every currently valid dependency value, plus the task's own
// last value when still fresh. Stale entries are simply absent.
func (e *Engine) buildEnv(task *models.Task, now time.Time) expr.ExecContext {
	env := make(expr.ExecContext)
	for dep := range e.graph.TransitiveDeps(task.Name) {
		if v, ok := e.cache.Get(dep, now, e.ttlOf(dep)); ok {
			env[dep] = v
		}
	}
	if v, ok := e.cache.Get(task.Name, now, e.ttlOf(task.Name)); ok {
		env[task.Name] = v
	}
	return env
}

func (e *Engine) ttlOf(name string) time.Duration {
	if t := e.graph.Task(name); t != nil && t.TTL > 0 {
		return t.TTL
	}
	return e.defaultTTL
}

// Trigger runs a task's pipeline out of schedule. The webapi's run-now
// endpoint is the only caller.
func (e *Engine) Trigger(ctx context.Context, name string) error {
	ct, ok := e.compiled[name]
	if !ok {
		return &UnknownTaskError{Task: name}
	}
	e.tick(ctx, ct)
	return nil
}

// Tasks exposes the graph's declaration-ordered task list for the webapi.
func (e *Engine) Tasks() []*models.Task { return e.graph.Tasks() }

// State reports a task's current cache entry regardless of freshness.
func (e *Engine) State(name string) (any, time.Time, bool) {
	return e.cache.GetEntry(name)
}

func isUnbound(err error) bool {
	var ub *expr.UnboundVariableError
	return errors.As(err, &ub)
}
