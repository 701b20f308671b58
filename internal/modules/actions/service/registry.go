package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"cryptomon/internal/expr"
	"cryptomon/internal/models"
)

// ExchangeClient is the resolved exchange collaborator handed to handlers,
// so an action can place follow-up calls on the task's own exchange.
type ExchangeClient interface {
	Call(ctx context.Context, function string, args []any, kwargs map[string]any) (any, error)
}

// Handler reacts to a fired task. message is the rendered log line, vars is
// the task's value plus every transitive dependency value, client is the
// task's exchange client (nil for tasks without an exchange binding).
type Handler func(ctx context.Context, task *models.Task, message string, vars expr.ExecContext, client ExchangeClient) error

// UnknownActionError reports an action name nothing was registered for.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action %s is not registered", e.Action)
}

// Registry maps action names to handlers. Dispatch never blocks the caller.
type Registry struct {
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:      log,
		handlers: make(map[string]Handler),
	}
}

// Register binds name to handler. Re-registering replaces the previous
// handler.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	if _, ok := r.handlers[name]; ok {
		r.log.Warn("action handler replaced", zap.String("action", name))
	}
	r.handlers[name] = handler
	r.mu.Unlock()
}

// Has reports whether an action name is bound. Useful at load time, before
// any task fires.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs the named handler in its own goroutine. A handler error or
// panic is logged and never reaches the scheduler.
func (r *Registry) Dispatch(ctx context.Context, name string, task *models.Task, message string, vars expr.ExecContext, client ExchangeClient) error {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return &UnknownActionError{Action: name}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("action panicked",
					zap.String("action", name),
					zap.String("task", task.Name),
					zap.Any("panic", rec))
			}
		}()

		if err := handler(ctx, task, message, vars, client); err != nil {
			r.log.Error("action failed",
				zap.String("action", name),
				zap.String("task", task.Name),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every in-flight handler returns. Tests and shutdown use
// it.
func (r *Registry) Wait() {
	r.wg.Wait()
}
