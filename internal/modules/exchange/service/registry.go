package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cryptomon/internal/models"
)

// Registry owns one client per configured exchange binding.
type Registry struct {
	clients map[string]Client
}

type starter interface {
	Start(ctx context.Context)
}

// NewRegistry builds a driver for every binding. The transport option picks
// between plain REST polling and the streaming driver.
func NewRegistry(bindings []models.ExchangeBinding, log *zap.Logger) *Registry {
	r := &Registry{clients: make(map[string]Client, len(bindings))}
	for i := range bindings {
		b := &bindings[i]
		switch b.Option("transport", "rest") {
		case "ws":
			r.clients[b.Name] = NewWSClient(b, log)
		default:
			r.clients[b.Name] = NewRESTClient(b)
		}
	}
	return r
}

// Get resolves the client for an exchange name.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, errors.Errorf("exchange %q is not configured", name)
	}
	return c, nil
}

// StartAll launches background feeds for drivers that keep one.
func (r *Registry) StartAll(ctx context.Context) {
	for _, c := range r.clients {
		if s, ok := c.(starter); ok {
			s.Start(ctx)
		}
	}
}

// CloseAll shuts every driver down.
func (r *Registry) CloseAll() error {
	var firstErr error
	for _, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
