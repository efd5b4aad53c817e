// Package middleware provides a small before/after hook chain around a
// func(context.Context) error unit of work. The Reaper wraps its tick in it;
// the Gateway's request handling and the Worker's delivery handling do not
// use it.
package middleware

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
)

// Chain manages a list of before/after hooks run around one unit of work.
type Chain struct {
	before []interfaces.Hook
	after  []interfaces.Hook
}

// NewChain creates a new, empty middleware chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddBefore adds a hook to execute before the unit of work.
func (c *Chain) AddBefore(hook interfaces.Hook) *Chain {
	c.before = append(c.before, hook)
	return c
}

// AddAfter adds a hook to execute after the unit of work.
func (c *Chain) AddAfter(hook interfaces.Hook) *Chain {
	c.after = append(c.after, hook)
	return c
}

// ExecuteBefore runs all before hooks in order, stopping at the first error.
func (c *Chain) ExecuteBefore(ctx context.Context, event interface{}) error {
	for _, hook := range c.before {
		if err := hook.Before(ctx, event); err != nil {
			return fmt.Errorf("before hook failed: %w", err)
		}
	}
	return nil
}

// ExecuteAfter runs all after hooks in order.
func (c *Chain) ExecuteAfter(ctx context.Context, event interface{}, workErr error) {
	for _, hook := range c.after {
		hook.After(ctx, event, workErr)
	}
}

// Wrap wraps fn with the chain's before/after hooks.
func (c *Chain) Wrap(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := c.ExecuteBefore(ctx, nil); err != nil {
			return err
		}
		err := fn(ctx)
		c.ExecuteAfter(ctx, nil, err)
		return err
	}
}

// LoggingHook logs the start and end of each unit of work.
type LoggingHook struct {
	component string
	log       *zap.Logger
}

// NewLoggingHook creates a new logging hook.
func NewLoggingHook(component string, log *zap.Logger) *LoggingHook {
	return &LoggingHook{component: component, log: log}
}

func (h *LoggingHook) Before(_ interface{}, _ interface{}) error {
	h.log.Debug("started", zap.String("component", h.component))
	return nil
}

func (h *LoggingHook) After(_ interface{}, _ interface{}, err error) {
	if err != nil {
		h.log.Error("failed", zap.String("component", h.component), zap.Error(err))
		return
	}
	h.log.Debug("completed", zap.String("component", h.component))
}

// MetricsHook reports success/failure outcomes to an onResult callback.
type MetricsHook struct {
	component string
	onResult  func(result string)
	startedAt time.Time
}

// NewMetricsHook creates a new metrics hook. onResult is called with
// "success" or "error" after each unit of work.
func NewMetricsHook(component string, onResult func(result string)) *MetricsHook {
	return &MetricsHook{component: component, onResult: onResult}
}

func (h *MetricsHook) Before(_ interface{}, _ interface{}) error {
	h.startedAt = time.Now()
	return nil
}

func (h *MetricsHook) After(_ interface{}, _ interface{}, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	if h.onResult != nil {
		h.onResult(result)
	}
}
