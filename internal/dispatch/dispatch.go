// Package dispatch drives an admitted execution to a terminal state. For
// each execution it picks the remote or local path, runs the work, and
// reports the outcome back to the execution manager.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kekahyde/inferd/internal/infer"
	"github.com/kekahyde/inferd/internal/manager"
	"github.com/kekahyde/inferd/internal/model"
	"github.com/kekahyde/inferd/internal/offload"
)

// Coordinator runs executions. Offload is attempted at most once per
// execution; any typed offload failure falls back to exactly one local run.
// There are no retries beyond that.
type Coordinator struct {
	manager  *manager.Manager
	engine   infer.Engine
	registry *offload.Registry
	strategy offload.Strategy
	logger   *slog.Logger
}

// New creates a Coordinator. strategy may be nil, in which case every
// execution runs locally.
func New(mgr *manager.Manager, engine infer.Engine, reg *offload.Registry, strategy offload.Strategy, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		manager:  mgr,
		engine:   engine,
		registry: reg,
		strategy: strategy,
		logger:   logger,
	}
}

// Run executes one admitted unit of work to completion. It is meant to be
// called in its own goroutine; all outcomes are reported through the
// manager, never returned.
func (c *Coordinator) Run(h manager.Handle) {
	start := time.Now()
	c.manager.Update(h.ID, model.StateRunning, "", "")

	if c.strategy != nil && offload.ShouldOffload(h.Policy, c.registry) {
		out, err := c.strategy.Dispatch(h.Ctx, h.Prompt)
		if err == nil {
			offloadAttemptsTotal.WithLabelValues("success").Inc()
			executionsTotal.WithLabelValues(model.StateCompleted, pathOffload).Inc()
			executionDuration.WithLabelValues(pathOffload).Observe(time.Since(start).Seconds())
			c.manager.Update(h.ID, model.StateCompleted, out, "")
			return
		}
		if errors.Is(h.Ctx.Err(), context.Canceled) {
			offloadAttemptsTotal.WithLabelValues("cancelled").Inc()
			executionsTotal.WithLabelValues(model.StateCancelled, pathOffload).Inc()
			return
		}
		kind := offload.KindOf(err)
		offloadAttemptsTotal.WithLabelValues(string(kind)).Inc()
		c.logger.Warn("offload failed, falling back to local execution",
			"execution_id", h.ID, "kind", string(kind), "error", err)
	}

	c.runLocal(h, start)
}

// runLocal executes the prompt on the local engine and reports the terminal
// state. A cancelled handle context always wins over the engine result.
func (c *Coordinator) runLocal(h manager.Handle, start time.Time) {
	out, err := c.engine.Run(h.Ctx, h.Prompt)

	if errors.Is(h.Ctx.Err(), context.Canceled) {
		executionsTotal.WithLabelValues(model.StateCancelled, pathLocal).Inc()
		return
	}

	elapsed := time.Since(start).Seconds()
	if err != nil {
		executionsTotal.WithLabelValues(model.StateFailed, pathLocal).Inc()
		executionDuration.WithLabelValues(pathLocal).Observe(elapsed)
		c.logger.Error("local execution failed", "execution_id", h.ID, "error", err)
		c.manager.Update(h.ID, model.StateFailed, "", err.Error())
		return
	}

	executionsTotal.WithLabelValues(model.StateCompleted, pathLocal).Inc()
	executionDuration.WithLabelValues(pathLocal).Observe(elapsed)
	c.manager.Update(h.ID, model.StateCompleted, out, "")
}
