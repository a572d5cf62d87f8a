// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"

	"github.com/tjumyk/qman/app/dockerquota"
	"github.com/tjumyk/qman/app/pkg/schedule"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

type enforceHandler struct {
	done  chan struct{}
	error chan error

	logger   *logger.Manager
	enforcer *dockerquota.Enforcer
	callback *dockerquota.CoordinatorCallback
}

// Exec runs one enforcement pass and posts the resulting event batch to the
// coordinator.
//
// Parameters:
//   - ctx: trace-aware context used for structured logs.
func (h *enforceHandler) Exec(ctx context.Context) {
	result, events := h.enforcer.EnforceDockerQuota(ctx)

	h.callback.PostEvents(ctx, events)

	h.logger.Info(ctx, "docker quota enforcement completed",
		zap.Int("enforced_count", result.EnforcedCount),
		zap.Int("event_count", result.EventCount),
	)

	h.done <- struct{}{}
}

// Error exposes the asynchronous error channel of the job handler.
//
// Returns:
//   - <-chan error: read-only channel carrying execution errors.
func (h *enforceHandler) Error() <-chan error {
	return h.error
}

// Done exposes the completion channel of the job handler.
//
// Returns:
//   - <-chan struct{}: read-only channel signaling execution completion.
func (h *enforceHandler) Done() <-chan struct{} {
	return h.done
}

// NewEnforceHandler creates a scheduler-compatible handler for the periodic
// quota enforcement job.
//
// Parameters:
//   - logger: logger manager for completion/diagnostic logs.
//   - enforcer: quota enforcer to drive.
//   - callback: coordinator event-batch poster.
//
// Returns:
//   - schedule.HandlerFunc: initialized job handler.
func NewEnforceHandler(logger *logger.Manager, enforcer *dockerquota.Enforcer, callback *dockerquota.CoordinatorCallback) schedule.HandlerFunc {
	return &enforceHandler{
		done:     make(chan struct{}),
		error:    make(chan error),
		logger:   logger,
		enforcer: enforcer,
		callback: callback,
	}
}
