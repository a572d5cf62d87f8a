// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dockerquota wires the attribution synchroniser and quota enforcer
// into scheduler-compatible job handlers.
package dockerquota

import (
	"context"

	"github.com/tjumyk/qman/app/dockerquota"
	"github.com/tjumyk/qman/app/pkg/schedule"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

type syncHandler struct {
	done  chan struct{}
	error chan error

	logger        *logger.Manager
	synchroniser  *dockerquota.Synchroniser
}

// Exec runs the three-phase attribution reconciliation pass followed by the
// volume attribution sync.
//
// Parameters:
//   - ctx: trace-aware context used for structured logs.
func (h *syncHandler) Exec(ctx context.Context) {
	auditResult := h.synchroniser.SyncContainersFromAudit(ctx)
	eventResult := h.synchroniser.SyncFromDockerEvents(ctx)
	imageResult := h.synchroniser.SyncExistingImages(ctx)
	volumeResult := h.synchroniser.SyncVolumes(ctx)

	h.logger.Info(ctx, "docker attribution sync completed",
		zap.Int("audit_attributed", auditResult.Attributed),
		zap.Int("audit_skipped_no_created_ts", auditResult.SkippedNoCreatedTS),
		zap.Int("audit_skipped_no_match", auditResult.SkippedNoAuditMatch),
		zap.Int("events_containers_attributed", eventResult.ContainersAttributed),
		zap.Int("events_images_attributed", eventResult.ImagesAttributed),
		zap.Int("existing_images_with_new_layers", imageResult.ImagesWithNewLayers),
		zap.Int64("layers_reconciled", imageResult.LayersReconciled),
		zap.Int("volumes_attributed", volumeResult.Attributed),
	)

	h.done <- struct{}{}
}

// Error exposes the asynchronous error channel of the job handler.
//
// Returns:
//   - <-chan error: read-only channel carrying execution errors.
func (h *syncHandler) Error() <-chan error {
	return h.error
}

// Done exposes the completion channel of the job handler.
//
// Returns:
//   - <-chan struct{}: read-only channel signaling execution completion.
func (h *syncHandler) Done() <-chan struct{} {
	return h.done
}

// NewSyncHandler creates a scheduler-compatible handler for the periodic
// attribution sync job.
//
// Parameters:
//   - logger: logger manager for completion/diagnostic logs.
//   - synchroniser: attribution synchroniser to drive.
//
// Returns:
//   - schedule.HandlerFunc: initialized job handler.
func NewSyncHandler(logger *logger.Manager, synchroniser *dockerquota.Synchroniser) schedule.HandlerFunc {
	return &syncHandler{
		done:         make(chan struct{}),
		error:        make(chan error),
		logger:       logger,
		synchroniser: synchroniser,
	}
}
