// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"context"

	"github.com/tjumyk/qman/app/job"
	"github.com/tjumyk/qman/app/pkg/schedule"
)

// startSchedule initializes the in-process job scheduler and starts its
// tick loop.
//
// Parameters:
//   - ctx: trace-aware context used for registration logs and, when the
//     Docker quota engine is enabled, its inspector probe.
//
// Returns:
//   - None.
//
// Behavior:
//   - Registers all background jobs via job.Register before starting.
func (a *App) startSchedule(ctx context.Context) {
	s := schedule.New(a.Logger, a.Redis["dockmon"], a.TraceID)

	job.Register(ctx, a.Logger, a.Redis, a.MysqlDB, a.Feishu, a.Config, s)

	s.Start()

	a.Logger.Info(ctx, "Schedule loaded successfully")
}
