// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package job registers scheduled background jobs.
package job

import (
	"context"

	"github.com/tjumyk/qman/app"
	"github.com/tjumyk/qman/app/dockerquota"
	dockerquotajob "github.com/tjumyk/qman/app/job/dockerquota"
	dockerquotarepo "github.com/tjumyk/qman/app/repository/dockerquota"
	"github.com/tjumyk/qman/app/pkg/schedule"
	"github.com/sk-pkg/feishu"
	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Register adds background jobs into the scheduler.
//
// Parameters:
//   - ctx: trace-aware context used for startup logs and the inspector probe.
//   - logger: logger manager for job execution logs.
//   - redis: redis clients map keyed by profile name.
//   - db: database clients map keyed by database name.
//   - feishu: optional Feishu manager for notifications.
//   - cfg: root application configuration.
//   - s: scheduler instance that receives registered jobs.
//
// Returns:
//   - None.
//
// Behavior:
//   - Keeps sample jobs commented out until explicitly enabled.
//   - Registers the attribution sync and quota enforcement jobs only when
//     DockerQuota.UseDockerQuota is set.
func Register(ctx context.Context, logger *logger.Manager, redis map[string]*redis.Manager, db map[string]*gorm.DB, feishu *feishu.Manager, cfg *app.Config, s *schedule.Schedule) {
	// Monitor broadband public network IP changes
	// ipMonitor := monitor.NewIpMonitor(logger, redis["dockmon"])
	// s.AddJob("IpMonitor", ipMonitor).PerMinuit(5).WithoutOverlapping()

	if !cfg.DockerQuota.UseDockerQuota {
		return
	}

	inspector, err := dockerquota.NewInspector(ctx, logger)
	if err != nil {
		logger.Error(ctx, "docker quota inspector init failed, jobs not registered", zap.Error(err))
		return
	}

	store := dockerquotarepo.New(db["dockmon"], redis["dockmon"])
	audit := dockerquota.NewAuditReader(logger)
	cache := dockerquota.NewCache(redis["dockmon"], cfg.DockerQuota.CacheTTLSeconds)
	synchroniser := dockerquota.NewSynchroniser(inspector, audit, cache, store, logger)
	aggregator := dockerquota.NewAggregator(inspector, store, logger, cfg.DockerQuota.ReservedBytes, cfg.DockerQuota.DataRoot)
	callback := dockerquota.NewCoordinatorCallback(logger, cfg.DockerQuota.MasterEventCallbackURL, cfg.DockerQuota.MasterEventCallbackSecret, cfg.DockerQuota.SlaveHostID)
	enforcer := dockerquota.NewEnforcer(inspector, aggregator, store, logger, dockerquota.EnforcementOrder(cfg.DockerQuota.EnforcementOrder))

	syncIntervalSeconds := cfg.DockerQuota.SyncIntervalSeconds
	if syncIntervalSeconds <= 0 {
		syncIntervalSeconds = 120
	}

	enforceIntervalSeconds := cfg.DockerQuota.EnforceIntervalSeconds
	if enforceIntervalSeconds <= 0 {
		enforceIntervalSeconds = 300
	}

	s.AddJob("SyncDockerAttribution", dockerquotajob.NewSyncHandler(logger, synchroniser)).
		PerSeconds(syncIntervalSeconds).WithoutOverlapping().OnOneServer()

	s.AddJob("EnforceDockerQuota", dockerquotajob.NewEnforceHandler(logger, enforcer, callback)).
		PerSeconds(enforceIntervalSeconds).WithoutOverlapping().OnOneServer()
}
