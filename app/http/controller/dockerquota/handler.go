// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dockerquota provides HTTP handlers for the /remote-api/* surface
// described in spec §6: quota listings, limit updates, and Docker
// attribution listings, all served by a slave to its coordinator.
package dockerquota

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/tjumyk/qman/app"
	"github.com/tjumyk/qman/app/dockerquota"
	repository "github.com/tjumyk/qman/app/repository/dockerquota"
	"github.com/sk-pkg/i18n"
	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/redis"
	"gorm.io/gorm"
)

type (
	// Handler defines HTTP handlers for the remote quota/attribution API.
	Handler interface {
		// i is an unexported marker method used to seal this interface.
		i()
		// ctx builds a request-scoped context with trace metadata.
		ctx(c *gin.Context) context.Context
		// Ping reports slave liveness.
		Ping() gin.HandlerFunc
		// ListQuotas returns every device, including the synthetic docker
		// device.
		ListQuotas() gin.HandlerFunc
		// GetUserQuotasByUID filters ListQuotas to one uid.
		GetUserQuotasByUID() gin.HandlerFunc
		// GetUserQuotasByName resolves a host user name to a uid, then
		// behaves like GetUserQuotasByUID.
		GetUserQuotasByName() gin.HandlerFunc
		// SetUserQuotaLimit upserts a uid's docker hard limit.
		SetUserQuotaLimit() gin.HandlerFunc
		// ListContainers returns the detailed container attribution listing.
		ListContainers() gin.HandlerFunc
		// ListImages returns the detailed image attribution listing.
		ListImages() gin.HandlerFunc
		// ListVolumes returns the detailed volume attribution listing.
		ListVolumes() gin.HandlerFunc
	}

	// handler is the concrete implementation of Handler.
	handler struct {
		logger     *logger.Manager
		i18n       *i18n.Manager
		inspector  *dockerquota.Inspector
		cache      *dockerquota.Cache
		store      repository.Repo
		aggregator *dockerquota.Aggregator
	}
)

// ctx builds a context carrying the trace ID from Gin context.
//
// Parameters:
//   - c: current Gin context for one HTTP request.
//
// Returns:
//   - context.Context: background-derived context with trace metadata.
func (h handler) ctx(c *gin.Context) context.Context {
	traceID, _ := c.Get("trace_id")

	return context.WithValue(context.Background(), logger.TraceIDKey, traceID.(string))
}

// i is a marker method that prevents external implementations.
//
// Returns:
//   - None.
func (h handler) i() {}

// New creates a remote-API handler, constructing its own Docker inspector so
// the HTTP surface stays independent of the scheduler's long-lived client.
//
// Parameters:
//   - ctx: context used for the inspector's startup ping.
//   - logger: structured logger manager.
//   - i18n: i18n manager for localized API responses.
//   - redis: redis manager backing the listing cache.
//   - db: GORM database client for attribution persistence.
//   - cfg: DockerQuota configuration section.
//
// Returns:
//   - Handler: initialized remote-API HTTP handler.
//   - error: returned when the Docker daemon is unreachable.
func New(ctx context.Context, logger *logger.Manager, i18n *i18n.Manager, redis *redis.Manager, db *gorm.DB, cfg app.DockerQuota) (Handler, error) {
	inspector, err := dockerquota.NewInspector(ctx, logger)
	if err != nil {
		return nil, err
	}

	store := repository.New(db, redis)
	cache := dockerquota.NewCache(redis, cfg.CacheTTLSeconds)
	aggregator := dockerquota.NewAggregator(inspector, store, logger, cfg.ReservedBytes, cfg.DataRoot)

	return &handler{
		logger:     logger,
		i18n:       i18n,
		inspector:  inspector,
		cache:      cache,
		store:      store,
		aggregator: aggregator,
	}, nil
}
