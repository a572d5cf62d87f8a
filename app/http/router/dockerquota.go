// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/tjumyk/qman/app/http/controller/dockerquota"
	"go.uber.org/zap"
)

// remoteAPIGroup registers the coordinator-facing /remote-api surface
// described in spec §6, guarded by shared-secret basic credentials.
//
// Parameters:
//   - ctx: context used to construct the remote API's Docker inspector.
//   - api: route group for remote-api endpoints.
//   - core: shared dependency container.
//
// Returns:
//   - None.
//
// Behavior:
//   - Skips registration entirely when the inspector cannot be built, since
//     a slave without a reachable Docker daemon has nothing to report.
func remoteAPIGroup(ctx context.Context, api *gin.RouterGroup, core *Core) {
	dockerQuotaHandler, err := dockerquota.New(ctx, core.Logger, core.I18n, core.Redis["dockmon"], core.MysqlDB["dockmon"], core.Config.DockerQuota)
	if err != nil {
		core.Logger.Error(ctx, "remote API docker inspector init failed, routes not registered", zap.Error(err))
		return
	}

	api.GET("ping", dockerQuotaHandler.Ping())

	api.Use(core.Middleware.CheckRemoteAPIAuth())
	{
		api.GET("quotas", dockerQuotaHandler.ListQuotas())
		api.GET("quotas/users/:uid", dockerQuotaHandler.GetUserQuotasByUID())
		api.GET("quotas/users/by-name/:name", dockerQuotaHandler.GetUserQuotasByName())
		api.PUT("quotas/users/:uid", dockerQuotaHandler.SetUserQuotaLimit())

		dockerGroup := api.Group("docker")
		dockerGroup.GET("containers", dockerQuotaHandler.ListContainers())
		dockerGroup.GET("images", dockerQuotaHandler.ListImages())
		dockerGroup.GET("volumes", dockerQuotaHandler.ListVolumes())
	}
}
