// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"os/user"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tjumyk/qman/app/pkg/e"
	"go.uber.org/zap"
)

// SetUserQuotaLimitReqParams is the request payload for updating a user's
// docker hard limit. Only BlockHardLimit is meaningful for the docker
// device; the others are accepted and ignored, per spec §6.
type SetUserQuotaLimitReqParams struct {
	BlockHardLimit int64 `json:"block_hard_limit"`
	BlockSoftLimit int64 `json:"block_soft_limit"`
}

// Ping reports slave liveness.
//
// Returns:
//   - gin.HandlerFunc: request handler responding {status:"ok"}.
func (h handler) Ping() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	}
}

// ListQuotas returns every device, currently only the synthetic docker
// device per spec §6/§4.F.
//
// Returns:
//   - gin.HandlerFunc: request handler for the device listing.
func (h handler) ListQuotas() gin.HandlerFunc {
	return func(c *gin.Context) {
		device, err := h.aggregator.BuildDockerDevice(h.ctx(c))
		if err != nil {
			h.logger.Warn(h.ctx(c), "build docker device failed", zap.Error(err))
			h.i18n.JSON(c, e.DockerBackendUnavailable, nil, err)
			return
		}

		h.i18n.JSON(c, e.SUCCESS, []interface{}{device}, nil)
	}
}

// GetUserQuotasByUID filters ListQuotas to devices where uid has non-zero
// usage or a configured limit, per spec §6.
//
// Returns:
//   - gin.HandlerFunc: request handler for per-uid device listing.
func (h handler) GetUserQuotasByUID() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := strconv.Atoi(c.Param("uid"))
		if err != nil {
			h.i18n.JSON(c, e.InvalidParams, nil, err)
			return
		}

		h.respondUserQuotas(c, uid)
	}
}

// GetUserQuotasByName resolves name to a uid locally, then behaves like
// GetUserQuotasByUID.
//
// Returns:
//   - gin.HandlerFunc: request handler for per-name device listing.
func (h handler) GetUserQuotasByName() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		u, err := user.Lookup(name)
		if err != nil {
			h.i18n.JSON(c, e.DockerQuotaUserNotFound, nil, err)
			return
		}

		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			h.i18n.JSON(c, e.DockerQuotaUserNotFound, nil, err)
			return
		}

		h.respondUserQuotas(c, uid)
	}
}

// respondUserQuotas builds the docker device and includes it in the
// response only when uid has non-zero usage or a configured limit.
func (h handler) respondUserQuotas(c *gin.Context, uid int) {
	device, err := h.aggregator.BuildDockerDevice(h.ctx(c))
	if err != nil {
		h.logger.Warn(h.ctx(c), "build docker device failed", zap.Error(err))
		h.i18n.JSON(c, e.DockerBackendUnavailable, nil, err)
		return
	}

	devices := make([]interface{}, 0, 1)
	for _, entry := range device.UserQuotas {
		if entry.UID == uid && (entry.BlockCurrent > 0 || entry.BlockHardLimit > 0) {
			devices = append(devices, device)
			break
		}
	}

	h.i18n.JSON(c, e.SUCCESS, devices, nil)
}

// SetUserQuotaLimit upserts UserQuotaLimit(uid, block_hard_limit) for the
// docker device and returns the updated per-user entry, per spec §6.
//
// Returns:
//   - gin.HandlerFunc: request handler for the limit update.
func (h handler) SetUserQuotaLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("device") != "docker" {
			h.i18n.JSON(c, e.InvalidParams, nil, nil)
			return
		}

		uid, err := strconv.Atoi(c.Param("uid"))
		if err != nil {
			h.i18n.JSON(c, e.InvalidParams, nil, err)
			return
		}

		var params SetUserQuotaLimitReqParams
		if err = c.ShouldBindJSON(&params); err != nil {
			h.i18n.JSON(c, e.InvalidParams, nil, err)
			return
		}

		if err = h.store.SetUserQuotaLimit(uid, params.BlockHardLimit); err != nil {
			h.i18n.JSON(c, e.ERROR, nil, err)
			return
		}

		device, err := h.aggregator.BuildDockerDevice(h.ctx(c))
		if err != nil {
			h.logger.Warn(h.ctx(c), "build docker device failed", zap.Error(err))
			h.i18n.JSON(c, e.DockerBackendUnavailable, nil, err)
			return
		}

		for _, entry := range device.UserQuotas {
			if entry.UID == uid {
				h.i18n.JSON(c, e.SUCCESS, entry, nil)
				return
			}
		}

		h.i18n.JSON(c, e.SUCCESS, nil, nil)
	}
}
