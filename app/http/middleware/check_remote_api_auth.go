// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/tjumyk/qman/app/pkg/e"
)

const remoteAPIUsername = "api"

// CheckRemoteAPIAuth returns middleware guarding /remote-api/* with HTTP
// Basic credentials, per spec §6: username "api", password the
// preconfigured DockerQuota.APIKey.
//
// Returns:
//   - gin.HandlerFunc: middleware that aborts unauthorized requests.
//
// Behavior:
//   - Rejects requests when no API key is configured.
//   - Uses constant-time comparison to avoid timing side channels.
func (m middleware) CheckRemoteAPIAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()

		errCode := e.RemoteAPIUnauthorized
		if ok && m.remoteAPIKey != "" &&
			subtle.ConstantTimeCompare([]byte(user), []byte(remoteAPIUsername)) == 1 &&
			subtle.ConstantTimeCompare([]byte(pass), []byte(m.remoteAPIKey)) == 1 {
			errCode = e.SUCCESS
		}

		if errCode != e.SUCCESS {
			c.Header("WWW-Authenticate", `Basic realm="remote-api"`)
			m.i18n.JSON(c, errCode, nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
