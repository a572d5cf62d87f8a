// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

const callbackTimeout = 10 * time.Second

// eventBatchPayload is the outbound wire shape described in spec §6.
type eventBatchPayload struct {
	HostID string      `json:"host_id"`
	Events []eventWire `json:"events"`
}

type eventWire struct {
	HostUserName string                 `json:"host_user_name"`
	EventType    string                 `json:"event_type"`
	Detail       map[string]interface{} `json:"detail"`
}

// CoordinatorCallback posts enforcement/attribution events to the master's
// slave-events endpoint, per spec §6.
type CoordinatorCallback struct {
	client *resty.Client
	logger *logger.Manager
	url    string
	secret string
	hostID string
}

// NewCoordinatorCallback creates a CoordinatorCallback.
//
// Parameters:
//   - logger: logger manager.
//   - url: master base URL; empty disables the callback.
//   - secret: shared API key sent as X-API-Key.
//   - hostID: this slave's identifier, per SLAVE_HOST_ID.
//
// Returns:
//   - *CoordinatorCallback: initialized callback client.
func NewCoordinatorCallback(logger *logger.Manager, url, secret, hostID string) *CoordinatorCallback {
	return &CoordinatorCallback{
		client: resty.New().SetTimeout(callbackTimeout),
		logger: logger,
		url:    url,
		secret: secret,
		hostID: hostID,
	}
}

// PostEvents sends the accumulated event batch to the coordinator. A missing
// URL/secret, or any transport/status failure, is logged and dropped per
// spec §6 -- the caller never needs to react to a failed delivery.
//
// Parameters:
//   - ctx: request context, used only for log correlation.
//   - events: batch accumulated during one enforcement pass.
func (c *CoordinatorCallback) PostEvents(ctx context.Context, events []SlaveEvent) {
	if len(events) == 0 {
		return
	}
	if c.url == "" || c.secret == "" {
		c.logger.Info(ctx, "master event callback not configured, skipping post")
		return
	}

	wire := make([]eventWire, 0, len(events))
	for _, e := range events {
		wire = append(wire, eventWire{HostUserName: e.HostUserName, EventType: e.EventType, Detail: e.Detail})
	}

	endpoint := c.url + "/api/internal/slave-events"

	res, err := c.client.R().
		SetHeader("X-API-Key", c.secret).
		SetHeader("Content-Type", "application/json").
		SetBody(eventBatchPayload{HostID: c.hostID, Events: wire}).
		Post(endpoint)
	if err != nil {
		c.logger.Warn(ctx, "master event callback failed", zap.String("url", endpoint), zap.Error(err))
		return
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		c.logger.Warn(ctx, "master event callback returned non-2xx", zap.String("url", endpoint), zap.Int("status", res.StatusCode()))
	}
}
