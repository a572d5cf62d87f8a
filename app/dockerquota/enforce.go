// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"sort"
	"time"

	repository "github.com/tjumyk/qman/app/repository/dockerquota"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

// EnforcementOrder is the victim-selection policy for one uid's containers.
type EnforcementOrder string

const (
	EnforcementOrderNewestFirst  EnforcementOrder = "newest_first"
	EnforcementOrderOldestFirst  EnforcementOrder = "oldest_first"
	EnforcementOrderLargestFirst EnforcementOrder = "largest_first"

	// stopGrace is the grace period passed to StopContainer before a forced
	// removal, per spec §4.F/§5.
	stopGrace = 60 * time.Second
)

// SlaveEvent is one entry in the event batch posted to the coordinator, per
// spec §6.
type SlaveEvent struct {
	HostUserName string
	EventType    string
	Detail       map[string]interface{}
}

// victimCandidate is one container eligible for removal during enforcement.
type victimCandidate struct {
	containerID string
	sizeBytes   int64
	createdUnix float64
}

// Enforcer runs the periodic over-quota sweep described in spec §4.F.
type Enforcer struct {
	inspector  *Inspector
	aggregator *Aggregator
	store      repository.Repo
	logger     *logger.Manager
	order      EnforcementOrder
}

// NewEnforcer creates an Enforcer.
//
// Parameters:
//   - inspector: Docker read/act facade.
//   - aggregator: usage aggregation.
//   - store: attribution persistence layer.
//   - logger: logger manager.
//   - order: victim-selection policy; invalid values fall back to
//     newest_first.
//
// Returns:
//   - *Enforcer: initialized enforcer.
func NewEnforcer(inspector *Inspector, aggregator *Aggregator, store repository.Repo, logger *logger.Manager, order EnforcementOrder) *Enforcer {
	switch order {
	case EnforcementOrderNewestFirst, EnforcementOrderOldestFirst, EnforcementOrderLargestFirst:
	default:
		order = EnforcementOrderNewestFirst
	}
	return &Enforcer{inspector: inspector, aggregator: aggregator, store: store, logger: logger, order: order}
}

// EnforcementResult reports §4.F's return contract.
type EnforcementResult struct {
	EnforcedCount int
	EventCount    int
}

// EnforceDockerQuota runs one enforcement pass: for each over-quota uid,
// selects victim containers by the configured policy and removes them one
// at a time until the uid is under limit, per spec §4.F.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - EnforcementResult: total containers removed and events emitted.
//   - []SlaveEvent: the event batch, for the caller to POST to the
//     coordinator.
func (e *Enforcer) EnforceDockerQuota(ctx context.Context) (EnforcementResult, []SlaveEvent) {
	var result EnforcementResult
	var events []SlaveEvent

	limits, err := e.store.ListEnforcedUserQuotaLimits()
	if err != nil {
		e.logger.Warn(ctx, "list enforced quota limits failed", zap.Error(err))
		return result, events
	}
	if len(limits) == 0 {
		return result, events
	}

	candidatesByUID, err := e.containersByUID(ctx)
	if err != nil {
		e.logger.Warn(ctx, "build container candidates failed", zap.Error(err))
		return result, events
	}

	for _, limit := range limits {
		if limit.BlockHardLimit <= 0 {
			continue
		}
		limitBytes := limit.BlockHardLimit * blocksToBytes

		usage, err := e.aggregator.AggregateUsageByUid(ctx, nil)
		if err != nil {
			e.logger.Warn(ctx, "aggregate usage failed during enforcement", zap.Int("uid", limit.UID), zap.Error(err))
			continue
		}
		if usage.UsageByUID[limit.UID] <= limitBytes {
			continue
		}

		hostUserName := resolveUserName(limit.UID)

		events = append(events, SlaveEvent{
			HostUserName: hostUserName,
			EventType:    "quota_exceeded",
			Detail: map[string]interface{}{
				"uid":              limit.UID,
				"block_current":    usage.UsageByUID[limit.UID],
				"block_hard_limit": limit.BlockHardLimit,
			},
		})
		result.EventCount++

		for _, victim := range candidatesByUID[limit.UID] {
			current, err := e.aggregator.AggregateUsageByUid(ctx, nil)
			if err != nil {
				e.logger.Warn(ctx, "recompute usage failed during enforcement", zap.Int("uid", limit.UID), zap.Error(err))
				break
			}
			if current.UsageByUID[limit.UID] <= limitBytes {
				break
			}

			e.logger.Info(ctx, "removing container for quota enforcement",
				zap.String("container_id", victim.containerID), zap.Int("uid", limit.UID), zap.Int64("size_bytes", victim.sizeBytes))

			if err := e.inspector.StopContainer(ctx, victim.containerID, stopGrace); err != nil {
				e.logger.Warn(ctx, "stop container failed during enforcement", zap.String("container_id", victim.containerID), zap.Error(err))
				continue
			}
			if err := e.inspector.RemoveContainer(ctx, victim.containerID, true); err != nil {
				e.logger.Warn(ctx, "remove container failed during enforcement", zap.String("container_id", victim.containerID), zap.Error(err))
				continue
			}
			if err := e.store.DeleteContainerAttribution(victim.containerID); err != nil {
				e.logger.Warn(ctx, "delete container attribution failed during enforcement", zap.String("container_id", victim.containerID), zap.Error(err))
			}

			result.EnforcedCount++

			shortID := victim.containerID
			if len(shortID) > 12 {
				shortID = shortID[:12]
			}
			events = append(events, SlaveEvent{
				HostUserName: hostUserName,
				EventType:    "container_removed",
				Detail: map[string]interface{}{
					"container_id": shortID,
					"size_bytes":   victim.sizeBytes,
				},
			})
			result.EventCount++
		}
	}

	return result, events
}

// containersByUID groups live containers by resolved owner uid and sorts
// each uid's list per the configured enforcement order.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - map[int][]victimCandidate: per-uid ordered victim lists.
//   - error: propagated inspector/store error.
func (e *Enforcer) containersByUID(ctx context.Context) (map[int][]victimCandidate, error) {
	df, err := e.inspector.GetSystemDF(ctx, nil)
	if err != nil {
		return nil, err
	}

	containers, err := e.inspector.ListContainers(ctx, true)
	if err != nil {
		return nil, err
	}
	createdByID := make(map[string]float64, len(containers))
	for _, c := range containers {
		createdByID[c.ID] = c.CreatedUnix
	}

	attributions, err := e.store.ListContainerAttributions()
	if err != nil {
		return nil, err
	}

	byUID := map[int][]victimCandidate{}
	for _, att := range attributions {
		if att.UID == nil {
			continue
		}
		byUID[*att.UID] = append(byUID[*att.UID], victimCandidate{
			containerID: att.ContainerID,
			sizeBytes:   df.Containers[att.ContainerID],
			createdUnix: createdByID[att.ContainerID],
		})
	}

	for uid, list := range byUID {
		switch e.order {
		case EnforcementOrderOldestFirst:
			sort.Slice(list, func(i, j int) bool { return list[i].createdUnix < list[j].createdUnix })
		case EnforcementOrderLargestFirst:
			sort.Slice(list, func(i, j int) bool { return list[i].sizeBytes > list[j].sizeBytes })
		default: // newest_first
			sort.Slice(list, func(i, j int) bool { return list[i].createdUnix > list[j].createdUnix })
		}
		byUID[uid] = list
	}

	return byUID, nil
}
