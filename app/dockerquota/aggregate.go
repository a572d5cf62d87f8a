// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"math"
	"sort"

	repository "github.com/tjumyk/qman/app/repository/dockerquota"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

// blocksToBytes is the conversion factor for UserQuotaLimit.BlockHardLimit,
// expressed in 1024-byte blocks per spec §3.
const blocksToBytes = 1024

// UsageAggregate is the result of AggregateUsageByUid.
type UsageAggregate struct {
	UsageByUID   map[int]int64
	TotalUsed    int64
	Unattributed int64
}

// UserQuotaEntry is one per-user row embedded in the synthetic docker
// device, per spec §4.F.
type UserQuotaEntry struct {
	UID            int
	Name           string
	BlockHardLimit int64
	BlockSoftLimit int64
	BlockCurrent   int64
}

// DeviceUsage mirrors the usage sub-object of every physical device entry.
type DeviceUsage struct {
	Used    int64
	Total   int64
	Free    int64
	Percent float64
}

// DockerDevice is the synthetic "docker" device reported to the coordinator
// in the same shape as every physical device, per spec §4.F.
type DockerDevice struct {
	Name              string
	MountPoints       []string
	FSType            string
	Opts              []string
	Usage             DeviceUsage
	UserQuotaFormat   string
	UserQuotas        []UserQuotaEntry
	UnattributedUsage int64
}

// Aggregator computes per-user Docker usage from the attribution store and
// live inspector data.
type Aggregator struct {
	inspector     *Inspector
	store         repository.Repo
	logger        *logger.Manager
	reservedBytes int64
	dataRoot      string
}

// NewAggregator creates an Aggregator.
//
// Parameters:
//   - inspector: Docker read facade.
//   - store: attribution persistence layer.
//   - logger: logger manager.
//   - reservedBytes: fixed synthetic total; 0 disables reserved-mode.
//   - dataRoot: reported mount point for the synthetic device.
//
// Returns:
//   - *Aggregator: initialized aggregator.
func NewAggregator(inspector *Inspector, store repository.Repo, logger *logger.Manager, reservedBytes int64, dataRoot string) *Aggregator {
	return &Aggregator{inspector: inspector, store: store, logger: logger, reservedBytes: reservedBytes, dataRoot: dataRoot}
}

// AggregateUsageByUid aggregates per-user usage from the attribution store
// and live Docker system-df data, per spec §4.F.
//
// Parameters:
//   - ctx: request context.
//   - containerIDs: optional filter passed through to GetSystemDF, avoiding
//     a redundant listing when the caller already has the set.
//
// Returns:
//   - UsageAggregate: usage-by-uid, total used, and unattributed bytes.
//   - error: wrapped BackendUnavailable when the Docker daemon is
//     unreachable.
func (a *Aggregator) AggregateUsageByUid(ctx context.Context, containerIDs []string) (UsageAggregate, error) {
	df, err := a.inspector.GetSystemDF(ctx, containerIDs)
	if err != nil {
		a.logger.Warn(ctx, "system df failed during aggregation", zap.Error(err))
		return UsageAggregate{}, err
	}

	var totalContainer, totalImage int64
	for _, size := range df.Containers {
		totalContainer += size
	}
	for _, size := range df.Images {
		totalImage += size
	}
	totalUsed := totalContainer + totalImage

	usageByUID := map[int]int64{}

	containerAttributions, err := a.store.ListContainerAttributions()
	if err != nil {
		return UsageAggregate{}, err
	}
	for _, att := range containerAttributions {
		if att.UID == nil {
			continue
		}
		usageByUID[*att.UID] += df.Containers[att.ContainerID]
	}

	layerAttributions, err := a.store.ListLayerAttributions()
	if err != nil {
		return UsageAggregate{}, err
	}
	for _, att := range layerAttributions {
		if att.FirstPullerUID == nil {
			continue
		}
		usageByUID[*att.FirstPullerUID] += att.SizeBytes
	}

	var attributedSum int64
	for _, v := range usageByUID {
		attributedSum += v
	}

	unattributed := totalUsed - attributedSum
	if unattributed < 0 {
		unattributed = 0
	}

	return UsageAggregate{UsageByUID: usageByUID, TotalUsed: totalUsed, Unattributed: unattributed}, nil
}

// BuildDockerDevice assembles the synthetic "docker" device payload for the
// coordinator, per spec §4.F.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - DockerDevice: the device payload.
//   - error: propagated aggregation or store error.
func (a *Aggregator) BuildDockerDevice(ctx context.Context) (DockerDevice, error) {
	usage, err := a.AggregateUsageByUid(ctx, nil)
	if err != nil {
		return DockerDevice{}, err
	}

	limits, err := a.store.ListEnforcedUserQuotaLimits()
	if err != nil {
		return DockerDevice{}, err
	}

	var used int64
	for _, v := range usage.UsageByUID {
		used += v
	}

	var total, free int64
	if a.reservedBytes > 0 {
		total = a.reservedBytes
		free = total - used - usage.Unattributed
		if free < 0 {
			free = 0
		}
	} else {
		var limitSum int64
		for _, l := range limits {
			limitSum += l.BlockHardLimit * blocksToBytes
		}
		total = limitSum + usage.Unattributed
		if total < 1 {
			total = 1
		}
		free = total - used - usage.Unattributed
		if free < 0 {
			free = 0
		}
	}

	percent := 0.0
	if total > 0 {
		percent = math.Round((float64(total-free)/float64(total))*1000) / 10
	}

	limitByUID := make(map[int]int64, len(limits))
	for _, l := range limits {
		limitByUID[l.UID] = l.BlockHardLimit
	}

	uids := make(map[int]struct{}, len(limitByUID)+len(usage.UsageByUID))
	for uid := range limitByUID {
		uids[uid] = struct{}{}
	}
	for uid := range usage.UsageByUID {
		uids[uid] = struct{}{}
	}

	sortedUIDs := make([]int, 0, len(uids))
	for uid := range uids {
		sortedUIDs = append(sortedUIDs, uid)
	}
	sort.Ints(sortedUIDs)

	entries := make([]UserQuotaEntry, 0, len(sortedUIDs))
	for _, uid := range sortedUIDs {
		hardLimit := limitByUID[uid]
		entries = append(entries, UserQuotaEntry{
			UID:            uid,
			Name:           resolveUserName(uid),
			BlockHardLimit: hardLimit,
			BlockSoftLimit: hardLimit,
			BlockCurrent:   usage.UsageByUID[uid],
		})
	}

	return DockerDevice{
		Name:        "docker",
		MountPoints: []string{a.dataRoot},
		FSType:      "docker",
		Opts:        []string{"docker"},
		Usage: DeviceUsage{
			Used:    used,
			Total:   total,
			Free:    free,
			Percent: percent,
		},
		UserQuotaFormat:   "docker",
		UserQuotas:        entries,
		UnattributedUsage: usage.Unattributed,
	}, nil
}

