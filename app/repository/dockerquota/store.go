// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dockerquota implements the Docker attribution store: durable
// tables mapping containers, images, layers, and volumes to Linux users.
package dockerquota

import (
	"time"

	"github.com/tjumyk/qman/app/model/dockerquota"
	"github.com/sk-pkg/redis"
	"gorm.io/gorm"
)

type (
	// Repo defines persistence operations for the Docker attribution store.
	Repo interface {
		GetContainerAttribution(containerID string) (*dockerquota.ContainerAttribution, error)
		SetContainerAttribution(containerID, hostUserName string, uid *int, imageID string, sizeBytes int64) error
		UpdateContainerSize(containerID string, sizeBytes int64) error
		DeleteContainerAttribution(containerID string) error
		ListContainerAttributions() ([]dockerquota.ContainerAttribution, error)
		ReconcileContainers(liveIDs []string) (int64, error)

		GetImageAttribution(imageID string) (*dockerquota.ImageAttribution, error)
		SetImageAttribution(imageID, pullerHostUserName string, pullerUID *int, sizeBytes int64) (created bool, err error)
		ListImageAttributions() ([]dockerquota.ImageAttribution, error)
		DeleteImageAttribution(imageID string) error

		GetLayerAttribution(layerID string) (*dockerquota.LayerAttribution, error)
		SetLayerAttribution(layerID string, uid *int, hostUserName string, sizeBytes int64, method dockerquota.CreationMethod) (created bool, err error)
		ListLayerAttributions() ([]dockerquota.LayerAttribution, error)
		ReconcileLayers(liveIDs []string) (int64, error)

		GetVolumeAttribution(volumeName string) (*dockerquota.VolumeAttribution, error)
		SetVolumeAttribution(volumeName, hostUserName string, uid *int, sizeBytes int64, source dockerquota.AttributionSource) error
		ListVolumeAttributions() ([]dockerquota.VolumeAttribution, error)

		GetUserQuotaLimit(uid int) (*dockerquota.UserQuotaLimit, error)
		SetUserQuotaLimit(uid int, blockHardLimit int64) error
		ListEnforcedUserQuotaLimits() ([]dockerquota.UserQuotaLimit, error)

		GetSetting(key string) (string, error)
		SetSetting(key, value string) error
	}

	// repo is a GORM-backed Repo implementation.
	repo struct {
		redis *redis.Manager
		db    *gorm.DB
	}
)

// New creates a Repo backed by GORM and Redis dependencies.
//
// Parameters:
//   - db: GORM database client.
//   - redis: Redis manager, retained for future cache-adjacent operations.
//
// Returns:
//   - Repo: initialized repository implementation.
func New(db *gorm.DB, redis *redis.Manager) Repo {
	return &repo{db: db, redis: redis}
}

// GetContainerAttribution returns the attribution for one container.
//
// Parameters:
//   - containerID: Docker container id.
//
// Returns:
//   - *dockerquota.ContainerAttribution: matched row, nil when absent.
//   - error: query error.
func (r *repo) GetContainerAttribution(containerID string) (*dockerquota.ContainerAttribution, error) {
	m := &dockerquota.ContainerAttribution{ContainerID: containerID}
	return m.First(r.db)
}

// SetContainerAttribution creates a container attribution. It inserts only:
// when a row for containerID already exists the insert fails and the error
// is returned (UpdateContainerSize refreshes an existing row's size).
//
// Parameters:
//   - containerID: Docker container id.
//   - hostUserName: resolved owner name.
//   - uid: resolved owner uid, nil when unresolved.
//   - imageID: image the container was created from.
//   - sizeBytes: writable-layer size snapshot.
//
// Returns:
//   - error: wrapped create error when insertion fails.
//
// Behavior:
//   - Wrapped in a transaction so a failed write never leaves a partial row.
func (r *repo) SetContainerAttribution(containerID, hostUserName string, uid *int, imageID string, sizeBytes int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		m := &dockerquota.ContainerAttribution{
			ContainerID:  containerID,
			HostUserName: hostUserName,
			UID:          uid,
			ImageID:      imageID,
			SizeBytes:    sizeBytes,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		return m.Create(tx)
	})
}

// UpdateContainerSize refreshes the size snapshot for an already-attributed
// container.
//
// Parameters:
//   - containerID: Docker container id.
//   - sizeBytes: latest writable-layer size.
//
// Returns:
//   - error: wrapped update error when operation fails.
func (r *repo) UpdateContainerSize(containerID string, sizeBytes int64) error {
	m := &dockerquota.ContainerAttribution{ContainerID: containerID}
	return m.UpdateSize(r.db, sizeBytes)
}

// DeleteContainerAttribution removes one container's attribution.
//
// Parameters:
//   - containerID: Docker container id.
//
// Returns:
//   - error: wrapped delete error when operation fails.
func (r *repo) DeleteContainerAttribution(containerID string) error {
	m := &dockerquota.ContainerAttribution{ContainerID: containerID}
	return m.Delete(r.db)
}

// ListContainerAttributions returns every container attribution row.
//
// Returns:
//   - []dockerquota.ContainerAttribution: all rows.
//   - error: query error.
func (r *repo) ListContainerAttributions() ([]dockerquota.ContainerAttribution, error) {
	m := &dockerquota.ContainerAttribution{}
	return m.List(r.db)
}

// ReconcileContainers deletes container attributions absent from liveIDs.
//
// Parameters:
//   - liveIDs: container ids currently reported live by Docker.
//
// Returns:
//   - int64: rows removed.
//   - error: wrapped delete error when operation fails.
func (r *repo) ReconcileContainers(liveIDs []string) (int64, error) {
	m := &dockerquota.ContainerAttribution{}
	return m.ReconcileNotIn(r.db, liveIDs)
}

// GetImageAttribution returns the attribution for one image.
//
// Parameters:
//   - imageID: Docker image id.
//
// Returns:
//   - *dockerquota.ImageAttribution: matched row, nil when absent.
//   - error: query error.
func (r *repo) GetImageAttribution(imageID string) (*dockerquota.ImageAttribution, error) {
	m := &dockerquota.ImageAttribution{ImageID: imageID}
	return m.First(r.db)
}

// SetImageAttribution upserts an image attribution, honoring
// upsert-on-first-seen semantics.
//
// Parameters:
//   - imageID: Docker image id.
//   - pullerHostUserName: resolved owner name.
//   - pullerUID: resolved owner uid, nil when unresolved.
//   - sizeBytes: reported image size.
//
// Returns:
//   - created: true when a new row was inserted.
//   - err: wrapped create/update error when operation fails.
func (r *repo) SetImageAttribution(imageID, pullerHostUserName string, pullerUID *int, sizeBytes int64) (created bool, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		m := &dockerquota.ImageAttribution{
			ImageID:            imageID,
			PullerHostUserName: pullerHostUserName,
			PullerUID:          pullerUID,
			SizeBytes:          sizeBytes,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		}
		var txErr error
		created, txErr = m.Upsert(tx)
		return txErr
	})
	return created, err
}

// ListImageAttributions returns every image attribution row.
//
// Returns:
//   - []dockerquota.ImageAttribution: all rows.
//   - error: query error.
func (r *repo) ListImageAttributions() ([]dockerquota.ImageAttribution, error) {
	m := &dockerquota.ImageAttribution{}
	return m.List(r.db)
}

// DeleteImageAttribution removes one image's attribution.
//
// Parameters:
//   - imageID: Docker image id.
//
// Returns:
//   - error: wrapped delete error when operation fails.
func (r *repo) DeleteImageAttribution(imageID string) error {
	m := &dockerquota.ImageAttribution{ImageID: imageID}
	return m.Delete(r.db)
}

// GetLayerAttribution returns the attribution for one layer.
//
// Parameters:
//   - layerID: Docker layer id (diff id).
//
// Returns:
//   - *dockerquota.LayerAttribution: matched row, nil when absent.
//   - error: query error.
func (r *repo) GetLayerAttribution(layerID string) (*dockerquota.LayerAttribution, error) {
	m := &dockerquota.LayerAttribution{LayerID: layerID}
	return m.First(r.db)
}

// SetLayerAttribution is first-writer-wins: a pre-existing row silently
// prevents the write.
//
// Parameters:
//   - layerID: Docker layer id.
//   - uid: resolved owner uid, nil when unresolved.
//   - hostUserName: resolved owner name.
//   - sizeBytes: incremental layer size from image history.
//   - method: how the owning image was produced.
//
// Returns:
//   - created: true only when this call created the row.
//   - err: wrapped create error when insertion fails for a reason other than
//     the row already existing.
func (r *repo) SetLayerAttribution(layerID string, uid *int, hostUserName string, sizeBytes int64, method dockerquota.CreationMethod) (created bool, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		m := &dockerquota.LayerAttribution{
			LayerID:                 layerID,
			FirstPullerUID:          uid,
			FirstPullerHostUserName: hostUserName,
			SizeBytes:               sizeBytes,
			FirstSeenAt:             time.Now(),
			CreationMethod:          method,
		}
		var txErr error
		created, txErr = m.CreateIfAbsent(tx)
		return txErr
	})
	return created, err
}

// ListLayerAttributions returns every layer attribution row.
//
// Returns:
//   - []dockerquota.LayerAttribution: all rows.
//   - error: query error.
func (r *repo) ListLayerAttributions() ([]dockerquota.LayerAttribution, error) {
	m := &dockerquota.LayerAttribution{}
	return m.List(r.db)
}

// ReconcileLayers deletes layer attributions absent from liveIDs.
//
// Parameters:
//   - liveIDs: layer ids currently present across every live image.
//
// Returns:
//   - int64: rows removed.
//   - error: wrapped delete error when operation fails.
func (r *repo) ReconcileLayers(liveIDs []string) (int64, error) {
	m := &dockerquota.LayerAttribution{}
	return m.ReconcileNotIn(r.db, liveIDs)
}

// GetVolumeAttribution returns the attribution for one volume.
//
// Parameters:
//   - volumeName: Docker volume name.
//
// Returns:
//   - *dockerquota.VolumeAttribution: matched row, nil when absent.
//   - error: query error.
func (r *repo) GetVolumeAttribution(volumeName string) (*dockerquota.VolumeAttribution, error) {
	m := &dockerquota.VolumeAttribution{VolumeName: volumeName}
	return m.First(r.db)
}

// SetVolumeAttribution applies the label-over-container precedence rule from
// spec §3.
//
// Parameters:
//   - volumeName: Docker volume name.
//   - hostUserName: resolved owner name.
//   - uid: resolved owner uid, nil when unresolved.
//   - sizeBytes: reported volume size.
//   - source: which signal produced this write.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
func (r *repo) SetVolumeAttribution(volumeName, hostUserName string, uid *int, sizeBytes int64, source dockerquota.AttributionSource) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		m := &dockerquota.VolumeAttribution{
			VolumeName:        volumeName,
			HostUserName:      hostUserName,
			UID:               uid,
			SizeBytes:         sizeBytes,
			AttributionSource: source,
			FirstSeenAt:       time.Now(),
		}
		return m.SetWithPrecedence(tx)
	})
}

// ListVolumeAttributions returns every volume attribution row.
//
// Returns:
//   - []dockerquota.VolumeAttribution: all rows.
//   - error: query error.
func (r *repo) ListVolumeAttributions() ([]dockerquota.VolumeAttribution, error) {
	m := &dockerquota.VolumeAttribution{}
	return m.List(r.db)
}

// GetUserQuotaLimit returns the configured hard limit for one uid.
//
// Parameters:
//   - uid: Linux user id.
//
// Returns:
//   - *dockerquota.UserQuotaLimit: matched row, nil when absent.
//   - error: query error.
func (r *repo) GetUserQuotaLimit(uid int) (*dockerquota.UserQuotaLimit, error) {
	m := &dockerquota.UserQuotaLimit{UID: uid}
	return m.First(r.db)
}

// SetUserQuotaLimit upserts the hard limit for one uid.
//
// Parameters:
//   - uid: Linux user id.
//   - blockHardLimit: limit in 1024-byte blocks, 0 disables enforcement.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
func (r *repo) SetUserQuotaLimit(uid int, blockHardLimit int64) error {
	m := &dockerquota.UserQuotaLimit{UID: uid, BlockHardLimit: blockHardLimit, UpdatedAt: time.Now()}
	return m.Upsert(r.db)
}

// ListEnforcedUserQuotaLimits returns every limit with block_hard_limit > 0.
//
// Returns:
//   - []dockerquota.UserQuotaLimit: enforced limits only.
//   - error: query error.
func (r *repo) ListEnforcedUserQuotaLimits() ([]dockerquota.UserQuotaLimit, error) {
	m := &dockerquota.UserQuotaLimit{}
	return m.ListEnforced(r.db)
}

// GetSetting returns the value stored for key, empty string when absent.
//
// Parameters:
//   - key: setting key.
//
// Returns:
//   - string: stored value.
//   - error: query error.
func (r *repo) GetSetting(key string) (string, error) {
	m := &dockerquota.Setting{Key: key}
	return m.Get(r.db)
}

// SetSetting upserts the value stored for key.
//
// Parameters:
//   - key: setting key.
//   - value: new value.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
func (r *repo) SetSetting(key, value string) error {
	m := &dockerquota.Setting{Key: key}
	return m.Set(r.db, value)
}
