// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AttributionSource identifies which signal produced a VolumeAttribution row.
type AttributionSource string

const (
	AttributionSourceLabel     AttributionSource = "label"
	AttributionSourceContainer AttributionSource = "container"
)

// VolumeAttribution maps a Docker volume to the Linux user considered its
// owner.
//
// Invariant: label-sourced rows override container-sourced rows on write;
// container-sourced writes on an existing row update only size_bytes.
// Rows survive the death of the container that first mounted the volume.
type VolumeAttribution struct {
	VolumeName        string            `gorm:"column:volume_name;primaryKey" json:"volume_name"`
	HostUserName      string            `gorm:"column:host_user_name" json:"host_user_name"`
	UID               *int              `gorm:"column:uid" json:"uid"`
	SizeBytes         int64             `gorm:"column:size_bytes" json:"size_bytes"`
	AttributionSource AttributionSource `gorm:"column:attribution_source" json:"attribution_source"`
	FirstSeenAt       time.Time         `gorm:"column:first_seen_at" json:"first_seen_at"`
}

// TableName returns the database table name for VolumeAttribution.
//
// Returns:
//   - string: physical table name in MySQL.
func (v *VolumeAttribution) TableName() string {
	return "docker_volume_attribution"
}

// First queries and returns the attribution for the current VolumeName.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - *VolumeAttribution: matched record, nil when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (v *VolumeAttribution) First(db *gorm.DB) (row *VolumeAttribution, err error) {
	err = db.Where("volume_name = ?", v.VolumeName).First(&row).Error

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return row, err
}

// SetWithPrecedence upserts the current row honoring the label-over-container
// precedence rule.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
//
// Behavior:
//   - No existing row: inserts as-is.
//   - Existing row, new source is label: overwrites owner, size, and source --
//     a label always wins, regardless of the existing row's source.
//   - Existing row, new source is container: updates only size_bytes,
//     leaving owner and source untouched, since only a label may change
//     ownership once a row exists.
func (v *VolumeAttribution) SetWithPrecedence(db *gorm.DB) (err error) {
	existing, err := v.First(db)
	if err != nil {
		return err
	}

	if existing == nil {
		if err = db.Create(v).Error; err != nil {
			return fmt.Errorf("create volume attribution failed: %w", err)
		}
		return nil
	}

	if v.AttributionSource == AttributionSourceContainer {
		if err = db.Model(&VolumeAttribution{}).Where("volume_name = ?", v.VolumeName).
			Update("size_bytes", v.SizeBytes).Error; err != nil {
			return fmt.Errorf("update volume attribution size failed: %w", err)
		}
		return nil
	}

	if err = db.Model(&VolumeAttribution{}).Where("volume_name = ?", v.VolumeName).
		Updates(map[string]interface{}{
			"host_user_name":     v.HostUserName,
			"uid":                v.UID,
			"size_bytes":         v.SizeBytes,
			"attribution_source": v.AttributionSource,
		}).Error; err != nil {
		return fmt.Errorf("update volume attribution failed: %w", err)
	}

	return nil
}

// List returns every VolumeAttribution row.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - []VolumeAttribution: all attribution rows.
//   - error: query error.
func (v *VolumeAttribution) List(db *gorm.DB) (rows []VolumeAttribution, err error) {
	err = db.Find(&rows).Error
	return
}
