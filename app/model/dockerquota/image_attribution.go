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

// ImageAttribution maps a Docker image to the Linux user that first pulled,
// built, imported, or loaded it.
type ImageAttribution struct {
	ImageID            string    `gorm:"column:image_id;primaryKey" json:"image_id"`
	PullerHostUserName string    `gorm:"column:puller_host_user_name" json:"puller_host_user_name"`
	PullerUID          *int      `gorm:"column:puller_uid" json:"puller_uid"`
	SizeBytes          int64     `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for ImageAttribution.
//
// Returns:
//   - string: physical table name in MySQL.
func (i *ImageAttribution) TableName() string {
	return "docker_image_attribution"
}

// First queries and returns the attribution for the current ImageID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - *ImageAttribution: matched record, nil when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (i *ImageAttribution) First(db *gorm.DB) (row *ImageAttribution, err error) {
	err = db.Where("image_id = ?", i.ImageID).First(&row).Error

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return row, err
}

// Upsert creates the attribution if absent, otherwise refreshes size_bytes.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - bool: true when a new row was created.
//   - error: wrapped create/update error when operation fails.
//
// Behavior:
//   - Mirrors the "upsert-on-first-seen" contract in spec §3: the owner
//     fields are set only on first creation.
func (i *ImageAttribution) Upsert(db *gorm.DB) (created bool, err error) {
	existing, err := i.First(db)
	if err != nil {
		return false, err
	}

	if existing == nil {
		if err = db.Create(i).Error; err != nil {
			return false, fmt.Errorf("create image attribution failed: %w", err)
		}
		return true, nil
	}

	if err = db.Model(&ImageAttribution{}).Where("image_id = ?", i.ImageID).
		Update("size_bytes", i.SizeBytes).Error; err != nil {
		return false, fmt.Errorf("update image attribution size failed: %w", err)
	}

	return false, nil
}

// List returns every ImageAttribution row.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - []ImageAttribution: all attribution rows.
//   - error: query error.
func (i *ImageAttribution) List(db *gorm.DB) (rows []ImageAttribution, err error) {
	err = db.Find(&rows).Error
	return
}

// Delete removes the attribution for the current ImageID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - error: wrapped delete error when operation fails.
func (i *ImageAttribution) Delete(db *gorm.DB) (err error) {
	if err = db.Where("image_id = ?", i.ImageID).Delete(&ImageAttribution{}).Error; err != nil {
		return fmt.Errorf("delete image attribution failed: %w", err)
	}
	return
}
