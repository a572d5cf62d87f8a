// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dockerquota defines persistence models for Docker attribution and
// quota-enforcement state.
package dockerquota

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ContainerAttribution maps a Docker container to the Linux user that
// created it.
type ContainerAttribution struct {
	ContainerID   string    `gorm:"column:container_id;primaryKey" json:"container_id"`
	HostUserName  string    `gorm:"column:host_user_name" json:"host_user_name"`
	UID           *int      `gorm:"column:uid" json:"uid"`
	ImageID       string    `gorm:"column:image_id" json:"image_id"`
	SizeBytes     int64     `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for ContainerAttribution.
//
// Returns:
//   - string: physical table name in MySQL.
func (c *ContainerAttribution) TableName() string {
	return "docker_container_attribution"
}

// First queries and returns the attribution for the current ContainerID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - *ContainerAttribution: matched record, nil when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (c *ContainerAttribution) First(db *gorm.DB) (row *ContainerAttribution, err error) {
	err = db.Where("container_id = ?", c.ContainerID).First(&row).Error

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return row, err
}

// Create inserts the current ContainerAttribution record.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - error: wrapped create error when insertion fails.
func (c *ContainerAttribution) Create(db *gorm.DB) (err error) {
	if err = db.Create(c).Error; err != nil {
		return fmt.Errorf("create container attribution failed: %w", err)
	}
	return
}

// UpdateSize refreshes only the size_bytes column for the current container.
//
// Parameters:
//   - db: GORM database client.
//   - sizeBytes: latest observed writable-layer size.
//
// Returns:
//   - error: wrapped update error when operation fails.
func (c *ContainerAttribution) UpdateSize(db *gorm.DB, sizeBytes int64) (err error) {
	if err = db.Model(&ContainerAttribution{}).Where("container_id = ?", c.ContainerID).
		Update("size_bytes", sizeBytes).Error; err != nil {
		return fmt.Errorf("update container attribution size failed: %w", err)
	}
	return
}

// Delete removes the attribution for the current ContainerID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - error: wrapped delete error when operation fails.
func (c *ContainerAttribution) Delete(db *gorm.DB) (err error) {
	if err = db.Where("container_id = ?", c.ContainerID).Delete(&ContainerAttribution{}).Error; err != nil {
		return fmt.Errorf("delete container attribution failed: %w", err)
	}
	return
}

// List returns every ContainerAttribution row.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - []ContainerAttribution: all attribution rows.
//   - error: query error.
func (c *ContainerAttribution) List(db *gorm.DB) (rows []ContainerAttribution, err error) {
	err = db.Find(&rows).Error
	return
}

// ReconcileNotIn deletes rows whose container_id is absent from liveIDs.
//
// Parameters:
//   - db: GORM database client.
//   - liveIDs: container ids currently reported live by Docker.
//
// Returns:
//   - int64: number of rows removed.
//   - error: wrapped delete error when operation fails.
func (c *ContainerAttribution) ReconcileNotIn(db *gorm.DB, liveIDs []string) (removed int64, err error) {
	tx := db.Where("container_id NOT IN ?", liveIDs)
	if len(liveIDs) == 0 {
		tx = db
	}

	result := tx.Delete(&ContainerAttribution{})
	if result.Error != nil {
		return 0, fmt.Errorf("reconcile container attribution failed: %w", result.Error)
	}

	return result.RowsAffected, nil
}
