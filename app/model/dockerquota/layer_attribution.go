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

// CreationMethod identifies how a layer's owning image was produced.
type CreationMethod string

const (
	CreationMethodPull   CreationMethod = "pull"
	CreationMethodBuild  CreationMethod = "build"
	CreationMethodCommit CreationMethod = "commit"
	CreationMethodImport CreationMethod = "import"
	CreationMethodLoad   CreationMethod = "load"
	CreationMethodNone   CreationMethod = ""
)

// LayerAttribution maps a Docker image layer to the Linux user that first
// caused it to be created on this host.
//
// Invariant: first creator wins. Once a row exists, SetLayerAttribution
// (repository layer) must never overwrite its owner fields.
type LayerAttribution struct {
	LayerID                 string         `gorm:"column:layer_id;primaryKey" json:"layer_id"`
	FirstPullerUID          *int           `gorm:"column:first_puller_uid" json:"first_puller_uid"`
	FirstPullerHostUserName string         `gorm:"column:first_puller_host_user_name" json:"first_puller_host_user_name"`
	SizeBytes               int64          `gorm:"column:size_bytes" json:"size_bytes"`
	FirstSeenAt             time.Time      `gorm:"column:first_seen_at" json:"first_seen_at"`
	CreationMethod          CreationMethod `gorm:"column:creation_method" json:"creation_method"`
}

// TableName returns the database table name for LayerAttribution.
//
// Returns:
//   - string: physical table name in MySQL.
func (l *LayerAttribution) TableName() string {
	return "docker_layer_attribution"
}

// First queries and returns the attribution for the current LayerID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - *LayerAttribution: matched record, nil when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (l *LayerAttribution) First(db *gorm.DB) (row *LayerAttribution, err error) {
	err = db.Where("layer_id = ?", l.LayerID).First(&row).Error

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return row, err
}

// CreateIfAbsent inserts the current row only if no row exists yet for this
// layer id, implementing the first-writer-wins invariant.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - bool: true when this call created the row.
//   - error: wrapped create error when insertion fails for a reason other
//     than the row already existing.
func (l *LayerAttribution) CreateIfAbsent(db *gorm.DB) (created bool, err error) {
	existing, err := l.First(db)
	if err != nil {
		return false, err
	}

	if existing != nil {
		// A pre-existing row silently prevents the write (StoreConflict,
		// swallowed per spec §7).
		return false, nil
	}

	if err = db.Create(l).Error; err != nil {
		return false, fmt.Errorf("create layer attribution failed: %w", err)
	}

	return true, nil
}

// List returns every LayerAttribution row.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - []LayerAttribution: all attribution rows.
//   - error: query error.
func (l *LayerAttribution) List(db *gorm.DB) (rows []LayerAttribution, err error) {
	err = db.Find(&rows).Error
	return
}

// ReconcileNotIn deletes rows whose layer_id is absent from liveIDs.
//
// Parameters:
//   - db: GORM database client.
//   - liveIDs: layer ids currently present across every live image.
//
// Returns:
//   - int64: number of rows removed.
//   - error: wrapped delete error when operation fails.
func (l *LayerAttribution) ReconcileNotIn(db *gorm.DB, liveIDs []string) (removed int64, err error) {
	tx := db.Where("layer_id NOT IN ?", liveIDs)
	if len(liveIDs) == 0 {
		tx = db
	}

	result := tx.Delete(&LayerAttribution{})
	if result.Error != nil {
		return 0, fmt.Errorf("reconcile layer attribution failed: %w", result.Error)
	}

	return result.RowsAffected, nil
}
