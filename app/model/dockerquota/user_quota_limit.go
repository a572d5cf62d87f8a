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

// UserQuotaLimit stores the configured Docker quota ceiling for one uid,
// expressed in 1024-byte blocks. Zero means no limit.
type UserQuotaLimit struct {
	UID            int       `gorm:"column:uid;primaryKey" json:"uid"`
	BlockHardLimit int64     `gorm:"column:block_hard_limit" json:"block_hard_limit"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for UserQuotaLimit.
//
// Returns:
//   - string: physical table name in MySQL.
func (u *UserQuotaLimit) TableName() string {
	return "docker_user_quota_limit"
}

// First queries and returns the quota limit for the current UID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - *UserQuotaLimit: matched record, nil when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (u *UserQuotaLimit) First(db *gorm.DB) (row *UserQuotaLimit, err error) {
	err = db.Where("uid = ?", u.UID).First(&row).Error

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return row, err
}

// Upsert inserts or updates the hard limit for the current UID.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
func (u *UserQuotaLimit) Upsert(db *gorm.DB) (err error) {
	existing, err := u.First(db)
	if err != nil {
		return err
	}

	if existing == nil {
		if err = db.Create(u).Error; err != nil {
			return fmt.Errorf("create user quota limit failed: %w", err)
		}
		return nil
	}

	if err = db.Model(&UserQuotaLimit{}).Where("uid = ?", u.UID).
		Update("block_hard_limit", u.BlockHardLimit).Error; err != nil {
		return fmt.Errorf("update user quota limit failed: %w", err)
	}

	return nil
}

// ListEnforced returns every UserQuotaLimit with block_hard_limit > 0.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - []UserQuotaLimit: enforced limits only.
//   - error: query error.
func (u *UserQuotaLimit) ListEnforced(db *gorm.DB) (rows []UserQuotaLimit, err error) {
	err = db.Where("block_hard_limit > 0").Find(&rows).Error
	return
}
