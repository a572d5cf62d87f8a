// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// SettingKeyEventsLastTS is the Setting key holding the Docker event-stream
// watermark, a floating-point Unix-seconds string.
const SettingKeyEventsLastTS = "docker_events_last_ts"

// Setting is a string key/value row used for small pieces of persisted
// engine state.
type Setting struct {
	Key   string `gorm:"column:setting_key;primaryKey" json:"key"`
	Value string `gorm:"column:setting_value" json:"value"`
}

// TableName returns the database table name for Setting.
//
// Returns:
//   - string: physical table name in MySQL.
func (s *Setting) TableName() string {
	return "docker_setting"
}

// Get returns the value for the current Key.
//
// Parameters:
//   - db: GORM database client.
//
// Returns:
//   - string: stored value, empty string when absent.
//   - error: query error, gorm.ErrRecordNotFound excluded from the returned error.
func (s *Setting) Get(db *gorm.DB) (value string, err error) {
	var row *Setting
	err = db.Where("setting_key = ?", s.Key).First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}

	return row.Value, nil
}

// Set upserts the value for the current Key.
//
// Parameters:
//   - db: GORM database client.
//   - value: new value to persist.
//
// Returns:
//   - error: wrapped create/update error when operation fails.
func (s *Setting) Set(db *gorm.DB, value string) (err error) {
	s.Value = value

	result := db.Model(&Setting{}).Where("setting_key = ?", s.Key).Update("setting_value", value)
	if result.Error != nil {
		return fmt.Errorf("update setting failed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if err = db.Create(s).Error; err != nil {
			return fmt.Errorf("create setting failed: %w", err)
		}
	}

	return nil
}
