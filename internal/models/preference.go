package models

import "time"

// Preference is a single persisted client setting, keyed by name.
type Preference struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
