package models

import "time"

// LocalEntry is one whole-blob value of the persistent local store.
type LocalEntry struct {
	Key       string    `gorm:"column:key;primaryKey;size:64"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (LocalEntry) TableName() string { return "local_entries" }
