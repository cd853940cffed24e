package models

import (
	"time"

	"github.com/google/uuid"
)

// Optimization records one run of the optimizer and where its output is stored.
type Optimization struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	InputSize        int64     `json:"input_size"`
	OutputSize       int64     `json:"output_size"`
	Config           string    `gorm:"type:text" json:"config"`
	Report           string    `gorm:"type:text" json:"report"`
	StorageKey       string    `json:"storage_key"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
