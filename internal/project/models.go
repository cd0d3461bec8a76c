package project

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"

	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// ExportTTL is how long a completed export artifact is kept before the
// janitor evicts its record and file.
const ExportTTL = 7 * 24 * time.Hour

type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	VideoPath    string    `json:"video_path,omitempty"`
	Duration     float64   `json:"duration"`
	FrameRate    int       `json:"frame_rate"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Export struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Format       string    `json:"format"`
	Status       string    `json:"status"`
	FilePath     string    `json:"file_path,omitempty"`
	FileSize     int64     `json:"file_size"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

func NewID() string {
	return uuid.NewString()
}
