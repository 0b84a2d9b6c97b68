package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusAborted    = "aborted"
)

const (
	JobTypeScan        = "scan"
	JobTypeDeduplicate = "deduplicate"
)

// Job is the persisted record of one scan or merge run.
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID           int        `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Type         string     `bun:",nullzero" json:"type"`
	Status       string     `bun:",nullzero" json:"status"`
	RootPath     *string    `json:"root_path,omitempty"`
	AddedCount   int        `json:"added_count"`
	DeletedCount int        `json:"deleted_count"`
	MergedCount  int        `json:"merged_count"`
	Error        *string    `json:"error,omitempty"`
}
