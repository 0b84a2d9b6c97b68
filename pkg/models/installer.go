package models

import (
	"time"

	"github.com/uptrace/bun"
)

const DefaultInstallerVersion = "1.0.0"

// Installer is a single installer file on disk. Its path is unique across the
// catalog (compared case-insensitively) and it always belongs to exactly one
// profile.
type Installer struct {
	bun.BaseModel `bun:"table:installers,alias:i"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ProfileID     int       `bun:",nullzero" json:"profile_id"`
	Profile       *Profile  `bun:"rel:belongs-to,join:profile_id=id" json:"profile,omitempty"`
	Filename      string    `bun:",nullzero" json:"filename"`
	Filepath      string    `bun:",nullzero" json:"filepath"`
	FilesizeBytes int64     `json:"filesize_bytes"`
	Version       string    `bun:",nullzero" json:"version"`
	Extension     string    `bun:",nullzero" json:"extension"`
	Comment       *string   `json:"comment,omitempty"`
	IsExtra       bool      `json:"is_extra"`
}
