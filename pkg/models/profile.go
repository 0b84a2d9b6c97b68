package models

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const DefaultProfileTags = "installer"

// Profile is one piece of software in the catalog, independent of any
// particular installer version. A profile without installers is orphaned and
// gets removed by the next scan that deletes files.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID          int          `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Name        string       `bun:",nullzero" json:"name"`
	FolderName  *string      `json:"folder_name,omitempty"`
	PackageID   *string      `json:"package_id,omitempty"`
	Description *string      `json:"description,omitempty"`
	Homepage    *string      `json:"homepage,omitempty"`
	LicenseURL  *string      `bun:"license_url" json:"license_url,omitempty"`
	IconURL     *string      `bun:"icon_url" json:"icon_url,omitempty"`
	Tags        string       `bun:",nullzero" json:"tags"`
	Screenshots []string     `bun:"-" json:"screenshots"`
	Installers  []*Installer `bun:"rel:has-many,join:id=profile_id" json:"installers,omitempty"`

	ScreenshotsData string `bun:"screenshots" json:"-"`
}

var (
	_ bun.BeforeAppendModelHook = (*Profile)(nil)
	_ bun.AfterScanRowHook      = (*Profile)(nil)
)

// BeforeAppendModel serializes the screenshot list into its JSON column.
func (p *Profile) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		screenshots := p.Screenshots
		if screenshots == nil {
			screenshots = []string{}
		}
		data, err := json.Marshal(screenshots)
		if err != nil {
			return errors.WithStack(err)
		}
		p.ScreenshotsData = string(data)
	}
	return nil
}

// AfterScanRow parses the screenshot JSON column.
func (p *Profile) AfterScanRow(_ context.Context) error {
	p.Screenshots = []string{}
	if p.ScreenshotsData == "" {
		return nil
	}
	return errors.WithStack(json.Unmarshal([]byte(p.ScreenshotsData), &p.Screenshots))
}

// TagList splits the tag string on spaces and commas.
func (p *Profile) TagList() []string {
	return SplitTags(p.Tags)
}
