package packager

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint covers every input that affects the built package. A change to
// any field invalidates the cached package.
type Fingerprint struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        string    `json:"tags"`
	IconURL     string    `json:"icon_url"`
	ProjectURL  string    `json:"project_url"`
	Filename    string    `json:"filename"`
	Extension   string    `json:"extension"`
	SizeBytes   int64     `json:"size_bytes"`
	ModTime     time.Time `json:"mod_time"`
}

func computeFingerprint(spec packageSpec, installer *models.Installer, info os.FileInfo) *Fingerprint {
	return &Fingerprint{
		ID:          spec.ID,
		Version:     spec.Version,
		Title:       spec.Title,
		Description: spec.Description,
		Tags:        spec.Tags,
		IconURL:     spec.IconURL,
		ProjectURL:  spec.ProjectURL,
		Filename:    installer.Filename,
		Extension:   installer.Extension,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime().UTC(),
	}
}

// Hash returns the hex BLAKE2b-256 of the fingerprint's JSON form.
func (fp *Fingerprint) Hash() (string, error) {
	data, err := json.Marshal(fp)
	if err != nil {
		return "", errors.WithStack(err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
