package packager

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// CacheMetadata sits next to a built package and records what it was built
// from.
type CacheMetadata struct {
	PackageID       string    `json:"package_id"`
	Version         string    `json:"version"`
	FingerprintHash string    `json:"fingerprint_hash"`
	GeneratedAt     time.Time `json:"generated_at"`
	SizeBytes       int64     `json:"size_bytes"`
}

func metadataFilename(dir, packageID, version string) string {
	return filepath.Join(dir, packageID+"."+version+".meta.json")
}

// ReadMetadata returns nil when no metadata has been written yet.
func ReadMetadata(dir, packageID, version string) (*CacheMetadata, error) {
	path := metadataFilename(dir, packageID, version)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read package metadata: %s", path)
	}

	var meta CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to parse package metadata: %s", path)
	}
	return &meta, nil
}

func WriteMetadata(dir string, meta *CacheMetadata) error {
	path := metadataFilename(dir, meta.PackageID, meta.Version)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal package metadata")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrapf(err, "failed to write package metadata: %s", path)
	}
	return nil
}
