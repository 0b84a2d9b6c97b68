package worker

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/appshelf/appshelf/pkg/models"
)

// SoftwareInfo is what the folder layout says about an installer.
//
// The expected layout is <root>/<program>/<version>/<file>. A file directly
// inside <program> takes its version from the file name, and a file at the
// root is its own program.
type SoftwareInfo struct {
	Name           string
	Folder         string
	Version        string
	ValidStructure bool
}

var (
	versionPattern = regexp.MustCompile(`\d+(\.\d+)+`)

	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)v?\d+(\.\d+)*`),
		regexp.MustCompile(`(?i)x64`),
		regexp.MustCompile(`(?i)x86`),
		regexp.MustCompile(`(?i)win64`),
		regexp.MustCompile(`(?i)win32`),
		regexp.MustCompile(`(?i)amd64`),
		regexp.MustCompile(`(?i)installer`),
		regexp.MustCompile(`(?i)setup`),
		regexp.MustCompile(`(?i)portable`),
		regexp.MustCompile(`(?i)full`),
		regexp.MustCompile(`(?i)repack`),
		regexp.MustCompile(`(?i)silent`),
	}
	separators = regexp.MustCompile(`[_\-.]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// DetermineSoftwareInfo derives identity from the directories between root
// and path. The version folder is taken verbatim whatever it contains.
func DetermineSoftwareInfo(root, path string) SoftwareInfo {
	filename := filepath.Base(path)

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Dir(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		name := strings.TrimSuffix(filename, filepath.Ext(filename))
		if name == "" {
			name = filename
		}
		return SoftwareInfo{Name: name, Version: models.DefaultInstallerVersion}
	}

	parts := strings.Split(rel, string(filepath.Separator))
	folder := parts[0]
	name := CleanSoftwareName(folder)
	if name == "" {
		name = folder
	}

	if len(parts) == 1 {
		return SoftwareInfo{Name: name, Folder: folder, Version: ExtractVersion(filename), ValidStructure: true}
	}
	return SoftwareInfo{Name: name, Folder: folder, Version: parts[1], ValidStructure: true}
}

// CleanSoftwareName strips version numbers, architecture and packaging words
// from a folder name.
func CleanSoftwareName(input string) string {
	for _, p := range noisePatterns {
		input = p.ReplaceAllString(input, "")
	}
	input = separators.ReplaceAllString(input, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// ExtractVersion returns the first dotted number in filename, or the default
// version when there is none.
func ExtractVersion(filename string) string {
	if v := versionPattern.FindString(filename); v != "" {
		return v
	}
	return models.DefaultInstallerVersion
}
