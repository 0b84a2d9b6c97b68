package packager

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/require"
)

// fakeChoco mimics `choco pack <id>.nuspec --out <dir>`: it copies what it was
// given into the output directory so tests can inspect it, counts its calls
// and writes an empty package.
const fakeChoco = `#!/bin/sh
set -e
[ "$1" = "pack" ] || exit 2
out="$4"
id=$(basename "$2" .nuspec)
v=$(sed -n 's:.*<version>\(.*\)</version>.*:\1:p' "$2")
cp "$2" "$out/captured.nuspec"
cp tools/chocolateyInstall.ps1 "$out/captured.ps1"
ls tools > "$out/captured.tools"
echo call >> "$out/calls"
echo nupkg > "$out/$id.$v.nupkg"
`

const failingChoco = `#!/bin/sh
echo "The nuspec is invalid" >&2
exit 1
`

type fixture struct {
	builder   *Builder
	outputDir string
	tempRoot  string
	dir       string
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake choco is a shell script")
	}

	dir := t.TempDir()
	chocoPath := filepath.Join(dir, "choco")
	require.NoError(t, os.WriteFile(chocoPath, []byte(script), 0755))

	f := &fixture{
		outputDir: filepath.Join(dir, "out"),
		tempRoot:  filepath.Join(dir, "tmp"),
		dir:       dir,
	}
	require.NoError(t, os.MkdirAll(f.tempRoot, 0755))
	f.builder = &Builder{
		chocoPath: chocoPath,
		outputDir: f.outputDir,
		tempRoot:  f.tempRoot,
		now:       func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) writeInstaller(t *testing.T, name, content string) *models.Installer {
	t.Helper()
	path := filepath.Join(f.dir, "soft", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &models.Installer{
		ID:            7,
		Filename:      name,
		Filepath:      path,
		FilesizeBytes: int64(len(content)),
		Version:       "128.0",
		Extension:     filepath.Ext(name)[1:],
	}
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.outputDir, name))
	require.NoError(t, err)
	return string(data)
}

func firefoxProfile() *models.Profile {
	return &models.Profile{
		ID:          3,
		Name:        "Mozilla Firefox",
		PackageID:   pointerutil.String("firefox"),
		Description: pointerutil.String("A free web browser."),
		Homepage:    pointerutil.String("https://www.mozilla.org"),
		IconURL:     pointerutil.String("https://example.com/firefox.png"),
		Tags:        "browser installer",
	}
}
