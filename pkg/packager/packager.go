// Package packager builds Chocolatey packages (.nupkg) around installers in
// the catalog by generating a nuspec and install script and running
// `choco pack` on them. Built packages are kept in the output directory and
// reused until the profile or installer changes.
package packager

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// defaultPackTimeout bounds a single choco invocation.
var defaultPackTimeout = 5 * time.Minute

var ErrInstallerMissing = errors.New("installer file is missing")

var (
	packageIDDisallowed = regexp.MustCompile(`[^a-z0-9._-]+`)
	versionDisallowed   = regexp.MustCompile(`[^A-Za-z0-9.+-]+`)
)

// BuildError is returned when choco exits unsuccessfully.
type BuildError struct {
	PackageID string
	ExitCode  int
	Stderr    string
	Err       error
}

func (e *BuildError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return "choco pack failed for " + e.PackageID + ": " + msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Package is a built .nupkg on disk.
type Package struct {
	Path      string
	Filename  string
	PackageID string
	Version   string
	Cached    bool
}

type Builder struct {
	chocoPath string
	outputDir string
	tempRoot  string
	now       func() time.Time

	// Builds share the output directory, so they run one at a time.
	mu sync.Mutex
}

func New(cfg *config.Config) *Builder {
	return &Builder{
		chocoPath: cfg.ChocoPath,
		outputDir: cfg.PackagesDir(),
		tempRoot:  os.TempDir(),
		now:       time.Now,
	}
}

// PackageID returns the identifier a package for profile is built under.
// Only characters Chocolatey accepts in an id are kept, so the result is
// always a single path component.
func PackageID(profile *models.Profile) string {
	raw := profile.Name
	if profile.PackageID != nil && strings.TrimSpace(*profile.PackageID) != "" {
		raw = *profile.PackageID
	}
	id := strings.Trim(packageIDDisallowed.ReplaceAllString(strings.ToLower(raw), ""), "._-")
	if id == "" {
		return "package"
	}
	return id
}

// packageVersion strips everything a NuGet version cannot contain.
func packageVersion(version string) string {
	v := strings.Trim(versionDisallowed.ReplaceAllString(version, ""), ".+-")
	if v == "" {
		return models.DefaultInstallerVersion
	}
	return v
}

// Build returns a package for installer, running choco only when no cached
// package matches the current profile and installer.
func (b *Builder) Build(ctx context.Context, profile *models.Profile, installer *models.Installer) (*Package, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := logger.FromContext(ctx).Data(logger.Data{"installer_id": installer.ID, "profile_id": profile.ID})

	info, err := os.Stat(installer.Filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithStack(ErrInstallerMissing)
		}
		return nil, errors.WithStack(err)
	}

	spec := newPackageSpec(profile, installer)
	fp := computeFingerprint(spec, installer, info)
	hash, err := fp.Hash()
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash fingerprint")
	}

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{
		Filename:  spec.ID + "." + spec.Version + ".nupkg",
		PackageID: spec.ID,
		Version:   spec.Version,
	}
	pkg.Path = filepath.Join(b.outputDir, pkg.Filename)

	cached, err := b.lookup(pkg, hash)
	if err != nil {
		log.Err(err).Warn("ignoring unreadable package cache entry")
	}
	if cached {
		pkg.Cached = true
		return pkg, nil
	}

	log.Info("building package", logger.Data{"package_id": spec.ID, "version": spec.Version})
	if err := b.pack(ctx, spec, installer); err != nil {
		return nil, err
	}

	built, err := os.Stat(pkg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "choco did not produce %s", pkg.Filename)
	}

	now := b.now()
	meta := &CacheMetadata{
		PackageID:       spec.ID,
		Version:         spec.Version,
		FingerprintHash: hash,
		GeneratedAt:     now,
		SizeBytes:       built.Size(),
	}
	if err := WriteMetadata(b.outputDir, meta); err != nil {
		_ = os.Remove(pkg.Path)
		return nil, err
	}
	return pkg, nil
}

func (b *Builder) lookup(pkg *Package, hash string) (bool, error) {
	meta, err := ReadMetadata(b.outputDir, pkg.PackageID, pkg.Version)
	if err != nil || meta == nil {
		return false, err
	}
	if meta.FingerprintHash != hash {
		return false, nil
	}
	if _, err := os.Stat(pkg.Path); err != nil {
		return false, nil
	}
	return true, nil
}

// pack lays out choco_build_<uuid>/<id>/tools in a scratch directory, runs
// choco and removes the scratch directory again.
func (b *Builder) pack(ctx context.Context, spec packageSpec, installer *models.Installer) error {
	workDir := filepath.Join(b.tempRoot, "choco_build_"+uuid.NewString())
	defer os.RemoveAll(workDir)

	packageDir := filepath.Join(workDir, spec.ID)
	toolsDir := filepath.Join(packageDir, "tools")
	if err := os.MkdirAll(toolsDir, 0755); err != nil {
		return errors.WithStack(err)
	}

	if err := copyFile(installer.Filepath, filepath.Join(toolsDir, installer.Filename)); err != nil {
		return err
	}

	script, err := renderInstallScript(installer)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(toolsDir, "chocolateyInstall.ps1"), script, 0644); err != nil {
		return errors.WithStack(err)
	}

	nuspec, err := renderNuspec(spec)
	if err != nil {
		return err
	}
	nuspecName := spec.ID + ".nuspec"
	if err := os.WriteFile(filepath.Join(packageDir, nuspecName), nuspec, 0644); err != nil {
		return errors.WithStack(err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPackTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, b.chocoPath, "pack", nuspecName, "--out", b.outputDir)
	cmd.Dir = packageDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		buildErr := &BuildError{PackageID: spec.ID, Stderr: stderr.String(), Err: err, ExitCode: -1}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			buildErr.ExitCode = exitErr.ExitCode()
		}
		if buildErr.Stderr == "" {
			buildErr.Stderr = stdout.String()
		}
		return errors.WithStack(buildErr)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(out.Close())
}
