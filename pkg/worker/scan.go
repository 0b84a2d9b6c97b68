package worker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// unsafeThreshold is how many known installers under a root make an empty
// directory listing look like a missing mount rather than a real deletion.
const unsafeThreshold = 10

var ErrUnsafeAbort = errors.New("scan aborted: no files found where the catalog expects some")

// installerExtensions are the file types picked up by a scan.
var installerExtensions = map[string]struct{}{
	"exe": {},
	"msi": {},
	"zip": {},
	"7z":  {},
	"rar": {},
}

type ScanResult struct {
	Added   int
	Deleted int
}

// physicalFiles maps the lower-cased path of every installer on disk to the
// path as found. Directories that could not be read are listed in skipped.
type physicalFiles struct {
	paths   map[string]string
	skipped []string
}

// ScanFolder reconciles the catalog with the installers under root. Stale
// records are removed first, then new files are added. A root that does not
// exist is logged and otherwise ignored.
func (w *Worker) ScanFolder(ctx context.Context, jl RunLogger, root string) (*ScanResult, error) {
	result := &ScanResult{}

	abs, err := filepath.Abs(root)
	if err != nil {
		return result, errors.WithStack(err)
	}
	root = abs

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		jl.Warn("folder not found", logger.Data{"path": root})
		return result, nil
	}

	jl.Info("analyzing file system", logger.Data{"path": root})
	w.state.ReportProgress(0, 0, "Analyzing file system...")

	physical, err := collectPhysicalFiles(jl, root)
	if err != nil {
		return result, err
	}
	jl.Info("found files on disk", logger.Data{"count": len(physical.paths)})

	sess := w.catalogService.NewSession()

	known, err := sess.CountInstallers(ctx, catalog.ListInstallersOptions{PathPrefix: &root})
	if err != nil {
		return result, err
	}
	if known > unsafeThreshold && len(physical.paths) == 0 {
		jl.Error("SAFETY ABORT: the catalog has installers under this folder but none were found on disk, nothing was deleted", ErrUnsafeAbort, logger.Data{
			"path":  root,
			"known": known,
		})
		return result, errors.WithStack(ErrUnsafeAbort)
	}

	result.Deleted, err = w.syncDeleted(ctx, jl, sess, root, physical)
	if err != nil {
		return result, err
	}

	result.Added, err = w.addNewFiles(ctx, jl, sess, root, physical)
	if err != nil {
		return result, err
	}

	jl.Info("sync complete", logger.Data{"added": result.Added, "deleted": result.Deleted})
	return result, nil
}

// collectPhysicalFiles lists every installer under root. Symlinked
// directories are followed and paths are kept as seen through root, so a
// root that is itself a link to a mount produces the same keys every scan.
// A directory reached a second time through another link is skipped and the
// records under it are kept.
func collectPhysicalFiles(jl RunLogger, root string) (*physicalFiles, error) {
	files := &physicalFiles{paths: map[string]string{}}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}

	visited := map[string]struct{}{resolved: {}}
	files.walk(jl, root, entries, visited)
	return files, nil
}

func (f *physicalFiles) walk(jl RunLogger, dir string, entries []fs.DirEntry, visited map[string]struct{}) {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				f.skip(jl, path, err)
				continue
			}
			isDir = info.IsDir()
		}

		if !isDir {
			f.add(path)
			continue
		}

		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			f.skip(jl, path, err)
			continue
		}
		if _, ok := visited[resolved]; ok {
			jl.Warn("skipping directory that was already scanned", logger.Data{"path": path, "target": resolved})
			f.skipped = append(f.skipped, path)
			continue
		}
		visited[resolved] = struct{}{}

		sub, err := os.ReadDir(path)
		if err != nil {
			f.skip(jl, path, err)
			continue
		}
		f.walk(jl, path, sub, visited)
	}
}

func (f *physicalFiles) add(path string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if _, ok := installerExtensions[ext]; !ok {
		return
	}
	key := strings.ToLower(path)
	if _, ok := f.paths[key]; !ok {
		f.paths[key] = path
	}
}

// skip records an unreadable path. Records under it are kept rather than
// treated as deleted.
func (f *physicalFiles) skip(jl RunLogger, path string, err error) {
	jl.Warn("skipping unreadable path", logger.Data{"path": path, "error": err.Error()})
	f.skipped = append(f.skipped, path)
}

func (f *physicalFiles) inSkippedDir(path string) bool {
	lower := strings.ToLower(path)
	for _, dir := range f.skipped {
		d := strings.ToLower(dir)
		if lower == d || strings.HasPrefix(lower, strings.TrimRight(d, string(filepath.Separator))+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// syncDeleted removes records under root whose file is gone, then removes
// every profile left without installers.
func (w *Worker) syncDeleted(ctx context.Context, jl RunLogger, sess *catalog.Session, root string, physical *physicalFiles) (int, error) {
	w.state.ReportProgress(0, 0, "Checking for removed files...")

	records, err := sess.ListInstallers(ctx, catalog.ListInstallersOptions{PathPrefix: &root})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range records {
		if _, ok := physical.paths[strings.ToLower(rec.Filepath)]; ok {
			continue
		}
		if physical.inSkippedDir(rec.Filepath) {
			continue
		}
		jl.Info("removing stale record", logger.Data{"filename": rec.Filename})
		sess.RemoveInstaller(rec)
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := sess.Commit(ctx); err != nil {
		return 0, err
	}
	return deleted, pruneOrphans(ctx, jl, sess)
}

// pruneOrphans removes every profile left without installers.
func pruneOrphans(ctx context.Context, jl RunLogger, sess *catalog.Session) error {
	orphans, err := sess.ListProfiles(ctx, catalog.ListProfilesOptions{OrphanedOnly: true})
	if err != nil {
		return err
	}
	for _, p := range orphans {
		jl.Info("removing empty profile", logger.Data{"name": p.Name})
		sess.RemoveProfile(p)
	}
	return sess.Commit(ctx)
}

// addNewFiles adds an installer for every file on disk the catalog does not
// know about yet. Files that fail are logged and skipped.
func (w *Worker) addNewFiles(ctx context.Context, jl RunLogger, sess *catalog.Session, root string, physical *physicalFiles) (int, error) {
	existing, err := sess.ListInstallers(ctx, catalog.ListInstallersOptions{})
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		known[strings.ToLower(rec.Filepath)] = struct{}{}
	}

	keys := []string{}
	for key := range physical.paths {
		if _, ok := known[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	total := len(keys)
	if total == 0 {
		return 0, nil
	}
	jl.Info("found new files", logger.Data{"count": total})

	added := 0
	for i, key := range keys {
		path := physical.paths[key]
		filename := filepath.Base(path)
		w.state.ReportProgress(i+1, total, "Adding: "+filename)

		if err := w.addFile(ctx, jl, sess, root, path); err != nil {
			jl.Warn("failed to process file", logger.Data{"filename": filename, "error": err.Error()})
			continue
		}
		added++
	}

	if err := sess.Commit(ctx); err != nil {
		// Profiles created for this batch were committed on their own and
		// would otherwise be left empty.
		if pruneErr := pruneOrphans(ctx, jl, w.catalogService.NewSession()); pruneErr != nil {
			jl.Warn("failed to remove empty profiles", logger.Data{"error": pruneErr.Error()})
		}
		return 0, err
	}
	return added, nil
}

func (w *Worker) addFile(ctx context.Context, jl RunLogger, sess *catalog.Session, root, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithStack(err)
	}

	id := DetermineSoftwareInfo(root, path)
	profile, err := w.EnsureProfile(ctx, jl, sess, id.Name, id.Folder)
	if err != nil {
		return err
	}

	sess.AddInstaller(&models.Installer{
		ProfileID:     profile.ID,
		Profile:       profile,
		Filename:      filepath.Base(path),
		Filepath:      path,
		FilesizeBytes: info.Size(),
		Version:       id.Version,
		Extension:     strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
	})
	return nil
}
