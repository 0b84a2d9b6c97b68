package worker

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/joblogs"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type testContext struct {
	t      *testing.T
	ctx    context.Context
	db     *bun.DB
	state  *scanstate.State
	worker *Worker
	log    *recordingLogger
	root   string
}

func newTestContext(t *testing.T, enricher *enrich.Enricher) *testContext {
	t.Helper()
	db := newTestDB(t)
	state := scanstate.New()
	return &testContext{
		t:      t,
		ctx:    logger.New().WithContext(context.Background()),
		db:     db,
		state:  state,
		worker: New(config.NewForTest(), db, state, enricher),
		log:    &recordingLogger{},
		root:   t.TempDir(),
	}
}

// file creates an installer-sized placeholder at root/rel.
func (tc *testContext) file(rel string) string {
	tc.t.Helper()
	path := filepath.Join(tc.root, filepath.FromSlash(rel))
	require.NoError(tc.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(tc.t, os.WriteFile(path, []byte("MZ"+rel), 0644))
	return path
}

func (tc *testContext) remove(rel string) {
	tc.t.Helper()
	require.NoError(tc.t, os.Remove(filepath.Join(tc.root, filepath.FromSlash(rel))))
}

func (tc *testContext) scan() *ScanResult {
	tc.t.Helper()
	res, err := tc.worker.ScanFolder(tc.ctx, tc.log, tc.root)
	require.NoError(tc.t, err)
	return res
}

func (tc *testContext) profiles() []*models.Profile {
	tc.t.Helper()
	sess := catalog.NewService(tc.db).NewSession()
	profiles, err := sess.ListProfiles(tc.ctx, catalog.ListProfilesOptions{WithInstallers: true})
	require.NoError(tc.t, err)
	return profiles
}

func (tc *testContext) installers() []*models.Installer {
	tc.t.Helper()
	sess := catalog.NewService(tc.db).NewSession()
	installers, err := sess.ListInstallers(tc.ctx, catalog.ListInstallersOptions{})
	require.NoError(tc.t, err)
	return installers
}

// seed stores a profile with installers at the given paths without touching
// the disk.
func (tc *testContext) seed(p *models.Profile, paths ...string) *models.Profile {
	tc.t.Helper()
	sess := catalog.NewService(tc.db).NewSession()
	sess.AddProfile(p)
	for _, path := range paths {
		sess.AddInstaller(&models.Installer{
			Profile:   p,
			Filename:  filepath.Base(path),
			Filepath:  path,
			Extension: strings.TrimPrefix(filepath.Ext(path), "."),
		})
	}
	require.NoError(tc.t, sess.Commit(tc.ctx))
	return p
}

type logLine struct {
	level string
	msg   string
	data  logger.Data
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(level, msg string, data logger.Data) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, data: data})
}

func (l *recordingLogger) Info(msg string, data logger.Data)  { l.add("info", msg, data) }
func (l *recordingLogger) Warn(msg string, data logger.Data)  { l.add("warn", msg, data) }
func (l *recordingLogger) Error(msg string, _ error, data logger.Data) {
	l.add("error", msg, data)
}
func (l *recordingLogger) Fatal(msg string, _ error, data logger.Data) {
	l.add("fatal", msg, data)
}

func (l *recordingLogger) find(level, prefix string) *logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.lines {
		if l.lines[i].level == level && strings.HasPrefix(l.lines[i].msg, prefix) {
			return &l.lines[i]
		}
	}
	return nil
}

type fakeSearcher struct {
	mu       sync.Mutex
	results  map[string]*metadata.Result
	err      error
	panics   bool
	onSearch func(name string)
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, name string, _ metadata.Source) (*metadata.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, name)
	if f.onSearch != nil {
		f.onSearch(name)
	}
	if f.panics {
		panic("metadata source exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[name], nil
}

var _ joblogs.Sink = (*scanstate.State)(nil)
