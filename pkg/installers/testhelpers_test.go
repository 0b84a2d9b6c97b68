package installers

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/appshelf/appshelf/pkg/binder"
	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// fakeChoco writes an empty package named after the nuspec it was given.
const fakeChoco = `#!/bin/sh
set -e
[ "$1" = "pack" ] || exit 2
id=$(basename "$2" .nuspec)
v=$(sed -n 's:.*<version>\(.*\)</version>.*:\1:p' "$2")
echo nupkg > "$4/$id.$v.nupkg"
`

const failingChoco = `#!/bin/sh
echo "The nuspec is invalid" >&2
exit 1
`

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
	handler *handler
	root    string
}

func newTestContext(t *testing.T, script string) *testContext {
	t.Helper()

	dir := t.TempDir()
	cfg := config.NewForTest()
	cfg.DataDir = dir
	if script != "" {
		if runtime.GOOS == "windows" {
			t.Skip("fake choco is a shell script")
		}
		cfg.ChocoPath = filepath.Join(dir, "choco")
		require.NoError(t, os.WriteFile(cfg.ChocoPath, []byte(script), 0755))
	}

	return &testContext{
		handler: &handler{
			catalogService: catalog.NewService(newTestDB(t)),
			builder:        packager.New(cfg),
		},
		root: filepath.Join(dir, "soft"),
	}
}

// seed creates a profile owning one installer per relative path. Files are
// written to disk with the path as their content.
func (tc *testContext) seed(t *testing.T, p *models.Profile, rels ...string) []*models.Installer {
	t.Helper()

	sess := tc.handler.catalogService.NewSession()
	sess.AddProfile(p)
	installers := []*models.Installer{}
	for _, rel := range rels {
		path := filepath.Join(tc.root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(rel), 0644))

		installer := &models.Installer{
			Profile:       p,
			Filename:      filepath.Base(path),
			Filepath:      path,
			FilesizeBytes: int64(len(rel)),
			Extension:     strings.TrimPrefix(filepath.Ext(path), "."),
		}
		sess.AddInstaller(installer)
		installers = append(installers, installer)
	}
	require.NoError(t, sess.Commit(context.Background()))
	return installers
}

func newInstallersTestContext(t *testing.T, method, target, body string, id int) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(id))
	return c, rr
}
