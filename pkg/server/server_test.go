package server

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestEcho(t *testing.T) (*echo.Echo, *scanstate.State) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.NewForTest()
	cfg.DataDir = t.TempDir()
	cfg.DefaultScanPath = "/srv/soft"

	imageService, err := images.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	state := scanstate.New()
	e, err := newEcho(cfg, db, Dependencies{
		ScanState: state,
		Enricher:  enrich.New(nil, nil, imageService),
		Images:    imageService,
		Packager:  packager.New(cfg),
	})
	require.NoError(t, err)
	return e, state
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestRoutes(t *testing.T) {
	e, state := newTestEcho(t)

	rr := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(e, http.MethodGet, "/profiles", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"profiles":[],"total":0}`, rr.Body.String())

	rr = do(e, http.MethodGet, "/profiles/tags", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(e, http.MethodGet, "/jobs", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(e, http.MethodGet, "/config", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"default_scan_path":"/srv/soft"`)

	rr = do(e, http.MethodPost, "/scans", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, state.IsScanning())

	rr = do(e, http.MethodPost, "/scans", `{"path":"/srv/other"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(e, http.MethodGet, "/scans/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"is_scanning":true`)
}

func TestRoutes_NotFound(t *testing.T) {
	e, _ := newTestEcho(t)

	for _, target := range []string{"/nope", "/profiles/12", "/installers/3", "/jobs/4", "/images/packages/x/y.png"} {
		rr := do(e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
		assert.Contains(t, rr.Body.String(), `"code":"not_found"`, target)
	}
}
