package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
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

func createProfile(t *testing.T, svc *Service, p *models.Profile, filepaths ...string) *models.Profile {
	t.Helper()
	sess := svc.NewSession()
	sess.AddProfile(p)
	for _, fp := range filepaths {
		sess.AddInstaller(&models.Installer{
			Profile:   p,
			Filename:  filepath.Base(fp),
			Filepath:  fp,
			Extension: strings.TrimPrefix(filepath.Ext(fp), "."),
		})
	}
	require.NoError(t, sess.Commit(context.Background()))
	return p
}

func countRows(t *testing.T, db *bun.DB, model interface{}) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}
