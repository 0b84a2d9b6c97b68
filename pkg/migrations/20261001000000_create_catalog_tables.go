package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE profiles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				folder_name TEXT,
				package_id TEXT,
				description TEXT,
				homepage TEXT,
				license_url TEXT,
				icon_url TEXT,
				tags TEXT NOT NULL DEFAULT 'installer',
				screenshots TEXT NOT NULL DEFAULT '[]'
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_profiles_folder_name ON profiles(folder_name COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_profiles_name ON profiles(name COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_profiles_package_id ON profiles(package_id COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE installers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
				filename TEXT NOT NULL,
				filepath TEXT NOT NULL,
				filesize_bytes INTEGER NOT NULL DEFAULT 0,
				version TEXT NOT NULL DEFAULT '1.0.0',
				extension TEXT NOT NULL,
				comment TEXT,
				is_extra BOOLEAN NOT NULL DEFAULT FALSE
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Paths are compared case-insensitively everywhere, so the unique
		// index is too.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_installers_filepath ON installers(filepath COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_installers_profile_id ON installers(profile_id)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS installers`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DROP TABLE IF EXISTS profiles`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
