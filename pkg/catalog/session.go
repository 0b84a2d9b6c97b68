package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

type change struct {
	kind      changeKind
	profile   *models.Profile
	installer *models.Installer
	columns   []string
}

// Session is a unit of work over the catalog. Reads go straight to the
// database; writes are queued and applied, in the order they were made, in a
// single transaction by Commit.
type Session struct {
	db      *bun.DB
	now     func() time.Time
	pending []change
}

type RetrieveProfileOptions struct {
	ID             *int
	FolderName     *string
	Name           *string
	WithInstallers bool
}

type ListProfilesOptions struct {
	WithPackageID  bool
	OrphanedOnly   bool
	WithInstallers bool
}

type ListInstallersOptions struct {
	PathPrefix *string
}

func (s *Session) RetrieveProfile(ctx context.Context, opts RetrieveProfileOptions) (*models.Profile, error) {
	profile := &models.Profile{}

	q := s.db.
		NewSelect().
		Model(profile).
		Order("p.id ASC").
		Limit(1)

	if opts.ID != nil {
		q = q.Where("p.id = ?", *opts.ID)
	}
	if opts.FolderName != nil {
		q = q.Where("p.folder_name = ? COLLATE NOCASE", *opts.FolderName)
	}
	if opts.Name != nil {
		q = q.Where("p.name = ? COLLATE NOCASE", *opts.Name)
	}
	if opts.WithInstallers {
		q = q.Relation("Installers", orderInstallers)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Profile")
		}
		return nil, errors.WithStack(err)
	}

	return profile, nil
}

func (s *Session) ListProfiles(ctx context.Context, opts ListProfilesOptions) ([]*models.Profile, error) {
	profiles := []*models.Profile{}

	q := s.db.
		NewSelect().
		Model(&profiles).
		Order("p.id ASC")

	if opts.WithPackageID {
		q = q.Where("p.package_id IS NOT NULL AND trim(p.package_id) != ''")
	}
	if opts.OrphanedOnly {
		q = q.Where("NOT EXISTS (SELECT 1 FROM installers AS oi WHERE oi.profile_id = p.id)")
	}
	if opts.WithInstallers {
		q = q.Relation("Installers", orderInstallers)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return profiles, nil
}

func (s *Session) RetrieveInstaller(ctx context.Context, id int) (*models.Installer, error) {
	installer := &models.Installer{}

	err := s.db.
		NewSelect().
		Model(installer).
		Relation("Profile").
		Where("i.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Installer")
		}
		return nil, errors.WithStack(err)
	}

	return installer, nil
}

func (s *Session) ListInstallers(ctx context.Context, opts ListInstallersOptions) ([]*models.Installer, error) {
	installers := []*models.Installer{}

	q := s.db.
		NewSelect().
		Model(&installers).
		Order("i.id ASC")
	q = applyInstallerFilters(q, opts)

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return installers, nil
}

func (s *Session) CountInstallers(ctx context.Context, opts ListInstallersOptions) (int, error) {
	q := s.db.
		NewSelect().
		Model((*models.Installer)(nil))
	q = applyInstallerFilters(q, opts)

	count, err := q.Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

func applyInstallerFilters(q *bun.SelectQuery, opts ListInstallersOptions) *bun.SelectQuery {
	if opts.PathPrefix != nil {
		// LIKE is case-insensitive in SQLite, matching how paths are compared
		// everywhere else.
		q = q.Where(`i.filepath LIKE ? ESCAPE '\'`, escapeLike(dirPrefix(*opts.PathPrefix))+"%")
	}
	return q
}

func orderInstallers(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("i.id ASC")
}

// dirPrefix turns a directory into a prefix that only matches paths inside it,
// so /srv/soft does not match /srv/software.
func dirPrefix(dir string) string {
	sep := string(filepath.Separator)
	return strings.TrimRight(filepath.Clean(dir), sep) + sep
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Session) AddProfile(profile *models.Profile) {
	s.pending = append(s.pending, change{kind: changeInsert, profile: profile})
}

func (s *Session) UpdateProfile(profile *models.Profile, columns ...string) {
	s.pending = append(s.pending, change{kind: changeUpdate, profile: profile, columns: columns})
}

func (s *Session) RemoveProfile(profile *models.Profile) {
	s.pending = append(s.pending, change{kind: changeDelete, profile: profile})
}

// AddInstaller queues an insert. An installer whose Profile is set takes its
// ProfileID from that profile at commit time, so it can point at a profile
// added earlier in the same session.
func (s *Session) AddInstaller(installer *models.Installer) {
	s.pending = append(s.pending, change{kind: changeInsert, installer: installer})
}

func (s *Session) UpdateInstaller(installer *models.Installer, columns ...string) {
	s.pending = append(s.pending, change{kind: changeUpdate, installer: installer, columns: columns})
}

func (s *Session) RemoveInstaller(installer *models.Installer) {
	s.pending = append(s.pending, change{kind: changeDelete, installer: installer})
}

// Pending returns the number of queued changes.
func (s *Session) Pending() int {
	return len(s.pending)
}

// Discard drops every queued change.
func (s *Session) Discard() {
	s.pending = nil
}

// Commit applies the queued changes in one transaction. The queue is cleared
// whether or not the transaction succeeds.
func (s *Session) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	pending := s.pending
	s.pending = nil

	now := s.now()
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, c := range pending {
			var err error
			if c.profile != nil {
				err = applyProfileChange(ctx, tx, c, now)
			} else {
				err = applyInstallerChange(ctx, tx, c, now)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func applyProfileChange(ctx context.Context, tx bun.Tx, c change, now time.Time) error {
	p := c.profile
	var err error
	switch c.kind {
	case changeInsert:
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		if p.Tags == "" {
			p.Tags = models.DefaultProfileTags
		}
		_, err = tx.NewInsert().Model(p).Returning("*").Exec(ctx)
	case changeUpdate:
		if len(c.columns) == 0 {
			return nil
		}
		p.UpdatedAt = now
		_, err = tx.NewUpdate().Model(p).Column(withUpdatedAt(c.columns)...).WherePK().Exec(ctx)
	case changeDelete:
		_, err = tx.NewDelete().Model(p).WherePK().Exec(ctx)
	}
	return errors.Wrapf(err, "profile %q", p.Name)
}

func applyInstallerChange(ctx context.Context, tx bun.Tx, c change, now time.Time) error {
	i := c.installer
	if i.Profile != nil && i.Profile.ID != 0 && (i.ProfileID == 0 || c.kind == changeUpdate) {
		i.ProfileID = i.Profile.ID
	}
	var err error
	switch c.kind {
	case changeInsert:
		if i.CreatedAt.IsZero() {
			i.CreatedAt = now
		}
		i.UpdatedAt = now
		if i.Version == "" {
			i.Version = models.DefaultInstallerVersion
		}
		_, err = tx.NewInsert().Model(i).Returning("*").Exec(ctx)
	case changeUpdate:
		if len(c.columns) == 0 {
			return nil
		}
		i.UpdatedAt = now
		_, err = tx.NewUpdate().Model(i).Column(withUpdatedAt(c.columns)...).WherePK().Exec(ctx)
	case changeDelete:
		_, err = tx.NewDelete().Model(i).WherePK().Exec(ctx)
	}
	return errors.Wrapf(err, "installer %q", i.Filepath)
}

func withUpdatedAt(columns []string) []string {
	out := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if c != "updated_at" {
			out = append(out, c)
		}
	}
	return append(out, "updated_at")
}
