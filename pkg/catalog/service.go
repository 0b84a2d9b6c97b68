package catalog

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// MaxPackageIDLength caps identifiers derived from filenames.
const MaxPackageIDLength = 40

var packageIDDisallowed = regexp.MustCompile(`[^a-z0-9-]`)

// NormalizePackageID lower-cases name and drops anything that is not a
// letter, digit or hyphen.
func NormalizePackageID(name string) string {
	return packageIDDisallowed.ReplaceAllString(strings.ToLower(name), "")
}

type SearchProfilesOptions struct {
	Search *string
	Tags   []string
	Limit  *int
	Offset *int

	includeTotal bool
}

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// NewSession starts an empty unit of work.
func (svc *Service) NewSession() *Session {
	return &Session{db: svc.db, now: svc.now}
}

func (svc *Service) RetrieveProfile(ctx context.Context, id int) (*models.Profile, error) {
	return svc.NewSession().RetrieveProfile(ctx, RetrieveProfileOptions{ID: &id, WithInstallers: true})
}

func (svc *Service) RetrieveInstaller(ctx context.Context, id int) (*models.Installer, error) {
	return svc.NewSession().RetrieveInstaller(ctx, id)
}

func (svc *Service) SearchProfiles(ctx context.Context, opts SearchProfilesOptions) ([]*models.Profile, error) {
	p, _, err := svc.searchProfilesWithTotal(ctx, opts)
	return p, errors.WithStack(err)
}

func (svc *Service) SearchProfilesWithTotal(ctx context.Context, opts SearchProfilesOptions) ([]*models.Profile, int, error) {
	opts.includeTotal = true
	return svc.searchProfilesWithTotal(ctx, opts)
}

func (svc *Service) searchProfilesWithTotal(ctx context.Context, opts SearchProfilesOptions) ([]*models.Profile, int, error) {
	profiles := []*models.Profile{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&profiles).
		Relation("Installers", orderInstallers).
		Order("p.updated_at DESC", "p.id DESC")

	if opts.Search != nil && strings.TrimSpace(*opts.Search) != "" {
		term := "%" + escapeLike(strings.TrimSpace(*opts.Search)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where(`p.name LIKE ? ESCAPE '\'`, term).
				WhereOr(`p.description LIKE ? ESCAPE '\'`, term).
				WhereOr(`p.package_id LIKE ? ESCAPE '\'`, term)
		})
	}
	// Every requested tag has to be present.
	for _, tag := range opts.Tags {
		for _, t := range models.SplitTags(tag) {
			q = q.Where(`(' ' || lower(replace(p.tags, ',', ' ')) || ' ') LIKE ? ESCAPE '\'`, "% "+escapeLike(t)+" %")
		}
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return profiles, total, nil
}

// ListTags returns every distinct tag used by any profile, sorted.
func (svc *Service) ListTags(ctx context.Context) ([]string, error) {
	var rows []string
	err := svc.db.
		NewSelect().
		Model((*models.Profile)(nil)).
		ColumnExpr("p.tags").
		Distinct().
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	seen := map[string]struct{}{}
	tags := []string{}
	for _, row := range rows {
		for _, t := range models.SplitTags(row) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// UpdateProfile persists the given columns of profile.
func (svc *Service) UpdateProfile(ctx context.Context, profile *models.Profile, columns ...string) error {
	sess := svc.NewSession()
	sess.UpdateProfile(profile, columns...)
	return sess.Commit(ctx)
}

// UpdateInstaller persists the given columns of installer and bumps its
// profile's updated_at so it sorts as recently changed.
func (svc *Service) UpdateInstaller(ctx context.Context, installer *models.Installer, columns ...string) error {
	sess := svc.NewSession()
	sess.UpdateInstaller(installer, columns...)
	sess.UpdateProfile(&models.Profile{ID: installer.ProfileID}, "updated_at")
	return sess.Commit(ctx)
}

// SplitInstaller moves an installer out of its profile into a new profile
// named after the file. The new profile is not bound to any folder, so a later
// scan will not fold it back in.
func (svc *Service) SplitInstaller(ctx context.Context, installerID int) (*models.Profile, error) {
	sess := svc.NewSession()

	installer, err := sess.RetrieveInstaller(ctx, installerID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(installer.Filename, filepath.Ext(installer.Filename))
	packageID := NormalizePackageID(name)
	if len(packageID) > MaxPackageIDLength {
		packageID = packageID[:MaxPackageIDLength]
	}

	oldName := ""
	oldTags := models.DefaultProfileTags
	if installer.Profile != nil {
		oldName = installer.Profile.Name
		if installer.Profile.Tags != "" {
			oldTags = installer.Profile.Tags
		}
	}
	description := "Split from '" + oldName + "'."

	profile := &models.Profile{
		Name:        name,
		Description: &description,
		Tags:        strings.TrimSpace("split " + oldTags),
	}
	if packageID != "" {
		profile.PackageID = &packageID
	}
	sess.AddProfile(profile)

	installer.Profile = profile
	installer.IsExtra = false
	sess.UpdateInstaller(installer, "profile_id", "is_extra")

	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	profile.Installers = []*models.Installer{installer}
	return profile, nil
}
