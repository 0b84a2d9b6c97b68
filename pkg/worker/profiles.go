package worker

import (
	"context"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// EnsureProfile finds the profile an installer belongs to, first by folder
// binding and then by name, and creates it when neither matches. Existing
// profiles are returned as they are. New profiles are enriched on a best
// effort basis and committed straight away so they have an id.
func (w *Worker) EnsureProfile(ctx context.Context, jl RunLogger, sess *catalog.Session, name, folder string) (*models.Profile, error) {
	if folder != "" {
		p, err := sess.RetrieveProfile(ctx, catalog.RetrieveProfileOptions{FolderName: &folder})
		if err == nil {
			return p, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	p, err := sess.RetrieveProfile(ctx, catalog.RetrieveProfileOptions{Name: &name})
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	jl.Info("new software, fetching metadata", logger.Data{"name": name})

	profile := &models.Profile{Name: name, Tags: models.DefaultProfileTags}
	if folder != "" {
		f := folder
		profile.FolderName = &f
	}
	if id := catalog.NormalizePackageID(name); id != "" {
		profile.PackageID = &id
	}
	w.enrichProfile(ctx, jl, profile)

	// A separate session keeps a failed insert from discarding installers the
	// scan has already queued.
	create := w.catalogService.NewSession()
	create.AddProfile(profile)
	if err := create.Commit(ctx); err != nil {
		return nil, err
	}
	return profile, nil
}

func (w *Worker) enrichProfile(ctx context.Context, jl RunLogger, profile *models.Profile) {
	result, err := w.enricher.Lookup(ctx, profile.Name, metadata.SourceAuto)
	if err != nil {
		jl.Warn("metadata partially skipped", logger.Data{"name": profile.Name, "error": err.Error()})
		return
	}
	if result == nil {
		return
	}
	w.enricher.Apply(ctx, profile, result, metadata.SourceAuto)
}

func isNotFound(err error) bool {
	var e *errcodes.Error
	return errors.As(err, &e) && e.Code == "not_found"
}
