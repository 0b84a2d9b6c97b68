// Package enrich fills catalog profiles with what a metadata search found:
// descriptive fields, a translated description and local copies of the icon
// and screenshots.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/models"
	"golang.org/x/sync/errgroup"
)

// MaxScreenshots is how many screenshots are kept from a search result.
const MaxScreenshots = 5

// maxConcurrentDownloads bounds screenshot downloads for one profile.
const maxConcurrentDownloads = 5

type Searcher interface {
	Search(ctx context.Context, name string, source metadata.Source) (*metadata.Result, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) string
}

type ImageSaver interface {
	SaveRemote(ctx context.Context, remoteURL, namespace, prefix string) string
}

// Enricher combines the optional collaborators. Any of them may be nil, in
// which case that part of the enrichment is skipped.
type Enricher struct {
	searcher   Searcher
	translator Translator
	images     ImageSaver
}

func New(searcher Searcher, translator Translator, images ImageSaver) *Enricher {
	return &Enricher{searcher: searcher, translator: translator, images: images}
}

// Lookup searches for query. A nil result with a nil error means nothing was
// found or searching is disabled.
func (e *Enricher) Lookup(ctx context.Context, query string, source metadata.Source) (*metadata.Result, error) {
	if e == nil || e.searcher == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return e.searcher.Search(ctx, strings.TrimSpace(query), source)
}

// Apply copies result onto profile and returns the columns it changed.
// Empty fields in result leave the profile untouched. Identifiers from a
// Flathub-only search are not adopted since they are not package ids.
func (e *Enricher) Apply(ctx context.Context, profile *models.Profile, result *metadata.Result, source metadata.Source) []string {
	if result == nil {
		return nil
	}
	columns := []string{}
	set := func(dst **string, value, column string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		v := value
		*dst = &v
		columns = append(columns, column)
	}

	if strings.TrimSpace(result.Title) != "" {
		profile.Name = result.Title
		columns = append(columns, "name")
	}
	if result.ID != "" && source != metadata.SourceFlathub {
		set(&profile.PackageID, strings.ToLower(result.ID), "package_id")
	}
	set(&profile.Homepage, result.Homepage, "homepage")
	set(&profile.LicenseURL, result.LicenseURL, "license_url")
	if strings.TrimSpace(result.Tags) != "" {
		profile.Tags = result.Tags
		columns = append(columns, "tags")
	}
	if strings.TrimSpace(result.Description) != "" {
		set(&profile.Description, e.translate(ctx, result.Description), "description")
	}

	ns := ImageNamespace(profile)
	if result.IconURL != "" {
		set(&profile.IconURL, e.saveImage(ctx, result.IconURL, ns, "icon"), "icon_url")
	}
	if shots := e.saveScreenshots(ctx, result.Screenshots, ns); len(shots) > 0 {
		profile.Screenshots = shots
		columns = append(columns, "screenshots")
	}
	return columns
}

// ImageNamespace is the folder a profile's icon and screenshots are stored
// under.
func ImageNamespace(profile *models.Profile) string {
	if profile.PackageID != nil && *profile.PackageID != "" {
		return *profile.PackageID
	}
	return "unknown"
}

func (e *Enricher) translate(ctx context.Context, text string) string {
	if e.translator == nil {
		return text
	}
	return e.translator.Translate(ctx, text)
}

func (e *Enricher) saveImage(ctx context.Context, url, namespace, prefix string) string {
	if e.images == nil {
		return url
	}
	return e.images.SaveRemote(ctx, url, namespace, prefix)
}

// saveScreenshots keeps at most MaxScreenshots, in their original order.
func (e *Enricher) saveScreenshots(ctx context.Context, urls []string, namespace string) []string {
	if len(urls) > MaxScreenshots {
		urls = urls[:MaxScreenshots]
	}
	if len(urls) == 0 {
		return nil
	}

	saved := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for i, url := range urls {
		g.Go(func() error {
			saved[i] = e.saveImage(gctx, url, namespace, fmt.Sprintf("screen_%d", i))
			return nil
		})
	}
	_ = g.Wait()
	return saved
}

var _ ImageSaver = (*images.Service)(nil)
