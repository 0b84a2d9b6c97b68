// Package metadata looks up descriptive data for a piece of software on
// public catalogs: Flathub first, then the Chocolatey community feed, with
// iTunes filling in screenshots and a couple of well-known icon sources as a
// last resort.
package metadata

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type Source string

const (
	SourceAuto       Source = "auto"
	SourceFlathub    Source = "flathub"
	SourceChocolatey Source = "chocolatey"
)

const (
	defaultFlathubURL        = "https://flathub.org"
	defaultChocolateyURL     = "https://community.chocolatey.org"
	defaultITunesURL         = "https://itunes.apple.com"
	defaultDashboardIconsURL = "https://raw.githubusercontent.com/homarr-labs/dashboard-icons/refs/heads/main/png"
	defaultFaviconURL        = "https://www.google.com/s2/favicons"

	maxResponseBytes = 8 << 20
)

// Result is what a lookup found. Empty strings mean the source had nothing.
type Result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	IconURL     string   `json:"icon_url"`
	Homepage    string   `json:"homepage"`
	LicenseURL  string   `json:"license_url"`
	Tags        string   `json:"tags"`
	Screenshots []string `json:"screenshots"`
}

type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	// Locale is passed to Flathub and used as the iTunes store country.
	Locale string

	FlathubURL        string
	ChocolateyURL     string
	ITunesURL         string
	DashboardIconsURL string
	FaviconURL        string
}

type Aggregator struct {
	client            *http.Client
	userAgent         string
	locale            string
	flathubURL        string
	chocolateyURL     string
	itunesURL         string
	dashboardIconsURL string
	faviconURL        string
}

func New(opts Options) *Aggregator {
	a := &Aggregator{
		client:            opts.HTTPClient,
		userAgent:         opts.UserAgent,
		locale:            opts.Locale,
		flathubURL:        firstNonEmpty(opts.FlathubURL, defaultFlathubURL),
		chocolateyURL:     firstNonEmpty(opts.ChocolateyURL, defaultChocolateyURL),
		itunesURL:         firstNonEmpty(opts.ITunesURL, defaultITunesURL),
		dashboardIconsURL: firstNonEmpty(opts.DashboardIconsURL, defaultDashboardIconsURL),
		faviconURL:        firstNonEmpty(opts.FaviconURL, defaultFaviconURL),
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 20 * time.Second}
	}
	if a.userAgent == "" {
		a.userAgent = "Mozilla/5.0"
	}
	return a
}

// Search looks name up on the requested source. SourceAuto tries Flathub and
// falls back to Chocolatey. Failures of individual sources are logged and
// treated as "not found"; a nil result with a nil error means nothing matched.
func (a *Aggregator) Search(ctx context.Context, name string, source Source) (*Result, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"query": name, "source": source})
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	var result *Result
	var err error

	if source == SourceAuto || source == SourceFlathub || source == "" {
		result, err = a.searchFlathub(ctx, name)
		if err != nil {
			log.Err(err).Warn("flathub lookup failed")
		}
	}
	if result == nil && (source == SourceAuto || source == SourceChocolatey || source == "") {
		result, err = a.searchChocolatey(ctx, name)
		if err != nil {
			log.Err(err).Warn("chocolatey lookup failed")
		}
	}
	if result == nil {
		return nil, errors.WithStack(ctx.Err())
	}

	if len(result.Screenshots) == 0 {
		screens, err := a.itunesScreenshots(ctx, name)
		if err != nil {
			log.Err(err).Warn("itunes lookup failed")
		}
		if len(screens) > 0 {
			result.Screenshots = screens
		}
	}
	if result.Screenshots == nil {
		result.Screenshots = []string{}
	}

	if result.IconURL == "" {
		result.IconURL = a.fallbackIcon(ctx, result)
	}

	return result, nil
}

func (a *Aggregator) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, errors.WithStack(err)
	}
	return body, resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
