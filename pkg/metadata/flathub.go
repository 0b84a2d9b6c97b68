package metadata

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/appshelf/appshelf/pkg/htmlutil"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type flathubSearchRequest struct {
	Query       string `json:"query"`
	HitsPerPage int    `json:"hits_per_page"`
}

type flathubSearchResponse struct {
	Hits []struct {
		AppID string `json:"app_id"`
		ID    string `json:"id"`
	} `json:"hits"`
}

type flathubAppDetails struct {
	Name        string `json:"name"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Icons       []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"icons"`
	Screenshots []struct {
		Sizes []struct {
			Src   string `json:"src"`
			Width int    `json:"width"`
		} `json:"sizes"`
	} `json:"screenshots"`
	URLs struct {
		Homepage string `json:"homepage"`
	} `json:"urls"`
}

func (a *Aggregator) searchFlathub(ctx context.Context, query string) (*Result, error) {
	appID, err := a.flathubAppID(ctx, query)
	if err != nil || appID == "" {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.flathubURL+"/api/v2/appstream/"+url.PathEscape(appID)+a.localeQuery(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	body, status, err := a.do(req)
	if err != nil || status != http.StatusOK {
		return nil, err
	}

	details := flathubAppDetails{}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, errors.Wrap(err, "decode flathub appstream")
	}

	description := details.Description
	if description == "" {
		description = details.Summary
	}
	lower := strings.ToLower(query)
	result := &Result{
		ID:          strings.ReplaceAll(lower, " ", ""),
		Title:       details.Name,
		Description: htmlutil.StripTags(description),
		Homepage:    details.URLs.Homepage,
		Tags:        "flathub " + lower,
		IconURL:     details.Icon,
		Screenshots: []string{},
	}

	widest := -1
	for _, icon := range details.Icons {
		if icon.URL != "" && icon.Width > widest {
			widest = icon.Width
			result.IconURL = icon.URL
		}
	}

	for _, shot := range details.Screenshots {
		best, bestWidth := "", -1
		for _, size := range shot.Sizes {
			if size.Src != "" && size.Width > bestWidth {
				best, bestWidth = size.Src, size.Width
			}
		}
		if best != "" {
			result.Screenshots = append(result.Screenshots, best)
		}
	}

	return result, nil
}

func (a *Aggregator) flathubAppID(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(flathubSearchRequest{Query: query, HitsPerPage: 1})
	if err != nil {
		return "", errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.flathubURL+"/api/v2/search"+a.localeQuery(), bytes.NewReader(payload))
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := a.do(req)
	if err != nil || status != http.StatusOK {
		return "", err
	}

	resp := flathubSearchResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode flathub search")
	}
	if len(resp.Hits) == 0 {
		return "", nil
	}
	if resp.Hits[0].AppID != "" {
		return resp.Hits[0].AppID, nil
	}
	return resp.Hits[0].ID, nil
}

func (a *Aggregator) localeQuery() string {
	if a.locale == "" {
		return ""
	}
	return "?" + url.Values{"locale": {a.locale}}.Encode()
}
