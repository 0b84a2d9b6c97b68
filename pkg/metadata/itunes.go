package metadata

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type itunesSearchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		ScreenshotURLs []string `json:"screenshotUrls"`
	} `json:"results"`
}

func (a *Aggregator) itunesScreenshots(ctx context.Context, query string) ([]string, error) {
	params := url.Values{
		"term":   {query},
		"entity": {"macSoftware"},
		"limit":  {"1"},
	}
	if a.locale != "" {
		params.Set("country", a.locale)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.itunesURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	body, status, err := a.do(req)
	if err != nil || status != http.StatusOK {
		return nil, err
	}

	resp := itunesSearchResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode itunes search")
	}
	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		return nil, nil
	}
	return resp.Results[0].ScreenshotURLs, nil
}
