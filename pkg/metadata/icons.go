package metadata

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// fallbackIcon tries the dashboard-icons collection by package id, then the
// favicon of the homepage's host.
func (a *Aggregator) fallbackIcon(ctx context.Context, result *Result) string {
	if result.ID != "" {
		candidate := a.dashboardIconsURL + "/" + url.PathEscape(strings.ToLower(result.ID)) + ".png"
		if a.exists(ctx, candidate) {
			return candidate
		}
	}
	if result.Homepage != "" {
		u, err := url.Parse(result.Homepage)
		if err == nil && u.IsAbs() && u.Hostname() != "" {
			return a.faviconURL + "?" + url.Values{"domain": {u.Hostname()}, "sz": {"128"}}.Encode()
		}
	}
	return ""
}

func (a *Aggregator) exists(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	_, status, err := a.do(req)
	return err == nil && status >= 200 && status < 300
}
