package metadata

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
)

type odataFeed struct {
	Entries []struct {
		Properties odataPackage `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices/metadata properties"`
	} `xml:"http://www.w3.org/2005/Atom entry"`
}

type odataPackage struct {
	ID          string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices Id"`
	Title       string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices Title"`
	Version     string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices Version"`
	Description string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices Description"`
	IconURL     string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices IconUrl"`
	ProjectURL  string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices ProjectUrl"`
	LicenseURL  string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices LicenseUrl"`
	Tags        string `xml:"http://schemas.microsoft.com/ado/2007/08/dataservices Tags"`
}

// searchChocolatey queries the community repository's OData feed and maps the
// first entry.
func (a *Aggregator) searchChocolatey(ctx context.Context, name string) (*Result, error) {
	// The feed wants OData string literals, quotes included.
	q := "searchTerm='" + url.QueryEscape(name) + "'&targetFramework=''&includePrerelease=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.chocolateyURL+"/api/v2/Search()?"+q, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	body, status, err := a.do(req)
	if err != nil || status != http.StatusOK {
		return nil, err
	}

	feed := odataFeed{}
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, "decode chocolatey feed")
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}

	p := feed.Entries[0].Properties
	result := &Result{
		ID:          p.ID,
		Title:       firstNonEmpty(p.Title, name),
		Version:     firstNonEmpty(p.Version, models.DefaultInstallerVersion),
		Description: p.Description,
		IconURL:     p.IconURL,
		Homepage:    p.ProjectURL,
		LicenseURL:  p.LicenseURL,
		Tags:        p.Tags,
	}
	return result, nil
}
