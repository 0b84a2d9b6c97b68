package packager

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/pkg/errors"
)

const (
	nuspecNamespace = "http://schemas.microsoft.com/packaging/2015/06/nuspec.xsd"
	defaultIconURL  = "https://community.chocolatey.org/content/images/package-default-icon.png"
)

// packageSpec is everything about a profile that ends up in the nuspec.
type packageSpec struct {
	ID          string
	Version     string
	Title       string
	Authors     string
	Description string
	Tags        string
	IconURL     string
	ProjectURL  string
}

func newPackageSpec(profile *models.Profile, installer *models.Installer) packageSpec {
	spec := packageSpec{
		ID:          PackageID(profile),
		Version:     packageVersion(installer.Version),
		Title:       profile.Name,
		Authors:     profile.Name + " Authors",
		Description: profile.Name,
		Tags:        strings.Join(profile.TagList(), " "),
		IconURL:     defaultIconURL,
	}
	if profile.Description != nil && strings.TrimSpace(*profile.Description) != "" {
		spec.Description = *profile.Description
	}
	if profile.IconURL != nil && isAbsoluteURL(*profile.IconURL) {
		spec.IconURL = *profile.IconURL
	}
	if profile.Homepage != nil && isAbsoluteURL(*profile.Homepage) {
		spec.ProjectURL = *profile.Homepage
	}
	return spec
}

// Locally stored icons are served relative to this server and mean nothing
// to a package feed.
func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

type nuspecPackage struct {
	XMLName  xml.Name       `xml:"package"`
	Xmlns    string         `xml:"xmlns,attr"`
	Metadata nuspecMetadata `xml:"metadata"`
	Files    []nuspecFile   `xml:"files>file"`
}

type nuspecMetadata struct {
	ID          string `xml:"id"`
	Version     string `xml:"version"`
	Title       string `xml:"title"`
	Authors     string `xml:"authors"`
	ProjectURL  string `xml:"projectUrl,omitempty"`
	IconURL     string `xml:"iconUrl"`
	Description string `xml:"description"`
	Tags        string `xml:"tags,omitempty"`
}

type nuspecFile struct {
	Src    string `xml:"src,attr"`
	Target string `xml:"target,attr"`
}

func renderNuspec(spec packageSpec) ([]byte, error) {
	doc := nuspecPackage{
		Xmlns: nuspecNamespace,
		Metadata: nuspecMetadata{
			ID:          spec.ID,
			Version:     spec.Version,
			Title:       spec.Title,
			Authors:     spec.Authors,
			ProjectURL:  spec.ProjectURL,
			IconURL:     spec.IconURL,
			Description: spec.Description,
			Tags:        spec.Tags,
		},
		Files: []nuspecFile{{Src: `tools\**`, Target: "tools"}},
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

var installScript = template.Must(template.New("chocolateyInstall.ps1").
	Funcs(template.FuncMap{"ps": psQuote}).
	Parse(`$ErrorActionPreference = 'Stop'
$toolsDir = "$(Split-Path -parent $MyInvocation.MyCommand.Definition)"
$fileLocation = Join-Path $toolsDir {{ps .Filename}}

$packageArgs = @{
  packageName    = $env:ChocolateyPackageName
  fileType       = {{ps .FileType}}
  file           = $fileLocation
  silentArgs     = {{ps .SilentArgs}}
  validExitCodes = @(0, 3010, 1641)
}

Install-ChocolateyInstallPackage @packageArgs
`))

type installScriptData struct {
	Filename   string
	FileType   string
	SilentArgs string
}

func renderInstallScript(installer *models.Installer) ([]byte, error) {
	data := installScriptData{
		Filename:   installer.Filename,
		FileType:   "exe",
		SilentArgs: "/VERYSILENT /SUPPRESSMSGBOXES /NORESTART /SP-",
	}
	if strings.EqualFold(installer.Extension, "msi") {
		data.FileType = "msi"
		data.SilentArgs = "/quiet /norestart"
	}

	var buf bytes.Buffer
	if err := installScript.Execute(&buf, data); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// psQuote renders s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
