package profiles

import (
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const maxUploadBytes = 10 << 20

type handler struct {
	catalogService *catalog.Service
	enricher       *enrich.Enricher
	imageService   *images.Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListProfilesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	profiles, total, err := h.catalogService.SearchProfilesWithTotal(ctx, catalog.SearchProfilesOptions{
		Search: params.Search,
		Tags:   params.Tags,
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Profiles []*models.Profile `json:"profiles"`
		Total    int               `json:"total"`
	}{profiles, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) tags(c echo.Context) error {
	tags, err := h.catalogService.ListTags(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tags []string `json:"tags"`
	}{tags}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	profile, err := h.load(c)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, profile))
}

func (h *handler) update(c echo.Context) error {
	// Bind params.
	params := UpdateProfilePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	profile, err := h.load(c)
	if err != nil {
		return err
	}

	// Keep track of what's been changed.
	columns := []string{}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return errcodes.ValidationError(`"name" can't be blank.`)
		}
		if name != profile.Name {
			profile.Name = name
			columns = append(columns, "name")
		}
	}
	if params.Tags != nil {
		tags := strings.TrimSpace(*params.Tags)
		if tags == "" {
			tags = models.DefaultProfileTags
		}
		if tags != profile.Tags {
			profile.Tags = tags
			columns = append(columns, "tags")
		}
	}
	if params.PackageID != nil {
		id := strings.ToLower(strings.TrimSpace(*params.PackageID))
		if setOptional(&profile.PackageID, id) {
			columns = append(columns, "package_id")
		}
	}
	if params.Description != nil && setOptional(&profile.Description, strings.TrimSpace(*params.Description)) {
		columns = append(columns, "description")
	}
	if params.IconURL != nil && setOptional(&profile.IconURL, strings.TrimSpace(*params.IconURL)) {
		columns = append(columns, "icon_url")
	}
	if params.Homepage != nil && setOptional(&profile.Homepage, strings.TrimSpace(*params.Homepage)) {
		columns = append(columns, "homepage")
	}
	if params.LicenseURL != nil && setOptional(&profile.LicenseURL, strings.TrimSpace(*params.LicenseURL)) {
		columns = append(columns, "license_url")
	}

	return h.saveAndRespond(c, profile, columns)
}

// syncMetadata looks the profile up in the remote catalogs and applies the
// match, exactly like a scan does for a new profile.
func (h *handler) syncMetadata(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	c.Set("disallow_empty_body", false)
	params := SyncMetadataPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	profile, err := h.load(c)
	if err != nil {
		return err
	}

	query := params.Query
	if query == "" {
		query = profile.Name
	}
	source := metadata.Source(params.Source)

	result, err := h.enricher.Lookup(ctx, query, source)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("metadata lookup failed", logger.Data{"query": query, "source": source})
		return errcodes.Unavailable("Metadata search")
	}
	if result == nil {
		return errcodes.NotFound("Metadata")
	}

	columns := h.enricher.Apply(ctx, profile, result, source)
	return h.saveAndRespond(c, profile, columns)
}

// uploadIcon replaces the profile icon. The previous icon is removed when it
// was stored locally.
func (h *handler) uploadIcon(c echo.Context) error {
	ctx := c.Request().Context()

	params := UploadImagesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	fh, ok := params.FormFiles["file"]
	if !ok {
		return errcodes.ValidationError(`"file" is required.`)
	}

	profile, err := h.load(c)
	if err != nil {
		return err
	}

	data, err := readUpload(fh)
	if err != nil {
		return err
	}
	data, err = images.FitIcon(data)
	if err != nil {
		return errcodes.ValidationError("The icon could not be decoded.")
	}

	publicPath, err := h.imageService.SaveUpload(ctx, data, enrich.ImageNamespace(profile), "icon_custom")
	if err != nil {
		return uploadError(err)
	}

	if profile.IconURL != nil && images.IsLocal(*profile.IconURL) {
		if err := h.imageService.Delete(ctx, *profile.IconURL); err != nil {
			logger.FromContext(ctx).Err(err).Warn("failed to delete previous icon", logger.Data{"icon_url": *profile.IconURL})
		}
	}
	profile.IconURL = &publicPath

	return h.saveAndRespond(c, profile, []string{"icon_url"})
}

// addScreenshots appends every uploaded file, in field name order.
func (h *handler) addScreenshots(c echo.Context) error {
	ctx := c.Request().Context()

	params := UploadImagesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if len(params.FormFiles) == 0 {
		return errcodes.ValidationError("At least one file is required.")
	}

	profile, err := h.load(c)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(params.FormFiles))
	for key := range params.FormFiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ns := enrich.ImageNamespace(profile)
	for _, key := range keys {
		data, err := readUpload(params.FormFiles[key])
		if err != nil {
			return err
		}
		publicPath, err := h.imageService.SaveUpload(ctx, data, ns, "screen_custom")
		if err != nil {
			return uploadError(err)
		}
		profile.Screenshots = append(profile.Screenshots, publicPath)
	}

	return h.saveAndRespond(c, profile, []string{"screenshots"})
}

func (h *handler) deleteScreenshot(c echo.Context) error {
	ctx := c.Request().Context()

	params := DeleteScreenshotQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	profile, err := h.load(c)
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(profile.Screenshots))
	for _, shot := range profile.Screenshots {
		if shot != params.URL {
			kept = append(kept, shot)
		}
	}
	if len(kept) == len(profile.Screenshots) {
		return errcodes.NotFound("Screenshot")
	}
	profile.Screenshots = kept

	if err := h.imageService.Delete(ctx, params.URL); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to delete screenshot", logger.Data{"url": params.URL})
	}

	return h.saveAndRespond(c, profile, []string{"screenshots"})
}

func (h *handler) load(c echo.Context) (*models.Profile, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Profile")
	}
	profile, err := h.catalogService.RetrieveProfile(c.Request().Context(), id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return profile, nil
}

// saveAndRespond persists columns and answers with the reloaded profile.
func (h *handler) saveAndRespond(c echo.Context, profile *models.Profile, columns []string) error {
	ctx := c.Request().Context()

	if len(columns) > 0 {
		if err := h.catalogService.UpdateProfile(ctx, profile, columns...); err != nil {
			return errors.WithStack(err)
		}
	}

	// Reload the model.
	profile, err := h.catalogService.RetrieveProfile(ctx, profile.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, profile))
}

// setOptional stores value in dst, or clears dst when value is empty. It
// reports whether anything changed.
func setOptional(dst **string, value string) bool {
	if value == "" {
		if *dst == nil {
			return false
		}
		*dst = nil
		return true
	}
	if *dst != nil && **dst == value {
		return false
	}
	*dst = &value
	return true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, errcodes.ValidationError("The uploaded file is too large.")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) > maxUploadBytes {
		return nil, errcodes.ValidationError("The uploaded file is too large.")
	}
	return data, nil
}

func uploadError(err error) error {
	if errors.Is(err, images.ErrNotAnImage) {
		return errcodes.ValidationError("The uploaded file is not an image.")
	}
	return errors.WithStack(err)
}
