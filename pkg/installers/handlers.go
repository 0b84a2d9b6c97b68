package installers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	catalogService *catalog.Service
	builder        *packager.Builder
}

func (h *handler) retrieve(c echo.Context) error {
	installer, err := h.load(c)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, installer))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := UpdateInstallerPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	installer, err := h.load(c)
	if err != nil {
		return err
	}

	// Keep track of what's been changed.
	columns := []string{}

	if params.Version != nil {
		version := strings.TrimSpace(*params.Version)
		if version == "" {
			version = models.DefaultInstallerVersion
		}
		if version != installer.Version {
			installer.Version = version
			columns = append(columns, "version")
		}
	}
	if params.Comment != nil {
		comment := strings.TrimSpace(*params.Comment)
		switch {
		case comment == "" && installer.Comment != nil:
			installer.Comment = nil
			columns = append(columns, "comment")
		case comment != "" && (installer.Comment == nil || *installer.Comment != comment):
			installer.Comment = &comment
			columns = append(columns, "comment")
		}
	}
	if params.IsExtra != nil && *params.IsExtra != installer.IsExtra {
		installer.IsExtra = *params.IsExtra
		columns = append(columns, "is_extra")
	}

	if len(columns) > 0 {
		if err := h.catalogService.UpdateInstaller(ctx, installer, columns...); err != nil {
			return errors.WithStack(err)
		}
	}

	// Reload the model.
	installer, err = h.catalogService.RetrieveInstaller(ctx, installer.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, installer))
}

// split moves the installer into a profile of its own and returns that
// profile.
func (h *handler) split(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Installer")
	}

	profile, err := h.catalogService.SplitInstaller(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("split installer into new profile", logger.Data{"installer_id": id, "profile_id": profile.ID})

	return errors.WithStack(c.JSON(http.StatusCreated, profile))
}

func (h *handler) download(c echo.Context) error {
	installer, err := h.load(c)
	if err != nil {
		return err
	}

	if _, err := os.Stat(installer.Filepath); err != nil {
		if os.IsNotExist(err) {
			return errcodes.NotFound("Installer file")
		}
		return errors.WithStack(err)
	}

	c.Response().Header().Set("Content-Disposition", attachment(installer.Filename))
	return errors.WithStack(c.File(installer.Filepath))
}

// buildPackage builds (or reuses) the Chocolatey package for the installer
// and sends it back.
func (h *handler) buildPackage(c echo.Context) error {
	ctx := c.Request().Context()

	installer, err := h.load(c)
	if err != nil {
		return err
	}
	if installer.Profile == nil {
		return errcodes.NotFound("Profile")
	}

	pkg, err := h.builder.Build(ctx, installer.Profile, installer)
	if err != nil {
		if errors.Is(err, packager.ErrInstallerMissing) {
			return errcodes.NotFound("Installer file")
		}
		var buildErr *packager.BuildError
		if errors.As(err, &buildErr) {
			logger.FromContext(ctx).Err(err).Warn("package build failed", logger.Data{"exit_code": buildErr.ExitCode})
			return errcodes.BuildFailed(buildErr.Error())
		}
		return errors.WithStack(err)
	}

	c.Response().Header().Set("Content-Disposition", attachment(pkg.Filename))
	return errors.WithStack(c.File(pkg.Path))
}

func (h *handler) load(c echo.Context) (*models.Installer, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Installer")
	}
	installer, err := h.catalogService.RetrieveInstaller(c.Request().Context(), id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return installer, nil
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
