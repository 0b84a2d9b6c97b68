package scans

import (
	"net/http"
	"path/filepath"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	config *config.Config
	state  *scanstate.State
}

func (h *handler) start(c echo.Context) error {
	// An empty body scans the configured default folder.
	c.Set("disallow_empty_body", false)

	params := StartScanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	root := params.Path
	if root == "" {
		root = h.config.DefaultScanPath
	}
	if root == "" {
		return errcodes.ValidationError("path is required when no default scan path is configured.")
	}
	root = filepath.Clean(root)

	if _, err := h.state.RequestScan(root); err != nil {
		if errors.Is(err, scanstate.ErrAlreadyRunning) {
			return errcodes.Conflict("A scan is already running.")
		}
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, StartScanResponse{Accepted: true, Path: root}))
}

func (h *handler) status(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, h.state.Snapshot()))
}

// deduplicate runs a merge pass and waits for it so the caller gets the
// number of profiles that were folded away.
func (h *handler) deduplicate(c echo.Context) error {
	ctx := c.Request().Context()

	ticket, err := h.state.RequestDeduplication()
	if err != nil {
		if errors.Is(err, scanstate.ErrAlreadyRunning) {
			return errcodes.Conflict("A scan is already running.")
		}
		return errors.WithStack(err)
	}

	res, err := ticket.Wait(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if res.Err != nil {
		return errors.WithStack(res.Err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, DeduplicateResponse{MergedCount: res.Merged}))
}
