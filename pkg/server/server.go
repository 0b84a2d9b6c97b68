package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/appshelf/appshelf/pkg/binder"
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/installers"
	"github.com/appshelf/appshelf/pkg/joblogs"
	"github.com/appshelf/appshelf/pkg/jobs"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/appshelf/appshelf/pkg/profiles"
	"github.com/appshelf/appshelf/pkg/scans"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// Dependencies are the long-lived collaborators built once in main and
// shared by the handlers.
type Dependencies struct {
	ScanState *scanstate.State
	Enricher  *enrich.Enricher
	Images    *images.Service
	Packager  *packager.Builder
}

func New(cfg *config.Config, db *bun.DB, deps Dependencies) (*http.Server, error) {
	e, err := newEcho(cfg, db, deps)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, deps Dependencies) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	config.RegisterRoutes(e, cfg)
	images.RegisterRoutes(e, deps.Images)

	scans.RegisterRoutesWithGroup(e.Group("/scans"), cfg, deps.ScanState)
	profiles.RegisterRoutesWithGroup(e.Group("/profiles"), db, deps.Enricher, deps.Images)
	installers.RegisterRoutesWithGroup(e.Group("/installers"), db, deps.Packager)

	jobsGroup := e.Group("/jobs")
	jobs.RegisterRoutesWithGroup(jobsGroup, db)
	joblogs.RegisterRoutes(jobsGroup, db)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
