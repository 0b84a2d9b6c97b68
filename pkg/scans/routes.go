package scans

import (
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers scan routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, cfg *config.Config, state *scanstate.State) {
	h := &handler{
		config: cfg,
		state:  state,
	}

	g.POST("", h.start)
	g.GET("/status", h.status)
	g.POST("/deduplicate", h.deduplicate)
}
