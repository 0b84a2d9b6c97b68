package installers

import (
	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers installer routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, builder *packager.Builder) {
	h := &handler{
		catalogService: catalog.NewService(db),
		builder:        builder,
	}

	g.GET("/:id", h.retrieve)
	g.POST("/:id", h.update)
	g.POST("/:id/split", h.split)
	g.GET("/:id/download", h.download)
	g.POST("/:id/package", h.buildPackage)
}
