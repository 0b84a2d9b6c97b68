package profiles

import (
	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers profile routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, enricher *enrich.Enricher, imageService *images.Service) {
	h := &handler{
		catalogService: catalog.NewService(db),
		enricher:       enricher,
		imageService:   imageService,
	}

	g.GET("", h.list)
	g.GET("/tags", h.tags)
	g.GET("/:id", h.retrieve)
	g.POST("/:id", h.update)
	g.POST("/:id/sync", h.syncMetadata)
	g.POST("/:id/icon", h.uploadIcon)
	g.POST("/:id/screenshots", h.addScreenshots)
	g.DELETE("/:id/screenshots", h.deleteScreenshot)
}
