package images

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, service *Service) {
	h := &handler{service: service}

	e.GET(PublicPrefix+"/*", h.serve)
}
