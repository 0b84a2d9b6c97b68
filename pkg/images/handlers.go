package images

import (
	"net/http"

	"github.com/appshelf/appshelf/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	service *Service
}

// serve streams a stored image. Stored names never change content, so
// clients may cache them for a long time.
func (h *handler) serve(c echo.Context) error {
	ctx := c.Request().Context()

	rc, contentType, err := h.service.Open(ctx, PublicPrefix+"/"+c.Param("*"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errcodes.NotFound("Image")
		}
		return errors.WithStack(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=604800")
	return errors.WithStack(c.Stream(http.StatusOK, contentType, rc))
}
