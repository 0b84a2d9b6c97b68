package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// PublicConfig is the subset of the config that is safe to expose over the
// API. Credentials never leave the process.
type PublicConfig struct {
	DefaultScanPath         string `json:"default_scan_path"`
	ImagesBackend           string `json:"images_backend"`
	TranslateTargetLanguage string `json:"translate_target_language"`
	ServerPort              int    `json:"server_port"`
}

type handler struct {
	config *Config
}

func (h *handler) retrieve(c echo.Context) error {
	resp := PublicConfig{
		DefaultScanPath:         h.config.DefaultScanPath,
		ImagesBackend:           h.config.ImagesBackend,
		TranslateTargetLanguage: h.config.TranslateTargetLanguage,
		ServerPort:              h.config.ServerPort,
	}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
