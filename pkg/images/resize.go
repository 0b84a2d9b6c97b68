package images

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// MaxIconSize is the longest edge an uploaded icon is stored at.
const MaxIconSize = 256

// FitIcon scales a raster icon down so neither edge exceeds MaxIconSize and
// re-encodes it as PNG. Images that already fit, and formats the standard
// decoders cannot read (SVG, ICO, WebP), are returned unchanged.
func FitIcon(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	if cfg.Width <= MaxIconSize && cfg.Height <= MaxIconSize {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ratio := float64(MaxIconSize) / float64(max(cfg.Width, cfg.Height))
	width := max(1, int(float64(cfg.Width)*ratio))
	height := max(1, int(float64(cfg.Height)*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}
