package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const jpegQuality = 85

// Prepare downsizes frames wider than maxWidth, keeping the aspect ratio,
// and re-encodes them as JPEG. Frames that already fit, or that cannot be
// decoded, are returned unchanged; a decode failure is also reported so the
// caller can log it.
func Prepare(frame []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return frame, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return frame, fmt.Errorf("failed to decode frame header: %w", err)
	}
	if cfg.Width <= maxWidth {
		return frame, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return frame, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	newHeight := max(1, int(float64(bounds.Dy())*float64(maxWidth)/float64(bounds.Dx())))

	resized := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return frame, fmt.Errorf("failed to encode resized frame: %w", err)
	}
	return buf.Bytes(), nil
}
