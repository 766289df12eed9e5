package render

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// jpegQuality maps (0, 1] onto the encoder's 1..100 scale. Out of range
// values use full quality.
func jpegQuality(q float64) int {
	if q <= 0 || q > 1 || math.IsNaN(q) {
		return 100
	}
	return max(1, int(math.Round(q*100)))
}

func encode(w io.Writer, img image.Image, format Format, quality float64) error {
	switch format {
	case FormatPNG, "":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return nil
	case FormatJPEG:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
