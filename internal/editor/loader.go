package editor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxImageBytes caps background downloads.
	DefaultMaxImageBytes = 25 << 20
	// DefaultMaxImagePixels caps the decoded size of a background.
	DefaultMaxImagePixels = 50_000_000
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageLoader fetches and decodes a background image.
type ImageLoader interface {
	Load(ctx context.Context, imageURL string) (image.Image, error)
}

// LoaderFunc adapts a function to ImageLoader.
type LoaderFunc func(ctx context.Context, imageURL string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, imageURL string) (image.Image, error) {
	return f(ctx, imageURL)
}

// HTTPLoader downloads images over HTTP. Every failure is reported as a
// *DecodeError.
type HTTPLoader struct {
	client    *http.Client
	maxBytes  int64
	maxPixels int64
}

type LoaderOption func(*HTTPLoader)

// WithMaxPixels rejects images whose width x height exceeds n before they
// are decoded.
func WithMaxPixels(n int64) LoaderOption {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxPixels = n
		}
	}
}

func NewHTTPLoader(client *http.Client, maxBytes int64, opts ...LoaderOption) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	l := &HTTPLoader{client: client, maxBytes: maxBytes, maxPixels: DefaultMaxImagePixels}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *HTTPLoader) Load(ctx context.Context, imageURL string) (image.Image, error) {
	fail := func(err error) (image.Image, error) {
		return nil, &DecodeError{URL: imageURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fail(err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return fail(err)
	}
	if int64(len(data)) > l.maxBytes {
		return fail(ErrImageTooLarge)
	}

	kind, err := filetype.Match(data)
	if err != nil || !allowedImageTypes[kind.MIME.Value] {
		return fail(fmt.Errorf("%w: %s", ErrUnsupportedImage, resp.Header.Get("Content-Type")))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > l.maxPixels {
		return fail(fmt.Errorf("%w: %dx%d", ErrImageDimensions, cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}
	return img, nil
}

// DecodeImageParam recovers the background URL from the editor's image
// parameter. The value arrives percent-encoded a second time, so it is
// unescaped once more; '+' is kept as-is.
func DecodeImageParam(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrNoImage
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	return validateImageURL(decoded)
}

func validateImageURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrNoImage
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidImageURL, s)
	}
	return u.String(), nil
}
