package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingCredential is reported when no search API key is configured.
// The server still starts; only the search endpoint is unavailable.
var ErrMissingCredential = errors.New("missing search API credential (UNSPLASH_ACCESS_KEY)")

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	APIURL         string        `envconfig:"UNSPLASH_API_URL" default:"https://api.unsplash.com"`
	AccessKey      string        `envconfig:"UNSPLASH_ACCESS_KEY"`
	PerPage        int           `envconfig:"SEARCH_PER_PAGE" default:"10"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	MaxCanvasWidth int           `envconfig:"MAX_CANVAS_WIDTH" default:"600"`
	MaxImageBytes  int64         `envconfig:"MAX_IMAGE_BYTES" default:"26214400"`
	MaxImagePixels int64         `envconfig:"MAX_IMAGE_PIXELS" default:"50000000"`
	DisplayName    string        `envconfig:"DISPLAY_NAME" default:"Image Caption Editor"`
	DisplayEmail   string        `envconfig:"DISPLAY_EMAIL"`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	// AllowPrivateImageHosts lets the background loader reach loopback and
	// private networks. Meant for local development only.
	AllowPrivateImageHosts bool `envconfig:"ALLOW_PRIVATE_IMAGE_HOSTS" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration problems that degrade the service without
// preventing startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccessKey) == "" {
		return ErrMissingCredential
	}
	return nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns returns the origins without scheme, as websocket.AcceptOptions expects.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		out = append(out, o)
	}
	return out
}

func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
