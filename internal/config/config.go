// Package config reads deckharvest.json5.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"deckharvest/internal/fetch"
	"deckharvest/internal/pagecache"
	"deckharvest/internal/speakerdeck"
	"deckharvest/pkg/configutil"

	"dario.cat/mergo"
)

const FileName = "deckharvest.json5"

type HttpConfig struct {
	TimeoutSeconds    int     `json:"timeout_seconds"`
	UserAgent         string  `json:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

type CacheConfig struct {
	// file, sqlite or none
	Backend string `json:"backend"`
	Dir     string `json:"dir"`
}

type DatabaseConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type OutputConfig struct {
	Database DatabaseConfig `json:"database"`
}

type Config struct {
	BaseUrl string `json:"base_url"`
	// reference or concat
	LinkResolution string       `json:"link_resolution"`
	Http           HttpConfig   `json:"http"`
	Cache          CacheConfig  `json:"cache"`
	Output         OutputConfig `json:"output"`
}

func Default() Config {
	return Config{
		BaseUrl:        speakerdeck.DefaultBaseUrl,
		LinkResolution: string(speakerdeck.LinkResolutionReference),
		Http: HttpConfig{
			TimeoutSeconds:    30,
			UserAgent:         fetch.DefaultUserAgent,
			RequestsPerSecond: 2,
		},
		Cache: CacheConfig{
			Backend: string(pagecache.BackendFile),
			Dir:     pagecache.DefaultDir(),
		},
	}
}

// Load decodes the config at path on top of Default(). With an empty path
// deckharvest.json5 is searched for from the working directory upwards and
// not finding one leaves the defaults in place. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		err := configutil.DecodeRecursively(FileName, &cfg)
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		return cfg, cfg.Validate()
	}

	err := configutil.Decode(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Overrides are settings passed on the command line, empty fields are not
// applied.
type Overrides struct {
	Cache CacheConfig
}

// Apply merges the non-empty fields of o onto c.
func (c Config) Apply(o Overrides) (Config, error) {
	err := mergo.Merge(&c.Cache, o.Cache, mergo.WithOverride)
	if err != nil {
		return Config{}, fmt.Errorf("apply overrides: %w", err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	_, err := speakerdeck.ParseLinkResolution(c.LinkResolution)
	if err != nil {
		return err
	}
	_, err = pagecache.ParseBackend(c.Cache.Backend)
	if err != nil {
		return err
	}
	if c.Http.TimeoutSeconds < 0 {
		return fmt.Errorf("negative http timeout %d", c.Http.TimeoutSeconds)
	}
	if c.Http.RequestsPerSecond < 0 {
		return fmt.Errorf("negative request rate %v", c.Http.RequestsPerSecond)
	}
	return nil
}

func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:           time.Duration(c.Http.TimeoutSeconds) * time.Second,
		UserAgent:         c.Http.UserAgent,
		RequestsPerSecond: c.Http.RequestsPerSecond,
		CloudflareBypass:  c.Http.CloudflareBypass,
	}
}

// Resolution assumes the config has been validated.
func (c Config) Resolution() speakerdeck.LinkResolution {
	resolution, _ := speakerdeck.ParseLinkResolution(c.LinkResolution)
	return resolution
}

// CacheBackend assumes the config has been validated.
func (c Config) CacheBackend() pagecache.Backend {
	backend, _ := pagecache.ParseBackend(c.Cache.Backend)
	return backend
}
