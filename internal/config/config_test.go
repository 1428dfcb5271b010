package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"deckharvest/internal/fetch"
	"deckharvest/internal/pagecache"
	"deckharvest/internal/speakerdeck"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSearchWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadSearchFindsParent(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "talks", "2024")
	require.NoError(t, os.MkdirAll(nested, 0700))
	writeFile(t, filepath.Join(root, FileName), `{ link_resolution: "concat" }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, speakerdeck.LinkResolutionConcat, cfg.Resolution())
	require.Equal(t, Default().Http, cfg.Http)
}

func TestLoadZeroValuesOverrideDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{
		http: { requests_per_second: 0, user_agent: "" },
		cache: { dir: "" },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, float64(0), cfg.FetchOptions().RequestsPerSecond)
	require.Equal(t, "", cfg.FetchOptions().UserAgent)
	require.Equal(t, 30*time.Second, cfg.FetchOptions().Timeout)
	require.Equal(t, "", cfg.Cache.Dir)
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Default().Apply(Overrides{
		Cache: CacheConfig{Backend: string(pagecache.BackendSQLite)},
	})
	require.NoError(t, err)
	require.Equal(t, pagecache.BackendSQLite, cfg.CacheBackend())
	require.Equal(t, pagecache.DefaultDir(), cfg.Cache.Dir)

	cfg, err = Default().Apply(Overrides{Cache: CacheConfig{Dir: "/srv/cache"}})
	require.NoError(t, err)
	require.Equal(t, pagecache.BackendFile, cfg.CacheBackend())
	require.Equal(t, "/srv/cache", cfg.Cache.Dir)

	_, err = Default().Apply(Overrides{Cache: CacheConfig{Backend: "redis"}})
	require.Error(t, err)
}

func TestLoadPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `{
		// only what differs from the defaults
		link_resolution: "concat",
		http: {
			requests_per_second: 0.5,
			cloudflare_bypass: true,
		},
		cache: { backend: "sqlite" },
	}`)
	writeFile(t, filepath.Join(dir, "deckharvest.local.json5"), `{
		cache: { dir: "/var/cache/deckharvest" },
		output: { database: { file: "harvest.db" } },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, speakerdeck.DefaultBaseUrl, cfg.BaseUrl)
	require.Equal(t, speakerdeck.LinkResolutionConcat, cfg.Resolution())
	require.Equal(t, pagecache.BackendSQLite, cfg.CacheBackend())
	require.Equal(t, "/var/cache/deckharvest", cfg.Cache.Dir)
	require.Equal(t, "harvest.db", cfg.Output.Database.File)

	require.Equal(t, fetch.Options{
		Timeout:           30 * time.Second,
		UserAgent:         fetch.DefaultUserAgent,
		RequestsPerSecond: 0.5,
		CloudflareBypass:  true,
	}, cfg.FetchOptions())
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: `{ base_url: `},
		{name: "link resolution", content: `{ link_resolution: "join" }`},
		{name: "cache backend", content: `{ cache: { backend: "redis" } }`},
		{name: "timeout", content: `{ http: { timeout_seconds: -1 } }`},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, test.content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, speakerdeck.LinkResolutionReference, cfg.Resolution())
	require.Equal(t, pagecache.BackendFile, cfg.CacheBackend())
}
