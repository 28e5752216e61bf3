package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesBuiltInSettings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, "videos", cfg.InputDir)
	require.Equal(t, "transcripts", cfg.OutputDir)
	require.Equal(t, "base", cfg.Model)
	require.Equal(t, ".mp4", cfg.Extension)
	require.True(t, cfg.AutoDownload)
	require.False(t, cfg.SilenceGate)
	require.Equal(t, -65.0, cfg.SilenceThresholdDBFS)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input_dir: /media/lectures\nmodel: tiny\nauto_download: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/media/lectures", cfg.InputDir)
	require.Equal(t, "tiny", cfg.Model)
	require.False(t, cfg.AutoDownload)
	require.Equal(t, "transcripts", cfg.OutputDir, "unset keys keep defaults")
	require.Equal(t, "auto", cfg.Language)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [tiny\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestLoadOptionalMissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg, found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, Default(), cfg)

	cfg, found, err = LoadOptional("")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	existing := t.TempDir()
	file := filepath.Join(existing, "a.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "valid", mutate: func(c *Config) { c.InputDir = existing }},
		{name: "missing input", mutate: func(c *Config) { c.InputDir = " " }, errContains: "input_dir is required"},
		{name: "missing output", mutate: func(c *Config) { c.InputDir = existing; c.OutputDir = "" }, errContains: "output_dir is required"},
		{name: "input does not exist", mutate: func(c *Config) { c.InputDir = filepath.Join(existing, "nope") }, errContains: "does not exist"},
		{name: "input is a file", mutate: func(c *Config) { c.InputDir = file }, errContains: "not a directory"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateNormalisesValues(t *testing.T) {
	t.Parallel()

	cfg := Config{InputDir: t.TempDir(), OutputDir: "out", Extension: "MKV"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, ".mkv", cfg.Extension)
	require.Equal(t, "base", cfg.Model)
	require.Equal(t, "auto", cfg.Language)
	require.Equal(t, "ffmpeg", cfg.FFmpegPath)
}

func TestNormalizeFillsDefaultsWithoutInputTree(t *testing.T) {
	t.Parallel()

	cfg := Config{InputDir: "/no/such/videos", OutputDir: " out ", Model: " ", Language: "", FFmpegPath: ""}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, "out", cfg.OutputDir)
	require.Equal(t, "base", cfg.Model)
	require.Equal(t, "auto", cfg.Language)
	require.Equal(t, "ffmpeg", cfg.FFmpegPath)
	require.Equal(t, ".mp4", cfg.Extension)

	blank := Config{}
	require.ErrorContains(t, blank.Normalize(), "output_dir is required")
}
