package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxbatch/internal/discover"
	"gopkg.in/yaml.v3"
)

// Built-in defaults for the three settings a run cannot do without.
const (
	DefaultInputDir  = "videos"
	DefaultOutputDir = "transcripts"
	DefaultModel     = "base"
)

type Config struct {
	InputDir             string  `yaml:"input_dir"`
	OutputDir            string  `yaml:"output_dir"`
	Model                string  `yaml:"model"`
	ModelDir             string  `yaml:"model_dir"`
	Language             string  `yaml:"language"`
	Extension            string  `yaml:"extension"`
	FFmpegPath           string  `yaml:"ffmpeg_path"`
	AutoDownload         bool    `yaml:"auto_download"`
	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`
	LogFile              string  `yaml:"log_file"`
}

func Default() Config {
	return Config{
		InputDir:             DefaultInputDir,
		OutputDir:            DefaultOutputDir,
		Model:                DefaultModel,
		Language:             "auto",
		Extension:            discover.DefaultExt,
		FFmpegPath:           "ffmpeg",
		AutoDownload:         true,
		SilenceThresholdDBFS: -65,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOptional is Load for the default config location: a missing file
// yields the defaults.
func LoadOptional(path string) (Config, bool, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), false, nil
	}

	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Validate checks a batch configuration: Normalize plus an existing input directory.
func (c *Config) Validate() error {
	c.InputDir = strings.TrimSpace(c.InputDir)
	if c.InputDir == "" {
		return errors.New("input_dir is required")
	}
	if err := c.Normalize(); err != nil {
		return err
	}

	info, err := os.Stat(c.InputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input directory %s does not exist", c.InputDir)
		}
		return fmt.Errorf("stat input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", c.InputDir)
	}
	return nil
}

// Normalize fills blank values with defaults and requires an output
// directory. It does not touch the input tree, so single-file commands use it.
func (c *Config) Normalize() error {
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}

	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = "auto"
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		c.FFmpegPath = "ffmpeg"
	}
	c.Extension = discover.NormalizeExt(c.Extension)
	return nil
}
