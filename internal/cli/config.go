package cli

import (
	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/spf13/cobra"
)

// fileBackedFlags pairs each flag that has a config file key with the copy
// applied when the flag was not set on the command line.
var fileBackedFlags = []struct {
	flag  string
	apply func(dst *config.Config, src config.Config)
}{
	{"input", func(d *config.Config, s config.Config) { d.InputDir = s.InputDir }},
	{"output", func(d *config.Config, s config.Config) { d.OutputDir = s.OutputDir }},
	{"ext", func(d *config.Config, s config.Config) { d.Extension = s.Extension }},
	{"model", func(d *config.Config, s config.Config) { d.Model = s.Model }},
	{"model-dir", func(d *config.Config, s config.Config) { d.ModelDir = s.ModelDir }},
	{"language", func(d *config.Config, s config.Config) { d.Language = s.Language }},
	{"auto-download", func(d *config.Config, s config.Config) { d.AutoDownload = s.AutoDownload }},
	{"ffmpeg", func(d *config.Config, s config.Config) { d.FFmpegPath = s.FFmpegPath }},
	{"silence-gate", func(d *config.Config, s config.Config) { d.SilenceGate = s.SilenceGate }},
	{"silence-threshold-dbfs", func(d *config.Config, s config.Config) { d.SilenceThresholdDBFS = s.SilenceThresholdDBFS }},
	{"log-file", func(d *config.Config, s config.Config) { d.LogFile = s.LogFile }},
}

// resolveConfig layers the config file under the flags that were set
// explicitly. An explicit --config must exist; the default location is optional.
func (a *appState) resolveConfig(cmd *cobra.Command) error {
	var (
		fileCfg config.Config
		found   bool
		err     error
	)

	if a.configPath != "" {
		fileCfg, err = config.Load(a.configPath)
		found = err == nil
	} else if defaultPath, pathErr := platform.ResolveConfigPath(); pathErr == nil {
		fileCfg, found, err = config.LoadOptional(defaultPath)
	}
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	flags := cmd.Flags()
	for _, f := range fileBackedFlags {
		if flags.Lookup(f.flag) != nil && flags.Changed(f.flag) {
			continue
		}
		f.apply(&a.cfg, fileCfg)
	}
	return nil
}
