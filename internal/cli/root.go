package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fmueller/voxbatch/internal/batch"
	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/convert"
	"github.com/fmueller/voxbatch/internal/download"
	"github.com/fmueller/voxbatch/internal/extract"
	"github.com/fmueller/voxbatch/internal/logging"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/version"
	"github.com/fmueller/voxbatch/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	cfg        config.Config
	configPath string
	verbose    bool
	jsonLogs   bool
	noProgress bool

	logger *zap.Logger

	loadFn      func(ctx context.Context, cfg config.Config) (convert.Transcriber, error)
	extractorFn func(cfg config.Config) (convert.AudioExtractor, error)
	fetchFn     func(ctx context.Context, asset download.Asset) error
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{cfg: config.Default()}
	app.loadFn = app.loadModel
	app.extractorFn = app.newExtractor
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxbatch",
		Short:         "Transcribe every video under a directory tree into text files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.resolveConfig(cmd); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, File: app.cfg.LogFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runBatch(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindConfigFlags(cmd, app)
	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindPipelineFlags(cmd, app)

	cmd.AddCommand(newConvertCmd(app))
	cmd.AddCommand(newScanCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindConfigFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Config file (default: <user config dir>/voxbatch/config.yaml when present)")
	cmd.PersistentFlags().StringVarP(&app.cfg.InputDir, "input", "i", app.cfg.InputDir, "Directory searched recursively for videos")
	cmd.PersistentFlags().StringVarP(&app.cfg.OutputDir, "output", "o", app.cfg.OutputDir, "Directory receiving one <name>.txt per video")
	cmd.PersistentFlags().StringVar(&app.cfg.Extension, "ext", app.cfg.Extension, "Video file extension to process (case-insensitive)")
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().StringVar(&app.cfg.LogFile, "log-file", app.cfg.LogFile, "Also write JSON logs to this rotated file")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVarP(&app.cfg.Model, "model", "m", app.cfg.Model, "Model size (tiny|base|small|medium|large) or model file path")
	cmd.PersistentFlags().StringVar(&app.cfg.ModelDir, "model-dir", app.cfg.ModelDir, "Directory where models are stored")
	cmd.PersistentFlags().StringVar(&app.cfg.Language, "language", app.cfg.Language, "Language code (auto|en|de|...) for transcription")
	cmd.PersistentFlags().BoolVar(&app.cfg.AutoDownload, "auto-download", app.cfg.AutoDownload, "Automatically download missing models")
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.cfg.FFmpegPath, "ffmpeg", app.cfg.FFmpegPath, "ffmpeg executable used for audio extraction")
	cmd.PersistentFlags().BoolVar(&app.cfg.SilenceGate, "silence-gate", app.cfg.SilenceGate, "Skip transcription of near-silent audio tracks")
	cmd.PersistentFlags().Float64Var(&app.cfg.SilenceThresholdDBFS, "silence-threshold-dbfs", app.cfg.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) runBatch(ctx context.Context, out io.Writer) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	opts, err := a.batchOptions(out)
	if err != nil {
		return err
	}

	summary, err := batch.Run(ctx, opts)
	if err != nil {
		return err
	}

	if len(summary.Failed) > 0 {
		a.log().Warn("some files could not be converted", zap.Int("failed", len(summary.Failed)), zap.Int("found", summary.Found))
	}
	return nil
}

func (a *appState) batchOptions(out io.Writer) (batch.Options, error) {
	extractorFn := a.extractorFn
	if extractorFn == nil {
		extractorFn = a.newExtractor
	}

	loadFn := a.loadFn
	if loadFn == nil {
		loadFn = a.loadModel
	}

	extractor, err := extractorFn(a.cfg)
	if err != nil {
		return batch.Options{}, err
	}

	cfg := a.cfg
	return batch.Options{
		InputDir:  cfg.InputDir,
		OutputDir: cfg.OutputDir,
		Ext:       cfg.Extension,
		Load: func(ctx context.Context) (convert.Transcriber, error) {
			return loadFn(ctx, cfg)
		},
		Extractor:            extractor,
		SilenceGate:          cfg.SilenceGate,
		SilenceThresholdDBFS: cfg.SilenceThresholdDBFS,
		ShowProgress:         a.progressEnabled(),
		Out:                  out,
		Logger:               a.log(),
	}, nil
}

func (a *appState) loadModel(ctx context.Context, cfg config.Config) (convert.Transcriber, error) {
	modelDir, err := platform.ResolveModelDir(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	a.log().Info("loading whisper model", zap.String("model", cfg.Model))
	model, err := whisper.Load(ctx, whisper.LoadOptions{
		Selector:     cfg.Model,
		ModelDir:     modelDir,
		Language:     cfg.Language,
		AutoDownload: cfg.AutoDownload,
		NoProgress:   !a.progressEnabled(),
		Logger:       a.log(),
		Fetch:        a.fetchFn,
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

func (a *appState) newExtractor(cfg config.Config) (convert.AudioExtractor, error) {
	ffmpeg, err := extract.NewFFmpeg(cfg.FFmpegPath, a.log())
	if err != nil {
		return nil, err
	}
	return ffmpeg, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
