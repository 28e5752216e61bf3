package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fmueller/voxbatch/internal/convert"
	"github.com/fmueller/voxbatch/internal/discover"
	"go.uber.org/zap"
)

// LoadFunc produces the transcription engine. It is called at most once per run.
type LoadFunc func(ctx context.Context) (convert.Transcriber, error)

type Options struct {
	InputDir  string
	OutputDir string
	Ext       string

	Load      LoadFunc
	Extractor convert.AudioExtractor

	SilenceGate          bool
	SilenceThresholdDBFS float64

	ShowProgress bool
	Out          io.Writer
	Logger       *zap.Logger
}

type Failure struct {
	Path string
	Err  error
}

type Summary struct {
	Found     int
	Converted []convert.Result
	Failed    []Failure
}

// Run creates the output directory, discovers the input files, loads the
// engine once and converts every file in sequence. A failing file is logged
// and skipped; only setup errors and cancellation end the run early.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if err := validate(opts); err != nil {
		return Summary{}, err
	}

	if err := ensureOutputDir(opts.OutputDir); err != nil {
		return Summary{}, err
	}

	files, err := discover.Find(opts.InputDir, opts.Ext, opts.logger())
	if err != nil {
		return Summary{}, err
	}
	fmt.Fprintf(opts.out(), "Found %d %s files\n", len(files), discover.NormalizeExt(opts.Ext))

	if len(files) == 0 {
		return Summary{}, nil
	}

	session, err := NewSession(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	return session.RunAll(ctx, files)
}

func validate(opts Options) error {
	if strings.TrimSpace(opts.InputDir) == "" {
		return errors.New("input directory is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	if opts.Load == nil {
		return errors.New("model loader is required")
	}
	if opts.Extractor == nil {
		return errors.New("audio extractor is required")
	}
	return nil
}

func ensureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
