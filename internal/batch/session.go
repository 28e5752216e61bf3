package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fmueller/voxbatch/internal/convert"
	"go.uber.org/zap"
)

// Session holds a loaded engine and converts files one at a time.
type Session struct {
	opts      Options
	converter *convert.Converter

	// base name -> first source path written this session
	written map[string]string
	// source path -> modification time when it was last attempted
	attempted map[string]time.Time
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutputDir); err != nil {
		return nil, err
	}

	transcriber, err := opts.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	converter, err := convert.New(convert.Options{
		OutputDir:            opts.OutputDir,
		Extractor:            opts.Extractor,
		Transcriber:          transcriber,
		Logger:               opts.logger(),
		SilenceGate:          opts.SilenceGate,
		SilenceThresholdDBFS: opts.SilenceThresholdDBFS,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		opts:      opts,
		converter: converter,
		written:   map[string]string{},
		attempted: map[string]time.Time{},
	}, nil
}

// Process converts a single file and reports the outcome on the console.
func (s *Session) Process(ctx context.Context, path string) (convert.Result, error) {
	log := s.opts.logger()

	base := convert.BaseName(path)
	if previous, ok := s.written[base]; ok && previous != path {
		log.Warn("output name collision; later file overwrites earlier transcript",
			zap.String("base", base), zap.String("previous", previous), zap.String("path", path))
	}

	if info, err := os.Stat(path); err == nil {
		s.attempted[path] = info.ModTime()
	}

	res, err := s.converter.Convert(ctx, path)
	if err != nil {
		log.Error("error processing file", zap.String("path", path), zap.Error(err))
		return convert.Result{}, err
	}

	s.written[base] = path
	log.Info("transcript written", zap.String("path", res.OutputPath), zap.Duration("elapsed", res.Elapsed))
	fmt.Fprintf(s.opts.out(), "Created %s\n", res.OutputPath)
	return res, nil
}

// Handled reports whether path was already processed in this session and has
// not been modified since. Failed files count as handled until they change.
func (s *Session) Handled(path string) bool {
	seen, ok := s.attempted[path]
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(seen)
}

// RunAll processes files in order. Per-file failures are collected in the
// summary; cancellation stops the loop and is returned.
func (s *Session) RunAll(ctx context.Context, files []string) (Summary, error) {
	summary := Summary{Found: len(files)}

	bar := newFileProgress(s.opts.ShowProgress, len(files))
	defer bar.finish()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		bar.describe(convert.BaseName(path))
		res, err := s.Process(ctx, path)
		bar.advance()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			summary.Failed = append(summary.Failed, Failure{Path: path, Err: err})
			continue
		}
		summary.Converted = append(summary.Converted, res)
	}

	bar.finish()
	fmt.Fprintf(s.opts.out(), "Converted %d of %d files (%d failed)\n", len(summary.Converted), summary.Found, len(summary.Failed))
	return summary, nil
}
