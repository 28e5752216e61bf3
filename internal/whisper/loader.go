package whisper

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxbatch/internal/download"
	"go.uber.org/zap"
)

type LoadOptions struct {
	// Selector is a registry name (tiny, base, small, medium, large) or a path to a ggml model file.
	Selector     string
	ModelDir     string
	Language     string
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger

	// Verify re-hashes a present named model and replaces it on mismatch.
	Verify bool

	// Engine and Fetch replace the whisper-cli lookup and the model download in tests.
	Engine Engine
	Fetch  func(ctx context.Context, asset download.Asset) error
}

// LoadedModel is a resolved model file bound to an engine. It is safe to reuse
// across any number of files.
type LoadedModel struct {
	Model    ResolvedModel
	Language string
	engine   Engine
}

// Transcribe runs the engine on the extracted audio of sourcePath.
func (m *LoadedModel) Transcribe(ctx context.Context, audioPath, sourcePath string) (string, error) {
	return m.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: m.Model.Path,
		Language:  m.Language,
		Source:    sourcePath,
	})
}

// Load resolves the model file, downloading it when allowed, and binds it to
// the whisper engine. The engine is located first so a missing whisper-cli
// fails before any download starts.
func Load(ctx context.Context, opts LoadOptions) (*LoadedModel, error) {
	log := loggerOf(opts)

	engine := opts.Engine
	if engine == nil {
		bundled, err := NewBundledEngine(log)
		if err != nil {
			return nil, err
		}
		engine = bundled
	}

	model, err := EnsureModel(ctx, opts)
	if err != nil {
		return nil, err
	}

	log.Info("model loaded", zap.String("model", model.Label()), zap.String("path", model.Path), zap.Bool("fetched", model.Fetched))
	return &LoadedModel{
		Model:    model,
		Language: normalizeLanguage(opts.Language),
		engine:   engine,
	}, nil
}

// EnsureModel resolves the selector inside the model directory and fetches
// the model file if it is missing (or, with Verify, corrupt).
func EnsureModel(ctx context.Context, opts LoadOptions) (ResolvedModel, error) {
	log := loggerOf(opts)

	resolved, err := ResolveModel(opts.Selector, opts.ModelDir)
	if err != nil {
		return ResolvedModel{}, err
	}
	if resolved.IsCustomPath {
		return resolved, nil
	}

	if err := os.MkdirAll(opts.ModelDir, 0o755); err != nil {
		return ResolvedModel{}, fmt.Errorf("create model directory %s: %w", opts.ModelDir, err)
	}

	if !resolved.NeedsDownload && opts.Verify {
		if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
			log.Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}
	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !opts.AutoDownload {
		return ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxbatch setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	fetch := opts.Fetch
	if fetch == nil {
		fetcher := &download.Fetcher{ShowProgress: !opts.NoProgress, Logger: log}
		fetch = fetcher.Fetch
	}

	log.Info("downloading model", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := fetch(ctx, download.Asset{
		Name:        "model " + resolved.Name,
		URL:         resolved.URL,
		Destination: resolved.Path,
		SHA256:      resolved.SHA256,
	}); err != nil {
		return ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	resolved.Fetched = true
	return resolved, nil
}

func loggerOf(opts LoadOptions) *zap.Logger {
	if opts.Logger == nil {
		return zap.NewNop()
	}
	return opts.Logger
}

func normalizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
