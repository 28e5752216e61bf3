package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxbatch/internal/audio"
	"github.com/fmueller/voxbatch/internal/extract"
	"go.uber.org/zap"
)

type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// Transcriber turns the extracted audio of sourcePath into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, sourcePath string) (string, error)
}

type Options struct {
	OutputDir   string
	Extractor   AudioExtractor
	Transcriber Transcriber
	Logger      *zap.Logger

	SilenceGate          bool
	SilenceThresholdDBFS float64
}

type Result struct {
	Source     string
	Base       string
	OutputPath string
	Transcript string
	Elapsed    time.Duration

	// Skipped is set when the silence gate replaced transcription.
	Skipped bool
}

// Converter turns one video into <OutputDir>/<base>.txt.
type Converter struct {
	outputDir   string
	extractor   AudioExtractor
	transcriber Transcriber
	logger      *zap.Logger

	silenceGate bool
	silenceDBFS float64
}

func New(opts Options) (*Converter, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("audio extractor is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("transcriber is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Converter{
		outputDir:   filepath.Clean(opts.OutputDir),
		extractor:   opts.Extractor,
		transcriber: opts.Transcriber,
		logger:      opts.Logger,
		silenceGate: opts.SilenceGate,
		silenceDBFS: opts.SilenceThresholdDBFS,
	}, nil
}

// BaseName strips directory and extension from path.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func TempAudioPath(outputDir, base string) string {
	return filepath.Join(outputDir, base+"_temp"+extract.AudioExt)
}

func OutputPath(outputDir, base string) string {
	return filepath.Join(outputDir, base+".txt")
}

// Convert extracts, transcribes and writes one file. The temporary audio file
// is removed on every return path.
func (c *Converter) Convert(ctx context.Context, videoPath string) (Result, error) {
	started := time.Now()
	base := BaseName(videoPath)
	tempAudio := TempAudioPath(c.outputDir, base)
	defer c.removeTempAudio(tempAudio)

	log := c.logger.With(zap.String("video", videoPath))

	log.Info("extracting audio", zap.String("audio", tempAudio))
	if err := c.extractor.Extract(ctx, videoPath, tempAudio); err != nil {
		return Result{}, fmt.Errorf("extract audio: %w", err)
	}

	if info, err := audio.ReadInfo(tempAudio); err == nil {
		log.Debug("audio extracted", zap.Duration("duration", info.Duration), zap.Int("sample_rate", info.SampleRate))
	}

	transcript, skipped := c.applySilenceGate(tempAudio, log)
	if !skipped {
		log.Info("converting audio to text")
		text, err := c.transcriber.Transcribe(ctx, tempAudio, videoPath)
		if err != nil {
			return Result{}, fmt.Errorf("transcribe: %w", err)
		}
		transcript = text
	}

	if IsBlankTranscript(transcript) {
		log.Warn("no speech detected")
	}

	outPath := OutputPath(c.outputDir, base)
	if err := os.WriteFile(outPath, []byte(transcript), 0o644); err != nil {
		return Result{}, fmt.Errorf("write transcript: %w", err)
	}

	return Result{
		Source:     videoPath,
		Base:       base,
		OutputPath: outPath,
		Transcript: transcript,
		Skipped:    skipped,
		Elapsed:    time.Since(started),
	}, nil
}

func (c *Converter) applySilenceGate(audioPath string, log *zap.Logger) (string, bool) {
	if !c.silenceGate {
		return "", false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, c.silenceDBFS)
	if err != nil {
		log.Warn("silence gate analysis failed; continuing transcription", zap.Error(err))
		return "", false
	}
	if !silent {
		return "", false
	}

	log.Info(
		"audio considered silent; skipping transcription",
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", c.silenceDBFS),
	)
	return BlankAudioToken, true
}

func (c *Converter) removeTempAudio(path string) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	c.logger.Warn("failed to remove temporary audio", zap.String("path", path), zap.Error(err))
}
