package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var ErrFFmpegNotFound = errors.New("ffmpeg not found")

// AudioExt is the container written for the temporary audio track.
const AudioExt = ".wav"

// whisper.cpp expects 16 kHz mono PCM.
const (
	defaultSampleRate = 16000
	defaultChannels   = 1
)

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type FFmpeg struct {
	Binary     string
	SampleRate int
	Channels   int
	Logger     *zap.Logger

	runner Runner
}

// NewFFmpeg resolves binary (a name on $PATH or a path) and returns an
// extractor writing 16 kHz mono WAV.
func NewFFmpeg(binary string, logger *zap.Logger) (*FFmpeg, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFFmpegNotFound, binary, err)
	}

	return &FFmpeg{
		Binary:     resolved,
		SampleRate: defaultSampleRate,
		Channels:   defaultChannels,
		Logger:     logger,
		runner:     execRunner{},
	}, nil
}

// Extract writes the audio track of videoPath to audioPath, overwriting it.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, audioPath string) error {
	if strings.TrimSpace(videoPath) == "" {
		return errors.New("video path is required")
	}
	if strings.TrimSpace(audioPath) == "" {
		return errors.New("audio path is required")
	}

	if err := os.MkdirAll(filepath.Dir(filepath.Clean(audioPath)), 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	args := f.Args(videoPath, audioPath)
	f.log().Debug("running ffmpeg", zap.String("ffmpeg", f.Binary), zap.Strings("args", args))

	if err := f.runnerOrDefault().Run(ctx, f.Binary, args...); err != nil {
		return err
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no audio for %s: %w", videoPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty audio file for %s", videoPath)
	}

	return nil
}

func (f *FFmpeg) Args(videoPath, audioPath string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(positiveOr(f.Channels, defaultChannels)),
		"-ar", strconv.Itoa(positiveOr(f.SampleRate, defaultSampleRate)),
		"-c:a", "pcm_s16le",
		audioPath,
	}
}

func (f *FFmpeg) log() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func (f *FFmpeg) runnerOrDefault() Runner {
	if f.runner == nil {
		return execRunner{}
	}
	return f.runner
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		trimmed := strings.TrimSpace(stderr.String())
		if trimmed != "" {
			return fmt.Errorf("%s failed: %w (%s)", filepath.Base(name), err, trimmed)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}

	return nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
