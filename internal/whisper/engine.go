package whisper

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// TranscriptionRequest is one engine run over the extracted audio of one video.
type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string

	// Source is the video the audio was extracted from. It only labels logs and errors.
	Source string
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

func (r TranscriptionRequest) validate() error {
	if strings.TrimSpace(r.AudioPath) == "" {
		return errors.New("audio path is required")
	}
	if strings.TrimSpace(r.ModelPath) == "" {
		return errors.New("model path is required")
	}
	return nil
}

// outputBase places whisper-cli's text output beside the temp audio, so
// <out>/<base>_temp.wav yields <out>/<base>_temp.txt.
func (r TranscriptionRequest) outputBase() string {
	return strings.TrimSuffix(r.AudioPath, filepath.Ext(r.AudioPath))
}

func (r TranscriptionRequest) args() []string {
	args := []string{"-m", r.ModelPath, "-f", r.AudioPath, "-nt", "-otxt", "-of", r.outputBase()}
	if lang := strings.TrimSpace(r.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	return args
}

func (r TranscriptionRequest) label() string {
	if r.Source != "" {
		return filepath.Base(r.Source)
	}
	return filepath.Base(r.AudioPath)
}

func (r TranscriptionRequest) fields() []zap.Field {
	return []zap.Field{
		zap.String("source", r.Source),
		zap.String("audio", r.AudioPath),
		zap.String("model", filepath.Base(r.ModelPath)),
	}
}
