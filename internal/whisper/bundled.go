package whisper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxbatch/internal/platform"
	"go.uber.org/zap"
)

const enginePathEnv = "VOXBATCH_WHISPER_PATH"

type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

// NewBundledEngine locates whisper-cli: the VOXBATCH_WHISPER_PATH override
// first, then the libexec layout shipped next to the voxbatch binary, then $PATH.
func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(enginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", enginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxbatch executable path: %w", err)
	}

	if whisperExe, err := ResolveBundledEnginePath(self); err == nil {
		return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
	}

	if onPath, err := exec.LookPath(engineBinaryName()); err == nil {
		logger.Debug("using whisper engine from PATH", zap.String("engine", onPath))
		return &BundledEngine{Executable: onPath, Logger: logger}, nil
	}

	return nil, fmt.Errorf("whisper engine not found: install whisper.cpp so %s is on PATH, place it under ../libexec/whisper/ next to voxbatch, or set %s", engineBinaryName(), enginePathEnv)
}

func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s, expected at ../libexec/whisper/%s", selfExecutable, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", platform.HostTarget(), engineName),
		filepath.Join(binDir, engineName),
	}
}

// Transcribe runs whisper-cli on req.AudioPath. Its text output is read and
// removed before returning.
func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	txtOut := req.outputBase() + ".txt"
	defer os.Remove(txtOut)

	args := req.args()
	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	log := b.logger().With(req.fields()...)
	log.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", b.explain(req, err, strings.TrimSpace(stderr.String()))
	}

	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output for %s: %w", req.label(), err)
	}

	log.Debug("whisper engine finished", zap.Duration("elapsed", time.Since(started)))
	return strings.TrimSpace(string(content)), nil
}

func (b *BundledEngine) explain(req TranscriptionRequest, runErr error, stderr string) error {
	switch {
	case isMissingSharedLibraryError(stderr):
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", b.Executable, stderr)
	case isIllegalInstructionError(stderr) || isIllegalInstructionError(runErr.Error()):
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set %s to a whisper-cli binary built for your CPU", enginePathEnv)
	default:
		return fmt.Errorf("whisper-cli failed on %s: %w (%s)", req.label(), runErr, stderr)
	}
}

func (b *BundledEngine) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
