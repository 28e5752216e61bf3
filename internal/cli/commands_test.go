package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/convert"
	"github.com/fmueller/voxbatch/internal/download"
	"github.com/stretchr/testify/require"
)

type wavExtractor struct{}

func (wavExtractor) Extract(_ context.Context, videoPath, audioPath string) error {
	if strings.Contains(filepath.Base(videoPath), "broken") {
		return errors.New("ffmpeg exited with status 1")
	}
	return os.WriteFile(audioPath, makePCM16WAVForTest(make([]int16, 1600), 16000, 1), 0o644)
}

type nameTranscriber struct{}

func (nameTranscriber) Transcribe(_ context.Context, audioPath, _ string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(audioPath), "_temp.wav")
	return "spoken words from " + base, nil
}

type fakeModel struct {
	mu      sync.Mutex
	loaded  []config.Config
	loadErr error
}

func (f *fakeModel) load(_ context.Context, cfg config.Config) (convert.Transcriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, cfg)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return nameTranscriber{}, nil
}

func newFakeApp(model *fakeModel) *appState {
	app := newAppState()
	app.loadFn = model.load
	app.extractorFn = func(config.Config) (convert.AudioExtractor, error) {
		return wavExtractor{}, nil
	}
	return app
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeTestFile(t, path, content)
	return path
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestBatchCommandConvertsMatchingVideos(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	in := filepath.Join(root, "videos")
	out := filepath.Join(root, "transcripts")
	writeTestFile(t, filepath.Join(in, "a.mp4"), "video")
	writeTestFile(t, filepath.Join(in, "nested", "b.MP4"), "video")
	writeTestFile(t, filepath.Join(in, "c.txt"), "notes")

	model := &fakeModel{}
	stdout, _, err := runApp(t, newFakeApp(model), []string{
		"--config", writeConfig(t, "language: en\n"),
		"--input", in,
		"--output", out,
		"--model", "tiny",
		"--no-progress",
	})
	require.NoError(t, err)

	require.Contains(t, stdout, "Found 2 .mp4 files")
	require.Contains(t, stdout, "Converted 2 of 2 files (0 failed)")
	require.Equal(t, []string{"a.txt", "b.txt"}, dirNames(t, out))

	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "spoken words from a", string(got))

	notes, err := os.ReadFile(filepath.Join(in, "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "notes", string(notes))

	require.Len(t, model.loaded, 1)
	require.Equal(t, "tiny", model.loaded[0].Model)
	require.Equal(t, "en", model.loaded[0].Language)
}

func TestBatchCommandPartialFailureSucceeds(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeTestFile(t, filepath.Join(in, "broken.mp4"), "video")
	writeTestFile(t, filepath.Join(in, "fine.mp4"), "video")

	stdout, _, err := runApp(t, newFakeApp(&fakeModel{}), []string{
		"--config", writeConfig(t, "{}\n"),
		"--input", in,
		"--output", out,
		"--no-progress",
	})
	require.NoError(t, err)
	require.Contains(t, stdout, "Converted 1 of 2 files (1 failed)")
	require.Equal(t, []string{"fine.txt"}, dirNames(t, out))
}

func TestBatchCommandFailsWhenModelCannotLoad(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeTestFile(t, filepath.Join(in, "a.mp4"), "video")

	_, _, err := runApp(t, newFakeApp(&fakeModel{loadErr: errors.New("model file missing")}), []string{
		"--config", writeConfig(t, "{}\n"),
		"--input", in,
		"--output", t.TempDir(),
		"--no-progress",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "load model")
}

func TestBatchCommandFailsWithoutExtractor(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeTestFile(t, filepath.Join(in, "a.mp4"), "video")

	app := newFakeApp(&fakeModel{})
	app.extractorFn = func(config.Config) (convert.AudioExtractor, error) {
		return nil, errors.New("ffmpeg not found")
	}

	_, _, err := runApp(t, app, []string{
		"--config", writeConfig(t, "{}\n"),
		"--input", in,
		"--output", t.TempDir(),
		"--no-progress",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ffmpeg not found")
}

func TestConfigFileFillsUnsetFlags(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "from-config")
	writeTestFile(t, filepath.Join(in, "talk.mkv"), "video")
	writeTestFile(t, filepath.Join(in, "skip.mp4"), "video")

	cfgPath := writeConfig(t, strings.Join([]string{
		"input_dir: " + in,
		"output_dir: " + out,
		"model: small",
		"extension: MKV",
		"language: de",
	}, "\n")+"\n")

	model := &fakeModel{}
	stdout, _, err := runApp(t, newFakeApp(model), []string{
		"--config", cfgPath,
		"--model", "medium",
		"--no-progress",
	})
	require.NoError(t, err)
	require.Contains(t, stdout, "Found 1 .mkv files")
	require.Equal(t, []string{"talk.txt"}, dirNames(t, out))

	require.Len(t, model.loaded, 1)
	require.Equal(t, "medium", model.loaded[0].Model, "explicit flag wins over config file")
	require.Equal(t, "de", model.loaded[0].Language)
}

func TestConvertCommandWritesSingleTranscript(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	video := filepath.Join(in, "lecture.mp4")
	writeTestFile(t, video, "video")

	stdout, _, err := runApp(t, newFakeApp(&fakeModel{}), []string{
		"convert",
		"--config", writeConfig(t, "{}\n"),
		"--output", out,
		"--no-progress",
		video,
	})
	require.NoError(t, err)
	require.Contains(t, stdout, "Created "+filepath.Join(out, "lecture.txt"))
	require.Equal(t, []string{"lecture.txt"}, dirNames(t, out))
}

func TestConvertCommandReportsExtractionFailure(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	video := filepath.Join(in, "broken.mp4")
	writeTestFile(t, video, "video")

	_, _, err := runApp(t, newFakeApp(&fakeModel{}), []string{
		"convert",
		"--config", writeConfig(t, "{}\n"),
		"--output", out,
		"--no-progress",
		video,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "extract audio")
	require.Empty(t, dirNames(t, out))
}

func TestScanCommandListsMatches(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeTestFile(t, filepath.Join(in, "one.mp4"), "video")
	writeTestFile(t, filepath.Join(in, "deeper", "two.MP4"), "video")
	writeTestFile(t, filepath.Join(in, "three.mov"), "video")

	model := &fakeModel{}
	stdout, _, err := runApp(t, newFakeApp(model), []string{
		"scan",
		"--config", writeConfig(t, "{}\n"),
		in,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.ElementsMatch(t, []string{
		filepath.Join(in, "one.mp4"),
		filepath.Join(in, "deeper", "two.MP4"),
	}, lines)
	require.Empty(t, model.loaded, "scan must not load a model")
}

func TestConvertCommandFillsBlankConfigDefaults(t *testing.T) {
	t.Parallel()

	video := filepath.Join(t.TempDir(), "memo.mp4")
	writeTestFile(t, video, "video")

	var extractorCfg config.Config
	model := &fakeModel{}
	app := newFakeApp(model)
	app.extractorFn = func(cfg config.Config) (convert.AudioExtractor, error) {
		extractorCfg = cfg
		return wavExtractor{}, nil
	}

	_, _, err := runApp(t, app, []string{
		"convert",
		"--config", writeConfig(t, "model: \"\"\nlanguage: \"\"\nffmpeg_path: \"\"\n"),
		"--output", filepath.Join(t.TempDir(), "out"),
		"--no-progress",
		video,
	})
	require.NoError(t, err)

	require.Len(t, model.loaded, 1)
	require.Equal(t, "base", model.loaded[0].Model)
	require.Equal(t, "auto", model.loaded[0].Language)
	require.Equal(t, "ffmpeg", extractorCfg.FFmpegPath)
}

func TestSetupInstallsNamedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	app := newAppState()
	var fetched download.Asset
	app.fetchFn = func(_ context.Context, asset download.Asset) error {
		fetched = asset
		return os.WriteFile(asset.Destination, []byte("weights"), 0o644)
	}

	stdout, _, err := runApp(t, app, []string{
		"setup",
		"--config", writeConfig(t, "{}\n"),
		"--model", "large",
		"--model-dir", modelDir,
		"--no-progress",
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(modelDir, "ggml-large-v3.bin"), fetched.Destination)
	require.Contains(t, stdout, "Model large-v3 installed at")
}

func TestSetupRejectsCustomModelPath(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "finetuned.bin")
	writeTestFile(t, custom, "weights")

	_, _, err := runCommand(t, []string{"setup", "--config", writeConfig(t, "{}\n"), "--model", custom})
	require.Error(t, err)
	require.Contains(t, err.Error(), "setup expects a named model")
}
