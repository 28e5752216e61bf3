package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DefaultModel = "base"

	modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"
)

var ErrUnknownModel = errors.New("unknown model")

// Model is a ggml checkpoint published for whisper.cpp.
type Model struct {
	Name     string
	Aliases  []string
	FileName string
	SHA256   string
}

func (m Model) URL() string {
	return modelBaseURL + m.FileName
}

// registry is ordered smallest to largest.
var registry = []Model{
	{Name: "tiny", FileName: "ggml-tiny.bin", SHA256: "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"},
	{Name: "base", FileName: "ggml-base.bin", SHA256: "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"},
	{Name: "small", FileName: "ggml-small.bin", SHA256: "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"},
	{Name: "medium", FileName: "ggml-medium.bin", SHA256: "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"},
	{Name: "large-v3", Aliases: []string{"large"}, FileName: "ggml-large-v3.bin", SHA256: "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"},
}

// ResolvedModel is a selector mapped onto a file on disk.
type ResolvedModel struct {
	Name          string
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
	IsCustomPath  bool

	// Fetched is set when the file was downloaded during this run.
	Fetched bool
}

// Label names the model in logs: the registry name, or the file for custom paths.
func (r ResolvedModel) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.Path)
}

// Selectors lists every accepted model selector, aliases included.
func Selectors() []string {
	var names []string
	for _, m := range registry {
		names = append(names, m.Name)
		names = append(names, m.Aliases...)
	}
	sort.Strings(names)
	return names
}

// LookupModel matches selector against registry names and aliases, ignoring case.
func LookupModel(selector string) (Model, bool) {
	selector = strings.TrimSpace(selector)
	for _, m := range registry {
		if strings.EqualFold(m.Name, selector) {
			return m, true
		}
		for _, alias := range m.Aliases {
			if strings.EqualFold(alias, selector) {
				return m, true
			}
		}
	}
	return Model{}, false
}

// ResolveModel maps a selector or a path to a ggml file. Named models live in
// modelDir and may still need downloading; custom paths must already exist.
func ResolveModel(selector, modelDir string) (ResolvedModel, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		selector = DefaultModel
	}

	if m, ok := LookupModel(selector); ok {
		return resolveNamed(m, modelDir)
	}
	if !looksLikePath(selector) {
		return ResolvedModel{}, fmt.Errorf("%w %q (known models: %s)", ErrUnknownModel, selector, strings.Join(Selectors(), ", "))
	}
	return resolveCustom(selector)
}

func resolveNamed(m Model, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	path := filepath.Join(modelDir, m.FileName)
	missing := false
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
		}
		missing = true
	}

	return ResolvedModel{
		Name:          m.Name,
		Path:          path,
		URL:           m.URL(),
		SHA256:        m.SHA256,
		NeedsDownload: missing,
	}, nil
}

func resolveCustom(path string) (ResolvedModel, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", path)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}
	if !info.Mode().IsRegular() {
		return ResolvedModel{}, fmt.Errorf("custom model path %s is not a file", path)
	}

	return ResolvedModel{Path: path, IsCustomPath: true}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
