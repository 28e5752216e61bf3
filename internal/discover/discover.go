package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultExt is the video extension processed when none is configured.
const DefaultExt = ".mp4"

// NormalizeExt lower-cases ext and guarantees a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Matches reports whether path carries ext, ignoring case.
func Matches(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), NormalizeExt(ext))
}

// Find walks root recursively and returns every regular file whose extension
// matches ext. Unreadable subdirectories are logged and skipped.
func Find(root, ext string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ext = NormalizeExt(ext)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !Matches(path, ext) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !linksToRegularFile(path) {
				logger.Warn("skipping symlink that does not point to a regular file", zap.String("path", path))
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("input directory %s does not exist", root)
		}
		return nil, fmt.Errorf("walk input directory %s: %w", root, err)
	}

	return files, nil
}

func linksToRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
