package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent      = "voxbatch/1"
	defaultRetries = 3
	defaultBackoff = 300 * time.Millisecond
)

// Asset is one file fetched into place, typically a ggml model.
type Asset struct {
	// Name labels the asset in logs and on the progress bar.
	Name        string
	URL         string
	Destination string
	SHA256      string
	ChecksumURL string
}

func (a Asset) label() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return filepath.Base(a.Destination)
}

// Fetcher downloads assets through a ".part" file and only renames them into
// place once the checksum matches.
type Fetcher struct {
	Client       *http.Client
	Retries      int
	Backoff      time.Duration
	ShowProgress bool
	Logger       *zap.Logger
}

// Fetch downloads a with retries. Cancellation is honoured while waiting
// between attempts, and a checksum mismatch is not retried.
func (f *Fetcher) Fetch(ctx context.Context, a Asset) error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("download URL is required")
	}
	if strings.TrimSpace(a.Destination) == "" {
		return errors.New("destination path is required")
	}

	client := f.client()
	log := f.logger().With(zap.String("asset", a.label()))

	expected := strings.ToLower(strings.TrimSpace(a.SHA256))
	if expected == "" && a.ChecksumURL != "" {
		resolved, err := ResolveExpectedChecksum(ctx, a.ChecksumURL, filepath.Base(a.Destination), client)
		if err != nil {
			return fmt.Errorf("fetch checksum for %s: %w", a.label(), err)
		}
		expected = resolved
	}

	if err := os.MkdirAll(filepath.Dir(a.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	retries := f.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			log.Warn("retrying download", zap.Int("attempt", attempt), zap.Int("max", retries), zap.Error(lastErr))
			if err := f.wait(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = f.fetchOnce(ctx, client, a, expected)
		if lastErr == nil {
			log.Info("download complete", zap.String("path", a.Destination))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(lastErr, ErrChecksumMismatch) {
			return lastErr
		}
	}

	return lastErr
}

func (f *Fetcher) wait(ctx context.Context, attempt int) error {
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	timer := time.NewTimer(time.Duration(attempt-1) * backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, client *http.Client, a Asset, expected string) error {
	partPath := a.Destination + ".part"
	_ = os.Remove(partPath)

	part, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	committed := false
	defer func() {
		_ = part.Close()
		if !committed {
			_ = os.Remove(partPath)
		}
	}()

	body, size, err := get(ctx, client, a.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	hash := sha256.New()
	sink := io.MultiWriter(part, hash)

	bar := newByteBar(f.ShowProgress, size, "downloading "+a.label())
	if bar != nil {
		sink = io.MultiWriter(part, hash, bar)
	}

	if _, err := io.Copy(sink, body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if actual := hex.EncodeToString(hash.Sum(nil)); expected != "" && actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	if err := part.Sync(); err != nil {
		return fmt.Errorf("sync partial file: %w", err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(partPath, a.Destination); err != nil {
		return fmt.Errorf("move %s into place: %w", a.label(), err)
	}
	committed = true
	return nil
}

func get(ctx context.Context, client *http.Client, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		return &http.Client{Timeout: 10 * time.Minute}
	}
	return f.Client
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
