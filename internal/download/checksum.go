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
	"regexp"
	"strings"
	"time"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

var checksumPattern = regexp.MustCompile(`(?i)\b([a-f0-9]{64})\b`)

// ResolveExpectedChecksum fetches a checksum listing and picks the entry for fileName.
func ResolveExpectedChecksum(ctx context.Context, checksumURL, fileName string, client *http.Client) (string, error) {
	if strings.TrimSpace(checksumURL) == "" {
		return "", errors.New("checksum URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	body, _, err := get(ctx, client, checksumURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read checksum listing: %w", err)
	}
	return ParseChecksum(content, fileName)
}

// ParseChecksum prefers the line naming fileName and falls back to the first
// sha256 found anywhere in content.
func ParseChecksum(content []byte, fileName string) (string, error) {
	var fallback string
	for _, line := range strings.Split(string(content), "\n") {
		match := checksumPattern.FindStringSubmatch(line)
		if len(match) < 2 {
			continue
		}
		sum := strings.ToLower(match[1])
		if fileName != "" && strings.Contains(line, fileName) {
			return sum, nil
		}
		if fallback == "" {
			fallback = sum
		}
	}

	if fallback == "" {
		return "", errors.New("sha256 checksum not found")
	}
	return fallback, nil
}

// VerifyFileChecksum hashes path and compares it to expectedSHA256. An empty
// expectation always passes.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))
	if expected == "" {
		return nil
	}

	actual, err := hashFile(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
