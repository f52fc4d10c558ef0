// Package imagefile converts between the API's base64 image payloads and the
// well-known files the editor scripts consume and produce.
package imagefile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"patternpress/internal/services"
)

const dataURIPrefix = "data:image/png;base64,"

// DecodePayload converts a base64 string (optionally a data URI) into raw PNG
// bytes, validating the image header so malformed input fails before any
// editor invocation happens.
func DecodePayload(payload string) ([]byte, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrDecode, "", "decode payload", "empty image payload", nil)
	}
	if strings.HasPrefix(trimmed, "data:") {
		idx := strings.Index(trimmed, ",")
		if idx < 0 {
			return nil, services.Wrap(services.ErrDecode, "", "decode payload", "malformed data URI", nil)
		}
		trimmed = trimmed[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "", "decode payload", "invalid base64 image data", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, services.Wrap(services.ErrDecode, "", "decode payload", "payload is not a valid PNG image", err)
	}
	return data, nil
}

// EncodePayload reads a file from disk and returns it as a PNG data URI.
func EncodePayload(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "", "encode payload", fmt.Sprintf("artifact missing: %s", path), nil)
		}
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// WriteFile persists data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RemoveIfExists deletes path when present. A stale artifact from a previous
// run must be gone before the stage that produces it starts, otherwise "file
// exists" is an ambiguous completion signal.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale artifact %s: %w", path, err)
	}
	return nil
}
