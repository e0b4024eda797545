package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyCredential       = errors.New("credential file has no usable content")
	ErrPlaceholderCredential = errors.New("credential file still contains the placeholder value")
)

// LoadCredential reads the opaque cookie blob from path. Blank lines and
// #-comments are skipped; the last remaining line wins, so the file can keep
// older values above the current one.
func LoadCredential(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credential file %s: %w", path, err)
	}

	var value string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		value = line
	}

	if value == "" {
		return "", ErrEmptyCredential
	}
	if value == "YOUR_COOKIE_HERE" {
		return "", ErrPlaceholderCredential
	}
	return value, nil
}
