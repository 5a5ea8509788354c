// Package horosafe holds the safety checks applied to names and URLs that
// come from model output, HTTP clients and configuration: project-relative
// path validation, identifier charsets, URL schemes and bounded reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// MaxResponseBody is the default cap for upstream response reads (4 MiB).
// Generated projects are text and a few thousand tokens long.
const MaxResponseBody int64 = 4 << 20

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

// ErrInvalidName is returned when a file name fails ValidateRelPath.
var ErrInvalidName = errors.New("horosafe: invalid file name")

// ValidateRelPath checks a project-relative file name: forward-slash
// separated segments, each an identifier (see ValidateIdentifier) that is
// not made only of dots. Absolute paths, backslashes and empty segments are
// rejected. Returns the name unchanged on success.
func ValidateRelPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if path.Clean(name) != name {
		return "", fmt.Errorf("%w: %q is not clean", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.Trim(seg, ".") == "" {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidName, name, ErrPathTraversal)
		}
		if err := ValidateIdentifier(seg); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidName, err)
		}
	}
	return name, nil
}

// ValidateHTTPURL checks that rawURL is absolute, uses http/https and has a
// host. Loopback hosts are allowed: local model servers are a valid target.
func ValidateHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("horosafe: URL has no host")
	}
	return nil
}

// ValidateIdentifier rejects identifiers that contain characters unsuitable
// for file names or URL path segments. Allows alphanumeric, underscore,
// hyphen, and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > 255 {
		return fmt.Errorf("horosafe: identifier too long (max 255)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and fails if the limit is
// exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("horosafe: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
