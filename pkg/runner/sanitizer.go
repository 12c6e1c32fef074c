package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize bounds a single user supplied value (256 bytes).
	DefaultMaxInputSize = 256
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "STRATA_MAX_INPUT_SIZE"
	// MaxContextTags bounds the number of base context tags of a request.
	MaxContextTags = 64
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrTooManyTags   = errors.New("too many context tags")
)

// SanitizeInput cleans a user supplied value by enforcing size limits,
// validating UTF-8 and stripping control characters (ANSI escapes, NUL, BEL).
func SanitizeInput(input string) (string, error) {
	limit := getMaxInputSize()
	if len(input) > limit {
		// rejected rather than truncated so requests stay deterministic
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeTags cleans base context tags coming from flags or requests.
// Tags may be comma separated; blanks are dropped.
func SanitizeTags(tags []string) ([]string, error) {
	var out []string
	for _, raw := range tags {
		for _, tag := range strings.Split(raw, ",") {
			clean, err := SanitizeInput(strings.TrimSpace(tag))
			if err != nil {
				return nil, fmt.Errorf("context tag %q: %w", tag, err)
			}
			if clean = strings.TrimSpace(clean); clean != "" {
				out = append(out, clean)
			}
		}
	}
	if len(out) > MaxContextTags {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTags, len(out), MaxContextTags)
	}
	return out, nil
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
