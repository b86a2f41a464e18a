package types

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleLen   = 500
	MaxContentLen = 65536
	MinPriority   = 0
	MaxPriority   = 4
)

// validMetadataKeyRe mirrors the JSON-path-safe key pattern the teacher's
// storage layer validates against.
var validMetadataKeyRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidateMetadataKey checks that a metadata key is safe for use in JSON
// path expressions: it must start with a letter or underscore and contain
// only alphanumerics, underscores, and dots.
func ValidateMetadataKey(key string) error {
	if !validMetadataKeyRe.MatchString(key) {
		return ErrInvalidMetadataKey(key)
	}
	return nil
}

// ValidateMetadataValue accepts string, []byte, or json.RawMessage as raw
// JSON (any other value is JSON-marshalled first) and returns it as a
// validated json.RawMessage.
func ValidateMetadataValue(value any) (json.RawMessage, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, ErrInvalidMetadataKey("value")
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, ErrInvalidMetadataKey("value")
	}
	return json.RawMessage(raw), nil
}

// normalizeString applies NFC normalisation and replaces invalid UTF-8
// sequences with U+FFFD, matching spec.md's string-hygiene rule for every
// user-supplied string field.
func normalizeString(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return norm.NFC.String(s)
}

// truncateTitle truncates s to MaxTitleLen runes, reporting whether it
// truncated so the caller can surface a warning per spec.md §4.1.
func truncateTitle(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= MaxTitleLen {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:MaxTitleLen]), true
}

// validateContentLen rejects content exceeding MaxContentLen runes.
func validateContentLen(field, s string) error {
	if utf8.RuneCountInString(s) > MaxContentLen {
		return ErrContentTooLong(field, MaxContentLen)
	}
	return nil
}

// validatePriority checks the 0..4 inclusive range spec.md mandates.
func validatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return ErrInvalidPriority(p)
	}
	return nil
}

// validateTimeOrder enforces updated_at >= created_at.
func validateTimeOrder(createdAt, updatedAt time.Time) error {
	if updatedAt.Before(createdAt) {
		return ErrInvalidTime("updated_at precedes created_at")
	}
	return nil
}
