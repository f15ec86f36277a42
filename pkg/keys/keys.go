package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Size is the raw master key length in bytes.
const Size = 32

var (
	// ErrInvalidKey is fatal configuration: callers must not retry.
	ErrInvalidKey = errors.New("keys: master key must be 32 bytes of base64 encoded material")
	// ErrKeyMissing is returned when no source yields a key and generation is disabled.
	ErrKeyMissing = errors.New("keys: master key not configured")
)

// InvalidKeyError records which source produced an unusable key.
type InvalidKeyError struct {
	Source Source
	Actual int
}

func (e *InvalidKeyError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("keys: %s master key is not valid base64", e.Source)
	}
	return fmt.Sprintf("keys: %s master key decodes to %d bytes, expected %d", e.Source, e.Actual, Size)
}

func (e *InvalidKeyError) Unwrap() error {
	return ErrInvalidKey
}

var encodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawURLEncoding,
	base64.RawStdEncoding,
}

// Decode returns the raw key bytes. Both standard and URL-safe alphabets are
// accepted, padded or not.
func Decode(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, &InvalidKeyError{Actual: 0}
	}
	size := -1
	for _, enc := range encodings {
		raw, err := enc.DecodeString(encoded)
		if err != nil {
			continue
		}
		if len(raw) == Size {
			return raw, nil
		}
		size = len(raw)
	}
	return nil, &InvalidKeyError{Actual: size}
}

// Validate reports whether encoded decodes to exactly Size bytes.
func Validate(encoded string) bool {
	_, err := Decode(encoded)
	return err == nil
}

// Generate returns a fresh URL-safe base64 key.
func Generate() (string, error) {
	raw := make([]byte, Size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("keys: generate: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}
