package secrets

import "errors"

var (
	// ErrInvalidKey is returned by every Engine call when the master key is unusable.
	ErrInvalidKey = errors.New("secrets: invalid key")
	// ErrDecryption covers malformed tokens, tampering and wrong keys alike.
	ErrDecryption = errors.New("secrets: decryption failed")
)
