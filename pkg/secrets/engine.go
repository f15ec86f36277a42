package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	tokenVersion byte = 0x80
	headerSize        = 1 + 8
)

// Engine encrypts secret payloads into versioned, timestamped tokens:
//
//	base64url(version | unix seconds | nonce | sealed payload)
//
// The header is authenticated as additional data, so tampering with any byte
// fails decryption.
type Engine struct {
	aead cipher.AEAD
	err  error
	now  func() time.Time
	rand io.Reader
}

// NewEngine builds an engine keyed by raw. A bad key does not fail
// construction; every Encrypt and Decrypt call returns ErrInvalidKey instead.
func NewEngine(raw []byte) *Engine {
	e := &Engine{now: time.Now, rand: rand.Reader}
	if len(raw) != chacha20poly1305.KeySize {
		e.err = fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(raw))
		return e
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		e.err = fmt.Errorf("%w: %v", ErrInvalidKey, err)
		return e
	}
	e.aead = aead
	return e
}

// Broken returns an engine that fails every call with err, used when key
// resolution fails at startup.
func Broken(err error) *Engine {
	if err == nil {
		err = ErrInvalidKey
	}
	return &Engine{err: fmt.Errorf("%w: %v", ErrInvalidKey, err), now: time.Now, rand: rand.Reader}
}

// Err reports the configuration error, if any.
func (e *Engine) Err() error {
	return e.err
}

// Encrypt seals plaintext. Empty input yields an empty token.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if e.err != nil {
		return "", e.err
	}
	nonceSize := e.aead.NonceSize()
	buf := make([]byte, headerSize+nonceSize, headerSize+nonceSize+len(plaintext)+e.aead.Overhead())
	buf[0] = tokenVersion
	binary.BigEndian.PutUint64(buf[1:headerSize], uint64(e.now().Unix()))
	nonce := buf[headerSize:]
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := e.aead.Seal(buf, nonce, []byte(plaintext), buf[:headerSize])
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token. Empty input yields empty output. Every failure is
// reported as ErrDecryption without detail.
func (e *Engine) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	if e.err != nil {
		return "", e.err
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrDecryption
	}
	nonceSize := e.aead.NonceSize()
	if len(raw) < headerSize+nonceSize+e.aead.Overhead() || raw[0] != tokenVersion {
		return "", ErrDecryption
	}
	nonce := raw[headerSize : headerSize+nonceSize]
	plain, err := e.aead.Open(nil, nonce, raw[headerSize+nonceSize:], raw[:headerSize])
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

// IssuedAt returns the timestamp embedded in a token without decrypting it.
func IssuedAt(token string) (time.Time, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(raw) < headerSize || raw[0] != tokenVersion {
		return time.Time{}, ErrDecryption
	}
	return time.Unix(int64(binary.BigEndian.Uint64(raw[1:headerSize])), 0).UTC(), nil
}
