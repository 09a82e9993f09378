// Package codec seals and opens free-text conversation fields with a single
// process-wide symmetric key.
package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix marks strings produced by Encrypt.
const Prefix = "enc:v1:"

var (
	ErrInvalidKey  = errors.New("codec: key must be 32 bytes")
	ErrMalformed   = errors.New("codec: malformed ciphertext")
	ErrAuthFailure = errors.New("codec: message authentication failed")
)

// Codec is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// New creates a codec from a raw 32-byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("codec: init cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// NewFromBase64 creates a codec from a base64 (std or url, padded or raw) key.
func NewFromBase64(encoded string) (*Codec, error) {
	key, err := DecodeKey(encoded)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// DecodeKey decodes a base64 key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) != chacha20poly1305.KeySize {
				return nil, ErrInvalidKey
			}
			return key, nil
		}
	}
	return nil, ErrInvalidKey
}

// GenerateKey returns a fresh random key encoded as standard base64.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("codec: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts raw bytes. The nonce is prepended to the output.
func (c *Codec) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("codec: read nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (c *Codec) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, body := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrAuthFailure
	}
	return plaintext, nil
}

// Encrypt returns a printable ciphertext for text.
func (c *Codec) Encrypt(text string) (string, error) {
	sealed, err := c.Seal([]byte(text))
	if err != nil {
		return "", err
	}
	return Prefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt returns the plaintext and true. Malformed or foreign input is
// returned unchanged together with false; it never fails louder than that.
func (c *Codec) Decrypt(ciphertext string) (string, bool) {
	if !strings.HasPrefix(ciphertext, Prefix) {
		return ciphertext, false
	}
	sealed, err := base64.RawStdEncoding.DecodeString(ciphertext[len(Prefix):])
	if err != nil {
		return ciphertext, false
	}
	plaintext, err := c.Open(sealed)
	if err != nil {
		return ciphertext, false
	}
	return string(plaintext), true
}

// IsCiphertext reports whether s looks like Encrypt output.
func IsCiphertext(s string) bool {
	return strings.HasPrefix(s, Prefix)
}
