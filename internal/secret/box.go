// Package secret seals the stored AI credential at rest.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	sealedPrefix = "sealed:v1:"
	saltSize     = 16
	nonceSize    = 24
	keySize      = 32
)

var ErrOpenFailed = errors.New("sealed value could not be opened")

// Box seals and opens short secrets with a key derived from a passphrase.
type Box struct {
	passphrase []byte
}

// NewBox returns nil for an empty passphrase; a nil Box passes values through unchanged.
func NewBox(passphrase string) *Box {
	if passphrase == "" {
		return nil
	}
	return &Box{passphrase: []byte(passphrase)}
}

func (b *Box) key(salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(b.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	var k [keySize]byte
	copy(k[:], raw)
	return &k, nil
}

// Seal encrypts plaintext into a printable string.
func (b *Box) Seal(plaintext string) (string, error) {
	if b == nil {
		return plaintext, nil
	}
	buf := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	salt := buf[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	k, err := b.key(salt)
	if err != nil {
		return "", err
	}
	out := secretbox.Seal(buf, []byte(plaintext), &nonce, k)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values stored before a passphrase was configured are returned
// unchanged; a sealed value cannot be opened without the passphrase.
func (b *Box) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if b == nil {
		return "", fmt.Errorf("%w: no passphrase configured", ErrOpenFailed)
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil || len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrOpenFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	k, err := b.key(raw[:saltSize])
	if err != nil {
		return "", err
	}
	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, k)
	if !ok {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
