package conversation

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// cipherKey stretches the opaque session key string into cipher key material.
// Key derivation itself happens behind wallet signing; by the time a key
// reaches this package it is just a shared secret string.
func cipherKey(sessionKey string) [32]byte {
	return blake3.Sum256([]byte(sessionKey))
}

// EncryptMessage seals plaintext under the pair's session key. The output
// layout is nonce || ciphertext.
func EncryptMessage(sessionKey string, plaintext []byte) ([]byte, error) {
	key := cipherKey(sessionKey)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptMessage opens a payload produced by EncryptMessage.
func DecryptMessage(sessionKey string, sealed []byte) ([]byte, error) {
	key := cipherKey(sessionKey)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return plain, nil
}

// EncryptToString seals plaintext and encodes the result as base64 for
// embedding in JSON payloads.
func EncryptToString(sessionKey string, plaintext []byte) (string, error) {
	sealed, err := EncryptMessage(sessionKey, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptToString.
func DecryptString(sessionKey, encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return DecryptMessage(sessionKey, sealed)
}
