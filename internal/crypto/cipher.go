// Package crypto provides AES-256-GCM encryption and decryption for secrets
// held at rest, such as the access and refresh tokens delegated by the
// workspace's identity providers.
//
// The package uses AES-256-GCM (Galois/Counter Mode) which provides both
// confidentiality and authenticity. Each encryption operation uses a unique
// random nonce so that encrypting the same plaintext twice produces
// different ciphertexts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"workspace-search/internal/common/errors"
)

// Cipher handles symmetric encryption and decryption of stored secrets
// using AES-256-GCM. It is keyed by a single process-wide secret supplied
// at startup and is safe for concurrent use by multiple goroutines.
type Cipher struct {
	key []byte // 32-byte AES-256 encryption key
}

// NewCipher creates a new Cipher with the provided key material.
//
// The key is processed with PBKDF2 so any non-empty passphrase yields a
// proper 32-byte AES-256 key. The key should come from the environment and
// never be hardcoded; rotating it without re-encrypting stored values makes
// existing ciphertexts undecryptable.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	// Static salt keeps derivation deterministic across restarts
	salt := []byte("workspace-search-salt")
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &Cipher{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext string and returns the result as a
// base64-encoded string suitable for storage. The random nonce is prepended
// to the ciphertext before encoding. Empty strings pass through unencrypted
// so that "absent" stays representable in the store.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext produced by Encrypt and
// returns the original plaintext. GCM verifies integrity as part of
// decryption, so a tampered ciphertext or a mismatched key yields a
// decryption error rather than garbage plaintext.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.DecryptionError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.DecryptionError("ciphertext too short", nil)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.DecryptionError("failed to decrypt", err)
	}

	return string(plaintext), nil
}
