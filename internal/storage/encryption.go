package storage

import (
	"context"

	"workspace-search/internal/crypto"
)

// secretFields are the credential fields that hold token material and are
// never written to a backend in the clear.
var secretFields = map[string]bool{
	FieldAccessToken:  true,
	FieldRefreshToken: true,
}

// EncryptedStore wraps another Store and transparently encrypts token
// fields on the way in and decrypts them on the way out. Non-secret fields
// such as expiry and metadata pass through untouched so they stay
// inspectable in the backend.
type EncryptedStore struct {
	inner  Store
	cipher *crypto.Cipher
}

// NewEncryptedStore wraps a backend with field-level token encryption.
func NewEncryptedStore(inner Store, cipher *crypto.Cipher) *EncryptedStore {
	return &EncryptedStore{inner: inner, cipher: cipher}
}

func (e *EncryptedStore) GetField(ctx context.Context, provider, field string) (string, bool, error) {
	value, found, err := e.inner.GetField(ctx, provider, field)
	if err != nil || !found {
		return "", found, err
	}

	if !secretFields[field] {
		return value, true, nil
	}

	plaintext, err := e.cipher.Decrypt(value)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

func (e *EncryptedStore) GetAll(ctx context.Context, provider string) (map[string]string, bool, error) {
	fields, found, err := e.inner.GetAll(ctx, provider)
	if err != nil || !found {
		return nil, found, err
	}

	decrypted := make(map[string]string, len(fields))
	for field, value := range fields {
		if secretFields[field] {
			plaintext, err := e.cipher.Decrypt(value)
			if err != nil {
				return nil, false, err
			}
			decrypted[field] = plaintext
		} else {
			decrypted[field] = value
		}
	}
	return decrypted, true, nil
}

func (e *EncryptedStore) SetField(ctx context.Context, provider, field, value string) error {
	if secretFields[field] {
		encrypted, err := e.cipher.Encrypt(value)
		if err != nil {
			return err
		}
		value = encrypted
	}
	return e.inner.SetField(ctx, provider, field, value)
}

func (e *EncryptedStore) ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error {
	encrypted := make(map[string]string, len(fields))
	for field, value := range fields {
		if secretFields[field] {
			ciphertext, err := e.cipher.Encrypt(value)
			if err != nil {
				return err
			}
			encrypted[field] = ciphertext
		} else {
			encrypted[field] = value
		}
	}
	return e.inner.ReplaceCredential(ctx, provider, encrypted)
}

func (e *EncryptedStore) DeleteCredential(ctx context.Context, provider string) error {
	return e.inner.DeleteCredential(ctx, provider)
}

func (e *EncryptedStore) Providers(ctx context.Context) ([]string, error) {
	return e.inner.Providers(ctx)
}

func (e *EncryptedStore) Health(ctx context.Context) error {
	return e.inner.Health(ctx)
}

func (e *EncryptedStore) Close() error {
	return e.inner.Close()
}
