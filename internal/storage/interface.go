package storage

import "context"

// Store is the credential persistence contract shared by all backends.
//
// GetField's second return value distinguishes "absent" from "stored empty
// string"; callers treat both the same for secrets but the distinction
// matters for metadata fields.
type Store interface {
	// GetField returns one field of a provider's credential.
	GetField(ctx context.Context, provider, field string) (value string, found bool, err error)

	// GetAll returns every stored field of a provider's credential as one
	// consistent snapshot. A reader racing ReplaceCredential sees either
	// the old credential or the new one, never fields from both.
	GetAll(ctx context.Context, provider string) (fields map[string]string, found bool, err error)

	// SetField writes one field of a provider's credential.
	SetField(ctx context.Context, provider, field, value string) error

	// ReplaceCredential atomically replaces all fields of a provider's
	// credential. Readers never observe a mix of old and new fields.
	ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error

	// DeleteCredential removes every stored field for a provider.
	DeleteCredential(ctx context.Context, provider string) error

	// Providers lists providers that currently have stored fields.
	Providers(ctx context.Context) ([]string, error)

	// Health checks the backend connection.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// GetCredential reads a provider's full field set in one snapshot and
// assembles it. The bool reports whether anything at all was stored for
// the provider.
func GetCredential(ctx context.Context, s Store, provider string) (*Credential, bool, error) {
	fields, found, err := s.GetAll(ctx, provider)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	cred, err := CredentialFromFields(provider, fields)
	if err != nil {
		return nil, false, err
	}
	return cred, true, nil
}

// PutCredential flattens a credential and atomically replaces the
// provider's stored fields with it.
func PutCredential(ctx context.Context, s Store, cred *Credential) error {
	fields, err := cred.Fields()
	if err != nil {
		return err
	}
	return s.ReplaceCredential(ctx, cred.Provider, fields)
}
