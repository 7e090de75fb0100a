// Package storage persists delegated provider credentials as provider-scoped
// field/value pairs. Backends exist for SQLite, PostgreSQL, Redis and an
// in-memory map; all of them store whatever bytes they are given, so token
// encryption is layered on top by EncryptedStore.
package storage

import (
	"encoding/json"
	"time"

	"workspace-search/internal/common/errors"
)

// Well-known credential field names. Backends treat fields opaquely; these
// constants exist so every layer spells them the same way.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldExpiresAt    = "expires_at"
	FieldScope        = "scope"
	FieldMetadata     = "provider_metadata"
)

// Credential is the assembled view of one provider's stored grant.
//
// A zero ExpiresAt means the token does not expire; Slack user tokens
// behave this way.
type Credential struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	Metadata     map[string]string
}

// Expired reports whether the access token's lifetime has passed at the
// given instant. Non-expiring tokens never report expired.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Fields flattens the credential into the field/value form the backends
// store. Zero expiry and empty metadata are stored as empty strings.
func (c *Credential) Fields() (map[string]string, error) {
	fields := map[string]string{
		FieldAccessToken:  c.AccessToken,
		FieldRefreshToken: c.RefreshToken,
		FieldScope:        c.Scope,
	}

	if c.ExpiresAt.IsZero() {
		fields[FieldExpiresAt] = ""
	} else {
		fields[FieldExpiresAt] = c.ExpiresAt.UTC().Format(time.RFC3339)
	}

	if len(c.Metadata) == 0 {
		fields[FieldMetadata] = ""
	} else {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, errors.InternalError("failed to encode provider metadata", err)
		}
		fields[FieldMetadata] = string(raw)
	}

	return fields, nil
}

// CredentialFromFields reassembles a credential from stored fields. Missing
// fields yield zero values; a malformed expiry or metadata blob is an error
// since it means the store was corrupted or written by something else.
func CredentialFromFields(provider string, fields map[string]string) (*Credential, error) {
	cred := &Credential{
		Provider:     provider,
		AccessToken:  fields[FieldAccessToken],
		RefreshToken: fields[FieldRefreshToken],
		Scope:        fields[FieldScope],
	}

	if raw := fields[FieldExpiresAt]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.InternalError("failed to parse stored expiry", err)
		}
		cred.ExpiresAt = expiresAt
	}

	if raw := fields[FieldMetadata]; raw != "" {
		metadata := make(map[string]string)
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, errors.InternalError("failed to decode provider metadata", err)
		}
		cred.Metadata = metadata
	}

	return cred, nil
}
