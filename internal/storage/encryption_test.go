package storage

import (
	"context"
	"strings"
	"testing"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/crypto"
)

func newEncryptedStore(t *testing.T) (*EncryptedStore, *MemoryStore) {
	t.Helper()
	cipher, err := crypto.NewCipher("test-encryption-key")
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	inner := NewMemoryStore()
	return NewEncryptedStore(inner, cipher), inner
}

func TestEncryptedStore_TokensEncryptedAtRest(t *testing.T) {
	store, inner := newEncryptedStore(t)
	ctx := context.Background()

	if err := store.SetField(ctx, "google", FieldAccessToken, "plaintext-token"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// The backend must never see the plaintext
	raw, found, _ := inner.GetField(ctx, "google", FieldAccessToken)
	if !found {
		t.Fatal("expected field in backend")
	}
	if raw == "plaintext-token" || strings.Contains(raw, "plaintext") {
		t.Errorf("token stored in the clear: %q", raw)
	}

	// Reading through the wrapper returns the plaintext
	value, found, err := store.GetField(ctx, "google", FieldAccessToken)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || value != "plaintext-token" {
		t.Errorf("got (%q, %v), want (plaintext-token, true)", value, found)
	}
}

func TestEncryptedStore_NonSecretFieldsPassThrough(t *testing.T) {
	store, inner := newEncryptedStore(t)
	ctx := context.Background()

	store.SetField(ctx, "google", FieldScope, "drive.readonly")

	raw, _, _ := inner.GetField(ctx, "google", FieldScope)
	if raw != "drive.readonly" {
		t.Errorf("expected scope stored in the clear, got %q", raw)
	}
}

func TestEncryptedStore_ReplaceEncryptsSecrets(t *testing.T) {
	store, inner := newEncryptedStore(t)
	ctx := context.Background()

	err := store.ReplaceCredential(ctx, "slack", map[string]string{
		FieldAccessToken: "xoxp-secret",
		FieldScope:       "search:read",
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	rawToken, _, _ := inner.GetField(ctx, "slack", FieldAccessToken)
	if rawToken == "xoxp-secret" {
		t.Error("token stored in the clear")
	}
	rawScope, _, _ := inner.GetField(ctx, "slack", FieldScope)
	if rawScope != "search:read" {
		t.Errorf("expected scope in the clear, got %q", rawScope)
	}

	value, _, _ := store.GetField(ctx, "slack", FieldAccessToken)
	if value != "xoxp-secret" {
		t.Errorf("round trip failed: %q", value)
	}
}

func TestEncryptedStore_UndecryptableValue(t *testing.T) {
	store, inner := newEncryptedStore(t)
	ctx := context.Background()

	// Simulate a value written under a rotated key
	inner.SetField(ctx, "google", FieldAccessToken, "bm90LXJlYWwtY2lwaGVydGV4dA==")

	_, _, err := store.GetField(ctx, "google", FieldAccessToken)
	if err == nil {
		t.Fatal("expected error for undecryptable value")
	}
	if !errors.IsType(err, errors.ErrTypeDecryption) {
		t.Errorf("expected decryption error, got %v", errors.GetType(err))
	}
}

func TestEncryptedStore_EmptyTokenStaysEmpty(t *testing.T) {
	store, inner := newEncryptedStore(t)
	ctx := context.Background()

	store.SetField(ctx, "slack", FieldRefreshToken, "")

	raw, found, _ := inner.GetField(ctx, "slack", FieldRefreshToken)
	if !found || raw != "" {
		t.Errorf("expected empty string stored, got (%q, %v)", raw, found)
	}

	value, found, err := store.GetField(ctx, "slack", FieldRefreshToken)
	if err != nil || !found || value != "" {
		t.Errorf("expected empty round trip, got (%q, %v, %v)", value, found, err)
	}
}
