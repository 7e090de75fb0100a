package storage

import (
	"testing"
	"time"
)

func TestCredential_FieldsRoundTrip(t *testing.T) {
	expiry := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred Credential
	}{
		{
			"full credential",
			Credential{
				Provider:     "google",
				AccessToken:  "access-value",
				RefreshToken: "refresh-value",
				ExpiresAt:    expiry,
				Scope:        "drive.readonly",
				Metadata:     map[string]string{"cloud_id": "abc-123"},
			},
		},
		{
			"non-expiring token",
			Credential{
				Provider:    "slack",
				AccessToken: "xoxp-token",
				Scope:       "search:read",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := tt.cred.Fields()
			if err != nil {
				t.Fatalf("Fields failed: %v", err)
			}

			got, err := CredentialFromFields(tt.cred.Provider, fields)
			if err != nil {
				t.Fatalf("CredentialFromFields failed: %v", err)
			}

			if got.AccessToken != tt.cred.AccessToken {
				t.Errorf("access token mismatch: %q", got.AccessToken)
			}
			if got.RefreshToken != tt.cred.RefreshToken {
				t.Errorf("refresh token mismatch: %q", got.RefreshToken)
			}
			if !got.ExpiresAt.Equal(tt.cred.ExpiresAt) {
				t.Errorf("expiry mismatch: got %v, want %v", got.ExpiresAt, tt.cred.ExpiresAt)
			}
			if got.Scope != tt.cred.Scope {
				t.Errorf("scope mismatch: %q", got.Scope)
			}
			if len(got.Metadata) != len(tt.cred.Metadata) {
				t.Errorf("metadata mismatch: %v", got.Metadata)
			}
			for k, v := range tt.cred.Metadata {
				if got.Metadata[k] != v {
					t.Errorf("metadata[%s] = %q, want %q", k, got.Metadata[k], v)
				}
			}
		})
	}
}

func TestCredential_Expired(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"future expiry", now.Add(time.Hour), false},
		{"past expiry", now.Add(-time.Hour), true},
		{"exactly now", now, true},
		{"zero means non-expiring", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &Credential{ExpiresAt: tt.expiresAt}
			if got := cred.Expired(now); got != tt.expired {
				t.Errorf("Expired = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestCredentialFromFields_Malformed(t *testing.T) {
	if _, err := CredentialFromFields("google", map[string]string{
		FieldExpiresAt: "next tuesday",
	}); err == nil {
		t.Error("expected error for malformed expiry")
	}

	if _, err := CredentialFromFields("google", map[string]string{
		FieldMetadata: "{not-json",
	}); err == nil {
		t.Error("expected error for malformed metadata")
	}
}
