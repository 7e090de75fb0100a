package storage

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// storeFactories builds each backend fresh for the shared contract tests.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "creds.db"))
			if err != nil {
				t.Fatalf("failed to create sqlite store: %v", err)
			}
			return store
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			store, err := NewRedisStore(RedisConfig{Address: mr.Addr()})
			if err != nil {
				t.Fatalf("failed to create redis store: %v", err)
			}
			return store
		},
	}
}

func TestStore_FieldRoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			_, found, err := store.GetField(ctx, "google", FieldAccessToken)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if found {
				t.Fatal("expected field absent before write")
			}

			if err := store.SetField(ctx, "google", FieldAccessToken, "token-1"); err != nil {
				t.Fatalf("set failed: %v", err)
			}

			value, found, err := store.GetField(ctx, "google", FieldAccessToken)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if !found || value != "token-1" {
				t.Errorf("got (%q, %v), want (token-1, true)", value, found)
			}

			// Overwrite
			if err := store.SetField(ctx, "google", FieldAccessToken, "token-2"); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			value, _, _ = store.GetField(ctx, "google", FieldAccessToken)
			if value != "token-2" {
				t.Errorf("expected overwritten value, got %q", value)
			}
		})
	}
}

func TestStore_ProviderIsolation(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			store.SetField(ctx, "google", FieldAccessToken, "google-token")
			store.SetField(ctx, "slack", FieldAccessToken, "slack-token")

			value, _, _ := store.GetField(ctx, "google", FieldAccessToken)
			if value != "google-token" {
				t.Errorf("google field leaked: %q", value)
			}
			value, _, _ = store.GetField(ctx, "slack", FieldAccessToken)
			if value != "slack-token" {
				t.Errorf("slack field leaked: %q", value)
			}
		})
	}
}

func TestStore_ReplaceCredential(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			store.SetField(ctx, "atlassian", FieldAccessToken, "old-token")
			store.SetField(ctx, "atlassian", FieldMetadata, `{"cloud_id":"old"}`)

			err := store.ReplaceCredential(ctx, "atlassian", map[string]string{
				FieldAccessToken:  "new-token",
				FieldRefreshToken: "new-refresh",
			})
			if err != nil {
				t.Fatalf("replace failed: %v", err)
			}

			value, _, _ := store.GetField(ctx, "atlassian", FieldAccessToken)
			if value != "new-token" {
				t.Errorf("expected new token, got %q", value)
			}

			// Fields not in the replacement must be gone
			_, found, _ := store.GetField(ctx, "atlassian", FieldMetadata)
			if found {
				t.Error("expected stale metadata field removed by replace")
			}
		})
	}
}

func TestStore_DeleteCredential(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			store.SetField(ctx, "slack", FieldAccessToken, "token")
			if err := store.DeleteCredential(ctx, "slack"); err != nil {
				t.Fatalf("delete failed: %v", err)
			}

			_, found, _ := store.GetField(ctx, "slack", FieldAccessToken)
			if found {
				t.Error("expected field gone after delete")
			}
		})
	}
}

func TestStore_Providers(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			store.SetField(ctx, "google", FieldAccessToken, "a")
			store.SetField(ctx, "slack", FieldAccessToken, "b")

			providers, err := store.Providers(ctx)
			if err != nil {
				t.Fatalf("providers failed: %v", err)
			}
			sort.Strings(providers)
			if len(providers) != 2 || providers[0] != "google" || providers[1] != "slack" {
				t.Errorf("unexpected providers: %v", providers)
			}
		})
	}
}

func TestStore_Health(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := store.Health(ctx); err != nil {
				t.Errorf("health check failed: %v", err)
			}
		})
	}
}

func TestStore_GetAllSnapshot(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			_, found, err := store.GetAll(ctx, "google")
			if err != nil {
				t.Fatalf("get all failed: %v", err)
			}
			if found {
				t.Fatal("expected nothing before write")
			}

			store.ReplaceCredential(ctx, "google", map[string]string{
				FieldAccessToken: "at",
				FieldScope:       "drive",
			})

			fields, found, err := store.GetAll(ctx, "google")
			if err != nil || !found {
				t.Fatalf("get all failed: (%v, %v)", found, err)
			}
			if fields[FieldAccessToken] != "at" || fields[FieldScope] != "drive" {
				t.Errorf("unexpected fields: %v", fields)
			}
		})
	}
}

// TestStore_ReadNeverMixesCredentialVersions hammers GetCredential while
// ReplaceCredential alternates between two internally consistent
// credentials. Every read must come back matching one version or the
// other; a token from one paired with a scope from the other means the
// snapshot guarantee is broken.
func TestStore_ReadNeverMixesCredentialVersions(t *testing.T) {
	versions := map[string]string{"at-A": "scope-A", "at-B": "scope-B"}

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			seed := &Credential{Provider: "google", AccessToken: "at-A", Scope: "scope-A"}
			if err := PutCredential(ctx, store, seed); err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 500; i++ {
					cred := &Credential{Provider: "google", AccessToken: "at-A", Scope: "scope-A"}
					if i%2 == 0 {
						cred = &Credential{Provider: "google", AccessToken: "at-B", Scope: "scope-B"}
					}
					if err := PutCredential(ctx, store, cred); err != nil {
						t.Errorf("put failed: %v", err)
						return
					}
				}
			}()

			for {
				select {
				case <-done:
					return
				default:
				}
				cred, found, err := GetCredential(ctx, store, "google")
				if err != nil {
					t.Fatalf("get failed: %v", err)
				}
				if !found {
					t.Fatal("credential vanished mid-replace")
				}
				if versions[cred.AccessToken] != cred.Scope {
					t.Fatalf("torn read: access_token=%q scope=%q", cred.AccessToken, cred.Scope)
				}
			}
		})
	}
}

func TestGetPutCredential(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := GetCredential(ctx, store, "google")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Fatal("expected no credential before put")
	}

	expiry := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	cred := &Credential{
		Provider:     "google",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expiry,
		Scope:        "drive.readonly",
	}
	if err := PutCredential(ctx, store, cred); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, found, err := GetCredential(ctx, store, "google")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected credential after put")
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("unexpected credential: %+v", got)
	}
}
