package providers

import (
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"workspace-search/internal/common/errors"
)

func TestGoogleDescriptor(t *testing.T) {
	d := NewGoogle(testCreds())

	if d.Name != NameGoogle {
		t.Errorf("name = %q", d.Name)
	}
	if d.AuthExtras.Get("access_type") != "offline" {
		t.Error("expected offline access requested")
	}
	if d.AuthExtras.Get("prompt") != "consent" {
		t.Error("expected consent prompt so google re-issues refresh tokens")
	}
	if len(d.Scopes) != 2 || d.Scopes[0] != googleScopes[0] || d.Scopes[1] != googleScopes[1] {
		t.Errorf("unexpected scopes: %v", d.Scopes)
	}
}

func TestClassifyGoogleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType errors.ErrorType
	}{
		{
			"unauthorized",
			&googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"},
			errors.ErrTypeAuth,
		},
		{
			"forbidden",
			&googleapi.Error{Code: http.StatusForbidden, Message: "quota exceeded"},
			errors.ErrTypeUpstream,
		},
		{
			"server error",
			&googleapi.Error{Code: http.StatusServiceUnavailable},
			errors.ErrTypeUpstream,
		},
		{
			"network failure",
			fmt.Errorf("connection reset"),
			errors.ErrTypeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGoogleError(tt.err)
			if !errors.IsType(got, tt.wantType) {
				t.Errorf("error type = %v, want %v", errors.GetType(got), tt.wantType)
			}
		})
	}
}
