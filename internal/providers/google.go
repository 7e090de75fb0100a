package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/config"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/drive.metadata.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

// NewGoogle builds the Google Drive descriptor. Authorization requests
// offline access so Google issues a refresh token.
func NewGoogle(creds config.ProviderCredentials) *Descriptor {
	return newGoogle(creds, "")
}

// newGoogle lets tests point the Drive client at a local server.
func newGoogle(creds config.ProviderCredentials, endpoint string) *Descriptor {
	return &Descriptor{
		Name:         NameGoogle,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AuthURL:      googleAuthURL,
		TokenURL:     googleTokenURL,
		Scopes:       googleScopes,
		AuthExtras: url.Values{
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
		Search: googleSearch(endpoint),
	}
}

// googleSearch runs a Drive full-text search and maps the files to
// results.
func googleSearch(endpoint string) SearchFunc {
	return func(ctx context.Context, client *http.Client, accessToken string, metadata map[string]string, query string) ([]SearchResult, error) {
		opts := []option.ClientOption{
			option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
		}
		if endpoint != "" {
			opts = append(opts, option.WithEndpoint(endpoint))
		}

		srv, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, errors.UpstreamError("failed to create drive client", err)
		}

		escaped := strings.ReplaceAll(query, `"`, `\"`)
		list, err := srv.Files.List().
			Q(fmt.Sprintf(`fullText contains "%s"`, escaped)).
			PageSize(maxPerSource).
			Fields("files(id,name,mimeType,webViewLink)").
			Context(ctx).
			Do()
		if err != nil {
			return nil, classifyGoogleError(err)
		}

		results := make([]SearchResult, 0, len(list.Files))
		for _, f := range list.Files {
			results = append(results, SearchResult{
				Source: NameGoogle,
				Title:  f.Name,
				Type:   f.MimeType,
				Link:   f.WebViewLink,
			})
		}
		return results, nil
	}
}

// classifyGoogleError maps a Drive API failure to our error taxonomy. Only
// an explicit 401 counts as a credential rejection.
func classifyGoogleError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == http.StatusUnauthorized {
			return errors.AuthError("google rejected the access token")
		}
		return errors.UpstreamError(fmt.Sprintf("drive search failed with status %d", apiErr.Code), err)
	}
	return errors.UpstreamError("drive search failed", err)
}
