package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/config"
)

const (
	slackAuthURL  = "https://slack.com/oauth/v2/authorize"
	slackTokenURL = "https://slack.com/api/oauth.v2.access"
	slackAPIBase  = "https://slack.com/api"
)

// slackAuthFailures are the API error codes that mean the token itself was
// rejected rather than the call failing for some other reason.
var slackAuthFailures = map[string]bool{
	"invalid_auth":     true,
	"token_expired":    true,
	"token_revoked":    true,
	"account_inactive": true,
}

// NewSlack builds the Slack descriptor. Slack's v2 flow grants a user
// token nested under authed_user, and user tokens do not expire, so there
// is no refresh path.
func NewSlack(creds config.ProviderCredentials) *Descriptor {
	return newSlack(creds, slackAPIBase)
}

// newSlack lets tests point API calls at a local server.
func newSlack(creds config.ProviderCredentials, apiBase string) *Descriptor {
	return &Descriptor{
		Name:         NameSlack,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AuthURL:      slackAuthURL,
		TokenURL:     slackTokenURL,
		// Searching as the user needs user_scope, not the bot scope param
		AuthExtras: url.Values{
			"user_scope": {"search:read"},
		},
		ParseToken: parseSlackToken,
		Search:     slackSearch(apiBase),
	}
}

// parseSlackToken unwraps Slack's oauth.v2.access envelope. The user token
// lives under authed_user and carries no expiry.
func parseSlackToken(body []byte) (*TokenGrant, error) {
	var resp struct {
		OK         bool   `json:"ok"`
		Error      string `json:"error"`
		AuthedUser struct {
			AccessToken string `json:"access_token"`
			Scope       string `json:"scope"`
		} `json:"authed_user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.UpstreamError("failed to parse slack token response", err)
	}
	if !resp.OK {
		return nil, errors.UpstreamError(fmt.Sprintf("slack token exchange failed: %s", resp.Error), nil)
	}
	if resp.AuthedUser.AccessToken == "" {
		return nil, errors.UpstreamError("no user token in slack response", nil)
	}

	return &TokenGrant{
		AccessToken: resp.AuthedUser.AccessToken,
		Scope:       resp.AuthedUser.Scope,
	}, nil
}

// slackSearch runs search.all and flattens message and file matches.
// Slack reports failures in the body with HTTP 200, so classification
// reads the error code rather than the status.
func slackSearch(apiBase string) SearchFunc {
	return func(ctx context.Context, client *http.Client, accessToken string, metadata map[string]string, query string) ([]SearchResult, error) {
		searchURL := fmt.Sprintf("%s/search.all?query=%s&count=10", apiBase, url.QueryEscape(query))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, errors.InternalError("failed to create search request", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.UpstreamError("slack search request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.UpstreamError("failed to read search response", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.UpstreamError(fmt.Sprintf("slack search returned status %d", resp.StatusCode), nil)
		}

		var parsed struct {
			OK       bool   `json:"ok"`
			Error    string `json:"error"`
			Messages struct {
				Matches []struct {
					Username  string `json:"username"`
					Text      string `json:"text"`
					Permalink string `json:"permalink"`
				} `json:"matches"`
			} `json:"messages"`
			Files struct {
				Matches []struct {
					Title     string `json:"title"`
					Name      string `json:"name"`
					Permalink string `json:"permalink"`
				} `json:"matches"`
			} `json:"files"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, errors.UpstreamError("failed to parse search response", err)
		}

		if !parsed.OK {
			if slackAuthFailures[parsed.Error] {
				return nil, errors.AuthError(fmt.Sprintf("slack rejected the token: %s", parsed.Error))
			}
			return nil, errors.UpstreamError(fmt.Sprintf("slack search failed: %s", parsed.Error), nil)
		}

		// Messages and files are separate data sources, each capped on its own
		var results []SearchResult
		for i, m := range parsed.Messages.Matches {
			if i == maxPerSource {
				break
			}
			results = append(results, SearchResult{
				Source:   NameSlack,
				Username: m.Username,
				Text:     m.Text,
				Link:     m.Permalink,
			})
		}
		for i, f := range parsed.Files.Matches {
			if i == maxPerSource {
				break
			}
			title := f.Title
			if title == "" {
				title = f.Name
			}
			results = append(results, SearchResult{
				Source: NameSlack,
				Title:  title,
				Link:   f.Permalink,
			})
		}
		return results, nil
	}
}
