package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/config"
)

const (
	atlassianAuthURL  = "https://auth.atlassian.com/authorize"
	atlassianTokenURL = "https://auth.atlassian.com/oauth/token"
	atlassianAPIBase  = "https://api.atlassian.com"
)

// NewAtlassian builds the Atlassian Confluence descriptor. After the code
// exchange it resolves the user's accessible site to a cloud id, which
// every later search call needs.
func NewAtlassian(creds config.ProviderCredentials) *Descriptor {
	return newAtlassian(creds, atlassianAPIBase)
}

// newAtlassian lets tests point API calls at a local server.
func newAtlassian(creds config.ProviderCredentials, apiBase string) *Descriptor {
	return &Descriptor{
		Name:         NameAtlassian,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AuthURL:      atlassianAuthURL,
		TokenURL:     atlassianTokenURL,
		Scopes: []string{
			"read:confluence-content.all",
			"read:confluence-content.summary",
			"search:confluence",
			"offline_access",
		},
		AuthExtras: url.Values{
			"audience": {"api.atlassian.com"},
			"prompt":   {"consent"},
		},
		PostExchange: atlassianResolveCloudID(apiBase),
		Search:       atlassianSearch(apiBase),
	}
}

// atlassianResolveCloudID looks up the sites the new token can reach and
// records the first one's cloud id for search routing.
func atlassianResolveCloudID(apiBase string) func(ctx context.Context, client *http.Client, grant *TokenGrant) (map[string]string, error) {
	return func(ctx context.Context, client *http.Client, grant *TokenGrant) (map[string]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/oauth/token/accessible-resources", nil)
		if err != nil {
			return nil, errors.InternalError("failed to create accessible-resources request", err)
		}
		req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.UpstreamError("accessible-resources request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.UpstreamError("failed to read accessible-resources response", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.UpstreamError(fmt.Sprintf("accessible-resources returned status %d", resp.StatusCode), nil)
		}

		var sites []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if err := json.Unmarshal(body, &sites); err != nil {
			return nil, errors.UpstreamError("failed to parse accessible-resources response", err)
		}
		if len(sites) == 0 {
			return nil, errors.UpstreamError("token has no accessible atlassian sites", nil)
		}

		return map[string]string{
			"cloud_id": sites[0].ID,
			"site_url": sites[0].URL,
		}, nil
	}
}

// atlassianSearch runs a CQL text search against the Confluence cloud
// instance recorded at authorization time.
func atlassianSearch(apiBase string) SearchFunc {
	return func(ctx context.Context, client *http.Client, accessToken string, metadata map[string]string, query string) ([]SearchResult, error) {
		cloudID := metadata["cloud_id"]
		if cloudID == "" {
			return nil, errors.InternalError("atlassian credential has no cloud id", nil)
		}

		escaped := strings.ReplaceAll(query, `"`, `\"`)
		cql := fmt.Sprintf(`text~"%s"`, escaped)

		searchURL := fmt.Sprintf("%s/ex/confluence/%s/wiki/rest/api/search?cql=%s&limit=%d",
			apiBase, cloudID, url.QueryEscape(cql), maxPerSource)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, errors.InternalError("failed to create search request", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.UpstreamError("confluence search request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.UpstreamError("failed to read search response", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.AuthError("atlassian rejected the access token")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.UpstreamError(fmt.Sprintf("confluence search returned status %d", resp.StatusCode), nil)
		}

		var parsed struct {
			Results []struct {
				Title   string `json:"title"`
				Excerpt string `json:"excerpt"`
				URL     string `json:"url"`
			} `json:"results"`
			Links struct {
				Base string `json:"base"`
			} `json:"_links"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, errors.UpstreamError("failed to parse search response", err)
		}

		results := make([]SearchResult, 0, len(parsed.Results))
		for i, r := range parsed.Results {
			if i == maxPerSource {
				break
			}
			link := r.URL
			if strings.HasPrefix(link, "/") && parsed.Links.Base != "" {
				link = parsed.Links.Base + link
			}
			results = append(results, SearchResult{
				Source:  NameAtlassian,
				Title:   r.Title,
				Excerpt: r.Excerpt,
				Link:    link,
			})
		}
		return results, nil
	}
}
