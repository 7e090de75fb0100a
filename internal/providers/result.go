package providers

// maxPerSource caps how many hits one upstream data source contributes. A
// provider with several sources (Slack searches messages and files) may
// return up to the cap from each.
const maxPerSource = 5

// SearchResult is one hit from a provider search, reduced to the fields
// worth showing a user. Providers fill only the fields they have; empty
// fields are skipped at render time.
type SearchResult struct {
	Source   string
	Title    string
	Type     string
	Username string
	Text     string
	Excerpt  string
	Link     string
}
