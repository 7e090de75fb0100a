package aggregator

import (
	"strings"

	"workspace-search/internal/providers"
)

// Format renders search outcomes as plain text: one block per result with
// its non-empty fields, blank lines between blocks. Only surviving results
// appear; skipped and failed providers contribute nothing, failures having
// already been logged where they happened.
func Format(outcomes map[string]Outcome, order []string) string {
	var blocks []string

	for _, name := range order {
		o, ok := outcomes[name]
		if !ok || o.Skipped || o.Err != nil {
			continue
		}
		for _, r := range o.Results {
			blocks = append(blocks, formatResult(r))
		}
	}

	if len(blocks) == 0 {
		return "No results found."
	}
	return strings.Join(blocks, "\n\n")
}

func formatResult(r providers.SearchResult) string {
	var lines []string

	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("source", r.Source)
	add("title", r.Title)
	add("type", r.Type)
	add("username", r.Username)
	add("text", r.Text)
	add("excerpt", r.Excerpt)
	add("link", r.Link)

	return strings.Join(lines, "\n")
}
