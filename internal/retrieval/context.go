package retrieval

import (
	"fmt"
	"strings"
)

// buildContext renders ranked results into a generator-ready text block:
// results grouped per document under a source label, each annotated with
// its relevance. Assembly stops once the character budget is reached and
// the block ends with a marker stating how many results were omitted, so
// truncation is never silent.
func buildContext(results []Result, charBudget int) string {
	if len(results) == 0 {
		return ""
	}

	// Group results per document, preserving rank order within and
	// across groups (groups appear in order of their best result).
	var order []string
	groups := make(map[string][]Result)
	for _, r := range results {
		if _, ok := groups[r.DocumentID]; !ok {
			order = append(order, r.DocumentID)
		}
		groups[r.DocumentID] = append(groups[r.DocumentID], r)
	}

	var b strings.Builder
	included := 0
	budgetReached := false

	// Once the budget is hit, no later result may be added: lower-ranked
	// groups must not fill space a higher-ranked result was denied.
	for _, docID := range order {
		group := groups[docID]

		header := sourceLabel(group[0])
		if b.Len()+len(header) > charBudget {
			break
		}
		headerWritten := false

		for _, r := range group {
			entry := fmt.Sprintf("[relevance %.2f] %s\n", r.Similarity, r.Content)
			pending := len(entry)
			if !headerWritten {
				pending += len(header)
			}
			if b.Len()+pending > charBudget {
				budgetReached = true
				break
			}
			if !headerWritten {
				b.WriteString(header)
				headerWritten = true
			}
			b.WriteString(entry)
			included++
		}
		if budgetReached {
			break
		}
	}

	if omitted := len(results) - included; omitted > 0 {
		b.WriteString(fmt.Sprintf("... [%d more results omitted]\n", omitted))
	}

	return b.String()
}

func sourceLabel(r Result) string {
	name := r.DocumentName
	if name == "" {
		name = r.DocumentID
	}
	if r.DocumentStatus != "" {
		return fmt.Sprintf("\n=== Source: %s (%s) ===\n", name, r.DocumentStatus)
	}
	return fmt.Sprintf("\n=== Source: %s ===\n", name)
}
