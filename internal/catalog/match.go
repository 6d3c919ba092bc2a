package catalog

import "strings"

// Match returns the entries whose "<sub-service name> <category title>" contains
// every whitespace-separated term of query, case-insensitively. A blank query
// matches nothing.
func (c *Catalog) Match(query string, limit int) []Entry {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	var out []Entry
	for _, entry := range c.Entries() {
		haystack := strings.ToLower(entry.SubService.Name + " " + entry.Category.Title)
		if containsAll(haystack, terms) {
			out = append(out, entry)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
