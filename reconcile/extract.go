package reconcile

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minClauseLength is the shortest verb-led clause kept as a candidate, in
// characters.
const minClauseLength = 6

// Verb-led clauses run from the verb to the next sentence boundary or the end
// of the line. Each verb is matched on its own so overlapping clauses
// ("add tests and implement caching") surface once per verb.
var clausePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)\badds?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bimplements?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bcreates?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bbuilds?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bfix(?:es)?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bupdates?\s+(.+?)(?:[.,;]|$)`),
	regexp.MustCompile(`(?m)\bimproves?\s+(.+?)(?:[.,;]|$)`),
}

var (
	bulletPattern   = regexp.MustCompile(`^[-*•]\s+(.+)$`)
	numberedPattern = regexp.MustCompile(`^\d+\.\s+(.+)$`)
	checkboxPrefix  = regexp.MustCompile(`^\[[ xX]\]\s+`)
)

// Extract pulls candidate task descriptions out of a free-form request.
// Verb-led clauses come first (lowercased, grouped by verb), then bullet and
// numbered list items in line order. The two sets are not deduplicated
// against each other.
func Extract(request string) []string {
	var candidates []string
	candidates = append(candidates, extractClauses(request)...)
	candidates = append(candidates, extractListItems(request)...)
	return candidates
}

func extractClauses(request string) []string {
	lowered := strings.ToLower(request)
	var clauses []string
	for _, pattern := range clausePatterns {
		for _, match := range pattern.FindAllStringSubmatch(lowered, -1) {
			clause := strings.TrimSpace(match[1])
			if utf8.RuneCountInString(clause) < minClauseLength {
				continue
			}
			clauses = append(clauses, clause)
		}
	}
	return clauses
}

func extractListItems(request string) []string {
	var items []string
	for _, line := range strings.Split(request, "\n") {
		line = strings.TrimSpace(line)
		var match []string
		if match = bulletPattern.FindStringSubmatch(line); match == nil {
			match = numberedPattern.FindStringSubmatch(line)
		}
		if match == nil {
			continue
		}
		item := strings.TrimSpace(checkboxPrefix.ReplaceAllString(match[1], ""))
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
