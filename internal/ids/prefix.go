package ids

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrNoMatch is returned when a prefix matches no ID.
	ErrNoMatch = errors.New("no id matches prefix")

	// ErrAmbiguousPrefix is returned when a prefix matches more than one ID.
	ErrAmbiguousPrefix = errors.New("ambiguous id prefix")
)

// UniquePrefixLengths returns the shortest unique prefix length for each ID,
// keyed by the lower-cased ID. Duplicates and empty IDs are skipped.
func UniquePrefixLengths(ids []string) map[string]int {
	sorted := dedupeLower(ids)
	slices.Sort(sorted)

	// In sorted order an ID shares its longest common prefix with a neighbor.
	lengths := make(map[string]int, len(sorted))
	for i, id := range sorted {
		shared := 0
		if i > 0 {
			shared = commonPrefixLength(id, sorted[i-1])
		}
		if i+1 < len(sorted) {
			shared = max(shared, commonPrefixLength(id, sorted[i+1]))
		}
		lengths[id] = min(shared+1, len(id))
	}
	return lengths
}

// ResolvePrefix returns the single ID in ids that starts with prefix.
func ResolvePrefix(prefix string, ids []string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(prefix))
	if needle == "" {
		return "", fmt.Errorf("%w: empty prefix", ErrNoMatch)
	}
	var matches []string
	for _, id := range dedupeLower(ids) {
		if id == needle {
			return id, nil
		}
		if strings.HasPrefix(id, needle) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNoMatch, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousPrefix, prefix, strings.Join(matches, ", "))
	}
}

func dedupeLower(ids []string) []string {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		lower := strings.ToLower(id)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		unique = append(unique, lower)
	}
	return unique
}

func commonPrefixLength(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
