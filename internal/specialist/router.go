package specialist

import "strings"

// Detect picks the specialist whose trigger vocabulary best matches the
// message, or reports none. Matching is case-insensitive substring counting
// over each profile's keyword list. A specialist is selected when it has at
// least two distinct keyword hits; on equal counts the lexicographically
// smallest id wins. When no specialist reaches two hits, a fallback pass
// scans profiles in id order and selects the first with any matching keyword
// longer than five characters, so strongly specific single terms still route.
func Detect(message string) (string, bool) {
	lower := strings.ToLower(message)

	bestID := ""
	bestCount := 0
	for _, p := range All() {
		count := 0
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			bestID, bestCount = p.ID, count
		}
	}
	if bestCount >= 2 {
		return bestID, true
	}

	for _, p := range All() {
		for _, kw := range p.Keywords {
			if len(kw) > 5 && strings.Contains(lower, kw) {
				return p.ID, true
			}
		}
	}
	return "", false
}
