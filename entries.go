package promo

import "strings"

// ParseEntries splits newline-delimited text into trimmed, non-empty entries.
// Order of first appearance is kept and duplicates are allowed.
func ParseEntries(text string, maxEntries int) ([]string, error) {
	if maxEntries <= 0 {
		maxEntries = MaxEntries
	}

	entries := splitEntries(text)
	if err := ValidateEntryCount(len(entries), maxEntries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountEntries returns how many entries text would parse into, without validating
func CountEntries(text string) int {
	return len(splitEntries(text))
}

func splitEntries(text string) []string {
	lines := strings.Split(text, "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		if entry := strings.TrimSpace(line); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
