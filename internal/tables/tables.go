// Package tables maps raw rows from the locked file channel into typed
// records. Schemas are positional; rows narrower than a schema are
// skipped rather than reported, which tolerates legacy and partially
// written rows. Each table may start with a header row, detected by
// comparing the first cell case-insensitively against a known token
// unless the header mode pins it either way.
package tables

import "strings"

// HeaderMode controls how a leading header row is handled.
type HeaderMode string

const (
	// HeaderAuto sniffs the first cell of the first row.
	HeaderAuto HeaderMode = "auto"
	// HeaderPresent always drops the first row.
	HeaderPresent HeaderMode = "present"
	// HeaderAbsent treats every row as data.
	HeaderAbsent HeaderMode = "absent"
)

func dropHeader(rows [][]string, mode HeaderMode, token string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	switch mode {
	case HeaderPresent:
		return rows[1:]
	case HeaderAbsent:
		return rows
	default:
		if len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), token) {
			return rows[1:]
		}
		return rows
	}
}

// NormalizeKey is the lookup form of an entity key: trimmed and
// upper-cased. Stored keys stay verbatim.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
