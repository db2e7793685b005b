// Package ballot turns raw chat text into a move candidate.
package ballot

import (
	"strconv"
	"strings"
)

// UCIResolver maps a coordinate move ("e2e4", "e7e8q") to the SAN of the matching
// legal move in the current position.
type UCIResolver func(uci string) (san string, ok bool)

var votePrefixes = []string{"!vote ", "!v "}

// Normalize strips check and mate annotations. Comparison only; the legal form is
// what gets recorded and resolved.
func Normalize(move string) string {
	return strings.TrimRight(strings.TrimSpace(move), "+#")
}

// Strip removes a "!vote"/"!v" prefix. ok is false for other commands.
func Strip(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)
	for _, p := range votePrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(text[len(p):]), true
		}
	}
	if strings.HasPrefix(text, "!") {
		return "", false
	}
	return text, true
}

// Parse extracts a legal move from text. Accepted forms, tried in order: SAN with or
// without +/#, a 1-based index into legal, and UCI through resolve.
func Parse(raw string, legal []string, resolve UCIResolver) (string, bool) {
	text, ok := Strip(raw)
	if !ok || text == "" {
		return "", false
	}
	// votes are a single token; "e4 please" still counts
	if i := strings.IndexAny(text, " \t"); i > 0 {
		text = text[:i]
	}
	want := Normalize(text)
	for _, m := range legal {
		if Normalize(m) == want {
			return m, true
		}
	}
	// pawn captures are often typed in lower case ("exd5" is already lower, "BXC3" is not)
	for _, m := range legal {
		if strings.EqualFold(Normalize(m), want) && !ambiguousFold(legal, m) {
			return m, true
		}
	}
	if n, err := strconv.Atoi(want); err == nil {
		if n >= 1 && n <= len(legal) {
			return legal[n-1], true
		}
		return "", false
	}
	if resolve != nil && looksUCI(want) {
		if san, ok := resolve(strings.ToLower(want)); ok {
			for _, m := range legal {
				if Normalize(m) == Normalize(san) {
					return m, true
				}
			}
		}
	}
	return "", false
}

// ambiguousFold reports whether another legal move differs from m only by case,
// e.g. "bxc3" (pawn) and "Bxc3" (bishop).
func ambiguousFold(legal []string, m string) bool {
	key := Normalize(m)
	for _, other := range legal {
		if other != m && strings.EqualFold(Normalize(other), key) {
			return true
		}
	}
	return false
}

func looksUCI(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	s = strings.ToLower(s)
	sq := func(f, r byte) bool { return f >= 'a' && f <= 'h' && r >= '1' && r <= '8' }
	if !sq(s[0], s[1]) || !sq(s[2], s[3]) {
		return false
	}
	return len(s) == 4 || strings.ContainsRune("qrbn", rune(s[4]))
}
