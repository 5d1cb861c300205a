package board

import (
	"strings"
	"unicode"
)

// Filter keeps the issues matching query, in their input order. The query
// is split on spaces and every term must match. "type:" and "priority:"
// terms compare against those fields; any other term is matched fuzzily
// against the key, title and assignee name.
func Filter(issues []Issue, query string) []Issue {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return issues
	}
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if matchesAll(is, terms) {
			out = append(out, is)
		}
	}
	return out
}

func matchesAll(is Issue, terms []string) bool {
	haystack := normalize(is.Key + " " + is.Title + " " + is.AssigneeName)
	for _, term := range terms {
		field, value, scoped := strings.Cut(term, ":")
		if scoped && value != "" {
			switch strings.ToLower(field) {
			case "type", "t":
				if !strings.EqualFold(is.Type, value) {
					return false
				}
				continue
			case "priority", "prio", "p":
				if !strings.EqualFold(is.Priority, value) {
					return false
				}
				continue
			}
		}
		if FuzzyScore(normalize(term), haystack) < 0 {
			return false
		}
	}
	return true
}

// FuzzyMatch reports whether the runes of pattern appear in target in
// order, ignoring case.
func FuzzyMatch(pattern, target string) bool {
	p := []rune(strings.ToLower(pattern))
	if len(p) == 0 {
		return true
	}
	i := 0
	for _, r := range strings.ToLower(target) {
		if r == p[i] {
			i++
			if i == len(p) {
				return true
			}
		}
	}
	return false
}

// FuzzyScore rates a fuzzy match from 0 to 100, or -1 for no match.
// Consecutive runs and substring hits score higher; long targets lower.
func FuzzyScore(pattern, target string) int {
	if !FuzzyMatch(pattern, target) {
		return -1
	}
	p := []rune(strings.ToLower(pattern))
	if len(p) == 0 {
		return 100
	}
	lowerTarget := strings.ToLower(target)

	score, run, pi := 0, 0, 0
	for i, r := range []rune(lowerTarget) {
		if pi < len(p) && r == p[pi] {
			pi++
			run++
			score += 10 + run
		} else {
			run = 0
		}
		if i > len(p)*3 {
			score--
		}
	}
	if strings.Contains(lowerTarget, string(p)) {
		score += 20
	}

	maxScore := len(p) * 15
	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}
	return score * 100 / maxScore
}

// normalize lowercases text and drops punctuation other than '-'.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
