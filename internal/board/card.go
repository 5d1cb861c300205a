package board

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// UnassignedInitial is shown on cards that have no assignee.
const UnassignedInitial = "-"

// Card is the display model of one issue.
type Card struct {
	IssueID         string
	Key             string
	Title           string
	Type            string
	Priority        string
	AssigneeInitial string
}

// CardFor projects an issue onto its card. The assignee initial prefers the
// display name and falls back to the assignee id.
func CardFor(is Issue) Card {
	return Card{
		IssueID:         is.ID,
		Key:             is.Key,
		Title:           is.Title,
		Type:            is.Type,
		Priority:        is.Priority,
		AssigneeInitial: assigneeInitial(is),
	}
}

// Cards projects a bucket of issues in order.
func Cards(issues []Issue) []Card {
	out := make([]Card, len(issues))
	for i, is := range issues {
		out[i] = CardFor(is)
	}
	return out
}

func assigneeInitial(is Issue) string {
	if is.AssigneeID == nil {
		return UnassignedInitial
	}
	for _, s := range []string{is.AssigneeName, *is.AssigneeID} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(r))
	}
	return UnassignedInitial
}
