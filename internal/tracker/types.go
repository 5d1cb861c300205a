// Package tracker talks to the Trakly issue tracker, or to a YAML board file
// standing in for it, and converts its payloads into board types.
package tracker

import (
	"context"
	"time"

	"github.com/trakly/trakboard/internal/board"
)

// Service supplies board data and persists column changes.
type Service interface {
	board.ColumnChanger
	LoadBoard(ctx context.Context) (Snapshot, error)
	IssueURL(key string) string
}

// Project is a Trakly project as listed by the API.
type Project struct {
	ID                 string `json:"id" yaml:"id"`
	Key                string `json:"key" yaml:"key"`
	Name               string `json:"name" yaml:"name"`
	Slug               string `json:"slug,omitempty" yaml:"slug,omitempty"`
	IsActive           bool   `json:"is_active" yaml:"is_active"`
	WorkflowTemplateID string `json:"workflow_template_id,omitempty" yaml:"workflow_template_id,omitempty"`
}

// Snapshot is one authoritative read of a board.
type Snapshot struct {
	Project   Project
	Columns   []board.Column
	Issues    []board.Issue
	FetchedAt time.Time
}

type columnDTO struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Position int     `json:"position" yaml:"position"`
	WIPLimit *int    `json:"wip_limit,omitempty" yaml:"wip_limit,omitempty"`
	Color    *string `json:"color,omitempty" yaml:"color,omitempty"`
}

type templateDTO struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Columns []columnDTO `json:"columns"`
}

type userDTO struct {
	ID       string `json:"id" yaml:"id"`
	FullName string `json:"full_name" yaml:"full_name"`
}

type issueDTO struct {
	ID               string   `json:"id" yaml:"id"`
	IssueKey         string   `json:"issue_key" yaml:"key"`
	Title            string   `json:"title" yaml:"title"`
	IssueType        string   `json:"issue_type" yaml:"type"`
	Priority         string   `json:"priority" yaml:"priority"`
	AssigneeID       *string  `json:"assignee_id" yaml:"assignee_id,omitempty"`
	Assignee         *userDTO `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	WorkflowColumnID *string  `json:"workflow_column_id" yaml:"column,omitempty"`
}

func (c columnDTO) toColumn() board.Column {
	return board.Column{
		ID:       c.ID,
		Name:     c.Name,
		Position: c.Position,
		Color:    c.Color,
		WIPLimit: c.WIPLimit,
	}
}

func (d issueDTO) toIssue() board.Issue {
	is := board.Issue{
		ID:         d.ID,
		Key:        d.IssueKey,
		Title:      d.Title,
		Type:       d.IssueType,
		Priority:   d.Priority,
		AssigneeID: d.AssigneeID,
		ColumnID:   d.WorkflowColumnID,
	}
	if d.Assignee != nil {
		is.AssigneeName = d.Assignee.FullName
		if is.AssigneeID == nil && d.Assignee.ID != "" {
			id := d.Assignee.ID
			is.AssigneeID = &id
		}
	}
	return is
}

func toColumns(dtos []columnDTO) []board.Column {
	out := make([]board.Column, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toColumn())
	}
	return out
}

func toIssues(dtos []issueDTO) []board.Issue {
	out := make([]board.Issue, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toIssue())
	}
	return out
}
