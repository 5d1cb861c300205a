package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trakly/trakboard/internal/board"
	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/httputil"
	"github.com/trakly/trakboard/internal/logger"
)

// issuePageSize is the largest page the issues endpoint serves.
const issuePageSize = 1000

// Options configures a Client.
type Options struct {
	APIURL     string
	WebURL     string
	Token      string
	ProjectID  string
	TemplateID string
	HTTP       *httputil.RetryableClient
}

// Client reads boards from the Trakly REST API and writes column moves back.
type Client struct {
	apiURL     string
	webURL     string
	token      string
	projectID  string
	templateID string
	http       *httputil.RetryableClient
}

// NewClient validates opts and returns a client for one project.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIURL) == "" {
		return nil, errors.NewNotConfiguredError("api_url")
	}
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, errors.NewNotConfiguredError("project_id")
	}
	hc := opts.HTTP
	if hc == nil {
		hc = httputil.NewDefaultClient()
	}
	web := strings.TrimRight(opts.WebURL, "/")
	if web == "" {
		web = strings.TrimRight(opts.APIURL, "/")
	}
	return &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		webURL:     web,
		token:      opts.Token,
		projectID:  opts.ProjectID,
		templateID: opts.TemplateID,
		http:       hc,
	}, nil
}

// NewDirectory returns a client bound to no project. Only ListProjects is
// usable; setup calls it before a project has been chosen.
func NewDirectory(apiURL, token string, hc *httputil.RetryableClient) (*Client, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, errors.NewNotConfiguredError("api_url")
	}
	if hc == nil {
		hc = httputil.NewDefaultClient()
	}
	base := strings.TrimRight(apiURL, "/")
	return &Client{apiURL: base, webURL: base, token: token, http: hc}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.apiURL + "/api/v1" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out interface{}) error {
	req, err := httputil.NewJSONRequest(method, c.endpoint(path, q), c.token, body)
	if err != nil {
		return err
	}
	return c.http.DoJSONRequest(ctx, req, out)
}

// ListProjects returns the active projects visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	q := url.Values{"limit": {"1000"}, "active_only": {"true"}}
	if err := c.do(ctx, http.MethodGet, "/projects", q, nil, &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	logger.Tracker("listed %d projects", len(projects))
	return projects, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// ListColumns returns the columns of a workflow template. An empty id asks
// for the organization default. A missing template yields no columns so the
// board falls back to its built-in set.
func (c *Client) ListColumns(ctx context.Context, templateID string) ([]board.Column, error) {
	path := "/workflows/default"
	if templateID != "" {
		path = "/workflows/" + url.PathEscape(templateID)
	}
	var tpl templateDTO
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &tpl); err != nil {
		if errors.StatusCode(err) == http.StatusNotFound {
			logger.Tracker("workflow %q not found, using built-in columns", templateID)
			return nil, nil
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	logger.Tracker("workflow %q has %d columns", tpl.Name, len(tpl.Columns))
	return toColumns(tpl.Columns), nil
}

// ListIssues pages through every issue of the project.
func (c *Client) ListIssues(ctx context.Context, projectID string) ([]board.Issue, error) {
	var all []issueDTO
	for skip := 0; ; skip += issuePageSize {
		q := url.Values{
			"project_id": {projectID},
			"skip":       {strconv.Itoa(skip)},
			"limit":      {strconv.Itoa(issuePageSize)},
		}
		var page []issueDTO
		if err := c.do(ctx, http.MethodGet, "/issues", q, nil, &page); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		all = append(all, page...)
		if len(page) < issuePageSize {
			break
		}
	}
	logger.Tracker("fetched %d issues for project %s", len(all), projectID)
	return toIssues(all), nil
}

// ChangeColumn moves an issue to another workflow column.
func (c *Client) ChangeColumn(ctx context.Context, issueID, columnID string) error {
	body := map[string]string{"workflow_column_id": columnID}
	if err := c.do(ctx, http.MethodPatch, "/issues/"+url.PathEscape(issueID), nil, body, nil); err != nil {
		logger.Tracker("move %s -> %s failed: %v", issueID, columnID, err)
		return fmt.Errorf("move issue %s: %w", issueID, err)
	}
	logger.Tracker("moved %s -> %s", issueID, columnID)
	return nil
}

// LoadBoard reads the project's columns and issues concurrently.
func (c *Client) LoadBoard(ctx context.Context) (Snapshot, error) {
	var (
		snap    Snapshot
		project Project
		columns []board.Column
		issues  []board.Issue
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.GetProject(gctx, c.projectID)
		if err != nil {
			return err
		}
		project = p
		tpl := c.templateID
		if tpl == "" {
			tpl = p.WorkflowTemplateID
		}
		columns, err = c.ListColumns(gctx, tpl)
		return err
	})
	g.Go(func() error {
		var err error
		issues, err = c.ListIssues(gctx, c.projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return snap, errors.WrapWithContext(err, "tracker_connection")
	}

	snap = Snapshot{
		Project:   project,
		Columns:   columns,
		Issues:    issues,
		FetchedAt: time.Now(),
	}
	return snap, nil
}

// IssueURL returns the web page of an issue.
func (c *Client) IssueURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", c.webURL, key)
}
