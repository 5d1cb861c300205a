package tracker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trakly/trakboard/internal/board"
	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/logger"
)

// boardFile is the on-disk layout of an offline board.
type boardFile struct {
	Project Project     `yaml:"project"`
	Columns []columnDTO `yaml:"columns"`
	Issues  []issueDTO  `yaml:"issues"`
}

// FileService serves a board from a YAML file and writes moves back to it.
type FileService struct {
	path   string
	webURL string
	mu     sync.Mutex
}

// NewFileService returns a service backed by the YAML file at path.
func NewFileService(path, webURL string) *FileService {
	return &FileService{path: path, webURL: webURL}
}

func (f *FileService) read() (boardFile, error) {
	var bf boardFile
	data, err := os.ReadFile(f.path)
	if err != nil {
		return bf, errors.NewFixtureError(f.path, err)
	}
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return bf, errors.NewFixtureError(f.path, err)
	}
	return bf, nil
}

func (f *FileService) write(bf boardFile) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(bf); err != nil {
		return fmt.Errorf("encode board file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode board file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".trakboard-*.yaml")
	if err != nil {
		return fmt.Errorf("write board file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write board file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write board file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// LoadBoard reads the file.
func (f *FileService) LoadBoard(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	bf, err := f.read()
	f.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	logger.Tracker("loaded %d columns and %d issues from %s", len(bf.Columns), len(bf.Issues), f.path)
	return Snapshot{
		Project:   bf.Project,
		Columns:   toColumns(bf.Columns),
		Issues:    toIssues(bf.Issues),
		FetchedAt: time.Now(),
	}, nil
}

// ChangeColumn rewrites the issue's column in the file.
func (f *FileService) ChangeColumn(ctx context.Context, issueID, columnID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	bf, err := f.read()
	if err != nil {
		return err
	}
	if !hasColumn(bf.Columns, columnID) {
		return fmt.Errorf("move issue %s: unknown column %q", issueID, columnID)
	}
	for i := range bf.Issues {
		if bf.Issues[i].ID != issueID {
			continue
		}
		col := columnID
		bf.Issues[i].WorkflowColumnID = &col
		if err := f.write(bf); err != nil {
			return err
		}
		logger.Tracker("moved %s -> %s in %s", issueID, columnID, f.path)
		return nil
	}
	return fmt.Errorf("move issue %s: no such issue in %s", issueID, f.path)
}

// IssueURL returns the web page of an issue, or "" without a web URL.
func (f *FileService) IssueURL(key string) string {
	if f.webURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/browse/%s", f.webURL, key)
}

func hasColumn(cols []columnDTO, id string) bool {
	if len(cols) == 0 {
		return board.IsDefault(id)
	}
	for _, c := range cols {
		if c.ID == id {
			return true
		}
	}
	return false
}
