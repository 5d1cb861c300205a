package tracker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/logger"
)

// cacheTTL bounds how long a discovered project list is reused.
const cacheTTL = 24 * time.Hour

type discoveryCache struct {
	APIURL    string    `json:"api_url"`
	Projects  []Project `json:"projects"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectLister is the part of Client used by discovery.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]Project, error)
}

// DiscoverProjects lists projects for setup, reusing a recent cache for the
// same API URL.
func DiscoverProjects(ctx context.Context, apiURL string, lister ProjectLister) ([]Project, error) {
	cacheFile := getCacheFilePath()

	if cached, ok := loadFromCache(cacheFile, apiURL); ok {
		logger.Tracker("using %d cached projects", len(cached))
		return cached, nil
	}

	projects, err := lister.ListProjects(ctx)
	if err != nil {
		return nil, errors.NewProjectDiscoveryError(err)
	}

	saveToCache(cacheFile, apiURL, projects)
	return projects, nil
}

func getCacheFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "trakboard", "projects_cache.json")
}

func loadFromCache(cacheFile, apiURL string) ([]Project, bool) {
	if cacheFile == "" {
		return nil, false
	}

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		return nil, false
	}

	var cache discoveryCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, false
	}

	if cache.APIURL != apiURL || time.Since(cache.Timestamp) > cacheTTL {
		return nil, false
	}

	return cache.Projects, true
}

func saveToCache(cacheFile, apiURL string, projects []Project) {
	if cacheFile == "" {
		return
	}

	data, err := json.Marshal(discoveryCache{
		APIURL:    apiURL,
		Projects:  projects,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	os.MkdirAll(filepath.Dir(cacheFile), 0755)
	os.WriteFile(cacheFile, data, 0644)
}

// RankProjects orders projects for the setup picker: the preferred key
// first, then active projects, then by key. Ties keep a stable order.
func RankProjects(projects []Project, preferredKey string) []Project {
	score := func(p Project) int {
		s := 0
		if preferredKey != "" && strings.EqualFold(p.Key, preferredKey) {
			s += 100
		}
		if p.IsActive {
			s += 10
		}
		name := strings.ToLower(p.Name)
		if strings.Contains(name, "archive") || strings.Contains(name, "deprecated") {
			s -= 5
		}
		return s
	}

	ranked := make([]Project, len(projects))
	copy(ranked, projects)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Key < ranked[j].Key
	})
	return ranked
}
