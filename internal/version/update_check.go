package version

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"
	selfupdate "github.com/creativeprojects/go-selfupdate"

	"github.com/trakly/trakboard/internal/logger"
)

const (
	updateCheckTTL  = 24 * time.Hour
	updateCacheFile = "update_check.json"
	releaseSlug     = "trakly/trakboard"
)

var (
	// ErrDevBuild is returned when asked to replace an unreleased binary.
	ErrDevBuild = errors.New("cannot self-update a dev build; install a released version first")
	// ErrNoRelease means no release asset matches this OS and architecture.
	ErrNoRelease = errors.New("no release found for your OS/architecture")
)

// UpdateCheckResult holds the outcome of a background update check.
type UpdateCheckResult struct {
	NewVersion string // empty means no update available (or check skipped/failed)
}

type updateCache struct {
	LatestVersion  string    `json:"latest_version"`
	CheckedVersion string    `json:"checked_version"` // version that was running when we last checked
	Timestamp      time.Time `json:"timestamp"`
}

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, err
	}
	return selfupdate.NewUpdater(selfupdate.Config{
		Source:    source,
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
}

// StartUpdateCheck launches a background goroutine that checks for updates.
// Returns a channel that will receive exactly one result.
func StartUpdateCheck() <-chan UpdateCheckResult {
	ch := make(chan UpdateCheckResult, 1)
	go func() {
		defer close(ch)
		ch <- UpdateCheckResult{NewVersion: checkForUpdate(GetShortVersion())}
	}()
	return ch
}

func checkForUpdate(current string) string {
	if current == "dev" {
		return ""
	}

	// A cache written by another version is ignored so an upgrade re-checks.
	if cached, ok := loadUpdateCache(); ok && cached.CheckedVersion == current {
		if isNewerThan(cached.LatestVersion, current) {
			return cached.LatestVersion
		}
		return ""
	}

	updater, err := newUpdater()
	if err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(releaseSlug))
	if err != nil || !found {
		// Cache current version so we don't hammer GitHub when offline
		saveUpdateCache(current, current)
		return ""
	}

	latestVer := latest.Version()
	saveUpdateCache(latestVer, current)

	if latest.LessOrEqual(current) {
		return ""
	}
	return latestVer
}

// SelfUpdate replaces the running binary with the latest release. It
// returns the installed version, or "" when already up to date.
func SelfUpdate(ctx context.Context, current string) (string, error) {
	if current == "dev" {
		return "", ErrDevBuild
	}
	updater, err := newUpdater()
	if err != nil {
		return "", err
	}
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(releaseSlug))
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNoRelease
	}
	if latest.LessOrEqual(current) {
		return "", nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", err
	}
	logger.Info("updating %s to %s", exe, latest.Version())
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return "", err
	}
	saveUpdateCache(latest.Version(), latest.Version())
	return latest.Version(), nil
}

func isNewerThan(latest, current string) bool {
	lv, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false
	}
	cv, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false
	}
	return lv.GreaterThan(cv)
}

func updateCachePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "trakboard", updateCacheFile)
}

func loadUpdateCache() (updateCache, bool) {
	return loadUpdateCacheFrom(updateCachePath())
}

func saveUpdateCache(latestVersion, checkedVersion string) {
	saveUpdateCacheTo(updateCachePath(), latestVersion, checkedVersion)
}

func loadUpdateCacheFrom(path string) (updateCache, bool) {
	var cache updateCache
	if path == "" {
		return cache, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cache, false
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, false
	}
	if time.Since(cache.Timestamp) > updateCheckTTL {
		return cache, false
	}
	return cache, true
}

func saveUpdateCacheTo(path string, latestVersion, checkedVersion string) {
	if path == "" {
		return
	}

	data, err := json.Marshal(updateCache{
		LatestVersion:  latestVersion,
		CheckedVersion: checkedVersion,
		Timestamp:      time.Now(),
	})
	if err != nil {
		return
	}

	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, data, 0644)
}
