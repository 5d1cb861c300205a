package usercfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/logger"
)

// ErrNotConfigured is returned when no config file exists and no env vars are set.
var ErrNotConfigured = fmt.Errorf("trakboard is not configured; run: trakboard setup")

// IsConfigured returns true if a config file exists or essential env vars are set.
func IsConfigured() bool {
	if os.Getenv("TRAKBOARD_API_URL") != "" && os.Getenv("TRAKBOARD_PROJECT") != "" {
		return true
	}
	if os.Getenv("TRAKBOARD_FIXTURE") != "" {
		return true
	}
	for _, p := range []string{Path(), LegacyPath()} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

type Config struct {
	SchemaVersion      int           `toml:"schema_version,omitempty"`
	APIURL             string        `toml:"api_url"`
	WebURL             string        `toml:"web_url,omitempty"`
	ProjectID          string        `toml:"project_id"`
	ProjectKey         string        `toml:"project_key,omitempty"`
	WorkflowTemplateID string        `toml:"workflow_template_id,omitempty"`
	TokenEnv           string        `toml:"token_env,omitempty"`
	FixtureFile        string        `toml:"fixture_file,omitempty"`
	RequestTimeout     int           `toml:"request_timeout_seconds,omitempty"`
	MoveTimeout        int           `toml:"move_timeout_seconds,omitempty"`
	UIPrefs            UIPreferences `toml:"ui_prefs,omitempty"`

	// Schema 0 name of api_url.
	LegacyTraklyURL string `toml:"trakly_url,omitempty"`
}

type UIPreferences struct {
	LastFilter      string `toml:"last_filter,omitempty"`
	LastSelectedCol int    `toml:"last_selected_col,omitempty"`
	ShowExtraFields bool   `toml:"show_extra_fields,omitempty"`
}

const CurrentSchemaVersion = 1

func Path() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	// Prefer XDG-compliant path: ~/.config/trakboard/config.toml
	return filepath.Join(homeDir, ".config", "trakboard", "config.toml")
}

func LegacyPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	// Legacy path for backward compatibility
	return filepath.Join(homeDir, ".config", "trakboard.toml")
}

// existingPath returns the config file to read and whether it is the legacy one.
func existingPath() (string, bool, error) {
	configPath := Path()
	legacyPath := LegacyPath()
	if configPath == "" || legacyPath == "" {
		return "", false, fmt.Errorf("unable to determine home directory")
	}
	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}
	if _, err := os.Stat(legacyPath); err == nil {
		return legacyPath, true, nil
	}
	return "", false, ErrNotConfigured
}

func Load() (Config, error) {
	actualPath, legacy, err := existingPath()
	if err == ErrNotConfigured {
		return getDefaults(), ErrNotConfigured
	}
	if err != nil {
		return getDefaults(), errors.NewConfigError("load", err)
	}

	var config Config
	if _, err := toml.DecodeFile(actualPath, &config); err != nil {
		return getDefaults(), errors.NewConfigError("load", fmt.Errorf("failed to decode config file: %v", err))
	}

	if legacy {
		fmt.Fprintf(os.Stderr, "Warning: Using legacy config path %s. Consider moving to %s\n", actualPath, Path())
	}
	logger.Config("loaded %s", actualPath)

	return mergeWithDefaults(migrateConfig(config)), nil
}

func Save(config Config) error {
	configPath := Path()
	if configPath == "" {
		return fmt.Errorf("unable to determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	logger.Config("saved %s", configPath)
	return nil
}

func GetRuntimeConfig() Config {
	config, err := Load()
	if err != nil && err != ErrNotConfigured {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		config = getDefaults()
	}

	// Apply environment variable overlays
	return applyEnvOverlays(config)
}

func mergeWithDefaults(config Config) Config {
	d := getDefaults()
	config.SchemaVersion = CurrentSchemaVersion
	if config.TokenEnv == "" {
		config.TokenEnv = d.TokenEnv
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = d.RequestTimeout
	}
	if config.MoveTimeout <= 0 {
		config.MoveTimeout = d.MoveTimeout
	}
	// APIURL and ProjectID stay empty if unset; callers prompt for setup.
	return config
}

// Token reads the API token from the configured environment variable.
func (c Config) Token() string {
	return strings.TrimSpace(os.Getenv(c.TokenEnv))
}

// RequestTimeoutDuration is the per-request HTTP timeout.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// MoveTimeoutDuration bounds one column-change call.
func (c Config) MoveTimeoutDuration() time.Duration {
	return time.Duration(c.MoveTimeout) * time.Second
}

// Offline reports whether the board is served from a YAML file.
func (c Config) Offline() bool {
	return c.FixtureFile != ""
}

// applyEnvOverlays applies environment variable overlays to the config
func applyEnvOverlays(config Config) Config {
	if v := os.Getenv("TRAKBOARD_API_URL"); v != "" {
		config.APIURL = v
	}
	if v := os.Getenv("TRAKBOARD_WEB_URL"); v != "" {
		config.WebURL = v
	}
	if v := os.Getenv("TRAKBOARD_PROJECT"); v != "" {
		config.ProjectID = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRAKBOARD_TEMPLATE"); v != "" {
		config.WorkflowTemplateID = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRAKBOARD_FIXTURE"); v != "" {
		config.FixtureFile = v
	}
	return config
}

// migrateConfig performs in-memory migration of config from older schema versions
func migrateConfig(config Config) Config {
	if config.SchemaVersion == 0 {
		// Schema 0 called the API base trakly_url.
		if config.APIURL == "" && config.LegacyTraklyURL != "" {
			config.APIURL = config.LegacyTraklyURL
		}
		config.LegacyTraklyURL = ""
		config.SchemaVersion = 1
		logger.Config("migrated config from schema version 0 to %d", config.SchemaVersion)
	}

	// Future migrations would go here:
	// if config.SchemaVersion < 2 { ... }

	return config
}

// MigrateAndSave loads the config, applies migrations, and saves it back to disk
// This is used by the `trakboard config migrate` command
func MigrateAndSave() error {
	actualPath, _, err := existingPath()
	if err == ErrNotConfigured {
		return fmt.Errorf("no config file found to migrate")
	}
	if err != nil {
		return err
	}

	var rawConfig Config
	if _, err := toml.DecodeFile(actualPath, &rawConfig); err != nil {
		return fmt.Errorf("failed to decode config file: %v", err)
	}

	originalVersion := rawConfig.SchemaVersion
	if originalVersion == CurrentSchemaVersion {
		return fmt.Errorf("config is already at current schema version %d", CurrentSchemaVersion)
	}

	config, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load config for migration: %v", err)
	}

	if err := Save(config); err != nil {
		return fmt.Errorf("failed to save migrated config: %v", err)
	}

	fmt.Printf("Successfully migrated config from schema version %d to %d\n", originalVersion, config.SchemaVersion)
	return nil
}

// SaveUIPrefs saves only the UI preferences to the config file
// This is lightweight and can be called frequently without impacting other config values
func SaveUIPrefs(prefs UIPreferences) error {
	config, err := Load()
	if err != nil {
		config = getDefaults()
	}

	config.UIPrefs = prefs
	return Save(config)
}

// GetUIPrefs returns the current UI preferences from the runtime config
func GetUIPrefs() UIPreferences {
	// Allow ignoring UI prefs via env for troubleshooting
	if os.Getenv("TRAKBOARD_IGNORE_UI_PREFS") == "1" {
		return UIPreferences{}
	}
	return GetRuntimeConfig().UIPrefs
}
