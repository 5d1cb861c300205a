package usercfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestConfigRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	config := Config{
		APIURL:             "https://api.trakly.example",
		WebURL:             "https://app.trakly.example",
		ProjectID:          "proj-1",
		ProjectKey:         "TRAK",
		WorkflowTemplateID: "tpl-1",
		TokenEnv:           "MY_TOKEN",
		UIPrefs:            UIPreferences{LastSelectedCol: 2, LastFilter: "login"},
	}

	if err := Save(config); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	configPath := filepath.Join(tempDir, ".config", "trakboard", "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created at %s", configPath)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.APIURL != config.APIURL || loaded.WebURL != config.WebURL {
		t.Errorf("URLs not preserved: got %s / %s", loaded.APIURL, loaded.WebURL)
	}
	if loaded.ProjectID != "proj-1" || loaded.ProjectKey != "TRAK" {
		t.Errorf("Project not preserved: got %s (%s)", loaded.ProjectID, loaded.ProjectKey)
	}
	if loaded.WorkflowTemplateID != "tpl-1" {
		t.Errorf("Template not preserved: got %s", loaded.WorkflowTemplateID)
	}
	if loaded.TokenEnv != "MY_TOKEN" {
		t.Errorf("TokenEnv not preserved: got %s", loaded.TokenEnv)
	}
	if loaded.UIPrefs.LastSelectedCol != 2 || loaded.UIPrefs.LastFilter != "login" {
		t.Errorf("UI prefs not preserved: got %+v", loaded.UIPrefs)
	}
	if loaded.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", loaded.SchemaVersion, CurrentSchemaVersion)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := Load()
	if err != ErrNotConfigured {
		t.Fatalf("Expected ErrNotConfigured when no config file, got: %v", err)
	}

	if config.APIURL != "" || config.ProjectID != "" {
		t.Errorf("Defaults should leave api_url and project_id empty: got %+v", config)
	}
	if config.TokenEnv != DefaultTokenEnv {
		t.Errorf("Default token env incorrect: got %s", config.TokenEnv)
	}
	if config.RequestTimeoutDuration().Seconds() != 30 {
		t.Errorf("Default request timeout incorrect: got %v", config.RequestTimeoutDuration())
	}
	if config.MoveTimeoutDuration().Seconds() != 15 {
		t.Errorf("Default move timeout incorrect: got %v", config.MoveTimeoutDuration())
	}
	if IsConfigured() {
		t.Error("IsConfigured() = true with no file and no env")
	}
}

func TestEnvVarOverlays(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRAKBOARD_API_URL", "https://env.example.com")
	t.Setenv("TRAKBOARD_WEB_URL", "https://web.example.com")
	t.Setenv("TRAKBOARD_PROJECT", " proj-env ")
	t.Setenv("TRAKBOARD_TEMPLATE", "tpl-env")
	t.Setenv("TRAKBOARD_FIXTURE", "/tmp/board.yaml")

	config := GetRuntimeConfig()

	if config.APIURL != "https://env.example.com" {
		t.Errorf("Expected API URL from env var, got %s", config.APIURL)
	}
	if config.WebURL != "https://web.example.com" {
		t.Errorf("Expected web URL from env var, got %s", config.WebURL)
	}
	if config.ProjectID != "proj-env" {
		t.Errorf("Expected trimmed project from env var, got %q", config.ProjectID)
	}
	if config.WorkflowTemplateID != "tpl-env" {
		t.Errorf("Expected template from env var, got %s", config.WorkflowTemplateID)
	}
	if !config.Offline() {
		t.Error("Expected fixture from env var to switch to offline mode")
	}
	if !IsConfigured() {
		t.Error("IsConfigured() = false with env vars set")
	}
}

func TestToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(DefaultTokenEnv, "  abc  ")

	config := GetRuntimeConfig()
	if got := config.Token(); got != "abc" {
		t.Errorf("Token() = %q, want abc", got)
	}

	config.TokenEnv = "OTHER_TOKEN_VAR_UNSET"
	if got := config.Token(); got != "" {
		t.Errorf("Token() = %q, want empty", got)
	}
}

func TestXDGCompliance(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	xdgPath := filepath.Join(tempDir, ".config", "trakboard", "config.toml")
	legacyPath := filepath.Join(tempDir, ".config", "trakboard.toml")

	if err := os.MkdirAll(filepath.Dir(xdgPath), 0755); err != nil {
		t.Fatalf("Failed to create XDG config dir: %v", err)
	}

	writeTOML(t, legacyPath, Config{APIURL: "https://legacy.example.com", ProjectID: "legacy"})

	// Only the legacy file exists
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to load legacy config: %v", err)
	}
	if loaded.ProjectID != "legacy" {
		t.Errorf("Expected legacy config to load, got project %s", loaded.ProjectID)
	}

	// The XDG path takes precedence once it exists
	writeTOML(t, xdgPath, Config{APIURL: "https://xdg.example.com", ProjectID: "xdg"})
	loaded, err = Load()
	if err != nil {
		t.Fatalf("Failed to load XDG config: %v", err)
	}
	if loaded.ProjectID != "xdg" {
		t.Errorf("Expected XDG config to win, got project %s", loaded.ProjectID)
	}
}

func TestSchemaMigration(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	legacy := "trakly_url = \"https://old.example.com\"\nproject_id = \"p\"\n"
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.APIURL != "https://old.example.com" {
		t.Errorf("trakly_url not migrated: got %q", loaded.APIURL)
	}
	if loaded.LegacyTraklyURL != "" {
		t.Errorf("legacy field kept: %q", loaded.LegacyTraklyURL)
	}

	if err := MigrateAndSave(); err != nil {
		t.Fatalf("MigrateAndSave: %v", err)
	}

	var raw Config
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatalf("decode migrated file: %v", err)
	}
	if raw.SchemaVersion != CurrentSchemaVersion || raw.APIURL != "https://old.example.com" {
		t.Errorf("migrated file = %+v", raw)
	}

	if err := MigrateAndSave(); err == nil {
		t.Error("Expected error when config is already current")
	}
}

func TestMigrateAndSaveWithoutConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := MigrateAndSave(); err == nil {
		t.Error("Expected error with no config file")
	}
}

func TestUIPrefs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Save(Config{APIURL: "https://api.example.com", ProjectID: "p"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveUIPrefs(UIPreferences{LastSelectedCol: 3, ShowExtraFields: true}); err != nil {
		t.Fatalf("SaveUIPrefs: %v", err)
	}

	prefs := GetUIPrefs()
	if prefs.LastSelectedCol != 3 || !prefs.ShowExtraFields {
		t.Errorf("GetUIPrefs() = %+v", prefs)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ProjectID != "p" {
		t.Error("SaveUIPrefs clobbered other settings")
	}

	t.Setenv("TRAKBOARD_IGNORE_UI_PREFS", "1")
	if prefs := GetUIPrefs(); prefs != (UIPreferences{}) {
		t.Errorf("Expected empty prefs when ignored, got %+v", prefs)
	}
}

func TestInvalidTOML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("api_url = [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil || err == ErrNotConfigured {
		t.Errorf("Expected decode error, got %v", err)
	}

	// Runtime config degrades to defaults instead of failing
	config := GetRuntimeConfig()
	if config.TokenEnv != DefaultTokenEnv {
		t.Errorf("Expected defaults after decode error, got %+v", config)
	}
}

func writeTOML(t *testing.T, path string, config Config) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(config); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
