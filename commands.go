package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trakly/trakboard/internal/usercfg"
	"github.com/trakly/trakboard/internal/version"
)

func runConfigMigrate(cmd *cobra.Command, args []string) {
	err := usercfg.MigrateAndSave()
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func runConfigPath(cmd *cobra.Command, args []string) {
	fmt.Println(usercfg.Path())
}

func runConfigPrint(cmd *cobra.Command, args []string) {
	config := usercfg.GetRuntimeConfig()

	fmt.Printf("Configuration (effective):\n")
	fmt.Printf("  Schema Version: %d\n", config.SchemaVersion)
	fmt.Printf("  API URL: %s\n", config.APIURL)
	fmt.Printf("  Web URL: %s\n", config.WebURL)
	fmt.Printf("  Project: %s (%s)\n", config.ProjectKey, config.ProjectID)
	fmt.Printf("  Workflow Template: %s\n", config.WorkflowTemplateID)
	fmt.Printf("  Token Env: %s (set: %v)\n", config.TokenEnv, config.Token() != "")
	fmt.Printf("  Fixture File: %s\n", config.FixtureFile)
	fmt.Printf("  Timeouts: request %s, move %s\n", config.RequestTimeoutDuration(), config.MoveTimeoutDuration())
	fmt.Printf("  UI Preferences: %+v\n", config.UIPrefs)
	fmt.Printf("\nConfig file location: %s\n", usercfg.Path())
}

// configValue returns the value of a settable key, or false.
func configValue(config usercfg.Config, key string) (string, bool) {
	switch key {
	case "api_url":
		return config.APIURL, true
	case "web_url":
		return config.WebURL, true
	case "project_id":
		return config.ProjectID, true
	case "project_key":
		return config.ProjectKey, true
	case "workflow_template_id":
		return config.WorkflowTemplateID, true
	case "token_env":
		return config.TokenEnv, true
	case "fixture_file":
		return config.FixtureFile, true
	case "schema_version":
		return fmt.Sprint(config.SchemaVersion), true
	}
	return "", false
}

func setConfigValue(config *usercfg.Config, key, value string) error {
	switch key {
	case "api_url", "web_url":
		if value != "" && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("invalid URL: %s (must start with http:// or https://)", value)
		}
		value = strings.TrimRight(value, "/")
		if key == "api_url" {
			config.APIURL = value
		} else {
			config.WebURL = value
		}
	case "project_id":
		config.ProjectID = value
	case "project_key":
		config.ProjectKey = strings.ToUpper(value)
	case "workflow_template_id":
		config.WorkflowTemplateID = value
	case "token_env":
		if value == "" {
			return fmt.Errorf("token_env cannot be empty")
		}
		config.TokenEnv = value
	case "fixture_file":
		config.FixtureFile = value
	case "schema_version":
		return fmt.Errorf("key 'schema_version' cannot be set via 'config set'; use 'trakboard config migrate'")
	default:
		return fmt.Errorf("unknown key: %s\nSettable keys: %s", key, strings.Join(usercfg.SettableKeys(), ", "))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) {
	v, ok := configValue(usercfg.GetRuntimeConfig(), args[0])
	if !ok {
		fmt.Printf("Unknown key: %s\n", args[0])
		fmt.Printf("Available keys: %s, schema_version\n", strings.Join(usercfg.SettableKeys(), ", "))
		os.Exit(1)
	}
	fmt.Println(v)
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value := args[1]

	// Load current config
	config, err := usercfg.Load()
	if err != nil && err != usercfg.ErrNotConfigured {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := setConfigValue(&config, key, value); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := usercfg.Save(config); err != nil {
		fmt.Printf("Failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// doctorFindings checks an effective config and returns one line per
// problem.
func doctorFindings(config usercfg.Config) []string {
	var findings []string
	if config.SchemaVersion < usercfg.CurrentSchemaVersion {
		findings = append(findings, fmt.Sprintf("Config schema is outdated (v%d, current: v%d). Run: trakboard config migrate", config.SchemaVersion, usercfg.CurrentSchemaVersion))
	}
	if config.Offline() {
		if _, err := os.Stat(config.FixtureFile); err != nil {
			findings = append(findings, fmt.Sprintf("Fixture file is not readable: %v", err))
		}
		return findings
	}
	switch {
	case config.APIURL == "":
		findings = append(findings, "API URL not configured. Run: trakboard setup")
	case !strings.HasPrefix(config.APIURL, "http://") && !strings.HasPrefix(config.APIURL, "https://"):
		findings = append(findings, fmt.Sprintf("Invalid API URL format: %s (must start with http:// or https://)", config.APIURL))
	}
	if config.ProjectID == "" {
		findings = append(findings, "No project configured. Run: trakboard setup")
	}
	if config.Token() == "" {
		findings = append(findings, fmt.Sprintf("%s is not set; the API will reject requests", config.TokenEnv))
	}
	if config.WebURL == "" {
		findings = append(findings, "web_url not set; issues will open under the API URL")
	}
	return findings
}

func runConfigDoctor(cmd *cobra.Command, args []string) {
	fmt.Println("🏥 trakboard Configuration Doctor")
	fmt.Println("================================")

	configPath := usercfg.Path()
	legacyPath := usercfg.LegacyPath()
	issues := 0

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if _, err := os.Stat(legacyPath); os.IsNotExist(err) {
			fmt.Println("ℹ️  No config file found - using defaults")
			fmt.Printf("   Create one with: trakboard setup\n")
		} else {
			fmt.Println("⚠️  Using legacy config path")
			fmt.Printf("   Consider migrating: trakboard config migrate\n")
			fmt.Printf("   Legacy path: %s\n", legacyPath)
			fmt.Printf("   Preferred path: %s\n", configPath)
			issues++
		}
	} else {
		fmt.Println("✅ Config file found at XDG-compliant location")
	}

	findings := doctorFindings(usercfg.GetRuntimeConfig())
	for _, f := range findings {
		fmt.Printf("⚠️  %s\n", f)
	}
	issues += len(findings)

	fmt.Println()
	if issues == 0 {
		fmt.Println("🎉 No issues found! Configuration looks healthy.")
	} else {
		fmt.Printf("Found %d issue(s). See suggestions above.\n", issues)
		os.Exit(1)
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.GetVersionString())

	// Check for available updates (synchronous since user is asking about version)
	ch := version.StartUpdateCheck()
	select {
	case result := <-ch:
		if result.NewVersion != "" {
			fmt.Printf("\n\033[33mUpdate available: %s (current: %s)\033[0m\n", result.NewVersion, version.GetShortVersion())
			fmt.Println("\033[33mRun 'trakboard update' to upgrade.\033[0m")
		}
	case <-time.After(5 * time.Second):
		// Don't block forever if GitHub is slow
	}
}

func runUpdate(cmd *cobra.Command, args []string) {
	current := version.GetShortVersion()
	fmt.Printf("Current version: %s\nChecking for updates...\n", current)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	installed, err := version.SelfUpdate(ctx, current)
	switch {
	case stderrors.Is(err, version.ErrDevBuild), stderrors.Is(err, version.ErrNoRelease):
		fmt.Println(err)
	case err != nil:
		fmt.Printf("Update failed: %v\n", err)
	case installed == "":
		fmt.Println("Already up to date.")
	default:
		fmt.Printf("Updated to %s\n", installed)
	}
}
