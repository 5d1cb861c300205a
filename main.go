package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/trakly/trakboard/internal/errors"
	"github.com/trakly/trakboard/internal/httputil"
	"github.com/trakly/trakboard/internal/logger"
	"github.com/trakly/trakboard/internal/tracker"
	"github.com/trakly/trakboard/internal/usercfg"
	"github.com/trakly/trakboard/internal/version"
)

var updateCheckCh <-chan version.UpdateCheckResult

var rootCmd = &cobra.Command{
	Use:   "trakboard",
	Short: "Keyboard-driven workflow board for Trakly projects",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)

		name := cmd.Name()
		if name != "update" && name != "version" {
			updateCheckCh = version.StartUpdateCheck()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
		if updateCheckCh == nil {
			return
		}
		select {
		case result := <-updateCheckCh:
			if result.NewVersion != "" {
				fmt.Fprintf(os.Stderr, "\n\033[33mA new version of trakboard is available: %s (current: %s)\033[0m\n", result.NewVersion, version.GetShortVersion())
				fmt.Fprintf(os.Stderr, "\033[33mRun 'trakboard update' to upgrade.\033[0m\n")
			}
		case <-time.After(500 * time.Millisecond):
		}
	},
	Run: runBoard,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure trakboard interactively",
	Long:  "Launch a setup wizard to choose the Trakly API, token variable and project to open",
	Run:   runSetup,
}

// configCmd provides config management subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage trakboard configuration",
	Long:  "Commands for managing trakboard configuration files, migrations, and settings",
}

var configMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate config file to current schema version",
	Long:  "Load the config file, apply any necessary schema migrations, and save it back to disk with the current schema version",
	Run:   runConfigMigrate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the path to the configuration file",
	Long:  "Display the path where trakboard looks for its configuration file (XDG-compliant location)",
	Run:   runConfigPath,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the current configuration",
	Long:  "Display the current effective configuration, including defaults and environment variable overlays",
	Run:   runConfigPrint,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  "Retrieve and display a specific configuration value. Keys: api_url, web_url, project_id, project_key, workflow_template_id, token_env, fixture_file, schema_version",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value and save to file. Keys: api_url, web_url, project_id, project_key, workflow_template_id, token_env, fixture_file",
	Args:  cobra.ExactArgs(2),
	Run:   runConfigSet,
}

var configDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration health",
	Long:  "Validate configuration file, check for common issues, and suggest fixes",
	Run:   runConfigDoctor,
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version, build information, and platform details for trakboard",
	Run:   runVersion,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Self-update trakboard to the latest release",
	Long:  "Check GitHub Releases for a newer version of trakboard and replace the current binary.",
	Run:   runUpdate,
}

// boardCmd opens the workflow board TUI
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the workflow board of the configured project",
	Long: `Open the project's workflow board: one column per workflow stage,
one card per issue.

Controls:
  - Arrows / h j k l: Move selection
  - Tab / Shift+Tab: Switch column
  - space / m: Pick up the selected card
  - While holding a card: h/l choose the column, j/k the slot,
    enter or space drops it, esc puts it back
  - enter: Open selected issue in browser
  - /: Filter (type:bug, p:high, or free text)
  - r: Refresh
  - q: Quit`,
	Example: "trakboard board\n  trakboard board --file board.yaml",
	Run:     runBoard,
}

var (
	verbose     bool
	fileFlag    string
	projectFlag string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	for _, c := range []*cobra.Command{rootCmd, boardCmd} {
		c.Flags().StringVarP(&fileFlag, "file", "f", "", "Open a YAML board file instead of the Trakly API")
		c.Flags().StringVarP(&projectFlag, "project", "p", "", "Project id or key to open (overrides config)")
	}

	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)

	configCmd.AddCommand(configMigrateCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDoctorCmd)

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\n\033[93mOperation cancelled by user.\033[0m")
		os.Exit(0)
	}()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runBoard(cmd *cobra.Command, args []string) {
	cfg := usercfg.GetRuntimeConfig()
	if fileFlag != "" {
		cfg.FixtureFile = fileFlag
	}
	if projectFlag != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeoutDuration())
		resolved, err := resolveProjectFlag(ctx, cfg, projectFlag)
		cancel()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = resolved
	}

	svc, err := newService(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := StartBoard(cfg, svc); err != nil {
		log.Fatalf("Board failed: %v", err)
	}
}

// resolveProjectFlag points cfg at the project named by ref, which may be a
// project id or key. When projects cannot be listed ref is used as an id.
func resolveProjectFlag(ctx context.Context, cfg usercfg.Config, ref string) (usercfg.Config, error) {
	cfg.ProjectID = ref
	// The configured template belongs to the configured project.
	cfg.WorkflowTemplateID = ""
	token := cfg.Token()
	if cfg.Offline() || cfg.APIURL == "" || token == "" {
		return cfg, nil
	}

	dir, err := tracker.NewDirectory(cfg.APIURL, token, httputil.NewRetryableClient(cfg.RequestTimeoutDuration(), 1))
	if err != nil {
		return cfg, err
	}
	projects, err := tracker.DiscoverProjects(ctx, cfg.APIURL, dir)
	if err != nil {
		logger.Warn("project discovery failed, using %q as a project id: %v", ref, err)
		return cfg, nil
	}
	p, err := matchProject(projects, ref)
	if err != nil {
		return cfg, err
	}
	cfg.ProjectID = p.ID
	cfg.ProjectKey = p.Key
	return cfg, nil
}

// matchProject finds ref among projects by id, or by key ignoring case.
func matchProject(projects []tracker.Project, ref string) (tracker.Project, error) {
	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.ID == ref || strings.EqualFold(p.Key, ref) {
			return p, nil
		}
		keys = append(keys, p.Key)
	}
	return tracker.Project{}, errors.NewInvalidProjectError(ref, keys)
}

// newService picks the board backend: a fixture file when one is set,
// otherwise the Trakly API.
func newService(cfg usercfg.Config) (tracker.Service, error) {
	if cfg.Offline() {
		logger.Config("serving board from %s", cfg.FixtureFile)
		return tracker.NewFileService(cfg.FixtureFile, cfg.WebURL), nil
	}
	if cfg.APIURL == "" {
		return nil, errors.NewNotConfiguredError("api_url")
	}
	if cfg.ProjectID == "" {
		return nil, errors.NewNotConfiguredError("project_id")
	}
	token := cfg.Token()
	if token == "" {
		return nil, errors.NewAuthError(cfg.TokenEnv)
	}
	return tracker.NewClient(tracker.Options{
		APIURL:     cfg.APIURL,
		WebURL:     cfg.WebURL,
		Token:      token,
		ProjectID:  cfg.ProjectID,
		TemplateID: cfg.WorkflowTemplateID,
		HTTP:       httputil.NewRetryableClient(cfg.RequestTimeoutDuration(), 2),
	})
}

// openURL is swapped out in tests.
var openURL = browser.OpenURL

func openIssueInBrowser(svc tracker.Service, key string) error {
	u := svc.IssueURL(key)
	if u == "" {
		return fmt.Errorf("no web_url configured for %s", key)
	}
	logger.TUI("opening %s", u)
	return openURL(u)
}
