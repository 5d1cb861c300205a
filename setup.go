package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/trakly/trakboard/internal/httputil"
	"github.com/trakly/trakboard/internal/tracker"
	"github.com/trakly/trakboard/internal/usercfg"
)

// maxProjectChoices caps the setup picker.
const maxProjectChoices = 15

func validURL(ans interface{}) error {
	s, _ := ans.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	return nil
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("trakboard Setup Wizard")
	fmt.Println("======================")

	currentConfig := usercfg.GetRuntimeConfig()
	newConfig := currentConfig
	isFirstRun := !usercfg.IsConfigured()

	if isFirstRun {
		fmt.Println("Welcome! Let's point trakboard at your Trakly project.")
		fmt.Println()
	} else {
		fmt.Printf("Existing config found at %s, modifying.\n\n", usercfg.Path())
		fmt.Printf("  API URL: %s\n", currentConfig.APIURL)
		fmt.Printf("  Project: %s (%s)\n", currentConfig.ProjectKey, currentConfig.ProjectID)
		fmt.Printf("  Token env: %s\n", currentConfig.TokenEnv)
		fmt.Println()
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Trakly API URL (e.g. https://api.trakly.example):",
		Default: currentConfig.APIURL,
	}, &newConfig.APIURL, survey.WithValidator(survey.Required), survey.WithValidator(validURL)); err != nil {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.APIURL = strings.TrimRight(strings.TrimSpace(newConfig.APIURL), "/")

	if err := survey.AskOne(&survey.Input{
		Message: "Environment variable holding your API token:",
		Default: currentConfig.TokenEnv,
	}, &newConfig.TokenEnv, survey.WithValidator(survey.Required)); err != nil {
		fmt.Println("Setup cancelled")
		return
	}

	token := newConfig.Token()
	if token == "" {
		fmt.Println()
		fmt.Printf("  Warning: %s is not set, so projects cannot be discovered.\n", newConfig.TokenEnv)
		fmt.Printf("  Export it and re-run setup, or enter a project id by hand.\n\n")
	}

	project, ok := chooseProject(newConfig, token)
	if !ok {
		fmt.Println("Setup cancelled")
		return
	}
	newConfig.ProjectID = project.ID
	newConfig.ProjectKey = project.Key
	if newConfig.WorkflowTemplateID == "" {
		newConfig.WorkflowTemplateID = project.WorkflowTemplateID
	}

	webDefault := currentConfig.WebURL
	if webDefault == "" {
		webDefault = strings.Replace(newConfig.APIURL, "://api.", "://app.", 1)
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Trakly web URL used to open issues:",
		Default: webDefault,
	}, &newConfig.WebURL, survey.WithValidator(validURL)); err != nil {
		fmt.Println("Setup cancelled")
		return
	}

	if err := usercfg.Save(newConfig); err != nil {
		log.Fatalf("Failed to save configuration: %v", err)
	}

	fmt.Printf("\nConfiguration saved to: %s\n", usercfg.Path())
	fmt.Println("\nFinal configuration:")
	fmt.Printf("  API URL: %s\n", newConfig.APIURL)
	fmt.Printf("  Web URL: %s\n", newConfig.WebURL)
	fmt.Printf("  Project: %s (%s)\n", newConfig.ProjectKey, newConfig.ProjectID)
	if newConfig.WorkflowTemplateID != "" {
		fmt.Printf("  Workflow template: %s\n", newConfig.WorkflowTemplateID)
	}
	fmt.Printf("  Token env: %s\n", newConfig.TokenEnv)
}

// chooseProject lists the projects visible to token and lets the user pick
// one. Without a token, or when discovery fails, it asks for an id instead.
func chooseProject(cfg usercfg.Config, token string) (tracker.Project, bool) {
	if token != "" {
		fmt.Println("\nDiscovering projects from Trakly...")
		dir, err := tracker.NewDirectory(cfg.APIURL, token, httputil.NewRetryableClient(cfg.RequestTimeoutDuration(), 1))
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			projects, derr := tracker.DiscoverProjects(ctx, cfg.APIURL, dir)
			cancel()
			err = derr
			if err == nil && len(projects) > 0 {
				return pickProject(tracker.RankProjects(projects, cfg.ProjectKey))
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: project discovery failed:\n%v\n\n", err)
		}
	}

	var id string
	if err := survey.AskOne(&survey.Input{
		Message: "Project id:",
		Default: cfg.ProjectID,
	}, &id, survey.WithValidator(survey.Required)); err != nil {
		return tracker.Project{}, false
	}
	return tracker.Project{ID: strings.TrimSpace(id), Key: cfg.ProjectKey}, true
}

func pickProject(ranked []tracker.Project) (tracker.Project, bool) {
	options := make([]string, 0, maxProjectChoices)
	byOption := make(map[string]tracker.Project, maxProjectChoices)
	for _, p := range ranked[:min(maxProjectChoices, len(ranked))] {
		option := fmt.Sprintf("%s  %s", p.Key, p.Name)
		options = append(options, option)
		byOption[option] = p
	}

	var selected string
	if err := survey.AskOne(&survey.Select{
		Message: "Which project's board should open?",
		Options: options,
	}, &selected); err != nil {
		return tracker.Project{}, false
	}
	p, ok := byOption[selected]
	return p, ok
}
