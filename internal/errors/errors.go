package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// UserError represents an error with user-friendly messaging and remediation hints
type UserError struct {
	Title       string // Brief title of the error
	Message     string // Detailed error message
	Remediation string // What the user can do to fix it
	Cause       error  // Underlying error, if any
	Status      int    // HTTP status, when the error came from a response
}

func (e *UserError) Error() string {
	var parts []string

	if e.Title != "" {
		parts = append(parts, e.Title)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Remediation != "" {
		parts = append(parts, fmt.Sprintf("💡 %s", e.Remediation))
	}

	return strings.Join(parts, "\n")
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// Common error constructors with built-in remediation

func NewNotConfiguredError(missing string) *UserError {
	return &UserError{
		Title:       "❌ Not Configured",
		Message:     fmt.Sprintf("No %s configured.", missing),
		Remediation: "Run: trakboard setup, or pass --file to open a board fixture",
	}
}

func NewAuthError(tokenEnv string) *UserError {
	return &UserError{
		Title:       "Authentication Error",
		Message:     "No Trakly API token found.",
		Remediation: fmt.Sprintf("Export %s with a personal access token, or set token_env in ~/.config/trakboard/config.toml", tokenEnv),
	}
}

func NewTrackerConnectionError(err error) *UserError {
	errStr := err.Error()
	var remediation string

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		remediation = "Check your API token. Run: trakboard config doctor"
	} else if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "no such host") || strings.Contains(errStr, "connection refused") {
		remediation = "Check your network and api_url. Run: trakboard config doctor"
	} else if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		remediation = "Your account is not a member of this project. Ask a project admin for access"
	} else {
		remediation = "Run: trakboard config doctor to diagnose the issue"
	}

	return &UserError{
		Title:       "❌ Tracker Connection Error",
		Message:     "Failed to reach the Trakly API. " + errStr,
		Remediation: remediation,
		Cause:       err,
	}
}

func NewInvalidProjectError(project string, available []string) *UserError {
	return &UserError{
		Title:       "❌ Invalid Project",
		Message:     fmt.Sprintf("Project '%s' is not available.", project),
		Remediation: fmt.Sprintf("Available projects: %s. Use 'trakboard setup' to pick one", strings.Join(available, ", ")),
	}
}

func NewConfigError(operation string, err error) *UserError {
	var remediation string
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "permission denied"):
		remediation = "Check file permissions. Run: chmod 644 ~/.config/trakboard/config.toml"
	case strings.Contains(errStr, "no such file"):
		remediation = "Run: trakboard setup to create a configuration file"
	case strings.Contains(errStr, "decode") || strings.Contains(errStr, "parse"):
		remediation = "Configuration file format is invalid. Run: trakboard config doctor"
	default:
		remediation = "Run: trakboard config doctor to diagnose configuration issues"
	}

	return &UserError{
		Title:       "❌ Configuration Error",
		Message:     fmt.Sprintf("Failed to %s configuration: %s", operation, errStr),
		Remediation: remediation,
		Cause:       err,
	}
}

func NewProjectDiscoveryError(err error) *UserError {
	return &UserError{
		Title:       "❌ Project Discovery Error",
		Message:     "Failed to list projects from the Trakly API.",
		Remediation: "Check your API token and membership. You can also enter a project id by hand",
		Cause:       err,
	}
}

func NewFixtureError(path string, err error) *UserError {
	return &UserError{
		Title:       "❌ Board File Error",
		Message:     fmt.Sprintf("Failed to read board file %s: %v", path, err),
		Remediation: "Check the YAML syntax. A board file needs top-level columns and issues lists",
		Cause:       err,
	}
}

func NewHttpError(statusCode int, body string) *UserError {
	var title, remediation string

	switch {
	case statusCode == 401:
		title = "❌ Authentication Failed"
		remediation = "Check your API token. Run: trakboard config doctor"
	case statusCode == 403:
		title = "❌ Access Forbidden"
		remediation = "Your account lacks permission for this operation. Ask a project admin"
	case statusCode == 404:
		title = "❌ Resource Not Found"
		remediation = "The issue, project or workflow was not found. Check project_id in your config"
	case statusCode == 422:
		title = "❌ Rejected Update"
		remediation = "The server refused the change. Press r to reload the board"
	case statusCode >= 500:
		title = "❌ Server Error"
		remediation = "Trakly is experiencing issues. Try again later"
	default:
		title = "❌ HTTP Error"
		remediation = "An unexpected HTTP error occurred. Run: trakboard --verbose to see detailed logs"
	}

	return &UserError{
		Title:       title,
		Message:     fmt.Sprintf("HTTP %d: %s", statusCode, body),
		Remediation: remediation,
		Status:      statusCode,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// Helper function to wrap existing errors with better messaging
func WrapWithContext(err error, context string) error {
	if userErr, ok := err.(*UserError); ok {
		// Already a user error, just return it
		return userErr
	}

	errStr := err.Error()

	switch context {
	case "tracker_connection":
		return NewTrackerConnectionError(err)
	case "config_load", "config_save":
		return NewConfigError(strings.TrimPrefix(context, "config_"), err)
	case "project_discovery":
		return NewProjectDiscoveryError(err)
	case "fixture":
		return NewFixtureError("", err)
	default:
		// Generic wrapper that at least adds some structure
		return &UserError{
			Title:       "❌ Error",
			Message:     errStr,
			Remediation: "Run with --verbose flag for more details",
			Cause:       err,
		}
	}
}
