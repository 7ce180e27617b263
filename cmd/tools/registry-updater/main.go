// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/validation"
	"notification-workers/pkg/registry"
)

var registryPath string

func main() {
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	// Update command flags
	updateCmd.StringVar(&registryPath, "path", "pkg/registry/registry.json", "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "", "Path to registry file (defaults to the embedded registry)")

	// Check command flags
	checkCmd.StringVar(&registryPath, "path", "", "Path to registry file (defaults to the embedded registry)")
	taskType := checkCmd.String("taskType", "", "Task type whose input schema to check against")
	variables := checkCmd.String("variables", "", "Path to a JSON file with job variables")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := load()
		if err == nil {
			err = validateRegistry(reg)
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "check":
		checkCmd.Parse(os.Args[2:])
		if *taskType == "" || *variables == "" {
			fmt.Println("Error: taskType and variables are required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		messages, err := checkVariables(*taskType, *variables)
		if err != nil {
			fmt.Printf("Error checking variables: %v\n", err)
			os.Exit(1)
		}
		if len(messages) > 0 {
			for _, m := range messages {
				fmt.Println("  " + m)
			}
			os.Exit(1)
		}
		fmt.Println("Variables are valid.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func load() (*registry.ActivityRegistry, error) {
	if registryPath == "" {
		return registry.Default()
	}
	return registry.LoadRegistry(registryPath)
}

func updateActivity(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity, ok := findActivity(reg, id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format("2006-01-02")
	if err := validateRegistry(reg); err != nil {
		return err
	}
	return saveRegistry(reg, registryPath)
}

func findActivity(reg *registry.ActivityRegistry, id string) (*registry.Activity, bool) {
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			return &reg.Activities[i], true
		}
	}
	return nil, false
}

var knownErrorCodes = map[string]bool{
	string(apperrors.ErrCodeNotificationNotFound):       true,
	string(apperrors.ErrCodeStoreUnavailable):           true,
	string(apperrors.ErrCodeInvariantViolation):         true,
	string(apperrors.ErrCodeInvalidInput):               true,
	string(apperrors.ErrCodeMembershipResolutionFailed): true,
	string(apperrors.ErrCodeInternal):                   true,
}

// validateRegistry checks required fields, uniqueness, error codes and that
// every input schema compiles.
func validateRegistry(reg *registry.ActivityRegistry) error {
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		for _, code := range activity.ErrorCodes {
			if !knownErrorCodes[code] {
				return fmt.Errorf("activity %s lists unknown error code %s", activity.ID, code)
			}
		}
	}

	if _, err := validation.NewValidator(reg); err != nil {
		return err
	}
	return nil
}

func checkVariables(taskType, path string) ([]string, error) {
	reg, err := load()
	if err != nil {
		return nil, err
	}
	if _, ok := reg.Lookup(taskType); !ok {
		return nil, fmt.Errorf("unknown task type %s", taskType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	v, err := validation.NewValidator(reg)
	if err != nil {
		return nil, err
	}
	result, err := v.ValidateJSON(taskType, string(data))
	if err != nil {
		return nil, err
	}
	return result.GetErrorMessages(), nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  update   Update an existing activity's field
  validate Validate the registry file
  check    Check job variables against a task type's input schema
  help     Show this help message

Examples:
  registry-updater update -id notification.owner.record -field status -value verified
  registry-updater validate
  registry-updater check -taskType record-owner-notification -variables job.json

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
