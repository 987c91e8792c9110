package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the persisted devsetup configuration.
type Config struct {
	DatabaseAction         string
	ComposeCommand         string
	ProjectDatabaseActions map[string]string
	ProjectComposeCommands map[string]string
}

// DecisionScope models the precedence layer that yielded an effective choice.
type DecisionScope string

const (
	ScopeUnset   DecisionScope = "unset"
	ScopeGlobal  DecisionScope = "global"
	ScopeProject DecisionScope = "project"
)

// Known database answers. Anything else in the file is rejected at decode
// time so a typo cannot silently select the destructive path.
const (
	DatabaseActionMigrate = "migrate"
	DatabaseActionDrop    = "drop"
)

// New returns a Config with initialized maps. Callers that mutate the
// configuration should always start from this constructor to avoid nil maps.
func New() Config {
	return Config{
		ProjectDatabaseActions: make(map[string]string),
		ProjectComposeCommands: make(map[string]string),
	}
}

// Clone produces a deep copy suitable for mutation without affecting the
// original instance.
func (c Config) Clone() Config {
	out := New()
	out.DatabaseAction = c.DatabaseAction
	out.ComposeCommand = c.ComposeCommand
	for key, value := range c.ProjectDatabaseActions {
		out.ProjectDatabaseActions[key] = value
	}
	for key, value := range c.ProjectComposeCommands {
		out.ProjectComposeCommands[key] = value
	}
	return out
}

func (c *Config) ensureInitialized() {
	if c.ProjectDatabaseActions == nil {
		c.ProjectDatabaseActions = make(map[string]string)
	}
	if c.ProjectComposeCommands == nil {
		c.ProjectComposeCommands = make(map[string]string)
	}
}

// EffectiveDatabaseAction resolves the remembered drop-or-migrate answer for
// a project, with project scope taking precedence over global.
func (c *Config) EffectiveDatabaseAction(projectPath string) (string, DecisionScope) {
	if key, err := normalizeProjectKey(projectPath); err == nil {
		if action, ok := c.ProjectDatabaseActions[key]; ok && action != "" {
			return action, ScopeProject
		}
	}
	if c.DatabaseAction != "" {
		return c.DatabaseAction, ScopeGlobal
	}
	return "", ScopeUnset
}

// EffectiveComposeCommand resolves a compose command override for a project.
func (c *Config) EffectiveComposeCommand(projectPath string) (string, DecisionScope) {
	if key, err := normalizeProjectKey(projectPath); err == nil {
		if command, ok := c.ProjectComposeCommands[key]; ok && command != "" {
			return command, ScopeProject
		}
	}
	if c.ComposeCommand != "" {
		return c.ComposeCommand, ScopeGlobal
	}
	return "", ScopeUnset
}

// SetGlobalDatabaseAction records the default answer for every project.
// Passing an empty action removes the override.
func (c *Config) SetGlobalDatabaseAction(action string) error {
	action, err := validateDatabaseAction(action)
	if err != nil {
		return err
	}
	c.DatabaseAction = action
	return nil
}

// SetProjectDatabaseAction associates a remembered answer with the given
// project path. Passing an empty action removes the override.
func (c *Config) SetProjectDatabaseAction(projectPath, action string) error {
	action, err := validateDatabaseAction(action)
	if err != nil {
		return err
	}
	key, err := normalizeProjectKey(projectPath)
	if err != nil {
		return err
	}
	c.ensureInitialized()
	if action == "" {
		delete(c.ProjectDatabaseActions, key)
		return nil
	}
	c.ProjectDatabaseActions[key] = action
	return nil
}

// SetProjectComposeCommand records a compose command override for a project.
// Passing an empty command removes the override.
func (c *Config) SetProjectComposeCommand(projectPath, command string) error {
	key, err := normalizeProjectKey(projectPath)
	if err != nil {
		return err
	}
	c.ensureInitialized()
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		delete(c.ProjectComposeCommands, key)
		return nil
	}
	c.ProjectComposeCommands[key] = trimmed
	return nil
}

func validateDatabaseAction(action string) (string, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case "", DatabaseActionMigrate, DatabaseActionDrop:
		return action, nil
	default:
		return "", fmt.Errorf("unknown database action %q; expected %q or %q", action, DatabaseActionMigrate, DatabaseActionDrop)
	}
}

// normalizeProjectKey resolves the absolute path for use as a project key.
func normalizeProjectKey(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("project path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs project path: %w", err)
	}
	normalized, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// If the path does not exist yet, fall back to cleaned absolute path.
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return filepath.Clean(normalized), nil
}
