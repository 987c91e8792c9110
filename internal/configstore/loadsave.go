package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the persisted config from disk. Missing files result in an empty
// configuration with defaults.
func Load() (Config, error) {
	cfg := New()
	_, file, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, file, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeConfig(data []byte, path string, cfg *Config) error {
	cfg.ensureInitialized()

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return &ParseError{Path: path, Err: decodeErr}
		}
		return err
	}

	if database, ok := raw["database"].(map[string]any); ok {
		if value, ok := database["action"]; ok {
			action, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse database.action: %w", err)
			}
			if err := cfg.SetGlobalDatabaseAction(action); err != nil {
				return fmt.Errorf("parse database.action: %w", err)
			}
		}
	}

	if compose, ok := raw["compose"].(map[string]any); ok {
		if value, ok := compose["command"]; ok {
			command, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse compose.command: %w", err)
			}
			cfg.ComposeCommand = strings.TrimSpace(command)
		}
	}

	if projects, ok := raw["projects"].(map[string]any); ok {
		for projectKey, rawValue := range projects {
			projectTable, ok := rawValue.(map[string]any)
			if !ok {
				continue
			}
			for key, value := range projectTable {
				switch key {
				case "database_action":
					action, err := toString(value)
					if err != nil {
						return fmt.Errorf("parse projects.%s.database_action: %w", projectKey, err)
					}
					if err := cfg.SetProjectDatabaseAction(projectKey, action); err != nil {
						return fmt.Errorf("parse projects.%s.database_action: %w", projectKey, err)
					}
				case "compose_command":
					command, err := toString(value)
					if err != nil {
						return fmt.Errorf("parse projects.%s.compose_command: %w", projectKey, err)
					}
					if err := cfg.SetProjectComposeCommand(projectKey, command); err != nil {
						return fmt.Errorf("parse projects.%s.compose_command: %w", projectKey, err)
					}
				}
			}
		}
	}

	return nil
}

func toString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

// Save writes the configuration atomically: into a temp file in the target
// directory first, then renamed over the previous one.
func Save(cfg Config) error {
	dir, file, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, configFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, file); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func encodeConfig(cfg Config) ([]byte, error) {
	out := make(map[string]any)

	if cfg.DatabaseAction != "" {
		out["database"] = map[string]any{"action": cfg.DatabaseAction}
	}
	if cfg.ComposeCommand != "" {
		out["compose"] = map[string]any{"command": cfg.ComposeCommand}
	}

	projects := make(map[string]any)
	for key, action := range cfg.ProjectDatabaseActions {
		if action == "" {
			continue
		}
		table := projectTable(projects, key)
		table["database_action"] = action
	}
	for key, command := range cfg.ProjectComposeCommands {
		if command == "" {
			continue
		}
		table := projectTable(projects, key)
		table["compose_command"] = command
	}
	if len(projects) > 0 {
		out["projects"] = projects
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func projectTable(projects map[string]any, key string) map[string]any {
	key = filepath.Clean(key)
	if table, ok := projects[key].(map[string]any); ok {
		return table
	}
	table := make(map[string]any)
	projects[key] = table
	return table
}
