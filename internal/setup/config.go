package setup

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fazzledev/canvas-lms/internal/configstore"
)

const (
	defaultWebURL        = "http://localhost:8080"
	defaultDockerCommand = "docker compose"

	// Marker files that identify a Canvas checkout. Preflight refuses to run
	// anywhere else.
	markerScript      = "script/canvas_update"
	markerComposeFile = "docker-compose.yml"

	dotenvFile           = ".env"
	composeOverrideFile  = "docker-compose.override.yml"
	composeOverrideStub  = "config/docker-compose.override.yml.example"
	composeFileListValue = "docker-compose.yml:docker-compose.override.yml"

	webService      = "web"
	postgresService = "postgres"
)

type config struct {
	callerDir      string
	hostOS         string
	automation     bool
	skipUsermod    bool
	composeCommand []string
	webURL         string
	stateDir       string
	commandTimeout time.Duration
}

func loadConfig(callerDir string, opts options) (config, error) {
	cfg := config{
		callerDir:      callerDir,
		hostOS:         detectHostOS(),
		automation:     opts.nonInteractive || automationEnv(),
		skipUsermod:    envFlagSet("CANVAS_SKIP_DOCKER_USERMOD"),
		webURL:         envOrDefault("CANVAS_WEB_URL", defaultWebURL),
	}

	command, err := parseDockerCommand(envOrDefault("DOCKER_COMMAND", defaultDockerCommand))
	if err != nil {
		return config{}, err
	}
	cfg.composeCommand = command

	stateDir, err := stateDirPath()
	if err != nil {
		return config{}, err
	}
	cfg.stateDir = stateDir

	if raw := strings.TrimSpace(os.Getenv("CANVAS_SETUP_TIMEOUT")); raw != "" {
		parsed, err := parseTimeout(raw)
		if err != nil {
			return config{}, fmt.Errorf("parse CANVAS_SETUP_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return config{}, fmt.Errorf("CANVAS_SETUP_TIMEOUT must be positive")
		}
		cfg.commandTimeout = parsed
	}

	return cfg, nil
}

// detectHostOS prefers the OS variable exported by the legacy setup scripts so
// both tools agree on build arguments, falling back to the compile-time OS.
func detectHostOS() string {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("OS"))); v != "" {
		return v
	}
	return runtime.GOOS
}

func automationEnv() bool {
	if envFlagSet("CANVAS_SETUP_AUTOMATION") {
		return true
	}
	if envFlagSet("JENKINS") {
		return true
	}
	return envFlagSet("CI")
}

func envFlagSet(key string) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDockerCommand(raw string) ([]string, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return nil, errors.New("DOCKER_COMMAND must not be empty")
	}
	return fields, nil
}

// stateDirPath shares the configstore's directory resolution so the config
// file and the run logs always land under the same base.
func stateDirPath() (string, error) {
	dir, _, err := configstore.GetConfigPath()
	if err != nil {
		return "", err
	}
	return dir, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, errors.New("timeout string must not be empty")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

func ensureCommand(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("required command %q not found in PATH", name)
	}
	return nil
}
