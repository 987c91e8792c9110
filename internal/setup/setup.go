package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fazzledev/canvas-lms/internal/configstore"
	"github.com/fazzledev/canvas-lms/internal/logsink"
	"github.com/fazzledev/canvas-lms/internal/telemetry/otel"
)

type options struct {
	nonInteractive bool
	dryRun         bool
	verbose        bool
	skips          []string
}

// ExitCodeError propagates the exact exit status produced by a failing setup
// command. Returning a plain error would flatten every failure to exit code 1;
// this wrapper keeps the original status while still fitting into our error
// handling.
type ExitCodeError struct {
	code int
	err  error
}

func (e *ExitCodeError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("command exited with code %d", e.code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.err
}

func (e *ExitCodeError) ExitCode() int {
	return e.code
}

// wrapExitCode lifts a failed subprocess buried in a stage error into an
// ExitCodeError so the process exits with the same status the command did.
func wrapExitCode(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return &ExitCodeError{code: exitErr.ExitCode(), err: err}
	}
	return err
}

// Main orchestrates the full environment bootstrap using the provided argv
// slice. When args is empty, os.Args is used to mirror standard command
// invocation.
func Main(args []string) error {
	if len(args) == 0 {
		args = os.Args
	}
	name := commandName(args)
	return execute(name, args[1:])
}

func execute(cmdName string, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, errShowUsage) {
			fmt.Println(usage(cmdName))
			return nil
		}
		return err
	}

	callerDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := loadConfig(callerDir, opts)
	if err != nil {
		return err
	}

	if err := ensureCommand("docker"); err != nil {
		return err
	}

	store, err := configstore.Load()
	if err != nil {
		var parseErr *configstore.ParseError
		if errors.As(err, &parseErr) {
			return err
		}
		return fmt.Errorf("load devsetup config: %w", err)
	}

	// DOCKER_COMMAND wins over a persisted override; the persisted override
	// wins over the built-in default.
	if strings.TrimSpace(os.Getenv("DOCKER_COMMAND")) == "" {
		if command, scope := store.EffectiveComposeCommand(callerDir); scope != configstore.ScopeUnset {
			parsed, err := parseDockerCommand(command)
			if err != nil {
				return fmt.Errorf("compose command from config: %w", err)
			}
			cfg.composeCommand = parsed
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var interrupted int32
	go func() {
		for range sigCh {
			if atomic.CompareAndSwapInt32(&interrupted, 0, 1) {
				cancel()
				continue
			}
			os.Exit(1)
		}
	}()

	provider, err := otel.Setup(ctx, otel.LoadConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
			log.Printf("telemetry shutdown: %v", shutdownErr)
		}
	}()

	sink, err := logsink.Open(cfg.stateDir)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer sink.Close()

	b := &bootstrapper{
		opts:     opts,
		cfg:      cfg,
		store:    &store,
		prompter: newPrompterFor(opts, cfg),
		stages:   provider.Stages(),
		sink:     sink,
		logger:   log.New(os.Stderr, "", 0),
	}

	if err := b.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && atomic.LoadInt32(&interrupted) == 1 {
			return &ExitCodeError{code: 1}
		}
		return wrapExitCode(err)
	}
	return nil
}

var errShowUsage = errors.New("show usage")

func usage(cmdName string) string {
	return fmt.Sprintf(`Usage: %s [flags]

Bootstrap a local Docker Compose development environment for Canvas: build
images, start the stack, install gem and JS dependencies, set up the database,
compile assets, and verify the web container answers HTTP requests. Safe to
re-run; completed steps are detected and left alone.

Flags:
  -y, --non-interactive   Skip prompts and take automation defaults
                          (the database choice defaults to drop-and-recreate).
  -n, --dry-run           Print the commands each step would run without
                          executing any of them.
  --skip <stage>          Skip a named stage (repeatable). Stages: %s.
  -V, --verbose           Enable verbose logging.

Environment variables:
  CANVAS_SETUP_AUTOMATION  Treat the run as unattended (same as -y). JENKINS
                           and CI are honored as fallbacks.
  OS                       Override host OS detection (linux, darwin).
  CANVAS_SKIP_DOCKER_USERMOD
                           Do not pass user-id build args on Linux.
  DOCKER_COMMAND           Compose command override (default "docker compose").
  CANVAS_WEB_URL           Liveness probe URL (default http://localhost:8080).
  CANVAS_SETUP_HOME        Base directory for persisted devsetup state.
  CANVAS_SETUP_TIMEOUT     Per-command timeout (duration or seconds).

Persisted preferences live at $XDG_CONFIG_HOME/canvas-devsetup/config.toml
(or ~/.config/canvas-devsetup/config.toml). Set CANVAS_SETUP_HOME to override
this base directory. Global and per-project sections in that file control the
remembered database answer and compose command overrides.`, cmdName, strings.Join(stageNames(), ", "))
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "devsetup"
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return "devsetup"
	}
	return filepath.Base(name)
}

func parseArgs(args []string) (options, error) {
	opts := options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-y", "--non-interactive":
			opts.nonInteractive = true
		case "-n", "--dry-run":
			opts.dryRun = true
		case "-V", "--verbose":
			opts.verbose = true
		case "--skip":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("missing argument for %s", arg)
			}
			if err := appendSkip(&opts, args[i+1]); err != nil {
				return opts, err
			}
			i++
		case "-h", "--help", "help":
			return opts, errShowUsage
		default:
			switch {
			case strings.HasPrefix(arg, "--skip="):
				if err := appendSkip(&opts, strings.TrimPrefix(arg, "--skip=")); err != nil {
					return opts, err
				}
			default:
				return opts, fmt.Errorf("unknown flag: %s", arg)
			}
		}
	}
	return opts, nil
}

func appendSkip(opts *options, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("stage name for --skip cannot be empty")
	}
	if !knownStage(name) {
		return fmt.Errorf("unknown stage %q; stages: %s", name, strings.Join(stageNames(), ", "))
	}
	opts.skips = append(opts.skips, name)
	return nil
}

func (o options) skipped(name string) bool {
	for _, s := range o.skips {
		if s == name {
			return true
		}
	}
	return false
}
