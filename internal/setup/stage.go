package setup

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fazzledev/canvas-lms/internal/configstore"
	"github.com/fazzledev/canvas-lms/internal/logsink"
	"github.com/fazzledev/canvas-lms/internal/telemetry/otel"
)

type bootstrapper struct {
	opts     options
	cfg      config
	store    *configstore.Config
	prompter prompter
	stages   *otel.StageInstruments
	sink     *logsink.Sink
	logger   *log.Logger
}

// stageContext threads run-scoped results between stages so no stage relies
// on ambient mutable state.
type stageContext struct {
	overrideCreated bool
	databaseCreated bool
	databaseDropped bool
}

type stage struct {
	name      string
	label     string
	run       func(context.Context, *stageContext) error
	skippable bool
}

func (b *bootstrapper) stageList() []stage {
	return []stage{
		{name: "preflight", label: "Checking project directory", run: b.runPreflight},
		{name: "build", label: "Building Docker images", run: b.runImageBuild, skippable: true},
		{name: "start", label: "Starting the Compose stack", run: b.runStackStart, skippable: true},
		{name: "deps", label: "Installing gem dependencies", run: b.runDependencyInstall, skippable: true},
		{name: "database", label: "Setting up the database", run: b.runDatabaseSetup, skippable: true},
		{name: "assets", label: "Installing and compiling assets", run: b.runAssetBuild, skippable: true},
		{name: "verify", label: "Verifying the web container", run: b.runVerification, skippable: true},
	}
}

func stageNames() []string {
	names := []string{"preflight", "build", "start", "deps", "database", "assets", "verify"}
	return names
}

func knownStage(name string) bool {
	for _, n := range stageNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (b *bootstrapper) run(ctx context.Context) error {
	sc := &stageContext{}
	for _, st := range b.stageList() {
		if st.skippable && b.opts.skipped(st.name) {
			fmt.Printf("Skipping %s (--skip %s).\n", st.name, st.name)
			b.sink.Stage(st.name, "skipped", nil)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		handle := b.stages.StageStarted(ctx, st.name)
		sp := startSpinner(os.Stderr, st.label, b.spinnerEnabled())
		err := st.run(handle.Context(), sc)
		sp.stop(err)
		handle.End(err)
		b.sink.Stage(st.name, "ran", err)

		if err != nil {
			return fmt.Errorf("%s failed: %w", st.name, err)
		}
	}

	for _, line := range b.summary(sc) {
		fmt.Println(line)
	}
	return nil
}

// summary reports what the run did beyond the happy path, so one-way effects
// like a dropped database are stated explicitly at the end.
func (b *bootstrapper) summary(sc *stageContext) []string {
	lines := []string{
		"",
		fmt.Sprintf("Setup complete. Canvas should be answering at %s shortly.", b.cfg.webURL),
	}
	if sc.overrideCreated {
		lines = append(lines, fmt.Sprintf("Created %s; edit it for local port or volume tweaks.", composeOverrideFile))
	}
	if sc.databaseDropped {
		lines = append(lines, "The database was dropped and recreated; the previous data is gone.")
	}
	if path := b.sink.Path(); path != "" {
		lines = append(lines, "Run log: "+path)
	}
	return lines
}

// spinnerEnabled reports whether the animated progress indicator should run.
// Verbose and dry-run output interleaves badly with an animation, and
// automation logs have no terminal to animate on.
func (b *bootstrapper) spinnerEnabled() bool {
	if b.cfg.automation || b.opts.verbose || b.opts.dryRun {
		return false
	}
	return isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
