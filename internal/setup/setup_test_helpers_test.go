package setup

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/fazzledev/canvas-lms/internal/configstore"
)

var commandOverrideMu sync.Mutex

// execRecorder captures every command the code under test would run and
// returns canned results keyed by argv substring.
type execRecorder struct {
	mu sync.Mutex

	calls      []string
	runErrs    map[string]error
	outputs    map[string]string
	outputErrs map[string]error
}

func overrideExec(t *testing.T) *execRecorder {
	t.Helper()

	commandOverrideMu.Lock()
	restoreRun := runCommand
	restoreOutput := commandOutput

	rec := &execRecorder{
		runErrs:    make(map[string]error),
		outputs:    make(map[string]string),
		outputErrs: make(map[string]error),
	}

	runCommand = func(_ context.Context, name string, args ...string) error {
		argv := strings.Join(append([]string{name}, args...), " ")
		rec.record(argv)
		return rec.matchErr(rec.runErrs, argv)
	}
	commandOutput = func(_ context.Context, name string, args ...string) (string, error) {
		argv := strings.Join(append([]string{name}, args...), " ")
		rec.record(argv)
		if err := rec.matchErr(rec.outputErrs, argv); err != nil {
			return "", err
		}
		return rec.matchOutput(argv), nil
	}

	t.Cleanup(func() {
		runCommand = restoreRun
		commandOutput = restoreOutput
		commandOverrideMu.Unlock()
	})
	return rec
}

func (r *execRecorder) record(argv string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, argv)
}

func (r *execRecorder) matchErr(m map[string]error, argv string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for needle, err := range m {
		if strings.Contains(argv, needle) {
			return err
		}
	}
	return nil
}

func (r *execRecorder) matchOutput(argv string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for needle, out := range r.outputs {
		if strings.Contains(argv, needle) {
			return out
		}
	}
	return ""
}

func (r *execRecorder) failRun(needle string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runErrs[needle] = err
}

func (r *execRecorder) failOutput(needle string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputErrs[needle] = err
}

func (r *execRecorder) callsMatching(needle string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, call := range r.calls {
		if strings.Contains(call, needle) {
			out = append(out, call)
		}
	}
	return out
}

func (r *execRecorder) allCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// scriptedPrompter answers prompts from canned values and counts questions.
type scriptedPrompter struct {
	confirmAnswer bool
	choice        databaseChoice

	confirmCalls int
	chooseCalls  int
}

func (p *scriptedPrompter) Confirm(_ context.Context, _ string, _ bool) (bool, error) {
	p.confirmCalls++
	return p.confirmAnswer, nil
}

func (p *scriptedPrompter) ChooseDatabaseAction(_ context.Context, _ string) (databaseChoice, error) {
	p.chooseCalls++
	return p.choice, nil
}

func newTestBootstrapper(t *testing.T, callerDir string) *bootstrapper {
	t.Helper()
	store := configstore.New()
	return &bootstrapper{
		opts: options{},
		cfg: config{
			callerDir:      callerDir,
			hostOS:         "linux",
			composeCommand: []string{"docker", "compose"},
			webURL:         defaultWebURL,
		},
		store:    &store,
		prompter: &scriptedPrompter{},
		logger:   log.New(io.Discard, "", 0),
	}
}

var envMu sync.Mutex

func lockEnv(t *testing.T) {
	t.Helper()
	envMu.Lock()
	t.Cleanup(envMu.Unlock)
}

func clearEnv(t *testing.T, key string) {
	t.Helper()
	old, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if err := os.Setenv(key, old); err != nil {
			t.Fatalf("restore env %s: %v", key, err)
		}
	})
}

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, ok := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !ok {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("unset env %s: %v", key, err)
			}
			return
		}
		if err := os.Setenv(key, old); err != nil {
			t.Fatalf("restore env %s: %v", key, err)
		}
	})
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

var errCanned = fmt.Errorf("canned failure")
