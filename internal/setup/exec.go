package setup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Package-level seams so tests can substitute a fake executor that records
// argv and returns canned results.
var runCommand = runCommandImpl
var commandOutput = commandOutputImpl

func runCommandImpl(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func commandOutputImpl(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (b *bootstrapper) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.commandTimeout > 0 {
		return context.WithTimeout(ctx, b.cfg.commandTimeout)
	}
	return context.WithCancel(ctx)
}

// runCmd executes an external command, streaming its output, and records the
// invocation in the durable run log.
func (b *bootstrapper) runCmd(ctx context.Context, name string, args ...string) error {
	display := shellQuote(append([]string{name}, args...))
	if b.opts.dryRun {
		fmt.Printf("dry-run: %s\n", display)
		b.logCommand(display, nil)
		return nil
	}
	b.debugf("exec: %s", display)

	cmdCtx, cancel := b.commandContext(ctx)
	defer cancel()

	err := runCommand(cmdCtx, name, args...)
	b.logCommand(display, err)
	return err
}

// cmdOutput executes a command and returns its combined output. Dry-run mode
// records the invocation and reports success with empty output.
func (b *bootstrapper) cmdOutput(ctx context.Context, name string, args ...string) (string, error) {
	display := shellQuote(append([]string{name}, args...))
	if b.opts.dryRun {
		fmt.Printf("dry-run: %s\n", display)
		b.logCommand(display, nil)
		return "", nil
	}
	b.debugf("exec: %s", display)

	cmdCtx, cancel := b.commandContext(ctx)
	defer cancel()

	out, err := commandOutput(cmdCtx, name, args...)
	b.logCommand(display, err)
	return out, err
}

func (b *bootstrapper) logCommand(display string, err error) {
	if b.sink == nil {
		return
	}
	b.sink.Command(display, err)
}

// compose invokes the configured compose command (default "docker compose")
// with the given arguments.
func (b *bootstrapper) compose(ctx context.Context, args ...string) error {
	name, base := b.composeArgv()
	return b.runCmd(ctx, name, append(base, args...)...)
}

func (b *bootstrapper) composeOutput(ctx context.Context, args ...string) (string, error) {
	name, base := b.composeArgv()
	return b.cmdOutput(ctx, name, append(base, args...)...)
}

// composeRun runs a one-off command in a fresh service container.
func (b *bootstrapper) composeRun(ctx context.Context, service string, argv ...string) error {
	args := append([]string{"run", "--rm", service}, argv...)
	return b.compose(ctx, args...)
}

func (b *bootstrapper) composeRunOutput(ctx context.Context, service string, argv ...string) (string, error) {
	args := append([]string{"run", "--rm", service}, argv...)
	return b.composeOutput(ctx, args...)
}

// composeRunAsRoot runs a one-off command in a fresh service container as
// root, for remediation steps that outrank the app user.
func (b *bootstrapper) composeRunAsRoot(ctx context.Context, service string, argv ...string) error {
	args := append([]string{"run", "--rm", "--user", "root", service}, argv...)
	return b.compose(ctx, args...)
}

// composeRunWithEnv runs a one-off command with extra environment variables
// set inside the service container.
func (b *bootstrapper) composeRunWithEnv(ctx context.Context, service string, env []string, argv ...string) error {
	args := []string{"run", "--rm"}
	for _, e := range env {
		args = append(args, "-e", e)
	}
	args = append(args, service)
	args = append(args, argv...)
	return b.compose(ctx, args...)
}

// composeRunShell runs a shell command line in a fresh service container.
func (b *bootstrapper) composeRunShell(ctx context.Context, service, command string) error {
	return b.composeRun(ctx, service, "sh", "-c", command)
}

func (b *bootstrapper) composeArgv() (string, []string) {
	command := b.cfg.composeCommand
	base := make([]string, 0, len(command)-1)
	base = append(base, command[1:]...)
	return command[0], base
}

func (b *bootstrapper) debugf(format string, args ...interface{}) {
	if b.opts.verbose && b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

// waitFor polls check until it succeeds or the timeout elapses.
func waitFor(ctx context.Context, timeout, interval time.Duration, check func() bool) error {
	timer := time.NewTimer(timeout)
	ticker := time.NewTicker(interval)
	defer timer.Stop()
	defer ticker.Stop()

	for {
		if check() {
			return nil
		}
		select {
		case <-timer.C:
			return fmt.Errorf("timed out after %s", timeout)
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func shellQuote(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = quoteShellArg(p)
	}
	return strings.Join(quoted, " ")
}

func quoteShellArg(s string) string {
	if s == "" {
		return "''"
	}
	if isSafeShellWord(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}

func isSafeShellWord(s string) bool {
	for _, r := range s {
		if !isSafeShellRune(r) {
			return false
		}
	}
	return true
}

func isSafeShellRune(r rune) bool {
	if r >= 'a' && r <= 'z' {
		return true
	}
	if r >= 'A' && r <= 'Z' {
		return true
	}
	if r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '@', '%', '_', '+', '=', ':', ',', '.', '/', '-':
		return true
	}
	return false
}
