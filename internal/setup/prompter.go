package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// databaseAction is the operator's answer to the drop-or-migrate question for
// an existing database.
type databaseAction int

const (
	actionMigrate databaseAction = iota + 1
	actionDrop
)

func (a databaseAction) String() string {
	switch a {
	case actionMigrate:
		return "migrate"
	case actionDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// databaseChoice carries the chosen action and whether it should be
// remembered for this project.
type databaseChoice struct {
	action   databaseAction
	remember bool
}

type prompter interface {
	// Confirm asks a yes/no question; an empty answer takes def.
	Confirm(ctx context.Context, question string, def bool) (bool, error)
	// ChooseDatabaseAction resolves the destructive drop-vs-migrate decision.
	ChooseDatabaseAction(ctx context.Context, project string) (databaseChoice, error)
}

func newPrompterFor(opts options, cfg config) prompter {
	if cfg.automation {
		return autoPrompter{}
	}
	if canUseBubbleTea(os.Stdin, os.Stdout) && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return newBubbleTeaPrompter(os.Stdin, os.Stdout)
	}
	return newTerminalPrompter(os.Stdin, os.Stdout)
}

// autoPrompter answers every question with the automation default and never
// touches the terminal. The destructive database choice defaults to DROP so
// CI always starts from a clean schema.
type autoPrompter struct{}

func (autoPrompter) Confirm(_ context.Context, _ string, def bool) (bool, error) {
	return def, nil
}

func (autoPrompter) ChooseDatabaseAction(_ context.Context, _ string) (databaseChoice, error) {
	return databaseChoice{action: actionDrop}, nil
}

type terminalPrompter struct {
	in          *bufio.Reader
	out         io.Writer
	color       bool
	accentColor string
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{
		in:          bufio.NewReader(in),
		out:         out,
		color:       supportsColor(out),
		accentColor: "\033[38;5;205m",
	}
}

func (p *terminalPrompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	prompt := fmt.Sprintf("%s %s %s ", p.promptArrow(), p.bold(question), p.muted(hint))

	for {
		if _, err := fmt.Fprint(p.out, prompt); err != nil {
			return false, err
		}
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			if _, err := fmt.Fprintf(p.out, "%s Please respond with %s or %s.\n", p.muted("•"), p.bold("y"), p.bold("n")); err != nil {
				return false, err
			}
		}
	}
}

func (p *terminalPrompter) ChooseDatabaseAction(ctx context.Context, project string) (databaseChoice, error) {
	if err := p.renderDatabaseIntro(project); err != nil {
		return databaseChoice{}, err
	}

	question := fmt.Sprintf("%s %s %s ", p.promptArrow(), p.bold("Drop and recreate, or migrate in place?"), p.muted("[d/M]"))
	for {
		if _, err := fmt.Fprint(p.out, question); err != nil {
			return databaseChoice{}, err
		}
		line, err := p.readLine()
		if err != nil {
			return databaseChoice{}, err
		}
		if ctx.Err() != nil {
			return databaseChoice{}, ctx.Err()
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "m", "migrate":
			return databaseChoice{action: actionMigrate}, nil
		case "d", "drop":
			return databaseChoice{action: actionDrop}, nil
		default:
			if _, err := fmt.Fprintf(p.out, "%s Please enter %s or %s.\n", p.muted("•"), p.bold("d"), p.bold("m")); err != nil {
				return databaseChoice{}, err
			}
		}
	}
}

func (p *terminalPrompter) renderDatabaseIntro(project string) error {
	lines := []string{
		"",
		fmt.Sprintf("%s %s", p.accent("╭"), p.bold("Existing database detected")),
		fmt.Sprintf("│ %s %s", p.label("Project"), project),
		fmt.Sprintf("│ %s migrate keeps your data; drop %s it.", p.label("Note"), p.bold("destroys")),
		p.accent("╰──────────────────────────────────────"),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *terminalPrompter) accent(text string) string {
	return p.wrap(p.accentColor, text)
}

func (p *terminalPrompter) bold(text string) string {
	return p.wrap("\033[1m", text)
}

func (p *terminalPrompter) muted(text string) string {
	return p.wrap("\033[2m", text)
}

func (p *terminalPrompter) label(text string) string {
	return p.muted(text + ":")
}

func (p *terminalPrompter) promptArrow() string {
	if p.color {
		return p.accent("›")
	}
	return ">"
}

func (p *terminalPrompter) wrap(code, text string) string {
	if !p.color || code == "" {
		return text
	}
	return code + text + "\033[0m"
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	type fd interface {
		Fd() uintptr
	}
	f, ok := w.(fd)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
