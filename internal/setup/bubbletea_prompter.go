package setup

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	dbCardWidth = 58
	// Two spaces of padding on each side inside the card border.
	dbCardInnerWidth = dbCardWidth - 4
)

type bubbleTeaPrompter struct {
	in       io.Reader
	out      io.Writer
	theme    dbTheme
	fallback prompter
}

func newBubbleTeaPrompter(in io.Reader, out io.Writer) *bubbleTeaPrompter {
	return &bubbleTeaPrompter{
		in:       in,
		out:      out,
		theme:    newDBTheme(supportsColor(out)),
		fallback: newTerminalPrompter(in, out),
	}
}

func (p *bubbleTeaPrompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	return p.fallback.Confirm(ctx, question, def)
}

func (p *bubbleTeaPrompter) ChooseDatabaseAction(ctx context.Context, project string) (databaseChoice, error) {
	model := newDBModel(project, p.theme)
	prog := tea.NewProgram(model, tea.WithInput(p.in), tea.WithOutput(p.out), tea.WithContext(ctx))

	final, err := prog.Run()
	if err != nil {
		return p.fallback.ChooseDatabaseAction(ctx, project)
	}
	m, ok := final.(*dbModel)
	if !ok || m.err != nil {
		return p.fallback.ChooseDatabaseAction(ctx, project)
	}
	return m.result, nil
}

type dbTheme struct {
	color        bool
	accentColor  lipgloss.Color
	title        lipgloss.Style
	label        lipgloss.Style
	value        lipgloss.Style
	warning      lipgloss.Style
	option       lipgloss.Style
	optionActive lipgloss.Style
	description  lipgloss.Style
	help         lipgloss.Style
	key          lipgloss.Style
}

func newDBTheme(color bool) dbTheme {
	if !color {
		return dbTheme{
			color:        false,
			title:        lipgloss.NewStyle().Bold(true),
			label:        lipgloss.NewStyle().Faint(true),
			value:        lipgloss.NewStyle(),
			warning:      lipgloss.NewStyle().Bold(true),
			option:       lipgloss.NewStyle().PaddingLeft(2),
			optionActive: lipgloss.NewStyle().PaddingLeft(2).Bold(true),
			description:  lipgloss.NewStyle().Faint(true).PaddingLeft(4),
			help:         lipgloss.NewStyle().Faint(true),
			key:          lipgloss.NewStyle().Bold(true),
		}
	}

	accent := lipgloss.Color("#58d4ff")
	muted := lipgloss.Color("#9fb3c8")
	danger := lipgloss.Color("#ff5f87")

	return dbTheme{
		color:        true,
		accentColor:  accent,
		title:        lipgloss.NewStyle().Foreground(accent).Bold(true),
		label:        lipgloss.NewStyle().Faint(true),
		value:        lipgloss.NewStyle().Foreground(accent).Bold(true),
		warning:      lipgloss.NewStyle().Foreground(danger).Bold(true),
		option:       lipgloss.NewStyle().PaddingLeft(2),
		optionActive: lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#0b1215")).Background(accent).Bold(true),
		description:  lipgloss.NewStyle().Foreground(muted).PaddingLeft(4),
		help:         lipgloss.NewStyle().Faint(true),
		key:          lipgloss.NewStyle().Foreground(accent).Bold(true),
	}
}

type dbOption struct {
	label  string
	desc   string
	hot    string
	choice databaseChoice
}

type dbModel struct {
	theme   dbTheme
	project string

	cursor  int
	options []dbOption
	result  databaseChoice
	done    bool
	err     error
}

func newDBModel(project string, theme dbTheme) *dbModel {
	opts := []dbOption{
		{
			label:  "Migrate",
			desc:   "Run pending migrations; existing data is kept.",
			hot:    "1",
			choice: databaseChoice{action: actionMigrate},
		},
		{
			label:  "Drop and recreate",
			desc:   "Destroys ALL data, then rebuilds the schema from scratch.",
			hot:    "2",
			choice: databaseChoice{action: actionDrop},
		},
		{
			label:  "Always migrate here",
			desc:   fmt.Sprintf("Remember migrate for %s and stop asking.", project),
			hot:    "3",
			choice: databaseChoice{action: actionMigrate, remember: true},
		},
		{
			label:  "Always drop here",
			desc:   fmt.Sprintf("Remember drop for %s and stop asking.", project),
			hot:    "4",
			choice: databaseChoice{action: actionDrop, remember: true},
		},
	}

	return &dbModel{
		theme:   theme,
		project: project,
		cursor:  0, // default to the non-destructive answer
		options: opts,
		result:  databaseChoice{action: actionMigrate},
	}
}

func (m *dbModel) Init() tea.Cmd {
	return nil
}

func (m *dbModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := strings.ToLower(msg.String())
		switch key {
		case "ctrl+c", "esc":
			m.setResult(0)
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.setResult(m.cursor)
			return m, tea.Quit
		case "m":
			m.setResult(0)
			return m, tea.Quit
		case "d":
			m.setResult(1)
			return m, tea.Quit
		case "1", "2", "3", "4":
			idx := int(key[0] - '1')
			if idx >= 0 && idx < len(m.options) {
				m.cursor = idx
				m.setResult(idx)
				return m, tea.Quit
			}
		}
	case tea.QuitMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *dbModel) View() string {
	body := []string{
		m.theme.title.Render("Existing database detected"),
		"",
		fmt.Sprintf("%s %s", m.theme.label.Render("Project :"), m.theme.value.Render(m.project)),
		fmt.Sprintf("%s %s", m.theme.label.Render("Warning :"), m.theme.warning.Render("drop destroys all data")),
		"",
	}

	for i, opt := range m.options {
		labelLine := fmt.Sprintf("%s. %s", opt.hot, opt.label)
		if i == m.cursor {
			body = append(body, m.theme.optionActive.Render("  "+labelLine+" "))
		} else {
			body = append(body, m.theme.option.Render("  "+labelLine))
		}
		body = append(body, m.theme.description.Render(opt.desc))
	}

	help := fmt.Sprintf("Use ↑/↓ or press %s–%s. Enter selects; Esc keeps data.",
		m.theme.key.Render("1"), m.theme.key.Render("4"))
	body = append(body, "", m.theme.help.Render(help))

	content := lipgloss.JoinVertical(lipgloss.Left, body...)
	lines := strings.Split(content, "\n")

	cardLines := make([]string, 0, len(lines)+2)
	cardLines = append(cardLines, m.renderBorderLine("╭", "─", "╮"))
	for _, line := range lines {
		cardLines = append(cardLines, m.renderContentLine(line))
	}
	cardLines = append(cardLines, m.renderBorderLine("╰", "─", "╯"))

	return "\n" + strings.Join(cardLines, "\n") + "\n"
}

func (m *dbModel) setResult(index int) {
	if index < 0 || index >= len(m.options) {
		return
	}
	m.result = m.options[index].choice
	m.cursor = index
	m.done = true
}

func (m *dbModel) renderBorderLine(left, fill, right string) string {
	leftPart, rightPart := left, right
	line := strings.Repeat(fill, dbCardWidth)
	if m.theme.color && m.theme.accentColor != "" {
		accentStyle := lipgloss.NewStyle().Foreground(m.theme.accentColor)
		leftPart = accentStyle.Render(left)
		rightPart = accentStyle.Render(right)
		line = accentStyle.Render(line)
	}
	return leftPart + line + rightPart
}

func (m *dbModel) renderContentLine(inner string) string {
	width := lipgloss.Width(inner)
	if width < dbCardInnerWidth {
		inner = inner + strings.Repeat(" ", dbCardInnerWidth-width)
	}
	padding := strings.Repeat(" ", 2)

	border := "│"
	if m.theme.color && m.theme.accentColor != "" {
		border = lipgloss.NewStyle().Foreground(m.theme.accentColor).Render("│")
	}
	return border + padding + inner + padding + border
}

func canUseBubbleTea(in io.Reader, out io.Writer) bool {
	type fd interface {
		Fd() uintptr
	}
	_, okIn := in.(fd)
	_, okOut := out.(fd)
	return okIn && okOut
}
