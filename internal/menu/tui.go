package menu

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemStyle    = lipgloss.NewStyle().PaddingLeft(2)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	messageStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TUIPrompter renders prompts as small bubbletea programs on a terminal.
type TUIPrompter struct {
	in  io.Reader
	out io.Writer
}

func NewTUIPrompter(in io.Reader, out io.Writer) *TUIPrompter {
	return &TUIPrompter{in: in, out: out}
}

func (p *TUIPrompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	return prog.Run()
}

func (p *TUIPrompter) Choose(ctx context.Context, title string, options []string) (string, bool, error) {
	if len(options) == 0 {
		return "", false, nil
	}
	final, err := p.run(ctx, newChooseModel(title, options))
	if err != nil {
		return "", false, err
	}
	m := final.(chooseModel)
	if !m.chosen {
		return "", false, nil
	}
	return m.options[m.cursor], true, nil
}

func (p *TUIPrompter) Input(ctx context.Context, title, placeholder string) (string, bool, error) {
	final, err := p.run(ctx, newInputModel(title, placeholder))
	if err != nil {
		return "", false, err
	}
	m := final.(inputModel)
	if !m.submitted {
		return "", false, nil
	}
	return strings.TrimSpace(m.input.Value()), true, nil
}

func (p *TUIPrompter) Message(_ context.Context, text string) error {
	_, err := fmt.Fprintln(p.out, messageStyle.Render(text))
	return err
}

type chooseModel struct {
	title   string
	options []string
	cursor  int
	chosen  bool
}

func newChooseModel(title string, options []string) chooseModel {
	return chooseModel{title: title, options: options}
}

func (m chooseModel) Init() tea.Cmd { return nil }

func (m chooseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		return m, tea.Quit
	default:
		// 1-9 pick directly.
		if s := key.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.options) {
				m.cursor = i
				m.chosen = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m chooseModel) View() string {
	var b strings.Builder
	if m.title != "" {
		b.WriteString(titleStyle.Render(m.title))
		b.WriteString("\n\n")
	}
	for i, opt := range m.options {
		line := fmt.Sprintf("%d. %s", i+1, opt)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("↑/↓ move • enter select • esc cancel"))
	b.WriteString("\n")
	return b.String()
}

type inputModel struct {
	title     string
	input     textinput.Model
	submitted bool
}

func newInputModel(title, placeholder string) inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	ti.Focus()
	return inputModel{title: title, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	return titleStyle.Render(m.title) + "\n\n" + m.input.View() + "\n\n" +
		hintStyle.Render("enter submit • esc cancel") + "\n"
}
