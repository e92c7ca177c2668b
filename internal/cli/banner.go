package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one key/value line of a summary box.
type Field struct {
	Key   string
	Value string
}

func F(key string, value any) Field { return Field{Key: key, Value: fmt.Sprint(value)} }

// Printer renders the section header, step lines and final summary of a command.
type Printer struct {
	w       io.Writer
	section lipgloss.Style
	step    lipgloss.Style
	warn    lipgloss.Style
	key     lipgloss.Style
	okBox   lipgloss.Style
	failBox lipgloss.Style
	okHead  lipgloss.Style
	badHead lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w: w,
		section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")),
		step: lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		warn: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		key:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(14),
		okBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3FB950")).
			Padding(0, 1),
		failBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF6B6B")).
			Padding(0, 1),
		okHead:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950")),
		badHead: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
	}
}

func (p *Printer) Section(title string) {
	fmt.Fprintln(p.w, p.section.Render("== "+title+" =="))
}

func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintln(p.w, p.step.Render("  -> "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warn.Render("  !! "+fmt.Sprintf(format, args...)))
}

// Output prints a captured stream verbatim under a label. Empty streams print nothing.
func (p *Printer) Output(label, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(p.w, p.section.Render("-- "+label+" --"))
	fmt.Fprint(p.w, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(p.w)
	}
}

func (p *Printer) Success(title string, fields ...Field) {
	fmt.Fprintln(p.w, p.okBox.Render(p.body(p.okHead.Render(title), fields)))
}

func (p *Printer) Failure(err error, fields ...Field) {
	fields = append(fields, Field{Key: "error", Value: err.Error()})
	fmt.Fprintln(p.w, p.failBox.Render(p.body(p.badHead.Render("FAILED"), fields)))
}

func (p *Printer) body(head string, fields []Field) string {
	lines := []string{head}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		lines = append(lines, p.key.Render(f.Key)+" "+f.Value)
	}
	return strings.Join(lines, "\n")
}
