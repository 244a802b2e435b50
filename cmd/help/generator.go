package help

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"commandset/cmd"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

const (
	// DefaultWidth is used when the terminal width is unknown.
	DefaultWidth = 80

	keyColumnWidth   = 12
	statusDescLength = 15
	uncategorized    = cmd.Category("Other")
)

// Generator renders commands as help text.
type Generator struct {
	width int

	// Styles for formatting help content
	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	keyStyle    lipgloss.Style
	descStyle   lipgloss.Style
	onStyle     lipgloss.Style
	offStyle    lipgloss.Style
	sepStyle    lipgloss.Style
}

// Option configures a Generator.
type Option func(*generatorOptions)

type generatorOptions struct {
	width   int
	profile *termenv.Profile
}

// WithWidth sets the wrap width for Render.
func WithWidth(width int) Option {
	return func(o *generatorOptions) {
		if width > 0 {
			o.width = width
		}
	}
}

// WithProfile forces a colour profile instead of detecting one from the writer.
// termenv.Ascii disables styling entirely.
func WithProfile(profile termenv.Profile) Option {
	return func(o *generatorOptions) {
		o.profile = &profile
	}
}

// NewGenerator creates a generator whose colours suit w.
func NewGenerator(w io.Writer, opts ...Option) *Generator {
	o := generatorOptions{width: DefaultWidth}
	for _, opt := range opts {
		opt(&o)
	}

	r := lipgloss.NewRenderer(w)
	if o.profile != nil {
		r.SetColorProfile(*o.profile)
	}

	return &Generator{
		width:       o.width,
		titleStyle:  r.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#7D56F4")),
		headerStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#36CFC9")),
		keyStyle:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFCC00")),
		descStyle:   r.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		onStyle:     r.NewStyle().Foreground(lipgloss.Color("#52C41A")),
		offStyle:    r.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
		sepStyle:    r.NewStyle().Foreground(lipgloss.Color("#3C3C3C")),
	}
}

// Render creates a help screen listing commands grouped by category. Within a
// category, commands keep the order they were given in.
func (g *Generator) Render(title string, commands []*cmd.Command) string {
	if len(commands) == 0 {
		return g.titleStyle.Render("No commands registered")
	}

	var content strings.Builder
	content.WriteString(g.titleStyle.Render(title))
	content.WriteString("\n\n")

	categories, order := g.groupCommandsByCategory(commands)
	for i, category := range order {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(g.formatCategory(category, categories[category]))
	}

	return content.String()
}

// StatusLine creates a one-line summary of the bound commands, dropping
// trailing entries that would not fit in width.
func (g *Generator) StatusLine(commands []*cmd.Command, width int) string {
	sep := g.sepStyle.Render(" • ")
	sepWidth := ansi.PrintableRuneWidth(sep)

	var line strings.Builder
	used := 0
	for _, command := range commands {
		if cmd.IsHiddenCategory(command.Category) {
			continue
		}
		hk := command.HotKey()
		if hk == nil {
			continue
		}

		desc := command.Description
		if desc == "" {
			desc = command.Name
		}
		part := fmt.Sprintf("%s %s", g.keyStyle.Render(hk.String()), g.descStyle.Render(runewidth.Truncate(desc, statusDescLength, "...")))

		partWidth := ansi.PrintableRuneWidth(part)
		if used > 0 {
			partWidth += sepWidth
		}
		if width > 0 && used+partWidth > width {
			break
		}
		if used > 0 {
			line.WriteString(sep)
		}
		line.WriteString(part)
		used += partWidth
	}

	return line.String()
}

// groupCommandsByCategory groups commands by their category and returns the
// visible categories in display order.
func (g *Generator) groupCommandsByCategory(commands []*cmd.Command) (map[cmd.Category][]*cmd.Command, []cmd.Category) {
	groups := make(map[cmd.Category][]*cmd.Command)
	var order []cmd.Category

	for _, command := range commands {
		category := command.Category
		if category == "" {
			category = uncategorized
		}
		if cmd.IsHiddenCategory(category) {
			continue
		}
		if _, seen := groups[category]; !seen {
			order = append(order, category)
		}
		groups[category] = append(groups[category], command)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return cmd.GetCategoryPriority(order[i]) < cmd.GetCategoryPriority(order[j])
	})
	return groups, order
}

// formatCategory creates formatted output for a command category
func (g *Generator) formatCategory(category cmd.Category, commands []*cmd.Command) string {
	var content strings.Builder

	content.WriteString(g.headerStyle.Render(string(category) + ":"))
	content.WriteString("\n")

	for _, command := range commands {
		keyText := "-"
		if hk := command.HotKey(); hk != nil {
			keyText = hk.String()
		}

		key := g.keyStyle.Render(keyText)
		padding := strings.Repeat(" ", max(1, keyColumnWidth-ansi.PrintableRuneWidth(key)))
		head := fmt.Sprintf("  %s%s%s %s", key, padding, command.Name, g.formatState(command))

		desc := command.Description
		if desc == "" {
			content.WriteString(head)
			content.WriteString("\n")
			continue
		}

		// Descriptions wrap under the name column.
		indent := strings.Repeat(" ", 2+max(keyColumnWidth, ansi.PrintableRuneWidth(key)+1)+2)
		wrapped := wordwrap.String(desc, max(20, g.width-len(indent)))
		content.WriteString(head)
		content.WriteString("\n")
		for _, l := range strings.Split(wrapped, "\n") {
			content.WriteString(indent)
			content.WriteString(g.descStyle.Render(l))
			content.WriteString("\n")
		}
	}

	return content.String()
}

func (g *Generator) formatState(command *cmd.Command) string {
	state := g.offStyle.Render("[off]")
	if command.Flag() {
		state = g.onStyle.Render("[on]")
	}
	if sel := command.Selection(); sel != "" {
		state += " " + g.descStyle.Render("= "+sel)
	}
	return state
}
