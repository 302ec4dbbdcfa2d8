package channel

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
)

// Renderer turns reply Markdown into terminal text.
type Renderer interface {
	Render(markdown string) string
}

// PlainRenderer prints Markdown as is.
type PlainRenderer struct{}

func (PlainRenderer) Render(markdown string) string { return markdown }

type glamourRenderer struct {
	r *glamour.TermRenderer
}

// NewMarkdownRenderer renders with glamour at width columns, falling back
// to plain output if the renderer cannot be built.
func NewMarkdownRenderer(width int) Renderer {
	width = theme.Clamp(width, 40, theme.MaxContentWidth)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return PlainRenderer{}
	}
	return glamourRenderer{r: r}
}

func (g glamourRenderer) Render(markdown string) string {
	out, err := g.r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
