// Package transcript renders a chat history for display.
package transcript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"document-qa/internal/models"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func label(r models.Role) string {
	if r == models.RoleUser {
		return "You"
	}
	return "Assistant"
}

// Markdown lists the turns in order, one labelled paragraph each.
func Markdown(turns []models.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s:** %s", label(turn.Role), strings.TrimSpace(turn.Content))
	}
	return b.String()
}

// HTML renders Markdown(turns). Raw HTML in the turns is not passed
// through.
func HTML(turns []models.Turn) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(turns)), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
