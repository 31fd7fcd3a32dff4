package service

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// MarkdownRenderer converte markdown em HTML
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// GoldmarkRenderer renderiza markdown com GFM, quebras de linha simples
// como <br> e ids nos títulos. HTML cru vindo do modelo não é repassado.
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer cria um renderer goldmark
func NewMarkdownRenderer() *GoldmarkRenderer {
	return &GoldmarkRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Render converte o markdown em HTML
func (r *GoldmarkRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return buf.String(), nil
}
