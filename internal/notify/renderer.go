package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders deal announcements from per-channel templates.
type Renderer struct {
	templates map[Channel]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"escapeMarkdown": EscapeMarkdown,
		"formatPrice":    formatPrice,
		"discountPct":    discountPct,
	}

	r := &Renderer{templates: make(map[Channel]*template.Template)}
	for _, channel := range []Channel{ChannelTelegram, ChannelWhatsapp} {
		filename := fmt.Sprintf("templates/%s_deal.tmpl", channel)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}
		tmpl, err := template.New(string(channel)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		r.templates[channel] = tmpl
	}
	return r, nil
}

// Render produces the announcement text for one channel.
func (r *Renderer) Render(channel Channel, msg Message) (string, error) {
	tmpl, ok := r.templates[channel]
	if !ok {
		return "", fmt.Errorf("template not found for channel %s", channel)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("execute template %s: %w", channel, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// markdownV2Specials are the characters Telegram MarkdownV2 requires to
// be backslash-escaped in regular text.
const markdownV2Specials = `_*[]()~` + "`" + `>#+-=|{}.!`

// EscapeMarkdown escapes Telegram MarkdownV2 special characters.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatPrice renders a BRL amount in the local convention, for example
// 1299.9 as "1299,90".
func formatPrice(v float64) string {
	return strings.ReplaceAll(fmt.Sprintf("%.2f", v), ".", ",")
}

// discountPct computes the rounded percentage off between old and
// current price, zero when no meaningful old price exists.
func discountPct(price, oldPrice float64) int {
	if oldPrice <= price || oldPrice == 0 {
		return 0
	}
	return int((1-price/oldPrice)*100 + 0.5)
}
