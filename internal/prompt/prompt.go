// Package prompt renders collected posts into the instruction text sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

// Placeholder marks where the rendered posts go in a template.
const Placeholder = "{{posts}}"

// DefaultTemplate is used when no template file is configured or found.
const DefaultTemplate Template = `Please provide a concise summary of the key information, trends, and insights from these recent Bluesky posts. Focus on:
1. Major announcements or news
2. Industry trends or developments  
3. Notable opinions or statements
4. Any emerging themes

Here are the posts:
` + Placeholder + `

Please structure your summary with clear sections and bullet points for easy reading.`

// Template is instruction text containing at most one Placeholder.
type Template string

// Render substitutes the posts block. A template without the placeholder
// gets the block appended after a blank line.
func (t Template) Render(postText string) string {
	s := string(t)
	if strings.Contains(s, Placeholder) {
		return strings.Replace(s, Placeholder, postText, 1)
	}
	return strings.TrimRight(s, "\n") + "\n\n" + postText
}

// LoadTemplate reads a template file. An empty path or a missing file yields
// DefaultTemplate; any other read error is returned.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		L_info("prompt: template file not found, using default", "path", path)
		return DefaultTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", path, err)
	}

	L_debug("prompt: template loaded", "path", path, "chars", len(data))
	return Template(data), nil
}

// RenderPosts renders each account with at least one post as a headed,
// bulleted section, in collection order.
func RenderPosts(posts types.PostCollection) string {
	var sb strings.Builder
	for _, ap := range posts {
		if len(ap.Posts) == 0 {
			continue
		}
		sb.WriteString("\n--- Posts from ")
		sb.WriteString(ap.Account)
		sb.WriteString(" ---\n")
		for _, p := range ap.Posts {
			sb.WriteString("• ")
			sb.WriteString(p.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Builder turns a post collection into a complete prompt.
// The template can be swapped while Build is running elsewhere.
type Builder struct {
	mu       sync.RWMutex
	template Template
}

// NewBuilder creates a builder; an empty template means DefaultTemplate.
func NewBuilder(t Template) *Builder {
	b := &Builder{}
	b.SetTemplate(t)
	return b
}

// SetTemplate replaces the template; empty means DefaultTemplate.
func (b *Builder) SetTemplate(t Template) {
	if t == "" {
		t = DefaultTemplate
	}
	b.mu.Lock()
	b.template = t
	b.mu.Unlock()
}

// Template returns the template currently in use.
func (b *Builder) Template() Template {
	if b == nil {
		return DefaultTemplate
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.template == "" {
		return DefaultTemplate
	}
	return b.template
}

// Build returns the full prompt for posts.
func (b *Builder) Build(posts types.PostCollection) string {
	return b.Template().Render(RenderPosts(posts))
}
