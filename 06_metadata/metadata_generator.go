package metadata

import (
	"fmt"
	"log"
	"strings"
	"text/template"

	"trendwave-pipeline/config"
	"trendwave-pipeline/types"
)

// Generator builds YouTube upload metadata for a topic
type Generator struct {
	cfg  *config.Config
	desc *template.Template
}

// New creates a new metadata Generator
func New(cfg *config.Config) (*Generator, error) {
	tmpl, err := template.New("description").Parse(cfg.Upload.DescriptionTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse description template: %w", err)
	}
	return &Generator{cfg: cfg, desc: tmpl}, nil
}

// Run produces the upload metadata for topic
func (g *Generator) Run(topic types.Topic) (*types.UploadMetadata, error) {
	var sb strings.Builder
	if err := g.desc.Execute(&sb, topic); err != nil {
		return nil, fmt.Errorf("render description: %w", err)
	}

	meta := &types.UploadMetadata{
		Title:       TruncateTitle(topic.Title, g.cfg.Upload.TitleMaxChars),
		Description: sb.String(),
		Tags:        append([]string(nil), g.cfg.Upload.Tags...),
		CategoryID:  g.cfg.Upload.CategoryID,
		Visibility:  g.cfg.Upload.Visibility,
		MadeForKids: g.cfg.Upload.MadeForKids,
	}
	log.Printf("[metadata] Title: %q (%d tags)", meta.Title, len(meta.Tags))
	return meta, nil
}

// TruncateTitle cuts title to at most n characters, without an ellipsis
func TruncateTitle(title string, n int) string {
	r := []rune(title)
	if len(r) <= n {
		return title
	}
	return string(r[:n])
}
