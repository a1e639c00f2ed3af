package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/report"
)

type outputOptions struct {
	format string
	style  string
	width  int
}

func newRenderer(style string, width int) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	return glamour.NewTermRenderer(opts...)
}

// renderMarkdown renders md for the terminal. The "plain" style prints the
// markdown source.
func renderMarkdown(w io.Writer, md string, out outputOptions) error {
	if out.style == "plain" {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := newRenderer(out.style, out.width)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func writeReport(w io.Writer, rep *core.Report, out outputOptions) error {
	switch out.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "markdown":
		return renderMarkdown(w, report.Markdown(rep), out)
	default:
		return fmt.Errorf("unknown output format %q (want markdown or json)", out.format)
	}
}
