// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders an analysis result for humans and machines: a
// styled terminal report, a Markdown document, or raw JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/envscope/services/envscan"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// styles are applied only when color is enabled; the plain path emits the
// bare strings so piped output stays clean.
var (
	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
)

// Renderer writes analysis results in a chosen format.
//
// Thread Safety: Renderer is stateless after construction and safe for
// concurrent use.
type Renderer struct {
	color bool
}

// NewRenderer creates a renderer. color enables ANSI styling on the text
// format; Markdown and JSON are never styled.
func NewRenderer(color bool) *Renderer {
	return &Renderer{color: color}
}

// ColorEnabled reports whether f is an interactive terminal, the default
// for enabling color.
func ColorEnabled(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Render writes the result to w in the given format.
func (r *Renderer) Render(w io.Writer, result *envscan.Result, format Format) error {
	switch format {
	case FormatText, "":
		return r.text(w, result)
	case FormatMarkdown:
		return r.markdown(w, result)
	case FormatJSON:
		return WriteJSON(w, result)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result *envscan.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (r *Renderer) paint(s string, style lipgloss.Style) string {
	if !r.color {
		return s
	}
	return style.Render(s)
}

func (r *Renderer) text(w io.Writer, result *envscan.Result) error {
	var b strings.Builder

	declared, used := tally(result.Records)
	b.WriteString(r.paint("Configuration cross-reference", styleTitle))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %d symbols (%d declared, %d used), %d anomalies\n",
		len(result.Records), declared, used, len(result.Anomalies))

	if missing := flagged(result.Records, envscan.FlagMissing); len(missing) > 0 {
		b.WriteString("\n")
		b.WriteString(r.paint("Used but never declared:", styleError))
		b.WriteString("\n")
		for _, rec := range missing {
			fmt.Fprintf(&b, "  %s %s (%s)\n",
				r.paint("✗", styleError), rec.Name, firstLocation(rec))
		}
	}

	if unused := flagged(result.Records, envscan.FlagUnused); len(unused) > 0 {
		b.WriteString("\n")
		b.WriteString(r.paint("Declared but never used:", styleWarning))
		b.WriteString("\n")
		for _, rec := range unused {
			fmt.Fprintf(&b, "  %s %s (%s)\n",
				r.paint("⚠", styleWarning), rec.Name, declLocation(rec))
		}
	}

	if len(result.Anomalies) > 0 {
		b.WriteString("\n")
		b.WriteString(r.paint("Anomalies:", styleError))
		b.WriteString("\n")
		for _, a := range result.Anomalies {
			fmt.Fprintf(&b, "  %s [%s] %s\n",
				r.paint("✗", styleError), a.Kind, a.Message)
			if a.File != "" {
				fmt.Fprintf(&b, "      %s\n",
					r.paint(fmt.Sprintf("at %s:%d", a.File, a.Line), styleMuted))
			}
		}
	}

	for _, pe := range result.ParseErrors {
		fmt.Fprintf(&b, "\n  %s parse error %s:%d: %s\n",
			r.paint("⚠", styleWarning), pe.File, pe.Line, pe.Reason)
	}
	for _, se := range result.ScanErrors {
		fmt.Fprintf(&b, "\n  %s scan error %s: %s\n",
			r.paint("⚠", styleWarning), se.File, se.Reason)
	}

	if result.DynamicUsages > 0 {
		fmt.Fprintf(&b, "\n  %s\n", r.paint(fmt.Sprintf(
			"note: %d dynamic accesses could not be resolved to a name",
			result.DynamicUsages), styleMuted))
	}

	if len(result.Anomalies) == 0 && len(flagged(result.Records, envscan.FlagMissing)) == 0 &&
		len(flagged(result.Records, envscan.FlagUnused)) == 0 {
		fmt.Fprintf(&b, "\n  %s no findings\n", r.paint("✓", styleSuccess))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) markdown(w io.Writer, result *envscan.Result) error {
	var b strings.Builder

	b.WriteString("# Configuration cross-reference\n\n")
	declared, used := tally(result.Records)
	fmt.Fprintf(&b, "%d symbols (%d declared, %d used), %d anomalies\n\n",
		len(result.Records), declared, used, len(result.Anomalies))

	b.WriteString("## Symbols\n\n")
	b.WriteString("| Name | Visibility | Category | Usages | Files | Flags |\n")
	b.WriteString("|------|------------|----------|--------|-------|-------|\n")
	for _, rec := range result.Records {
		flags := make([]string, 0, len(rec.Flags))
		for _, f := range rec.Flags {
			flags = append(flags, string(f))
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %d | %d | %s |\n",
			rec.Name, rec.Visibility, rec.Category, rec.UsageCount,
			rec.FileCount, strings.Join(flags, ", "))
	}

	if len(result.Anomalies) > 0 {
		b.WriteString("\n## Anomalies\n\n")
		for _, a := range result.Anomalies {
			if a.File != "" {
				fmt.Fprintf(&b, "- **%s** `%s` — %s (`%s:%d`)\n",
					a.Kind, a.Name, a.Message, a.File, a.Line)
			} else {
				fmt.Fprintf(&b, "- **%s** `%s` — %s\n", a.Kind, a.Name, a.Message)
			}
		}
	}

	if result.DynamicUsages > 0 {
		fmt.Fprintf(&b, "\n> %d dynamic accesses could not be resolved to a name.\n",
			result.DynamicUsages)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// tally counts how many records are declared somewhere and used somewhere.
func tally(records []envscan.Record) (declared, used int) {
	for _, rec := range records {
		if len(rec.Declarations) > 0 {
			declared++
		}
		if rec.UsageCount > 0 {
			used++
		}
	}
	return declared, used
}

// flagged returns the records carrying the given flag, in index order.
func flagged(records []envscan.Record, f envscan.Flag) []envscan.Record {
	var out []envscan.Record
	for _, rec := range records {
		if rec.HasFlag(f) {
			out = append(out, rec)
		}
	}
	return out
}

func firstLocation(rec envscan.Record) string {
	if len(rec.Usages) == 0 {
		return "no usages"
	}
	u := rec.Usages[0]
	return fmt.Sprintf("%s:%d", u.File, u.Line)
}

func declLocation(rec envscan.Record) string {
	if len(rec.Declarations) == 0 {
		return "no declarations"
	}
	d := rec.Declarations[0]
	return fmt.Sprintf("%s:%d", d.SourceFile, d.Line)
}
