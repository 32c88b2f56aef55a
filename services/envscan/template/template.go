// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package template generates a .env.example skeleton from a classified
// analysis result.
//
// Real values never appear in the output; every entry gets a placeholder
// derived from its inferred value shape, so the generated file is safe to
// commit.
package template

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/envscope/services/envscan"
)

// Entry is one line of the generated template.
type Entry struct {
	Name     string
	Category string
	Shape    envscan.ValueShape
	Comment  string
}

// Options tunes template generation.
type Options struct {
	// IncludeUnused keeps symbols that are declared but never used.
	// Default false: the template describes what the code actually reads.
	IncludeUnused bool

	// Header is emitted as a comment block at the top. Empty omits it.
	Header string
}

// Build collects the template entries from a result, deduplicated by name
// and ordered by category, then name.
func Build(result *envscan.Result, opts Options) []Entry {
	seen := make(map[string]bool, len(result.Records))
	var entries []Entry
	for _, rec := range result.Records {
		if seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true

		if rec.UsageCount == 0 && !opts.IncludeUnused {
			continue
		}
		entries = append(entries, Entry{
			Name:     rec.Name,
			Category: rec.Category,
			Shape:    rec.Shape,
			Comment:  firstComment(rec),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Write renders the entries as a declaration file, one category section at
// a time.
func Write(w io.Writer, entries []Entry, opts Options) error {
	var b strings.Builder

	if opts.Header != "" {
		for _, line := range strings.Split(strings.TrimRight(opts.Header, "\n"), "\n") {
			fmt.Fprintf(&b, "# %s\n", line)
		}
		b.WriteString("\n")
	}

	lastCategory := ""
	for i, e := range entries {
		if e.Category != lastCategory {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "# --- %s ---\n", e.Category)
			lastCategory = e.Category
		}
		if e.Comment != "" {
			fmt.Fprintf(&b, "# %s\n", e.Comment)
		}
		fmt.Fprintf(&b, "%s=%s\n", e.Name, e.Shape.Placeholder())
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Generate is the one-call path: build entries from the result and write
// the template.
func Generate(w io.Writer, result *envscan.Result, opts Options) error {
	return Write(w, Build(result, opts), opts)
}

func firstComment(rec envscan.Record) string {
	for _, d := range rec.Declarations {
		if d.InlineComment != "" {
			return d.InlineComment
		}
	}
	return ""
}
