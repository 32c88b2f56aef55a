// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envscan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// declKeyPattern matches a valid declaration key, optionally preceded by an
// "export" keyword.
var declKeyPattern = regexp.MustCompile(`^(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)$`)

// DeclarationStore is a precedence-aware symbol table built from ordered
// declaration layers.
//
// # Description
//
// Layers are parsed strictly sequentially in ascending ordinal order because
// override resolution depends on processing order. Within a single layer a
// later line for the same name overrides an earlier one (last-write-wins per
// file). A malformed line yields a ParseError and parsing continues with the
// remaining lines of that file.
//
// # Thread Safety
//
// Safe for concurrent reads after LoadLayers returns.
type DeclarationStore struct {
	// decls maps name to declarations ordered by layer ordinal.
	decls map[string][]Declaration
}

// LoadLayers parses the given layers into a DeclarationStore.
//
// # Inputs
//
//   - layers: Declaration files with their override ordinals. Processed in
//     ascending ordinal order regardless of slice order.
//
// # Outputs
//
//   - *DeclarationStore: The loaded symbol table. Never nil.
//   - []ParseError: Line-level recoverable failures, in encounter order.
func LoadLayers(layers []Layer) (*DeclarationStore, []ParseError) {
	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Ordinal < ordered[j].Ordinal
	})

	store := &DeclarationStore{decls: make(map[string][]Declaration)}
	var parseErrs []ParseError

	for _, layer := range ordered {
		// Last-write-wins within a single layer.
		perLayer := make(map[string]Declaration)
		var order []string

		for i, line := range strings.Split(layer.Content, "\n") {
			decl, err := parseDeclLine(line, layer, i+1)
			if err != nil {
				parseErrs = append(parseErrs, *err)
				continue
			}
			if decl == nil {
				continue // blank or comment
			}
			if _, seen := perLayer[decl.Name]; !seen {
				order = append(order, decl.Name)
			}
			perLayer[decl.Name] = *decl
		}

		for _, name := range order {
			store.decls[name] = append(store.decls[name], perLayer[name])
		}
	}

	return store, parseErrs
}

// Declarations returns the declarations for a name, ordered by layer.
func (s *DeclarationStore) Declarations(name string) []Declaration {
	return s.decls[name]
}

// All returns the full name-to-declarations table.
func (s *DeclarationStore) All() map[string][]Declaration {
	return s.decls
}

// Names returns all declared names in sorted order.
func (s *DeclarationStore) Names() []string {
	names := make([]string, 0, len(s.decls))
	for name := range s.decls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Effective returns the effective declared value for a name: the value from
// the lowest-ordinal layer that has one. The second return is false when no
// layer declares a value ("declared without value") or the name is unknown.
func (s *DeclarationStore) Effective(name string) (string, bool) {
	for _, decl := range s.decls[name] {
		if decl.HasValue {
			return decl.Value, true
		}
	}
	return "", false
}

// parseDeclLine parses one declaration line.
//
// Returns (nil, nil) for blank lines and comments, a declaration for
// KEY=VALUE and KEY= lines, and a ParseError for anything else.
func parseDeclLine(line string, layer Layer, lineNo int) (*Declaration, *ParseError) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	eq := strings.Index(trimmed, "=")
	if eq < 0 {
		return nil, &ParseError{
			File:   layer.Path,
			Line:   lineNo,
			Reason: "expected KEY=VALUE",
		}
	}

	keyPart := strings.TrimSpace(trimmed[:eq])
	m := declKeyPattern.FindStringSubmatch(keyPart)
	if m == nil {
		return nil, &ParseError{
			File:   layer.Path,
			Line:   lineNo,
			Reason: fmt.Sprintf("invalid key %q", keyPart),
		}
	}

	decl := &Declaration{
		Name:       m[1],
		Layer:      layer.Ordinal,
		SourceFile: layer.Path,
		Line:       lineNo,
	}

	value, comment, perr := parseDeclValue(strings.TrimSpace(trimmed[eq+1:]), layer.Path, lineNo)
	if perr != nil {
		return nil, perr
	}
	decl.InlineComment = comment
	if value != nil {
		decl.HasValue = true
		decl.Value = *value
	}
	return decl, nil
}

// parseDeclValue parses the right-hand side of a declaration line.
//
// VALUE may be bare, single-quoted, or double-quoted; quoting strips only
// the matching outer pair, with no further escape processing. A trailing
// "# ..." becomes the inline comment. A nil value means "declared without
// value" (KEY= with nothing after the equals sign); an empty quoted string
// still counts as a value.
func parseDeclValue(raw, file string, lineNo int) (*string, string, *ParseError) {
	if raw == "" {
		return nil, "", nil
	}
	if strings.HasPrefix(raw, "#") {
		return nil, strings.TrimSpace(strings.TrimPrefix(raw, "#")), nil
	}

	if raw[0] == '"' || raw[0] == '\'' {
		quote := raw[0]
		rest := raw[1:]
		end := strings.IndexByte(rest, quote)
		if end < 0 {
			return nil, "", &ParseError{
				File:   file,
				Line:   lineNo,
				Reason: "unterminated quoted value",
			}
		}
		value := rest[:end]
		trailing := strings.TrimSpace(rest[end+1:])
		if trailing == "" {
			return &value, "", nil
		}
		if strings.HasPrefix(trailing, "#") {
			return &value, strings.TrimSpace(strings.TrimPrefix(trailing, "#")), nil
		}
		return nil, "", &ParseError{
			File:   file,
			Line:   lineNo,
			Reason: "unexpected characters after quoted value",
		}
	}

	// Bare value: everything up to an inline comment marker.
	value := raw
	comment := ""
	if idx := strings.Index(raw, " #"); idx >= 0 {
		value = strings.TrimSpace(raw[:idx])
		comment = strings.TrimSpace(strings.TrimPrefix(raw[idx+1:], "#"))
	}
	if value == "" {
		return nil, comment, nil
	}
	return &value, comment, nil
}
