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
	"regexp"
	"strings"
)

// The scanner recognizes a fixed, enumerable grammar of access shapes over
// two configuration sources: process.env and import.meta.env. Free-text
// "search for these patterns" heuristics deliberately do not exist here;
// every shape the scanner understands is one of the compiled patterns below,
// so scanning is deterministic and testable.
const sourceExpr = `(?:process\.env|import\.meta\.env)`

var (
	// reSource finds every occurrence of a configuration source token.
	reSource = regexp.MustCompile(sourceExpr)

	// reDirectTail matches a member access immediately after the source.
	reDirectTail = regexp.MustCompile(`^\.([A-Za-z_][A-Za-z0-9_]*)`)

	// reBracketTail matches a string-literal index after the source.
	reBracketTail = regexp.MustCompile(`^\[\s*(?:"([A-Za-z_][A-Za-z0-9_]*)"|'([A-Za-z_][A-Za-z0-9_]*)')\s*\]`)

	// reDestructure matches a destructuring binding from the source.
	reDestructure = regexp.MustCompile(`(?:const|let|var)\s*\{([^}]*)\}\s*=\s*` + sourceExpr)

	// reDestructureEntry parses one entry of a destructuring pattern:
	// NAME, NAME: alias, NAME = default, NAME: alias = default.
	reDestructureEntry = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?::\s*([A-Za-z_$][A-Za-z0-9_$]*))?\s*(?:=[^,]*)?$`)

	// reDefaultedAhead matches an or/else-style fallback combinator right
	// after an access.
	reDefaultedAhead = regexp.MustCompile(`^\s*(?:\|\||\?\?)`)

	// reUseClient and reUseServer match file-scope execution-context
	// directives.
	reUseClient = regexp.MustCompile(`^\s*["']use client["'];?\s*$`)
	reUseServer = regexp.MustCompile(`^\s*["']use server["'];?\s*$`)
)

// accessMatch is one classified occurrence on a single line.
type accessMatch struct {
	name    string // empty for dynamic
	column  int    // 1-indexed
	pattern AccessPattern

	// binding is the local identifier a destructure entry introduces.
	// Later references to it resolve back to name.
	binding string
}

// matchLine classifies every source access on one line.
//
// Each textual occurrence yields exactly one match. Destructuring spans are
// consumed first so the source token inside them is not double counted.
// Shape precedence for a single occurrence is: defaulted, then template
// interpolation, then the base shape.
func matchLine(line string) []accessMatch {
	var matches []accessMatch

	destructured := reDestructure.FindAllStringSubmatchIndex(line, -1)
	for _, span := range destructured {
		inner := line[span[2]:span[3]]
		matches = append(matches, parseDestructureEntries(inner, span[2])...)
	}

	for _, loc := range reSource.FindAllStringIndex(line, -1) {
		if insideSpan(loc[0], destructured) {
			continue
		}

		tail := line[loc[1]:]
		var name string
		var tailLen int
		pattern := AccessDirect

		if m := reDirectTail.FindStringSubmatch(tail); m != nil {
			name = m[1]
			tailLen = len(m[0])
		} else if m := reBracketTail.FindStringSubmatch(tail); m != nil {
			name = m[1]
			if name == "" {
				name = m[2]
			}
			tailLen = len(m[0])
			pattern = AccessBracketLiteral
		} else if strings.HasPrefix(tail, "[") {
			// Computed index. Carries no name; surfaces only as a
			// coverage caveat.
			matches = append(matches, accessMatch{
				column:  loc[0] + 1,
				pattern: AccessDynamic,
			})
			continue
		} else {
			// Bare reference to the source object with no symbol read.
			continue
		}

		switch {
		case reDefaultedAhead.MatchString(tail[tailLen:]):
			pattern = AccessDefaulted
		case strings.HasSuffix(strings.TrimRight(line[:loc[0]], " \t"), "${"):
			pattern = AccessTemplateInterpolation
		}

		matches = append(matches, accessMatch{
			name:    name,
			column:  loc[0] + 1,
			pattern: pattern,
		})
	}

	return matches
}

// parseDestructureEntries expands the inside of a destructuring pattern into
// one match per bound name. offset is the 0-indexed column of the pattern
// body within the line. A rest/spread element is a computed access and is
// reported as dynamic.
func parseDestructureEntries(inner string, offset int) []accessMatch {
	var matches []accessMatch
	pos := 0
	for _, entry := range strings.Split(inner, ",") {
		entryStart := pos
		pos += len(entry) + 1

		leading := len(entry) - len(strings.TrimLeft(entry, " \t"))
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		column := offset + entryStart + leading + 1

		if strings.HasPrefix(entry, "...") {
			matches = append(matches, accessMatch{
				column:  column,
				pattern: AccessDynamic,
			})
			continue
		}

		m := reDestructureEntry.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		binding := m[2] // renamed: { NAME: alias }
		if binding == "" {
			binding = m[1]
		}
		matches = append(matches, accessMatch{
			name:    m[1],
			column:  column,
			pattern: AccessDestructure,
			binding: binding,
		})
	}
	return matches
}

// insideSpan reports whether pos falls inside any of the given match spans.
func insideSpan(pos int, spans [][]int) bool {
	for _, span := range spans {
		if pos >= span[0] && pos < span[1] {
			return true
		}
	}
	return false
}
