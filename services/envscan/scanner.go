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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultScanWorkers bounds the scan fan-out when Inputs.Workers is zero.
const defaultScanWorkers = 8

// ScanFile scans a single source file for symbol accesses.
//
// # Description
//
// Applies the fixed access-pattern grammar line by line, resolves the file's
// enclosing context once, and resolves references through destructuring
// aliases within the file. Returned usages are ordered by (line, column).
//
// # Outputs
//
//   - []Usage: All usages found. Dynamic accesses are included with an
//     empty name.
//   - error: A *ScanError when the file content is not scannable text.
func ScanFile(filePath, content string) ([]Usage, error) {
	usages, serr := scanOne(filePath, content)
	if serr != nil {
		return nil, serr
	}
	return usages, nil
}

// aliasBinding tracks one local name introduced by a destructuring binding.
// Bindings are bounded to a single file and expire when the brace depth
// drops below the depth they were introduced at; alias-of-alias chains are
// never followed.
type aliasBinding struct {
	orig  string
	depth int
	re    *regexp.Regexp
}

// scanOne is the single-file scan worker.
func scanOne(filePath, content string) ([]Usage, *ScanError) {
	if strings.IndexByte(content, 0) >= 0 {
		return nil, &ScanError{File: filePath, Reason: "binary content"}
	}

	lines := strings.Split(content, "\n")
	bindings := make(map[string]aliasBinding)
	var usages []Usage
	depth := 0
	firstUsageLine := 0

	for i, line := range lines {
		lineNo := i + 1

		// Resolve references through aliases introduced on earlier lines
		// before this line's own bindings activate.
		for _, ref := range findAliasRefs(line, bindings) {
			usages = append(usages, Usage{
				Name:    ref.orig,
				File:    filePath,
				Line:    lineNo,
				Column:  ref.column,
				Pattern: AccessDirect,
				AliasOf: ref.binding,
			})
		}

		var introduced []accessMatch
		for _, m := range matchLine(line) {
			if firstUsageLine == 0 {
				firstUsageLine = lineNo
			}
			usages = append(usages, Usage{
				Name:    m.name,
				File:    filePath,
				Line:    lineNo,
				Column:  m.column,
				Pattern: m.pattern,
			})
			if m.pattern == AccessDestructure && m.binding != "" {
				introduced = append(introduced, m)
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
		for name, b := range bindings {
			if depth < b.depth {
				delete(bindings, name)
			}
		}
		for _, m := range introduced {
			bindings[m.binding] = aliasBinding{
				orig:  m.name,
				depth: depth,
				re:    aliasRefPattern(m.binding),
			}
		}
	}

	fileCtx := resolveContext(filePath, lines, firstUsageLine)
	for i := range usages {
		usages[i].Context = fileCtx
	}

	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Line != usages[j].Line {
			return usages[i].Line < usages[j].Line
		}
		if usages[i].Column != usages[j].Column {
			return usages[i].Column < usages[j].Column
		}
		return usages[i].Name < usages[j].Name
	})
	return usages, nil
}

// aliasRef is one reference to a destructuring alias.
type aliasRef struct {
	orig    string
	binding string
	column  int
}

// aliasRefPattern compiles the reference pattern for a binding: the bare
// identifier, not reached through a member access.
func aliasRefPattern(binding string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^.\w$])(` + regexp.QuoteMeta(binding) + `)\b`)
}

// findAliasRefs finds references to active alias bindings on one line.
// Object keys (alias:) and plain reassignments (alias =) are not reads and
// are skipped.
func findAliasRefs(line string, bindings map[string]aliasBinding) []aliasRef {
	var refs []aliasRef
	for name, b := range bindings {
		for _, idx := range b.re.FindAllStringSubmatchIndex(line, -1) {
			rest := strings.TrimLeft(line[idx[3]:], " \t")
			if strings.HasPrefix(rest, ":") {
				continue
			}
			if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
				continue
			}
			refs = append(refs, aliasRef{
				orig:    b.orig,
				binding: name,
				column:  idx[2] + 1,
			})
		}
	}
	return refs
}

// resolveContext determines the enclosing context for a file, once.
//
// A file is publicly-exposed when it carries a "use client" directive before
// its first usage, and privately-scoped on an explicit "use server"
// directive. Without a directive the path decides: server-side conventions
// are privately-scoped, shared-utility directories cannot be determined from
// lexical inspection alone and stay unknown, everything else is
// privately-scoped.
func resolveContext(filePath string, lines []string, firstUsageLine int) EnclosingContext {
	limit := len(lines)
	if firstUsageLine > 0 {
		limit = firstUsageLine - 1
	}
	for _, line := range lines[:limit] {
		if reUseClient.MatchString(line) {
			return ContextPubliclyExposed
		}
		if reUseServer.MatchString(line) {
			return ContextPrivatelyScoped
		}
	}
	return contextFromPath(filePath)
}

// serverDirs and sharedDirs are the path conventions used when no directive
// is present.
var (
	serverDirs = map[string]bool{
		"api":     true,
		"server":  true,
		"scripts": true,
	}
	sharedDirs = map[string]bool{
		"lib":     true,
		"shared":  true,
		"utils":   true,
		"common":  true,
		"helpers": true,
	}
)

func contextFromPath(filePath string) EnclosingContext {
	normalized := strings.ToLower(strings.ReplaceAll(filePath, "\\", "/"))
	base := path.Base(normalized)

	if strings.HasPrefix(base, "middleware.") ||
		strings.Contains(base, ".server.") ||
		strings.Contains(base, ".config.") {
		return ContextPrivatelyScoped
	}

	segments := strings.Split(path.Dir(normalized), "/")
	for _, seg := range segments {
		if serverDirs[seg] {
			return ContextPrivatelyScoped
		}
	}
	for _, seg := range segments {
		if sharedDirs[seg] {
			return ContextUnknown
		}
	}
	return ContextPrivatelyScoped
}

// =============================================================================
// PARALLEL SCAN
// =============================================================================

// scanSources fans the scan out across files.
//
// Each file is scanned by a worker that appends only to its own result slot,
// so there is no shared mutable state during the scan phase. The merge step
// is single-threaded and sorts all usages by (file, line, column), making
// the final ordering independent of scheduling. A failure in one file is
// recorded as a ScanError and never aborts the others.
func scanSources(ctx context.Context, sources []SourceFile, cache ScanCache, workers int) ([]Usage, []ScanError) {
	if workers <= 0 {
		workers = defaultScanWorkers
	}

	results := make([][]Usage, len(sources))
	failures := make([]*ScanError, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = &ScanError{File: sources[i].Path, Reason: err.Error()}
				return nil
			}

			var hash string
			if cache != nil {
				hash = contentHash(sources[i].Content)
				if cached, ok := cache.Get(sources[i].Path, hash); ok {
					results[i] = cached
					return nil
				}
			}

			usages, serr := scanOne(sources[i].Path, sources[i].Content)
			if serr != nil {
				failures[i] = serr
				return nil
			}
			results[i] = usages
			if cache != nil {
				cache.Put(sources[i].Path, hash, usages)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are collected per file

	var merged []Usage
	var scanErrs []ScanError
	for i := range sources {
		if failures[i] != nil {
			scanErrs = append(scanErrs, *failures[i])
			continue
		}
		merged = append(merged, results[i]...)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].File != merged[j].File {
			return merged[i].File < merged[j].File
		}
		if merged[i].Line != merged[j].Line {
			return merged[i].Line < merged[j].Line
		}
		if merged[i].Column != merged[j].Column {
			return merged[i].Column < merged[j].Column
		}
		return merged[i].Name < merged[j].Name
	})
	return merged, scanErrs
}

// contentHash returns the cache key component for file content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CacheKey builds the canonical cache key for a file. Exposed for cache
// implementations that store keys directly.
func CacheKey(filePath, hash string) string {
	return fmt.Sprintf("scan:%s:%s", filePath, hash)
}
