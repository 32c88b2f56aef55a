// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discover selects the files an analysis run consumes: the ordered
// declaration layers and the in-scope source files under a project root.
//
// The engine itself never touches the filesystem; this package is the only
// place where on-disk layout knowledge lives.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/envscope/services/envscan"
)

// DefaultLayerNames is the fixed declaration-layer search order. Position in
// the list is the layer ordinal: lower ordinal overrides higher.
var DefaultLayerNames = []string{
	".env.local",
	".env.development",
	".env",
	".env.example",
}

// sourceExtensions are the file types the lexical scanner understands.
var sourceExtensions = map[string]bool{
	".js":     true,
	".jsx":    true,
	".ts":     true,
	".tsx":    true,
	".mjs":    true,
	".cjs":    true,
	".vue":    true,
	".svelte": true,
}

// skipDirs are directory names never descended into in addition to hidden
// directories.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"coverage":     true,
}

// DefaultMaxFileSize caps how large a source file may be before it is
// skipped. Generated bundles past this size drown the scanner in noise.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// Options tunes source discovery.
type Options struct {
	// Include restricts discovery to base names matching one of these
	// glob patterns. Empty means every supported extension.
	Include []string

	// Exclude drops base names matching one of these glob patterns.
	Exclude []string

	// MaxFileSize overrides DefaultMaxFileSize. Zero selects the default.
	MaxFileSize int64
}

// Layers reads the declaration layers present under root, in fixed priority
// order.
//
// # Description
//
// Each name in layerNames is probed directly under root; names that do not
// exist are skipped without error. The ordinal assigned to a layer is its
// position in layerNames, so precedence is stable regardless of which files
// exist. Nil layerNames selects DefaultLayerNames.
//
// # Outputs
//
//   - []envscan.Layer: The layers found, lowest ordinal first.
//   - error: Non-nil only when an existing layer file cannot be read.
func Layers(root string, layerNames []string) ([]envscan.Layer, error) {
	if layerNames == nil {
		layerNames = DefaultLayerNames
	}

	var layers []envscan.Layer
	for ordinal, name := range layerNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read declaration layer %s: %w", path, err)
		}
		layers = append(layers, envscan.Layer{
			Ordinal: ordinal,
			Path:    name,
			Content: string(data),
		})
	}
	return layers, nil
}

// Sources walks root and reads every in-scope source file.
//
// # Description
//
// Recursively walks the tree, skipping hidden directories and common
// dependency/output directories. Files are kept when their extension is a
// supported source type, they pass the include/exclude globs, and they fit
// under the size cap. Paths in the result are slash-separated and relative
// to root, so downstream path-convention checks behave the same on every
// platform. The result is sorted by path.
//
// # Outputs
//
//   - []envscan.SourceFile: The files found, sorted by path.
//   - error: Non-nil when the walk itself fails or the context is
//     cancelled. An unreadable individual file is skipped, not fatal.
func Sources(ctx context.Context, root string, opts Options) ([]envscan.SourceFile, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var sources []envscan.SourceFile
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			// Permission errors on a subtree do not abort the walk.
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}

		if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if !matchesGlobs(d.Name(), opts.Include, true) {
			return nil
		}
		if matchesGlobs(d.Name(), opts.Exclude, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		sources = append(sources, envscan.SourceFile{
			Path:    filepath.ToSlash(rel),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

// matchesGlobs reports whether base matches any of the patterns. An empty
// pattern list yields emptyResult.
func matchesGlobs(base string, patterns []string, emptyResult bool) bool {
	if len(patterns) == 0 {
		return emptyResult
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
