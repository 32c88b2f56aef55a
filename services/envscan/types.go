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

import "time"

// =============================================================================
// ACCESS PATTERNS
// =============================================================================

// AccessPattern identifies the textual shape through which a configuration
// symbol is read.
type AccessPattern int

const (
	// AccessDirect is a plain member access (env.NAME).
	AccessDirect AccessPattern = iota

	// AccessBracketLiteral is an index with a string literal (env["NAME"]).
	AccessBracketLiteral

	// AccessDestructure is a destructuring binding that pulls one or more
	// names out of the configuration source.
	AccessDestructure

	// AccessTemplateInterpolation is an access inside a template-literal
	// interpolation (`${env.NAME}`).
	AccessTemplateInterpolation

	// AccessDefaulted is an access immediately followed by an or/else-style
	// fallback (env.NAME || "fallback", env.NAME ?? fallback).
	AccessDefaulted

	// AccessDynamic is an index with a computed, non-literal expression.
	// Dynamic accesses carry no name and only feed the coverage caveat.
	AccessDynamic
)

// String returns the wire name of the access pattern.
func (p AccessPattern) String() string {
	switch p {
	case AccessDirect:
		return "direct"
	case AccessBracketLiteral:
		return "bracket_literal"
	case AccessDestructure:
		return "destructure"
	case AccessTemplateInterpolation:
		return "template_interpolation"
	case AccessDefaulted:
		return "defaulted"
	case AccessDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// =============================================================================
// ENCLOSING CONTEXT
// =============================================================================

// EnclosingContext describes whether the file a usage lives in executes in a
// publicly-exposed environment.
type EnclosingContext int

const (
	// ContextUnknown means the context could not be determined lexically
	// (e.g. a shared utility file imported by both contexts). Unknown
	// contexts never trigger scope-violation flags but are surfaced for
	// manual review.
	ContextUnknown EnclosingContext = iota

	// ContextPubliclyExposed means the file carries a recognized client
	// marker before its first usage.
	ContextPubliclyExposed

	// ContextPrivatelyScoped means the file runs only in a trusted context.
	ContextPrivatelyScoped
)

// String returns the wire name of the context.
func (c EnclosingContext) String() string {
	switch c {
	case ContextPubliclyExposed:
		return "publicly-exposed"
	case ContextPrivatelyScoped:
		return "privately-scoped"
	default:
		return "unknown"
	}
}

// =============================================================================
// DECLARATIONS
// =============================================================================

// Layer is one declaration file with a fixed override priority.
// Lower ordinals override higher ones.
type Layer struct {
	// Ordinal is the override priority (0 = highest).
	Ordinal int `json:"ordinal"`

	// Path is the originating file path, used for error attribution.
	Path string `json:"path"`

	// Content is the raw file content.
	Content string `json:"content"`
}

// Declaration is a single name-to-value binding parsed from a layer.
type Declaration struct {
	// Name is the symbol name. Matched verbatim, case-sensitive.
	Name string `json:"name"`

	// Layer is the ordinal of the layer the declaration came from.
	Layer int `json:"layer"`

	// HasValue is false for "KEY=" lines.
	HasValue bool `json:"has_value"`

	// Value is the declared value after quote stripping. Empty when
	// HasValue is false.
	Value string `json:"value,omitempty"`

	// SourceFile is the layer path the declaration was parsed from.
	SourceFile string `json:"source_file"`

	// Line is the 1-indexed line number within the layer.
	Line int `json:"line"`

	// InlineComment is a trailing # comment on the declaration line, if any.
	InlineComment string `json:"inline_comment,omitempty"`
}

// =============================================================================
// USAGES
// =============================================================================

// SourceFile is one in-scope source file supplied by the caller.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Usage is a single textual occurrence where code reads a symbol.
type Usage struct {
	// Name is the symbol read by this usage. Empty for dynamic accesses.
	Name string `json:"name,omitempty"`

	// File is the source file path.
	File string `json:"file"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Column is the 1-indexed column of the access, used as a
	// deterministic tiebreaker when several usages share a line.
	Column int `json:"column"`

	// Pattern is the access shape that produced this usage.
	Pattern AccessPattern `json:"pattern"`

	// Context is the file's enclosing context, resolved once per file.
	Context EnclosingContext `json:"context"`

	// AliasOf is the local alias name when the usage reaches the symbol
	// through a prior destructuring binding in the same lexical scope.
	// Alias chains are bounded to length 1 and never cross files.
	AliasOf string `json:"alias_of,omitempty"`
}

// =============================================================================
// CROSS-REFERENCE RECORDS
// =============================================================================

// Flag marks an anomaly class on a cross-reference record.
type Flag string

const (
	// FlagMissing marks a name that is used but never declared.
	FlagMissing Flag = "MISSING"

	// FlagUnused marks a name that is declared but never used and is not
	// on the caller-supplied allow list.
	FlagUnused Flag = "UNUSED"
)

// Record is the joined view of one symbol: its ordered declarations, its
// usages, and the computed flags and classification.
type Record struct {
	// Name is the symbol name (join key, case-sensitive).
	Name string `json:"name"`

	// Declarations are ordered by layer ordinal, then by line.
	Declarations []Declaration `json:"declarations,omitempty"`

	// HasEffectiveValue is true when at least one layer declares a value.
	HasEffectiveValue bool `json:"has_effective_value"`

	// EffectiveValue is the value from the lowest-ordinal layer that has
	// one. Empty when HasEffectiveValue is false.
	EffectiveValue string `json:"effective_value,omitempty"`

	// Usages are ordered by (file, line, column).
	Usages []Usage `json:"usages,omitempty"`

	// UsageCount is the number of distinct usage occurrences.
	UsageCount int `json:"usage_count"`

	// FileCount is the number of distinct files referencing the symbol.
	FileCount int `json:"file_count"`

	// Flags holds MISSING/UNUSED markers.
	Flags []Flag `json:"flags,omitempty"`

	// Visibility, Category and Shape are filled by the classifier.
	Visibility Visibility `json:"visibility"`
	Category   string     `json:"category"`
	Shape      ValueShape `json:"value_shape"`
}

// HasFlag reports whether the record carries the given flag.
func (r *Record) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Visibility says whether a symbol is, by naming convention, safe to expose
// outside a trusted execution context.
type Visibility int

const (
	// VisibilityPrivate symbols must never be read from a publicly-exposed
	// context.
	VisibilityPrivate Visibility = iota

	// VisibilityPublic symbols match a designated public-prefix convention.
	VisibilityPublic
)

// String returns "private" or "public".
func (v Visibility) String() string {
	if v == VisibilityPublic {
		return "public"
	}
	return "private"
}

// CategoryUnclassified is assigned when no category rule matches.
const CategoryUnclassified = "unclassified"

// ValueShape is the placeholder shape used by template generation.
type ValueShape int

const (
	// ShapeGeneric is the fallback placeholder shape.
	ShapeGeneric ValueShape = iota

	// ShapeURL is for URL-shaped names or values.
	ShapeURL

	// ShapeSecret is for names carrying a secret/key token.
	ShapeSecret

	// ShapeBoolean is for true/false-like values.
	ShapeBoolean

	// ShapeInteger is for purely numeric values.
	ShapeInteger
)

// String returns the wire name of the shape.
func (s ValueShape) String() string {
	switch s {
	case ShapeURL:
		return "url"
	case ShapeSecret:
		return "secret"
	case ShapeBoolean:
		return "boolean"
	case ShapeInteger:
		return "integer"
	default:
		return "generic"
	}
}

// Placeholder returns a sample value suitable for a generated template.
func (s ValueShape) Placeholder() string {
	switch s {
	case ShapeURL:
		return "https://example.com"
	case ShapeSecret:
		return "replace-with-secret"
	case ShapeBoolean:
		return "false"
	case ShapeInteger:
		return "3000"
	default:
		return "your-value-here"
	}
}

// =============================================================================
// ANOMALIES
// =============================================================================

// AnomalyKind identifies a detected anomaly class.
type AnomalyKind string

const (
	// AnomalyScopeMismatch is a private symbol read from a publicly-exposed
	// context. Such a reference silently evaluates to an absent value at
	// runtime instead of failing loudly.
	AnomalyScopeMismatch AnomalyKind = "SCOPE_MISMATCH"

	// AnomalyTypoCandidate is a missing symbol within a small edit distance
	// of a declared name.
	AnomalyTypoCandidate AnomalyKind = "TYPO_CANDIDATE"

	// AnomalyDeclaredWithoutValue is a used symbol declared with no value
	// in any layer.
	AnomalyDeclaredWithoutValue AnomalyKind = "DECLARED_WITHOUT_VALUE"
)

// Anomaly is one detected anomaly, keyed by symbol name for deterministic
// ordering.
type Anomaly struct {
	Kind AnomalyKind `json:"kind"`

	// Name is the symbol the anomaly is about. For typo candidates this is
	// the used (undeclared) name.
	Name string `json:"name"`

	// File and Line locate the triggering usage or declaration.
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`

	// Suggested and Distance are set for typo candidates.
	Suggested string `json:"suggested,omitempty"`
	Distance  int    `json:"distance,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// =============================================================================
// ENGINE INPUT / OUTPUT
// =============================================================================

// ScanCache lets a caller reuse per-file scan results across runs.
// Implementations key on (path, content hash); the engine consults the cache
// before scanning and stores fresh results after. A nil cache disables reuse.
type ScanCache interface {
	// Get returns cached usages for the file, or false on miss.
	Get(path, contentHash string) ([]Usage, bool)

	// Put stores usages for the file.
	Put(path, contentHash string, usages []Usage)
}

// Inputs carries everything one analysis run consumes. The engine holds no
// state between invocations.
type Inputs struct {
	// Layers are the declaration files in fixed priority order.
	Layers []Layer

	// Sources are the in-scope source files. Discovery is the caller's
	// responsibility.
	Sources []SourceFile

	// AllowList names symbols exempt from UNUSED flagging.
	AllowList []string

	// Rules configures visibility and category classification.
	// Nil selects the built-in default rule set.
	Rules *RuleSet

	// Cache optionally reuses scan results for unchanged files.
	Cache ScanCache

	// Workers bounds the scan fan-out. Zero selects a default.
	Workers int
}

// Result is the finished output of one analysis run, consumed by external
// report and template renderers.
type Result struct {
	// RunID uniquely identifies this analysis run.
	RunID string `json:"run_id"`

	// Records are sorted by name, one per distinct symbol seen in either
	// declarations or usages.
	Records []Record `json:"records"`

	// Anomalies are sorted by name, then file, then line.
	Anomalies []Anomaly `json:"anomalies"`

	// DynamicUsages counts accesses that could not be resolved to a name.
	// It is a scanning-coverage caveat, never an error.
	DynamicUsages int `json:"dynamic_usages"`

	// ParseErrors are recoverable declaration-line failures.
	ParseErrors []ParseError `json:"parse_errors,omitempty"`

	// ScanErrors are recoverable per-file scan failures.
	ScanErrors []ScanError `json:"scan_errors,omitempty"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration_ns"`
}

// Record returns the record for a name, or nil if the symbol was never seen.
func (r *Result) Record(name string) *Record {
	for i := range r.Records {
		if r.Records[i].Name == name {
			return &r.Records[i]
		}
	}
	return nil
}
