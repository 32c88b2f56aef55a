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
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// RULE SET
// =============================================================================

// MatchKind selects how a category rule token matches a symbol name.
type MatchKind string

const (
	MatchSubstring MatchKind = "substring"
	MatchPrefix    MatchKind = "prefix"
	MatchSuffix    MatchKind = "suffix"
)

// CategoryRule assigns a category when one of its tokens matches.
type CategoryRule struct {
	// Category is the category name assigned on match.
	Category string `yaml:"category" validate:"required"`

	// Tokens are the name fragments that trigger this rule.
	Tokens []string `yaml:"tokens" validate:"required,min=1,dive,required"`

	// Match is substring (default), prefix, or suffix.
	Match MatchKind `yaml:"match,omitempty" validate:"omitempty,oneof=substring prefix suffix"`
}

// RuleSet is the external configuration driving classification. The rule
// table is ordered and first-match-wins, so new categories can be added
// without touching the algorithm.
type RuleSet struct {
	// PublicPrefixes are the naming conventions marking a symbol safe to
	// expose outside a trusted context.
	PublicPrefixes []string `yaml:"public_prefixes" validate:"required,min=1,dive,required"`

	// Categories is the ordered rule table.
	Categories []CategoryRule `yaml:"categories" validate:"required,dive"`
}

// DefaultRuleSet returns the built-in classification rules, used when no
// rules file is supplied.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		PublicPrefixes: []string{"NEXT_PUBLIC_", "VITE_", "REACT_APP_"},
		Categories: []CategoryRule{
			{Category: "database", Tokens: []string{"DATABASE", "POSTGRES", "MYSQL", "MONGO", "REDIS", "DB_"}},
			{Category: "auth", Tokens: []string{"SECRET", "PASSWORD", "PRIVATE_KEY", "JWT", "TOKEN", "AUTH"}},
			{Category: "api_key", Tokens: []string{"API_KEY", "_KEY"}, Match: MatchSubstring},
			{Category: "third_party", Tokens: []string{"STRIPE", "SENDGRID", "TWILIO", "SLACK", "GITHUB", "AWS_", "GCP_", "S3_", "SENTRY"}},
			{Category: "public_client", Tokens: []string{"NEXT_PUBLIC_", "VITE_", "REACT_APP_"}, Match: MatchPrefix},
			{Category: "app_config", Tokens: []string{"NODE_ENV", "PORT", "HOST", "_URL", "_URI", "ENV", "DEBUG", "LOG_"}},
		},
	}
}

// LoadRuleSet reads and validates a rule set from a YAML file.
//
// # Outputs
//
//   - *RuleSet: The validated rule set.
//   - error: Non-nil when the file is unreadable, malformed, or fails
//     validation.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := validator.New().Struct(&rs); err != nil {
		return nil, fmt.Errorf("validate rules file: %w", err)
	}
	return &rs, nil
}

// Visibility returns Public iff the name matches one of the configured
// public prefixes.
func (rs *RuleSet) Visibility(name string) Visibility {
	for _, prefix := range rs.PublicPrefixes {
		if strings.HasPrefix(name, prefix) {
			return VisibilityPublic
		}
	}
	return VisibilityPrivate
}

// Category resolves the category for a name via the ordered rule table.
// The first rule with a matching token wins; unmatched names are
// unclassified.
func (rs *RuleSet) Category(name string) string {
	for _, rule := range rs.Categories {
		for _, token := range rule.Tokens {
			var hit bool
			switch rule.Match {
			case MatchPrefix:
				hit = strings.HasPrefix(name, token)
			case MatchSuffix:
				hit = strings.HasSuffix(name, token)
			default:
				hit = strings.Contains(name, token)
			}
			if hit {
				return rule.Category
			}
		}
	}
	return CategoryUnclassified
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify fills visibility, category and value shape on every record.
// Pure function over the index snapshot; records are modified in place.
func Classify(records []Record, rules *RuleSet) {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	for i := range records {
		r := &records[i]
		r.Visibility = rules.Visibility(r.Name)
		r.Category = rules.Category(r.Name)
		r.Shape = InferShape(r.Name, r.EffectiveValue, r.HasEffectiveValue)
	}
}

var (
	reNumericValue = regexp.MustCompile(`^[0-9]+$`)
	reURLValue     = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)

	secretTokens = []string{"SECRET", "KEY", "TOKEN", "PASSWORD", "PRIVATE"}
	urlTokens    = []string{"_URL", "_URI", "_ENDPOINT", "_HOST"}
)

// InferShape infers the placeholder-value shape for template generation
// from the name and the current effective value.
//
// Precedence: URL-shaped, then secret-bearing names, then boolean-like
// values, then purely numeric values, then generic.
func InferShape(name, value string, hasValue bool) ValueShape {
	upper := strings.ToUpper(name)
	for _, token := range urlTokens {
		if strings.Contains(upper, token) {
			return ShapeURL
		}
	}
	if hasValue && reURLValue.MatchString(strings.ToLower(value)) {
		return ShapeURL
	}
	for _, token := range secretTokens {
		if strings.Contains(upper, token) {
			return ShapeSecret
		}
	}
	if hasValue {
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no", "on", "off":
			if value == "1" || value == "0" {
				// Ambiguous with integers; a bare digit stays numeric.
				return ShapeInteger
			}
			return ShapeBoolean
		}
		if reNumericValue.MatchString(value) {
			return ShapeInteger
		}
	}
	return ShapeGeneric
}
