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

import "testing"

func TestLoadLayers_Grammar(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantName  string
		wantValue string
		wantHas   bool
		wantErrs  int
	}{
		{
			name:      "bare value",
			content:   "DATABASE_URL=postgres://localhost/app",
			wantName:  "DATABASE_URL",
			wantValue: "postgres://localhost/app",
			wantHas:   true,
		},
		{
			name:      "double quoted strips outer pair",
			content:   `GREETING="hello world"`,
			wantName:  "GREETING",
			wantValue: "hello world",
			wantHas:   true,
		},
		{
			name:      "single quoted strips outer pair",
			content:   `GREETING='hello world'`,
			wantName:  "GREETING",
			wantValue: "hello world",
			wantHas:   true,
		},
		{
			name:      "no escape processing inside quotes",
			content:   `PATTERN="a\nb"`,
			wantName:  "PATTERN",
			wantValue: `a\nb`,
			wantHas:   true,
		},
		{
			name:     "empty value is declared without value",
			content:  "FEATURE_FLAG=",
			wantName: "FEATURE_FLAG",
			wantHas:  false,
		},
		{
			name:      "quoted empty string counts as value",
			content:   `EMPTY=""`,
			wantName:  "EMPTY",
			wantValue: "",
			wantHas:   true,
		},
		{
			name:      "export prefix accepted",
			content:   "export PORT=3000",
			wantName:  "PORT",
			wantValue: "3000",
			wantHas:   true,
		},
		{
			name:      "whitespace around equals",
			content:   "KEY = value",
			wantName:  "KEY",
			wantValue: "value",
			wantHas:   true,
		},
		{
			name:     "malformed line without equals",
			content:  "JUST_A_WORD",
			wantErrs: 1,
		},
		{
			name:     "invalid key characters",
			content:  "BAD-KEY=value",
			wantErrs: 1,
		},
		{
			name:     "unterminated quote",
			content:  `KEY="oops`,
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, errs := LoadLayers([]Layer{{Ordinal: 0, Path: ".env", Content: tt.content}})
			if len(errs) != tt.wantErrs {
				t.Fatalf("parse errors = %d, want %d (%v)", len(errs), tt.wantErrs, errs)
			}
			if tt.wantErrs > 0 {
				return
			}
			decls := store.Declarations(tt.wantName)
			if len(decls) != 1 {
				t.Fatalf("declarations for %s = %d, want 1", tt.wantName, len(decls))
			}
			if decls[0].HasValue != tt.wantHas {
				t.Errorf("HasValue = %v, want %v", decls[0].HasValue, tt.wantHas)
			}
			if decls[0].Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", decls[0].Value, tt.wantValue)
			}
		})
	}
}

func TestLoadLayers_CommentsAndBlanks(t *testing.T) {
	content := "# leading comment\n\nAPI_KEY=abc123 # rotate quarterly\n   \n# trailing comment\n"
	store, errs := LoadLayers([]Layer{{Ordinal: 0, Path: ".env", Content: content}})
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	decls := store.Declarations("API_KEY")
	if len(decls) != 1 {
		t.Fatalf("expected one declaration, got %d", len(decls))
	}
	if decls[0].Value != "abc123" {
		t.Errorf("Value = %q, want abc123", decls[0].Value)
	}
	if decls[0].InlineComment != "rotate quarterly" {
		t.Errorf("InlineComment = %q", decls[0].InlineComment)
	}
	if decls[0].Line != 3 {
		t.Errorf("Line = %d, want 3", decls[0].Line)
	}
}

func TestLoadLayers_LastWriteWinsWithinLayer(t *testing.T) {
	content := "MODE=first\nMODE=second\n"
	store, _ := LoadLayers([]Layer{{Ordinal: 0, Path: ".env", Content: content}})
	decls := store.Declarations("MODE")
	if len(decls) != 1 {
		t.Fatalf("expected a single surviving declaration per layer, got %d", len(decls))
	}
	if decls[0].Value != "second" {
		t.Errorf("Value = %q, want second", decls[0].Value)
	}
}

func TestLoadLayers_OverridePrecedence(t *testing.T) {
	layers := []Layer{
		{Ordinal: 1, Path: ".env.example", Content: `A="y"`},
		{Ordinal: 0, Path: ".env.local", Content: `A="x"`},
	}
	store, _ := LoadLayers(layers)

	value, ok := store.Effective("A")
	if !ok {
		t.Fatal("expected an effective value for A")
	}
	if value != "x" {
		t.Errorf("effective value = %q, want x (lowest ordinal wins)", value)
	}

	decls := store.Declarations("A")
	if len(decls) != 2 {
		t.Fatalf("expected declarations from both layers, got %d", len(decls))
	}
	if decls[0].Layer != 0 || decls[1].Layer != 1 {
		t.Errorf("declarations not ordered by layer: %+v", decls)
	}
}

func TestLoadLayers_EffectiveSkipsValuelessLayers(t *testing.T) {
	layers := []Layer{
		{Ordinal: 0, Path: ".env.local", Content: "TOKEN="},
		{Ordinal: 1, Path: ".env", Content: "TOKEN=fallback"},
	}
	store, _ := LoadLayers(layers)

	value, ok := store.Effective("TOKEN")
	if !ok {
		t.Fatal("expected an effective value")
	}
	if value != "fallback" {
		t.Errorf("effective value = %q, want fallback", value)
	}
}

func TestLoadLayers_DeclaredWithoutValueAcrossAllLayers(t *testing.T) {
	layers := []Layer{
		{Ordinal: 0, Path: ".env.local", Content: "PENDING="},
		{Ordinal: 1, Path: ".env", Content: "PENDING="},
	}
	store, _ := LoadLayers(layers)
	if _, ok := store.Effective("PENDING"); ok {
		t.Error("expected no effective value when no layer has one")
	}
}

func TestLoadLayers_ErrorRecoveryContinuesFile(t *testing.T) {
	content := "GOOD_ONE=1\nthis is not a declaration\nGOOD_TWO=2\n"
	store, errs := LoadLayers([]Layer{{Ordinal: 0, Path: ".env", Content: content}})

	if len(errs) != 1 {
		t.Fatalf("parse errors = %d, want 1", len(errs))
	}
	if errs[0].Line != 2 {
		t.Errorf("error line = %d, want 2", errs[0].Line)
	}
	if len(store.Declarations("GOOD_ONE")) != 1 || len(store.Declarations("GOOD_TWO")) != 1 {
		t.Error("lines after a malformed one must still parse")
	}
}
