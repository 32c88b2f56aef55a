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

import "sort"

// BuildIndex joins declarations and usages into one record per distinct
// symbol name.
//
// # Description
//
// The join key is the exact, case-sensitive name. Every name appearing in
// usages but not declarations is flagged MISSING; every name appearing in
// declarations but not usages and not on the allow list is flagged UNUSED.
// Dynamic usages carry no name and never contribute to either flag.
//
// Counting is exact: UsageCount is the number of distinct usage occurrences
// and FileCount the number of distinct files referencing the symbol.
//
// # Outputs
//
//   - []Record: One record per name, sorted by name.
func BuildIndex(store *DeclarationStore, usages []Usage, allowList []string) []Record {
	allowed := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allowed[name] = true
	}

	byName := make(map[string]*Record)
	record := func(name string) *Record {
		r, ok := byName[name]
		if !ok {
			r = &Record{Name: name}
			byName[name] = r
		}
		return r
	}

	for name, decls := range store.All() {
		r := record(name)
		r.Declarations = decls
		r.EffectiveValue, r.HasEffectiveValue = store.Effective(name)
	}

	for _, u := range usages {
		if u.Name == "" {
			continue // dynamic access, coverage caveat only
		}
		r := record(u.Name)
		r.Usages = append(r.Usages, u)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	for _, name := range names {
		r := byName[name]
		r.UsageCount = len(r.Usages)
		r.FileCount = distinctFiles(r.Usages)

		if len(r.Declarations) == 0 && r.UsageCount > 0 {
			r.Flags = append(r.Flags, FlagMissing)
		}
		if len(r.Declarations) > 0 && r.UsageCount == 0 && !allowed[name] {
			r.Flags = append(r.Flags, FlagUnused)
		}
		records = append(records, *r)
	}
	return records
}

// distinctFiles counts the number of distinct file paths in the usages.
func distinctFiles(usages []Usage) int {
	files := make(map[string]bool, len(usages))
	for _, u := range usages {
		files[u.File] = true
	}
	return len(files)
}

// CountDynamic counts the usages that could not be resolved to a name.
func CountDynamic(usages []Usage) int {
	n := 0
	for _, u := range usages {
		if u.Pattern == AccessDynamic {
			n++
		}
	}
	return n
}
