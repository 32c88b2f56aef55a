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
	"sort"
)

// typoDistanceThreshold is the maximum edit distance for a missing name to
// be suggested as a typo of a declared one.
const typoDistanceThreshold = 2

// DetectAnomalies runs anomaly detection over the classified index.
//
// # Description
//
// Three anomaly classes are produced:
//
//   - ScopeMismatch: a usage in a publicly-exposed context of a symbol with
//     Private visibility. One anomaly per offending usage; correctly-scoped
//     usages of the same symbol elsewhere do not suppress it. Unknown
//     contexts never trigger the check.
//   - TypoCandidate: a MISSING name within edit distance 2 (insert, delete,
//     substitute, transpose, cost 1 each) of a declared name. Names farther
//     than that stay plain MISSING with no suggestion.
//   - DeclaredWithoutValue: a symbol with at least one usage whose effective
//     declared value is absent across all layers. Distinct from MISSING.
//
// No anomaly is silently dropped. The result is sorted by name, then file,
// then line, so output is deterministic.
func DetectAnomalies(records []Record) []Anomaly {
	var declared []string
	for _, r := range records {
		if len(r.Declarations) > 0 {
			declared = append(declared, r.Name)
		}
	}

	var anomalies []Anomaly
	for _, r := range records {
		anomalies = append(anomalies, detectScopeMismatches(&r)...)

		if r.HasFlag(FlagMissing) {
			if a := detectTypoCandidate(&r, declared); a != nil {
				anomalies = append(anomalies, *a)
			}
		}

		if len(r.Declarations) > 0 && !r.HasEffectiveValue && r.UsageCount > 0 {
			first := r.Declarations[0]
			anomalies = append(anomalies, Anomaly{
				Kind:    AnomalyDeclaredWithoutValue,
				Name:    r.Name,
				File:    first.SourceFile,
				Line:    first.Line,
				Message: fmt.Sprintf("%s is declared without a value in any layer but is used %d time(s)", r.Name, r.UsageCount),
			})
		}
	}

	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Name != anomalies[j].Name {
			return anomalies[i].Name < anomalies[j].Name
		}
		if anomalies[i].File != anomalies[j].File {
			return anomalies[i].File < anomalies[j].File
		}
		return anomalies[i].Line < anomalies[j].Line
	})
	return anomalies
}

// detectScopeMismatches emits one anomaly per publicly-exposed usage of a
// private symbol. This is the single most important check the engine
// performs: such a reference silently evaluates to an absent value at
// runtime rather than failing loudly.
func detectScopeMismatches(r *Record) []Anomaly {
	if r.Visibility != VisibilityPrivate {
		return nil
	}
	var anomalies []Anomaly
	for _, u := range r.Usages {
		if u.Context != ContextPubliclyExposed {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Kind:    AnomalyScopeMismatch,
			Name:    r.Name,
			File:    u.File,
			Line:    u.Line,
			Message: fmt.Sprintf("private symbol %s is read from publicly-exposed file %s; it will be absent at runtime", r.Name, u.File),
		})
	}
	return anomalies
}

// detectTypoCandidate fuzzy-matches a missing name against the declared
// vocabulary. Returns nil when no declared name is close enough.
func detectTypoCandidate(r *Record, declared []string) *Anomaly {
	best := ""
	bestDist := typoDistanceThreshold + 1
	for _, candidate := range declared {
		// Length difference lower-bounds the distance.
		if diff := len(candidate) - len(r.Name); diff > typoDistanceThreshold || diff < -typoDistanceThreshold {
			continue
		}
		if d := editDistance(r.Name, candidate); d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	if best == "" {
		return nil
	}

	a := &Anomaly{
		Kind:      AnomalyTypoCandidate,
		Name:      r.Name,
		Suggested: best,
		Distance:  bestDist,
		Message:   fmt.Sprintf("%s is not declared; did you mean %s?", r.Name, best),
	}
	if len(r.Usages) > 0 {
		a.File = r.Usages[0].File
		a.Line = r.Usages[0].Line
	}
	return a
}

// editDistance computes the optimal string alignment distance between two
// strings: insertions, deletions, substitutions, and adjacent
// transpositions all cost 1.
//
// Uses three rolling rows, so space is O(min) rather than O(mn).
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev2 := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1) // transposition
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[len(b)]
}
