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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, content string) *DeclarationStore {
	t.Helper()
	store, parseErrs := LoadLayers([]Layer{
		{Ordinal: 0, Path: ".env", Content: content},
	})
	require.Empty(t, parseErrs)
	return store
}

func TestBuildIndex_FlagPartition(t *testing.T) {
	store := testStore(t, "DECLARED_AND_USED=a\nDECLARED_ONLY=b\n")
	usages := []Usage{
		{Name: "DECLARED_AND_USED", File: "src/a.js", Line: 1, Pattern: AccessDirect},
		{Name: "USED_ONLY", File: "src/a.js", Line: 2, Pattern: AccessDirect},
	}

	records := BuildIndex(store, usages, nil)
	require.Len(t, records, 3)

	byName := make(map[string]*Record, len(records))
	for i := range records {
		byName[records[i].Name] = &records[i]
	}

	assert.Empty(t, byName["DECLARED_AND_USED"].Flags, "names in both sets carry no flag")
	assert.True(t, byName["DECLARED_ONLY"].HasFlag(FlagUnused))
	assert.False(t, byName["DECLARED_ONLY"].HasFlag(FlagMissing))
	assert.True(t, byName["USED_ONLY"].HasFlag(FlagMissing))
	assert.False(t, byName["USED_ONLY"].HasFlag(FlagUnused))
}

func TestBuildIndex_CaseSensitiveJoin(t *testing.T) {
	store := testStore(t, "DB_URL=x\n")
	usages := []Usage{{Name: "db_url", File: "src/a.js", Line: 1, Pattern: AccessDirect}}

	records := BuildIndex(store, usages, nil)
	require.Len(t, records, 2, "names differing only in case are distinct symbols")

	assert.Equal(t, "DB_URL", records[0].Name)
	assert.True(t, records[0].HasFlag(FlagUnused))
	assert.Equal(t, "db_url", records[1].Name)
	assert.True(t, records[1].HasFlag(FlagMissing))
}

func TestBuildIndex_Counts(t *testing.T) {
	store := testStore(t, "API_KEY=k\n")
	usages := []Usage{
		{Name: "API_KEY", File: "src/a.js", Line: 3, Pattern: AccessDirect},
		{Name: "API_KEY", File: "src/a.js", Line: 9, Pattern: AccessBracketLiteral},
		{Name: "API_KEY", File: "src/b.js", Line: 1, Pattern: AccessDirect},
	}

	records := BuildIndex(store, usages, nil)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].UsageCount)
	assert.Equal(t, 2, records[0].FileCount)
	assert.True(t, records[0].HasEffectiveValue)
	assert.Equal(t, "k", records[0].EffectiveValue)
}

func TestBuildIndex_AllowListSuppressesUnused(t *testing.T) {
	store := testStore(t, "CI_ONLY_TOKEN=t\nSTALE=s\n")

	records := BuildIndex(store, nil, []string{"CI_ONLY_TOKEN"})
	require.Len(t, records, 2)

	assert.False(t, records[0].HasFlag(FlagUnused), "allow-listed name is not reported")
	assert.True(t, records[1].HasFlag(FlagUnused))
}

func TestBuildIndex_DynamicUsagesJoinNothing(t *testing.T) {
	store := testStore(t, "KNOWN=v\n")
	usages := []Usage{
		{Name: "", File: "src/a.js", Line: 1, Pattern: AccessDynamic},
	}

	records := BuildIndex(store, usages, nil)
	require.Len(t, records, 1)
	assert.Equal(t, "KNOWN", records[0].Name)
	assert.Equal(t, 0, records[0].UsageCount)

	assert.Equal(t, 1, CountDynamic(usages))
}

func TestBuildIndex_SortedByName(t *testing.T) {
	store := testStore(t, "ZULU=1\nALPHA=2\nMIKE=3\n")

	records := BuildIndex(store, nil, nil)
	require.Len(t, records, 3)
	assert.Equal(t, "ALPHA", records[0].Name)
	assert.Equal(t, "MIKE", records[1].Name)
	assert.Equal(t, "ZULU", records[2].Name)
}
