package main

import (
	"strings"
	"testing"
)

func TestMissingGroups_AcceptsEitherRevenueRendering(t *testing.T) {
	groups := goldenSet[0].expected

	answers := []string{
		"The revenue for Fiscal Year 2025 was $130.497 billion.",
		"Revenue was approximately $130.5 billion.",
	}
	for _, ans := range answers {
		if missing := missingGroups(ans, groups); len(missing) != 0 {
			t.Errorf("answer %q should pass, missing %v", ans, missing)
		}
	}
}

func TestMissingGroups_ReportsUnmatchedGroups(t *testing.T) {
	groups := goldenSet[2].expected

	ans := "Depreciation expense was $1.3 billion, $894 million, and $844 million."
	if missing := missingGroups(ans, groups); len(missing) != 0 {
		t.Fatalf("full answer should pass, missing %v", missing)
	}

	// Dropping the units must fail the case.
	ans = "Depreciation was 1.3, 894, and 844."
	missing := missingGroups(ans, groups)
	if len(missing) != 2 {
		t.Fatalf("expected the two unit groups missing, got %v", missing)
	}
	for _, m := range missing {
		if m != "billion" && m != "million" {
			t.Errorf("unexpected missing group %q", m)
		}
	}
}

func TestMissingGroups_CaseInsensitive(t *testing.T) {
	if missing := missingGroups("REVENUE WAS $130.497 BILLION", goldenSet[0].expected); len(missing) != 0 {
		t.Fatalf("matching must ignore case, missing %v", missing)
	}
}

func TestGoldenSet_IncludesOutOfCorpusCase(t *testing.T) {
	var found bool
	for _, tc := range goldenSet {
		if tc.wantFallback {
			found = true
			if len(tc.expected) != 0 {
				t.Error("fallback case must not also require keywords")
			}
			if !strings.Contains(strings.ToLower(tc.question), "france") {
				t.Errorf("unexpected out-of-corpus question %q", tc.question)
			}
		}
	}
	if !found {
		t.Fatal("golden set must probe an out-of-corpus question")
	}
}
