package rag

import (
	"strings"
	"testing"

	"github.com/finsightai/finsight/engine/semantic"
)

func TestRenderPrompt_CarriesGroundingRules(t *testing.T) {
	prompt := RenderPrompt("What was the revenue?", nil)

	for _, want := range []string{
		"strict financial analyst",
		"ONLY on the context provided",
		FallbackAnswer,
		"DO NOT GUESS",
		"Do not use outside knowledge",
		"dollar amounts or percentages",
		"Query: What was the revenue?",
		"Answer: ",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRenderPrompt_ContextVerbatimWithProvenance(t *testing.T) {
	hits := []semantic.Hit{
		{Text: "Revenue was $130.497 billion for fiscal year 2025.", File: "nvidia_10k.pdf", Page: "34", Score: 0.91},
		{Text: "Income tax expense was $11.1 billion and $4.1 billion.", File: "nvidia_10k.pdf", Page: "35", Score: 0.80},
	}
	prompt := RenderPrompt("What was the revenue for Fiscal Year 2025?", hits)

	if !strings.Contains(prompt, "$130.497 billion") {
		t.Error("figure not carried verbatim into context")
	}
	if !strings.Contains(prompt, "[nvidia_10k.pdf, page 34]") {
		t.Error("provenance header missing")
	}
	// Chunks appear in retrieval order.
	if strings.Index(prompt, "130.497") > strings.Index(prompt, "11.1") {
		t.Error("context order does not follow retrieval order")
	}
}

func TestRenderPrompt_EmptyContext(t *testing.T) {
	prompt := RenderPrompt("What is the capital of France?", nil)

	head := strings.Index(prompt, "---------------------\n")
	tail := strings.LastIndex(prompt, "---------------------\n")
	if head == tail {
		t.Fatal("expected two context separators")
	}
	between := prompt[head+len("---------------------\n") : tail]
	if strings.TrimSpace(between) != "" {
		t.Errorf("empty retrieval must render empty context, got %q", between)
	}
}

func TestIsFallback(t *testing.T) {
	if !IsFallback(FallbackAnswer) {
		t.Error("exact fallback not recognized")
	}
	if !IsFallback("I cannot find this information in the documents provided.") {
		t.Error("close match not recognized")
	}
	if IsFallback("Revenue was $130.497 billion.") {
		t.Error("substantive answer misclassified as fallback")
	}
}
