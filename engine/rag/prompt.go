package rag

import (
	"fmt"
	"strings"

	"github.com/finsightai/finsight/engine/semantic"
)

// FallbackAnswer is the sentence the grounding rules instruct the model
// to produce when the context does not contain the answer.
const FallbackAnswer = "I cannot find this information in the documents"

// RenderPrompt assembles the grounding-constrained prompt. The no-
// hallucination guarantee is a textual contract the model is asked to
// follow, verified empirically, not enforced mechanically; this is a
// known soft limitation of the design.
func RenderPrompt(question string, hits []semantic.Hit) string {
	var b strings.Builder
	b.WriteString("You are a strict financial analyst. Your goal is to provide accurate information based ONLY on the context provided.\n")
	b.WriteString("---------------------\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "[%s, page %s]\n%s\n\n", h.File, h.Page, h.Text)
	}
	b.WriteString("---------------------\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Answer the query strictly using the context above.\n")
	fmt.Fprintf(&b, "2. If the answer is not in the context, say '%s'. DO NOT GUESS.\n", FallbackAnswer)
	b.WriteString("3. Do not use outside knowledge.\n")
	b.WriteString("4. Mention specific dollar amounts or percentages if asked.\n\n")
	fmt.Fprintf(&b, "Query: %s\n", question)
	b.WriteString("Answer: ")
	return b.String()
}

// IsFallback reports whether an answer is (or closely matches) the
// designated fallback message.
func IsFallback(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(FallbackAnswer))
}
