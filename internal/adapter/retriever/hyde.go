package retriever

import (
	"context"
	"fmt"
	"strings"

	"ragbench/internal/port"
)

const hydeSystemPrompt = `You write short reference passages. Given a question, write a passage that
would plausibly appear in a document answering it. Keep it under 150 words.
Do not explain or hedge, just write the passage.`

// HyDERewriter replaces a query with a hypothetical answer passage, which
// is then embedded or matched in place of the question.
type HyDERewriter struct {
	llm port.LLM
}

func NewHyDERewriter(llm port.LLM) *HyDERewriter {
	return &HyDERewriter{llm: llm}
}

func (r *HyDERewriter) Rewrite(ctx context.Context, query string) (string, error) {
	passage, err := r.llm.Generate(ctx, hydeSystemPrompt, fmt.Sprintf("Question: %s\n\nPassage:", query))
	if err != nil {
		return "", fmt.Errorf("failed to generate hypothetical passage: %w", err)
	}
	return strings.TrimSpace(passage), nil
}
