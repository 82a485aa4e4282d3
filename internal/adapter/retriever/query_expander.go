package retriever

import (
	"context"
	"fmt"
	"strings"

	"ragbench/internal/port"
)

const expandPrompt = `Your task is to expand the query to be more specific and increase recall. Keep the query concise, just add a few extra keywords.
The query is: %s

Only output the rewritten query, no other text or commentary.`

// ExpandRewriter asks an LLM to add keywords to a query.
type ExpandRewriter struct {
	llm port.LLM
}

func NewExpandRewriter(llm port.LLM) *ExpandRewriter {
	return &ExpandRewriter{llm: llm}
}

func (e *ExpandRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	response, err := e.llm.Generate(ctx, "", fmt.Sprintf(expandPrompt, query))
	if err != nil {
		return "", fmt.Errorf("failed to expand query: %w", err)
	}
	return strings.TrimSpace(response), nil
}
