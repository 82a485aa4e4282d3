package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	reply  string
	err    error
	system string
	user   string
}

func (s *stubLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.system, s.user = systemPrompt, userPrompt
	return s.reply, s.err
}

func (s *stubLLM) ModelName() string { return "stub" }

func TestExpandRewriter(t *testing.T) {
	llm := &stubLLM{reply: "  solar panel efficiency photovoltaic \n"}
	rewritten, err := NewExpandRewriter(llm).Rewrite(context.Background(), "solar panels")
	require.NoError(t, err)

	assert.Equal(t, "solar panel efficiency photovoltaic", rewritten)
	assert.Empty(t, llm.system)
	assert.Contains(t, llm.user, "The query is: solar panels\n")
	assert.Contains(t, llm.user, "Only output the rewritten query, no other text or commentary.")
}

func TestHyDERewriter(t *testing.T) {
	llm := &stubLLM{reply: "Photovoltaic cells convert sunlight into electricity."}
	rewritten, err := NewHyDERewriter(llm).Rewrite(context.Background(), "how do solar panels work")
	require.NoError(t, err)

	assert.Equal(t, "Photovoltaic cells convert sunlight into electricity.", rewritten)
	assert.NotEmpty(t, llm.system)
	assert.Contains(t, llm.user, "how do solar panels work")
}

func TestRewriters_PropagateErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewExpandRewriter(&stubLLM{err: boom}).Rewrite(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	_, err = NewHyDERewriter(&stubLLM{err: boom}).Rewrite(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}
