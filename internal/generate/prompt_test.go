package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderContext_TagsEachBlockWithItsPage(t *testing.T) {
	got := RenderContext([]ContextBlock{
		{Page: 3, Text: "  Rent is due monthly.\n"},
		{Page: 1, Text: "Pets are allowed."},
	})

	assert.Equal(t, "[Page 3] Rent is due monthly.\n\n[Page 1] Pets are allowed.", got)
}

func TestRenderPrompt_FillsEveryPlaceholder(t *testing.T) {
	// Given
	req := Request{
		Question:     " When is rent due? ",
		Context:      []ContextBlock{{Page: 2, Text: "Rent is due on the first."}},
		MaxSentences: 3,
	}

	// When
	prompt := RenderPrompt(req)

	// Then
	assert.Contains(t, prompt, "No more than 3 sentences.")
	assert.Contains(t, prompt, "Context:\n[Page 2] Rent is due on the first.\n\n")
	assert.Contains(t, prompt, "Question: When is rent due?\nAnswer:")
	assert.NotContains(t, prompt, "{")
}

func TestRenderPrompt_DefaultsMaxSentences(t *testing.T) {
	prompt := RenderPrompt(Request{Question: "q"})
	assert.Contains(t, prompt, "No more than 5 sentences.")
}

func TestBuildMessages_ReplaysHistoryBeforePrompt(t *testing.T) {
	// Given: two earlier turns
	req := Request{
		Question: "And the deposit?",
		Context:  []ContextBlock{{Page: 1, Text: "Deposit is $500."}},
		History: []Turn{
			{Question: "What is the rent?", Answer: "$1,200 (Page 2)."},
			{Question: "When is it due?", Answer: "On the first (Page 2)."},
		},
	}

	// When
	msgs := buildMessages(req)

	// Then: user/assistant pairs in order, then the filled prompt
	require.Len(t, msgs, 5)
	assert.Equal(t, chatMessage{Role: "user", Content: "What is the rent?"}, msgs[0])
	assert.Equal(t, chatMessage{Role: "assistant", Content: "$1,200 (Page 2)."}, msgs[1])
	assert.Equal(t, chatMessage{Role: "user", Content: "When is it due?"}, msgs[2])
	assert.Equal(t, chatMessage{Role: "assistant", Content: "On the first (Page 2)."}, msgs[3])
	assert.Equal(t, "user", msgs[4].Role)
	assert.Equal(t, RenderPrompt(req), msgs[4].Content)
}
