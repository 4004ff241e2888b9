package generate

import (
	"fmt"
	"strings"
)

// PromptTemplate is the answer prompt. {max_sentences}, {context} and {input}
// are substituted by RenderPrompt.
const PromptTemplate = `Answer the question based ONLY on the context below.
For every fact, you MUST cite the Page Number found in the metadata.
Try to answer in a concise manner. No more than {max_sentences} sentences.

Context:
{context}

Question: {input}
Answer:`

// RenderContext formats blocks as "[Page N] text" separated by blank lines.
func RenderContext(blocks []ContextBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = fmt.Sprintf("[Page %d] %s", b.Page, strings.TrimSpace(b.Text))
	}
	return strings.Join(parts, "\n\n")
}

// RenderPrompt fills PromptTemplate for req.
func RenderPrompt(req Request) string {
	maxSentences := req.MaxSentences
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	r := strings.NewReplacer(
		"{max_sentences}", fmt.Sprint(maxSentences),
		"{context}", RenderContext(req.Context),
		"{input}", strings.TrimSpace(req.Question),
	)
	return r.Replace(PromptTemplate)
}

// chatMessage is the role/content pair shared by the OpenAI and Ollama chat APIs.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildMessages replays history as alternating user/assistant turns and ends
// with the filled prompt. Earlier turns carry the bare question, not their
// context, so old passages never leak into a new answer.
func buildMessages(req Request) []chatMessage {
	messages := make([]chatMessage, 0, 2*len(req.History)+1)
	for _, turn := range req.History {
		messages = append(messages,
			chatMessage{Role: "user", Content: turn.Question},
			chatMessage{Role: "assistant", Content: turn.Answer})
	}
	return append(messages, chatMessage{Role: "user", Content: RenderPrompt(req)})
}
