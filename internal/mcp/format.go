package mcp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/leaselens/internal/session"
)

// maxSnippetRunes caps how much of each retrieved passage is echoed back.
const maxSnippetRunes = 400

// FormatAnswer formats an answer and its supporting passages as markdown.
func FormatAnswer(a *session.Answer) string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", a.Question))
	sb.WriteString(a.Text)
	sb.WriteString("\n")

	if a.NoContent {
		return sb.String()
	}

	if len(a.Citations) > 0 {
		sb.WriteString(fmt.Sprintf("\n**Pages:** %s\n", formatPages(a.Citations)))
	}

	if len(a.Context) > 0 {
		sb.WriteString("\n### Sources\n\n")
		for i, c := range a.Context {
			sb.WriteString(fmt.Sprintf("%d. **Page %d** (score: %.4f, %s)\n",
				i+1, c.Chunk.PageNumber, c.Score, c.Sources))
			sb.WriteString(fmt.Sprintf("   > %s\n", snippet(c.Chunk.Text)))
		}
	}

	return sb.String()
}

// FormatLoad formats the result of processing a lease.
func FormatLoad(st session.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Loaded %s\n\n", st.Source))
	sb.WriteString(fmt.Sprintf("- **Pages:** %d\n", st.Pages))
	sb.WriteString(fmt.Sprintf("- **Chunks:** %d (size %d, overlap %d)\n", st.NumChunks, st.ChunkSize, st.ChunkOverlap))
	sb.WriteString("\nAsk questions with `ask_lease`.\n")
	return sb.String()
}

// FormatHistory formats the conversation so far.
func FormatHistory(history []session.Exchange, citations []int) string {
	if len(history) == 0 {
		return "No questions asked yet."
	}

	var sb strings.Builder
	sb.WriteString("## Conversation History\n\n")
	for i, ex := range history {
		sb.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, ex.Question))
		sb.WriteString(ex.Answer)
		sb.WriteString("\n")
		if len(ex.Citations) > 0 {
			sb.WriteString(fmt.Sprintf("\n*Pages: %s*\n", formatPages(ex.Citations)))
		}
		sb.WriteString("\n")
	}
	if len(citations) > 0 {
		sb.WriteString(fmt.Sprintf("**All cited pages:** %s\n", formatPages(citations)))
	}
	return sb.String()
}

// FormatStats formats the loaded document's statistics.
func FormatStats(st session.Stats) string {
	var sb strings.Builder
	sb.WriteString("## Lease Status\n\n")

	if st.NumChunks == 0 {
		sb.WriteString("**Status:** No lease loaded. Use `load_lease` first.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Status:** Ready (%s)\n\n", st.Source))
		sb.WriteString(fmt.Sprintf("- **Pages:** %d\n", st.Pages))
		sb.WriteString(fmt.Sprintf("- **Chunks:** %d\n", st.NumChunks))
		if !st.BuiltAt.IsZero() {
			sb.WriteString(fmt.Sprintf("- **Indexed:** %s\n", st.BuiltAt.Format(time.RFC3339)))
		}
	}

	sb.WriteString(fmt.Sprintf("- **Chunk size:** %d (overlap %d)\n", st.ChunkSize, st.ChunkOverlap))
	sb.WriteString(fmt.Sprintf("- **Questions asked:** %d\n", st.HistoryLen))
	sb.WriteString(fmt.Sprintf("- **Embedding model:** %s\n", st.EmbeddingModel))
	sb.WriteString(fmt.Sprintf("- **Generation model:** %s\n", st.GenerateModel))
	return sb.String()
}

// FormatSampleQuestions formats the suggested questions as a markdown list.
func FormatSampleQuestions(questions []string) string {
	var sb strings.Builder
	sb.WriteString("# Sample Questions\n\n")
	for _, q := range questions {
		sb.WriteString("- ")
		sb.WriteString(q)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

// snippet collapses whitespace and truncates to maxSnippetRunes.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxSnippetRunes {
		return text
	}
	return string(runes[:maxSnippetRunes]) + "..."
}
