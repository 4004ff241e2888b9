package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownExtractor_DropsMarkupAndSplitsOnBreaks(t *testing.T) {
	// Given
	src := `---
title: Residential Lease
---
# Rent

The **monthly rent** is $1,200, due on the *first*.
See [the schedule](https://example.com/schedule).

- Late fee: $50
- Grace period: 5 days

---

## Pets

One cat is allowed.

` + "```\nPET-DEPOSIT 300\n```\n"

	// When
	pages, err := (&MarkdownExtractor{}).Extract(context.Background(), []byte(src))

	// Then
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Rent\n\nThe monthly rent is $1,200, due on the first.\nSee the schedule.\n\nLate fee: $50\nGrace period: 5 days", pages[0].Text)
	assert.NotContains(t, pages[0].Text, "title:")
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Pets\n\nOne cat is allowed.\n\nPET-DEPOSIT 300", pages[1].Text)
}

func TestMarkdownExtractor_FormFeedSplitsPages(t *testing.T) {
	pages, err := (&MarkdownExtractor{}).Extract(context.Background(), []byte("First page.\fSecond page."))

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "First page.", pages[0].Text)
	assert.Equal(t, "Second page.", pages[1].Text)
}
