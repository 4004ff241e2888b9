package preflight

import (
	"context"
	"fmt"
	"time"
)

// embedCheckTimeout bounds the test embedding.
const embedCheckTimeout = 15 * time.Second

const sampleClause = "The tenant shall pay rent on the first day of each month."

// CheckEmbedder embeds a short sample clause with the configured embedder.
// Questions cannot be answered without embeddings, so a failure is critical.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}
	if c.embedder == nil {
		result.Status = StatusWarn
		result.Message = "skipped (embedder not configured)"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, embedCheckTimeout)
	defer cancel()

	start := time.Now()
	vec, err := c.embedder.Embed(ctx, sampleClause)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s test embedding failed: %v", c.embedder.ModelName(), err)
		return result
	}
	if len(vec) == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s returned an empty vector", c.embedder.ModelName())
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s ready (%d dimensions)", c.embedder.ModelName(), len(vec))
	result.Details = fmt.Sprintf("embedding took %s", time.Since(start).Round(time.Millisecond))
	return result
}
