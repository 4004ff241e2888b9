package mcp

// LoadLeaseInput defines the input schema for the load_lease tool.
type LoadLeaseInput struct {
	Path string `json:"path" jsonschema:"path to the lease file (.pdf, .docx, .md or .txt)"`
}

// LoadLeaseOutput defines the output schema for the load_lease tool.
type LoadLeaseOutput struct {
	Source       string `json:"source" jsonschema:"file name of the loaded lease"`
	Pages        int    `json:"pages" jsonschema:"number of pages extracted"`
	Chunks       int    `json:"chunks" jsonschema:"number of chunks indexed"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// AskLeaseInput defines the input schema for the ask_lease tool.
type AskLeaseInput struct {
	Question string `json:"question" jsonschema:"a question about the loaded lease"`
}

// AskLeaseOutput defines the output schema for the ask_lease tool.
type AskLeaseOutput struct {
	Answer    string          `json:"answer"`
	Citations []int           `json:"citations,omitempty" jsonschema:"page numbers the answer is drawn from"`
	NoContent bool            `json:"no_content" jsonschema:"true if nothing in the lease matched the question"`
	Context   []ContextOutput `json:"context,omitempty" jsonschema:"retrieved passages, best first"`
}

// ContextOutput is one retrieved passage.
type ContextOutput struct {
	Page    int     `json:"page"`
	Score   float64 `json:"score" jsonschema:"fused relevance score"`
	Sources string  `json:"sources" jsonschema:"which retrievers found it: lexical, semantic or lexical+semantic"`
	Text    string  `json:"text"`
}

// LeaseHistoryInput defines the input schema for the lease_history tool (no parameters).
type LeaseHistoryInput struct{}

// LeaseHistoryOutput defines the output schema for the lease_history tool.
type LeaseHistoryOutput struct {
	Exchanges []ExchangeOutput `json:"exchanges,omitempty"`
	Citations []int            `json:"citations,omitempty" jsonschema:"every page cited so far, ascending"`
}

// ExchangeOutput is one remembered question and answer.
type ExchangeOutput struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Citations []int  `json:"citations,omitempty"`
}

// LeaseStatsInput defines the input schema for the lease_stats tool (no parameters).
type LeaseStatsInput struct{}

// LeaseStatsOutput defines the output schema for the lease_stats tool.
type LeaseStatsOutput struct {
	Loaded          bool   `json:"loaded"`
	Source          string `json:"source,omitempty"`
	Pages           int    `json:"pages"`
	Chunks          int    `json:"chunks"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	HistoryLen      int    `json:"history_len"`
	BuiltAt         string `json:"built_at,omitempty" jsonschema:"RFC3339 time the index was built"`
	EmbeddingModel  string `json:"embedding_model"`
	GenerationModel string `json:"generation_model"`
}
