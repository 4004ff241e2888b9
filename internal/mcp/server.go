package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/leaselens/internal/extract"
	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
	"github.com/Aman-CERP/leaselens/pkg/version"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "LeaseLens"

// Server is the MCP server for LeaseLens.
// It exposes one retrieval session to AI clients (Claude Desktop, Cursor).
type Server struct {
	mcp     *mcp.Server
	sess    *session.Session
	metrics *telemetry.AskMetrics
	logger  *slog.Logger

	// maxBytes caps files read by load_lease. Zero means no cap.
	maxBytes int64

	// Serializes load_lease against ask_lease so a question never sees a
	// half-swapped document from the caller's point of view.
	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Options configures optional server collaborators.
type Options struct {
	// Metrics backs the lease://metrics resource. May be nil.
	Metrics *telemetry.AskMetrics

	// MaxDocumentBytes caps files read from disk by load_lease.
	MaxDocumentBytes int64

	Logger *slog.Logger
}

// NewServer creates a new MCP server around sess.
func NewServer(sess *session.Session, opts Options) (*Server, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}

	s := &Server{
		sess:     sess,
		metrics:  opts.Metrics,
		maxBytes: opts.MaxDocumentBytes,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "load_lease",
			Description: "Load a lease document (.pdf, .docx, .md or .txt) from disk and index it for questions. Replaces any previously loaded lease and clears the conversation history.",
		},
		{
			Name:        "ask_lease",
			Description: "Ask a question about the loaded lease. Answers are grounded in retrieved passages and cite the pages they come from. Follow-up questions see the recent conversation.",
		},
		{
			Name:        "lease_history",
			Description: "Show the questions asked so far with their answers and cited pages.",
		},
		{
			Name:        "lease_stats",
			Description: "Check whether a lease is loaded and how it was indexed (pages, chunks, models).",
		},
	}
}

func (s *Server) registerTools() {
	desc := make(map[string]string)
	for _, t := range s.ListTools() {
		desc[t.Name] = t.Description
	}

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "load_lease", Description: desc["load_lease"]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in LoadLeaseInput) (*mcp.CallToolResult, LoadLeaseOutput, error) {
			md, out, err := s.loadLease(ctx, in)
			if err != nil {
				return nil, LoadLeaseOutput{}, err
			}
			return textResult(md), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "ask_lease", Description: desc["ask_lease"]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in AskLeaseInput) (*mcp.CallToolResult, AskLeaseOutput, error) {
			md, out, err := s.askLease(ctx, in)
			if err != nil {
				return nil, AskLeaseOutput{}, err
			}
			return textResult(md), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "lease_history", Description: desc["lease_history"]},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ LeaseHistoryInput) (*mcp.CallToolResult, LeaseHistoryOutput, error) {
			md, out := s.leaseHistory()
			return textResult(md), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "lease_stats", Description: desc["lease_stats"]},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ LeaseStatsInput) (*mcp.CallToolResult, LeaseStatsOutput, error) {
			md, out := s.leaseStats()
			return textResult(md), out, nil
		})
}

func textResult(md string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: md}},
	}
}

// CallTool invokes a tool by name with the given arguments and returns its
// markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "load_lease":
		var in LoadLeaseInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		md, _, err := s.loadLease(ctx, in)
		return md, err
	case "ask_lease":
		var in AskLeaseInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		md, _, err := s.askLease(ctx, in)
		return md, err
	case "lease_history":
		md, _ := s.leaseHistory()
		return md, nil
	case "lease_stats":
		md, _ := s.leaseStats()
		return md, nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) loadLease(ctx context.Context, in LoadLeaseInput) (string, LoadLeaseOutput, error) {
	path := strings.TrimSpace(in.Path)
	if path == "" {
		return "", LoadLeaseOutput{}, NewInvalidParamsError("path parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("load_lease started",
		slog.String("request_id", requestID),
		slog.String("file", filepath.Base(path)))

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := extract.ReadFile(path, s.maxBytes)
	if err == nil {
		var st session.Stats
		st, err = s.sess.ProcessFile(ctx, filepath.Base(path), data)
		if err == nil {
			s.logger.Info("load_lease completed",
				slog.String("request_id", requestID),
				slog.Duration("duration", time.Since(start)),
				slog.Int("pages", st.Pages),
				slog.Int("chunks", st.NumChunks))
			return FormatLoad(st), LoadLeaseOutput{
				Source:       st.Source,
				Pages:        st.Pages,
				Chunks:       st.NumChunks,
				ChunkSize:    st.ChunkSize,
				ChunkOverlap: st.ChunkOverlap,
			}, nil
		}
	}

	s.logger.Error("load_lease failed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("error", err.Error()))
	return "", LoadLeaseOutput{}, MapError(err)
}

func (s *Server) askLease(ctx context.Context, in AskLeaseInput) (string, AskLeaseOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", AskLeaseOutput{}, NewInvalidParamsError("question cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("ask_lease started",
		slog.String("request_id", requestID),
		slog.Int("question_len", len(in.Question)))

	s.mu.RLock()
	answer, err := s.sess.Ask(ctx, in.Question)
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error("ask_lease failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", AskLeaseOutput{}, MapError(err)
	}

	s.logger.Info("ask_lease completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("context_chunks", len(answer.Context)),
		slog.Bool("no_content", answer.NoContent))

	out := AskLeaseOutput{
		Answer:    answer.Text,
		Citations: answer.Citations,
		NoContent: answer.NoContent,
	}
	for _, c := range answer.Context {
		out.Context = append(out.Context, ContextOutput{
			Page:    c.Chunk.PageNumber,
			Score:   c.Score,
			Sources: c.Sources.String(),
			Text:    c.Chunk.Text,
		})
	}
	return FormatAnswer(answer), out, nil
}

func (s *Server) leaseHistory() (string, LeaseHistoryOutput) {
	history := s.sess.History()
	citations := s.sess.Citations()

	out := LeaseHistoryOutput{Citations: citations}
	for _, ex := range history {
		out.Exchanges = append(out.Exchanges, ExchangeOutput{
			Question:  ex.Question,
			Answer:    ex.Answer,
			Citations: ex.Citations,
		})
	}
	return FormatHistory(history, citations), out
}

func (s *Server) leaseStats() (string, LeaseStatsOutput) {
	st := s.sess.Stats()
	out := LeaseStatsOutput{
		Loaded:          st.NumChunks > 0,
		Source:          st.Source,
		Pages:           st.Pages,
		Chunks:          st.NumChunks,
		ChunkSize:       st.ChunkSize,
		ChunkOverlap:    st.ChunkOverlap,
		HistoryLen:      st.HistoryLen,
		EmbeddingModel:  st.EmbeddingModel,
		GenerationModel: st.GenerateModel,
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.Format(time.RFC3339)
	}
	return FormatStats(st), out
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases the session.
func (s *Server) Close() error {
	return s.sess.Close()
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
