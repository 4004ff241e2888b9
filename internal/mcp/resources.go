package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/leaselens/internal/session"
)

// Resource URIs served by LeaseLens.
const (
	SampleQuestionsURI = "lease://sample-questions"
	TranscriptURI      = "lease://transcript"
	MetricsURI         = "lease://metrics"
)

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// metricsResource is the JSON body of lease://metrics.
type metricsResource struct {
	Metrics          any     `json:"metrics"`
	NoContentPercent float64 `json:"no_content_percent"`
}

func (s *Server) registerResources() {
	s.addResource(&mcp.Resource{
		Name:        "sample-questions",
		URI:         SampleQuestionsURI,
		Description: "Questions most tenants ask about a lease",
		MIMEType:    "text/markdown",
	})
	s.addResource(&mcp.Resource{
		Name:        "transcript",
		URI:         TranscriptURI,
		Description: "The conversation so far, as JSON",
		MIMEType:    "application/json",
	})
	if s.metrics != nil {
		s.addResource(&mcp.Resource{
			Name:        "metrics",
			URI:         MetricsURI,
			Description: "Question telemetry: latency, no-content rate, retriever mix",
			MIMEType:    "application/json",
		})
	}
}

func (s *Server) addResource(r *mcp.Resource) {
	s.mcp.AddResource(r, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		rc, err := s.ReadResource(ctx, req.Params.URI)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      rc.URI,
				MIMEType: rc.MIMEType,
				Text:     rc.Content,
			}},
		}, nil
	})
}

// ReadResource returns the content of a resource by URI.
func (s *Server) ReadResource(_ context.Context, uri string) (*ResourceContent, error) {
	switch uri {
	case SampleQuestionsURI:
		return &ResourceContent{
			URI:      uri,
			Content:  FormatSampleQuestions(session.SampleQuestions),
			MIMEType: "text/markdown",
		}, nil

	case TranscriptURI:
		return jsonResource(uri, s.sess.Transcript())

	case MetricsURI:
		if s.metrics == nil {
			return nil, NewResourceNotFoundError(uri)
		}
		snap := s.metrics.Snapshot()
		return jsonResource(uri, metricsResource{
			Metrics:          snap,
			NoContentPercent: snap.NoContentPercentage(),
		})

	default:
		return nil, NewResourceNotFoundError(uri)
	}
}

func jsonResource(uri string, v any) (*ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return &ResourceContent{URI: uri, Content: string(data), MIMEType: "application/json"}, nil
}
