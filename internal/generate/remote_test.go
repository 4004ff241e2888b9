package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

func testClient(url string) *provider.Client {
	return provider.NewClient(provider.Config{Name: "test", BaseURL: url, APIKey: "sk-test"})
}

func sampleRequest() Request {
	return Request{
		Question: "When is rent due?",
		Context:  []ContextBlock{{Page: 2, Text: "Rent is due on the first."}},
		History:  []Turn{{Question: "What is the rent?", Answer: "$1,200 (Page 2)."}},
	}
}

func TestOpenAIGenerator_SendsConversationAndZeroTemperature(t *testing.T) {
	// Given: a server that records the raw request
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" On the first (Page 2). "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()
	g := NewOpenAIGenerator(testClient(srv.URL), "", 0)

	// When
	answer, err := g.Generate(context.Background(), sampleRequest())

	// Then
	require.NoError(t, err)
	assert.Equal(t, "On the first (Page 2).", answer)
	assert.Equal(t, DefaultOpenAIModel, raw["model"])
	temp, ok := raw["temperature"]
	require.True(t, ok, "temperature must be sent even when zero")
	assert.Equal(t, float64(0), temp)
	msgs, ok := raw["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
}

func TestOpenAIGenerator_BadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"no choices", `{"choices":[]}`, lenserrors.ErrCodeProviderBadResponse},
		{"empty content", `{"choices":[{"message":{"content":"  "},"finish_reason":"stop"}]}`, lenserrors.ErrCodeProviderBadResponse},
		{"content filter", `{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`, lenserrors.ErrCodeProviderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAIGenerator(testClient(srv.URL), "", 0).Generate(context.Background(), sampleRequest())

			assert.Equal(t, tt.code, lenserrors.GetCode(err))
		})
	}
}

func TestOpenAIGenerator_RejectedKeyIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIGenerator(testClient(srv.URL), "", 0).Generate(context.Background(), sampleRequest())

	assert.True(t, lenserrors.IsProvider(err))
	assert.Equal(t, lenserrors.ErrCodeProviderRejected, lenserrors.GetCode(err))
}

func TestOllamaGenerator_RequestsSingleReply(t *testing.T) {
	// Given
	var req ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"On the first (Page 2)."},"done":true}`))
	}))
	defer srv.Close()
	g := NewOllamaGenerator(testClient(srv.URL), "", 0.2)

	// When
	answer, err := g.Generate(context.Background(), sampleRequest())

	// Then
	require.NoError(t, err)
	assert.Equal(t, "On the first (Page 2).", answer)
	assert.Equal(t, DefaultOllamaModel, req.Model)
	assert.False(t, req.Stream)
	assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Equal(t, DefaultOllamaModel, g.ModelName())
}

func TestOllamaGenerator_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}`))
	}))
	defer srv.Close()

	_, err := NewOllamaGenerator(testClient(srv.URL), "", 0).Generate(context.Background(), sampleRequest())

	assert.Equal(t, lenserrors.ErrCodeProviderBadResponse, lenserrors.GetCode(err))
}
