package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/leaselens/internal/embed"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/generate"
	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
)

const leaseText = "The monthly rent is $1,200, payable on the first day of each month.\f" +
	"One pet is allowed with a pet deposit of $300. Tenant pays for minor repair work."

type testServer struct {
	*httptest.Server
	metrics *telemetry.AskMetrics
}

func newTestServer(t *testing.T, cfg Config, maxSessions int) *testServer {
	t.Helper()
	metrics := telemetry.NewAskMetrics(telemetry.DefaultAskMetricsConfig())
	mgr := session.NewManager(session.ManagerConfig{
		Session: session.DefaultConfig(),
		Deps: session.Deps{
			Embedder:  embed.NewStaticEmbedder(64),
			Generator: generate.NewExtractiveGenerator(),
			Metrics:   metrics,
		},
		MaxSessions: maxSessions,
	})
	srv := NewServer(mgr, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		_ = mgr.Close()
	})
	return &testServer{Server: ts, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info session.Info
	require.NoError(t, json.Unmarshal(body, &info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func (ts *testServer) upload(t *testing.T, id, filename, content string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return ts.do(t, http.MethodPost, "/api/sessions/"+id+"/document", &buf, mw.FormDataContentType())
}

func (ts *testServer) ask(t *testing.T, id, question string) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"question": question})
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, "/api/sessions/"+id+"/ask", bytes.NewReader(body), "application/json")
}

func decodeError(t *testing.T, body []byte) lenserrors.JSONError {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{}, 0)

	resp, body := ts.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestSampleQuestions(t *testing.T) {
	ts := newTestServer(t, Config{}, 0)

	resp, body := ts.do(t, http.MethodGet, "/api/sample-questions", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string][]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, session.SampleQuestions, got["questions"])
}

func TestUploadAndAsk(t *testing.T) {
	// Given: a session with the lease uploaded
	ts := newTestServer(t, Config{}, 0)
	id := ts.createSession(t)

	resp, body := ts.upload(t, id, "lease.txt", leaseText)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stats session.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, "lease.txt", stats.Source)
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 2, stats.NumChunks)

	// When: asking about the rent
	resp, body = ts.ask(t, id, "How much is the rent?")

	// Then: the answer quotes page 1 and lists its sources
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var answer session.Answer
	require.NoError(t, json.Unmarshal(body, &answer))
	assert.False(t, answer.NoContent)
	assert.Contains(t, answer.Text, "$1,200")
	assert.Contains(t, answer.Citations, 1)
	require.NotEmpty(t, answer.Context)
	assert.Equal(t, 1, answer.Context[0].Chunk.PageNumber)

	// And: history and metrics reflect the exchange
	resp, body = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/history", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history historyResponse
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.History, 1)
	assert.Equal(t, "How much is the rent?", history.History[0].Question)
	assert.Equal(t, int64(1), ts.metrics.Snapshot().TotalAsks)
}

func TestAsk_Errors(t *testing.T) {
	ts := newTestServer(t, Config{}, 0)
	id := ts.createSession(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"no document", "/api/sessions/" + id + "/ask", `{"question":"How much is the rent?"}`, http.StatusConflict, lenserrors.ErrCodeNoDocument},
		{"empty question", "/api/sessions/" + id + "/ask", `{"question":"   "}`, http.StatusBadRequest, lenserrors.ErrCodeQueryEmpty},
		{"bad json", "/api/sessions/" + id + "/ask", `question=rent`, http.StatusBadRequest, lenserrors.ErrCodeInvalidInput},
		{"unknown session", "/api/sessions/missing/ask", `{"question":"rent?"}`, http.StatusNotFound, lenserrors.ErrCodeSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, tt.path, strings.NewReader(tt.body), "application/json")

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, body).Code)
		})
	}
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t, Config{MaxUploadBytes: 64}, 0)
	id := ts.createSession(t)

	t.Run("unsupported type", func(t *testing.T) {
		resp, body := ts.upload(t, id, "lease.xls", "rent")
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		assert.Equal(t, lenserrors.ErrCodeUnsupportedDocument, decodeError(t, body).Code)
	})

	t.Run("too large", func(t *testing.T) {
		resp, body := ts.upload(t, id, "lease.txt", strings.Repeat("rent ", 100))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, lenserrors.ErrCodeFileTooLarge, decodeError(t, body).Code)
	})

	t.Run("empty document", func(t *testing.T) {
		resp, body := ts.upload(t, id, "blank.txt", "   \n\f  ")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, lenserrors.ErrCodeDocumentEmpty, decodeError(t, body).Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "no file"))
		require.NoError(t, mw.Close())

		resp, body := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/document", &buf, mw.FormDataContentType())

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, lenserrors.ErrCodeInvalidInput, decodeError(t, body).Code)
	})
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{}, 1)
	id := ts.createSession(t)

	// The only slot is taken.
	resp, body := ts.do(t, http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, lenserrors.ErrCodeSessionLimit, decodeError(t, body).Code)

	resp, body = ts.do(t, http.MethodGet, "/api/sessions", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), id)

	resp, _ = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStats_WithoutDocument(t *testing.T) {
	ts := newTestServer(t, Config{}, 0)
	id := ts.createSession(t)

	resp, body := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stats", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats session.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Zero(t, stats.NumChunks)
	assert.Equal(t, 250, stats.ChunkSize)
	assert.Equal(t, "extractive", stats.GenerateModel)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, Config{}, 0)

	resp, body := ts.do(t, http.MethodGet, "/api/metrics", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_asks":0`)
	assert.Contains(t, string(body), `"no_content_percent":0`)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, Config{APIKey: "secret"}, 0)

	// Health stays public.
	resp, _ := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/sample-questions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/sample-questions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer secret")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{lenserrors.New(lenserrors.ErrCodeProviderTimeout, "slow", nil), http.StatusGatewayTimeout},
		{lenserrors.New(lenserrors.ErrCodeProviderUnavailable, "down", nil), http.StatusServiceUnavailable},
		{lenserrors.New(lenserrors.ErrCodeProviderRejected, "401", nil), http.StatusBadGateway},
		{lenserrors.New(lenserrors.ErrCodeDocumentEncrypted, "locked", nil), http.StatusUnprocessableEntity},
		{lenserrors.ConfigurationError("bad", nil), http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), lenserrors.GetCode(tt.err))
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "lease.pdf", sanitizeFilename("lease.pdf"))
	assert.Equal(t, "lease.pdf", sanitizeFilename("../../etc/lease.pdf"))
	assert.Equal(t, "lease.pdf", sanitizeFilename(`C:\Users\me\lease.pdf`))
	assert.Equal(t, "unnamed", sanitizeFilename(".."))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
}
