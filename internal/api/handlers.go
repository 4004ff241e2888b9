package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/session"
)

// askRequest is the body of POST /api/sessions/{id}/ask.
type askRequest struct {
	Question string `json:"question"`
}

// historyResponse is the body of GET /api/sessions/{id}/history.
type historyResponse struct {
	History   []session.Exchange `json:"history"`
	Citations []int              `json:"citations"`
}

func (s *Server) handleSampleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"questions": session.SampleQuestions})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "metrics disabled"})
		return
	}
	snap := s.metrics.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":            snap,
		"no_content_percent": snap.NoContentPercentage(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, s.tooLarge())
			return
		}
		s.writeError(w, r, lenserrors.ValidationError("invalid multipart form", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, lenserrors.ValidationError("form field \"file\" is required", err))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		s.writeError(w, r, lenserrors.InternalError("failed to read upload", err))
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		s.writeError(w, r, s.tooLarge())
		return
	}

	stats, err := sess.ProcessFile(r.Context(), sanitizeFilename(header.Filename), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req askRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, lenserrors.ValidationError("request body must be JSON like {\"question\": \"...\"}", err))
		return
	}

	answer, err := sess.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	history := sess.History()
	if history == nil {
		history = []session.Exchange{}
	}
	citations := sess.Citations()
	if citations == nil {
		citations = []int{}
	}
	writeJSON(w, http.StatusOK, historyResponse{History: history, Citations: citations})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Stats())
}

// session resolves {id}, writing the error response when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) tooLarge() error {
	return lenserrors.ExtractionError(lenserrors.ErrCodeFileTooLarge,
		fmt.Sprintf("upload exceeds the %d MB limit", s.cfg.MaxUploadBytes>>20), nil)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		name = "unnamed"
	}
	return name
}
