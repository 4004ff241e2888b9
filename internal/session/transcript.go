package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/leaselens/pkg/version"
)

// Transcript is the exported form of a session's history.
type Transcript struct {
	SessionID  string     `json:"session_id"`
	Source     string     `json:"source,omitempty"`
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Exchanges  []Exchange `json:"exchanges"`
}

// Transcript snapshots the session's history.
func (s *Session) Transcript() *Transcript {
	return &Transcript{
		SessionID:  s.id,
		Source:     s.Stats().Source,
		Version:    version.Version,
		ExportedAt: time.Now().UTC(),
		Exchanges:  s.History(),
	}
}

// SaveTranscript writes t to path as indented JSON.
// Uses atomic write (temp file + rename) so a reader never sees half a file.
func SaveTranscript(t *Transcript, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads a transcript written by SaveTranscript.
func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("transcript not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return &t, nil
}
