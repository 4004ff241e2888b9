package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/leaselens/internal/preflight"
)

type doctorReport struct {
	Status string `json:"status"`
	Checks []struct {
		Name    string `json:"name"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"checks"`
}

func TestDoctorCmd_Offline(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, nil, "doctor", "--offline")

	require.NoError(t, err)
	assert.Contains(t, stdout, "LeaseLens System Check")
	assert.Contains(t, stdout, "[PASS] embedder: static ready")
	assert.Contains(t, stdout, "[PASS] credentials: not needed")
}

func TestDoctorCmd_MissingKeyFails(t *testing.T) {
	// Given: default OpenAI providers and no key
	isolate(t)

	// When
	stdout, _, err := execute(t, nil, "doctor", "--json")

	// Then: the report is still printed and the command fails
	require.ErrorIs(t, err, errCheckFailed)
	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "failed", report.Status)

	byName := map[string]string{}
	for _, c := range report.Checks {
		byName[c.Name] = c.Status
	}
	assert.Equal(t, "fail", byName["credentials"])
	assert.Equal(t, "warn", byName["embedder"], "the test embedding is skipped without a provider")
	assert.Equal(t, "pass", byName["config"])
}

func TestDoctorCmd_InvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("LEASELENS_CHUNK_SIZE", "-1")

	stdout, _, err := execute(t, nil, "doctor", "--offline")

	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, stdout, "[FAIL] config")
	assert.Contains(t, stdout, "["+preflight.StatusWarn.String()+"] credentials: skipped")
}
