package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/leaselens/internal/config"
	"github.com/Aman-CERP/leaselens/internal/embed"
	"github.com/Aman-CERP/leaselens/internal/logging"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status as its lowercase name in JSON.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Report is the machine-readable form of a run.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Checker performs preflight validation checks.
type Checker struct {
	cfg      *config.Config
	cfgErr   error
	embedder embed.Embedder
	logDir   string
	verbose  bool
	output   io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithConfig sets the configuration under test and the error, if any,
// returned while loading it.
func WithConfig(cfg *config.Config, loadErr error) Option {
	return func(c *Checker) {
		c.cfg = cfg
		c.cfgErr = loadErr
	}
}

// WithEmbedder sets the embedder exercised by CheckEmbedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *Checker) {
		c.embedder = e
	}
}

// WithLogDir overrides the log directory (default: logging.DefaultLogDir).
func WithLogDir(dir string) Option {
	return func(c *Checker) {
		c.logDir = dir
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		logDir: logging.DefaultLogDir(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckConfig(),
		c.CheckCredentials(),
		c.CheckLogDirectory(),
		c.CheckDiskSpace(existingAncestor(c.logDir)),
		c.CheckEmbedder(ctx),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// Report bundles results with their summary status.
func (c *Checker) Report(results []CheckResult) Report {
	return Report{Status: c.SummaryStatus(results), Checks: results}
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "LeaseLens System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckConfig reports whether the configuration loaded and validates.
func (c *Checker) CheckConfig() CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}

	switch {
	case c.cfgErr != nil:
		result.Status = StatusFail
		result.Message = c.cfgErr.Error()
		return result
	case c.cfg == nil:
		result.Status = StatusFail
		result.Message = "no configuration loaded"
		return result
	}
	if err := c.cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	r := c.cfg.Retrieval
	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("chunks %d/%d, k=%d, weights %.2f/%.2f, %s+%s, embeddings %s, generation %s",
		c.cfg.Chunking.Size, c.cfg.Chunking.Overlap, r.K, r.LexicalWeight, r.SemanticWeight,
		r.LexicalBackend, r.SemanticBackend, c.cfg.Embeddings.Provider, c.cfg.Generation.Provider)
	return result
}

// CheckCredentials fails when an OpenAI provider is selected without a key.
func (c *Checker) CheckCredentials() CheckResult {
	result := CheckResult{
		Name:     "credentials",
		Required: true,
	}
	if c.cfg == nil {
		result.Status = StatusWarn
		result.Message = "skipped (no configuration)"
		return result
	}

	var needs []string
	if c.cfg.Embeddings.Provider == "openai" {
		needs = append(needs, "embeddings")
	}
	if c.cfg.Generation.Provider == "openai" {
		needs = append(needs, "generation")
	}

	switch {
	case len(needs) == 0:
		result.Status = StatusPass
		result.Message = "not needed (local providers)"
	case c.cfg.APIKey == "":
		result.Status = StatusFail
		result.Message = config.APIKeyEnv + " is not set"
		result.Details = fmt.Sprintf("Required for %s. Set it, or run with --offline", strings.Join(needs, " and "))
	default:
		result.Status = StatusPass
		result.Message = config.APIKeyEnv + " is set"
	}
	return result
}

// CheckLogDirectory checks the log directory can be created and written.
// Logging falls back to stderr, so a failure is only a warning.
func (c *Checker) CheckLogDirectory() CheckResult {
	result := CheckResult{
		Name:    "log_directory",
		Details: c.logDir,
	}

	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot create: %v", err)
		return result
	}

	testFile := filepath.Join(c.logDir, ".leaselens-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// existingAncestor returns the closest existing directory at or above path.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
