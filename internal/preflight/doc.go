// Package preflight runs the diagnostics behind `leaselens doctor`.
//
// The checks cover:
//   - Configuration validity
//   - Provider credentials (OPENAI_API_KEY when an OpenAI provider is selected)
//   - The log directory being writable
//   - Free disk space for logs
//   - A test embedding against the configured provider
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithConfig(cfg, nil), preflight.WithEmbedder(e))
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
