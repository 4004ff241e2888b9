// Package logging configures structured slog output for LeaseLens.
//
// Without --debug only warnings reach stderr. With --debug, JSON logs are
// also written to ~/.leaselens/logs/leaselens.log with size-based rotation,
// and `leaselens logs` reads them back.
package logging
