// Package configs provides the embedded configuration template for leaselens.
//
// The template is embedded at build time so `leaselens config init` works
// from source builds and binary releases alike. Its keys must stay in step
// with internal/config; the config tests load it with unknown keys rejected.
package configs

import _ "embed"

// ConfigTemplate is the commented configuration written by `leaselens config init`,
// either to the user config (~/.config/leaselens/config.yaml) or, with
// --project, to .leaselens.yaml in the current directory.
//
//go:embed config.example.yaml
var ConfigTemplate string
