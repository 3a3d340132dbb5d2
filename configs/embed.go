// Package configs provides the embedded configuration template for
// pkms-search.
//
// The template is embedded at build time so 'pkms-search config init' can
// write a commented starting point without shipping extra files. The
// loading order is defaults, then pkms-search.yaml, then PKMS_SEARCH_*
// environment variables (see internal/config).
package configs

import _ "embed"

// ConfigTemplate is the commented example written by 'config init'.
//
//go:embed pkms-search.example.yaml
var ConfigTemplate string
