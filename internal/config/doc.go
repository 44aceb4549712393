// Package config loads agent configuration from YAML or CUE files.
//
// Every file is unified with the embedded #Config schema, which supplies
// defaults and rejects unknown fields, before being decoded.
package config
