// Package config handles client configuration: YAML files with ${VAR}
// substitution, REDNET_API_* environment variables, and the derived HTTP
// headers, TLS settings and channel URLs.
//
// YAML is a superset of JSON, so JSON config files written by older
// clients load unchanged. Durations accept either Go syntax ("1500ms")
// or a plain number of seconds (1.5).
package config
