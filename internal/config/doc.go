// Package config handles configuration loading for chorus-orchestrator.
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// Configuration values can reference environment variables:
//
//	security:
//	  master_secret: "${CHORUS_MASTER_SECRET}"
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dispatch:
//	  call_timeout: "30s"
package config
