// Package config loads, normalizes, and validates esparse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ESPARSE_DATA_DIR. The Config type centralizes every knob the extractor and
// CLI need: where plugins and load order files live, how many workers parse
// in parallel, and which sinks receive the resolved records.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
