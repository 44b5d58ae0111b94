// Package logging assembles structured slog loggers and formatting helpers used
// across esparse.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so parsing code can tag log
// lines with the run ID and the plugin being read. The standard keys (plugin,
// offset, record_type, form_id) are the minimum needed to locate a parse
// problem inside a file.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
