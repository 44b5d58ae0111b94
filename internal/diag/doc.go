// Package diag defines the structured warnings and errors that every parsing,
// resolution and conflict pass returns next to its output.
//
// Components never log directly from their hot paths; callers decide whether
// to route diagnostics to a logger, persist them, or drop them.
package diag
