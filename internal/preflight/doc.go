// Package preflight provides readiness checks for the filesystem paths an
// extraction run depends on.
//
// The CLI runs RunAll before extracting so a missing data directory or an
// unwritable output directory is reported up front rather than as a stream
// of per-plugin failures. "esparse config validate" shows the same results.
package preflight
