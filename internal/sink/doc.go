// Package sink writes resolved records to files: JSON Lines for grepping and
// deterministic CBOR for compact machine use. FromConfig assembles these with
// the SQLite store according to output.formats.
package sink
