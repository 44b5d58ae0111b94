// Package main hosts the esparse CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, builds the load order and runs
// extraction, then reads results back from the SQLite store. Parsing and
// resolution live in the internal packages; commands here only wire them
// together and render output.
package main
