// Package extract runs a whole load order through the reader, the FormID
// resolver and the conflict pass, then hands each record type to the
// configured sinks.
//
// Files are read concurrently with a bounded worker count. The conflict pass
// starts only after every file has been read, since a winner depends on every
// plugin that touches a record.
package extract
