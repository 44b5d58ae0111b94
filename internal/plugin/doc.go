// Package plugin reads TES4-style plugin files into records and groups.
//
// A read parses the TES4 file header, then scans the rest of the buffer
// linearly. GRUP headers are recorded as metadata and the scan steps over the
// 24-byte header only, so records nested inside groups are visited in file
// order. Each record's payload is decompressed when flagged and split into
// subrecords. The scan advances by the on-disk size of every record, never by
// its decompressed size.
//
// Failures come in two grades. A corrupt compressed payload drops that record
// with a diagnostic and the scan continues. A truncated header, an overrunning
// subrecord or a second TES4 record stops the scan; the records read so far
// stay in the Result next to the error.
package plugin
