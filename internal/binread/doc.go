// Package binread provides a bounds-checked cursor over an in-memory byte
// buffer.
//
// Plugin parsing code never indexes raw slices with hand-computed offsets;
// it asks a Cursor for typed values and gets an *OverrunError (matching
// ErrOverrun) with the exact offset and byte counts when the buffer is too
// short.
package binread
