// Package decoders turns subrecord lists into typed values.
//
// The reader never depends on a record type's field layout. Decoders are
// looked up by 4-byte type in a Registry built once at startup, and any type
// without one gets the generic EDID/FULL decoder.
package decoders
