// Package subrecord splits record payloads into tagged fields.
//
// Tags are passed through uninterpreted; typed decoders decide what they
// mean. The scanner only guarantees that every returned subrecord lies
// inside its parent payload.
package subrecord
