package testsupport

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"esparse/internal/compression"
	"esparse/internal/subrecord"
)

// PluginHeader describes the TES4 record a PluginBuilder starts with.
type PluginHeader struct {
	Version      float32
	Flags        uint32
	RecordCount  int32
	NextObjectID uint32
	Author       string
	Description  string
	Masters      []string
}

// PluginBuilder assembles plugin bytes: a TES4 header followed by records
// and groups in the order they are added.
type PluginBuilder struct {
	t   testing.TB
	buf bytes.Buffer
}

// NewPlugin starts a plugin with the given file header.
func NewPlugin(t testing.TB, h PluginHeader) *PluginBuilder {
	t.Helper()

	if h.Version == 0 {
		h.Version = 1.71
	}
	hedr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hedr[0:4], math.Float32bits(h.Version))
	binary.LittleEndian.PutUint32(hedr[4:8], uint32(h.RecordCount))
	binary.LittleEndian.PutUint32(hedr[8:12], h.NextObjectID)

	subs := []subrecord.Subrecord{Sub("HEDR", hedr)}
	if h.Author != "" {
		subs = append(subs, Sub("CNAM", ZString(h.Author)))
	}
	if h.Description != "" {
		subs = append(subs, Sub("SNAM", ZString(h.Description)))
	}
	for _, m := range h.Masters {
		subs = append(subs, Sub("MAST", ZString(m)), Sub("DATA", make([]byte, 8)))
	}

	b := &PluginBuilder{t: t}
	b.RawRecord("TES4", h.Flags, 0, b.encode(subs))
	return b
}

// Record appends an uncompressed record built from subrecords.
func (b *PluginBuilder) Record(tag string, formID uint32, subs ...subrecord.Subrecord) *PluginBuilder {
	b.t.Helper()
	return b.RawRecord(tag, 0, formID, b.encode(subs))
}

// CompressedRecord appends a record whose payload is raw-deflate compressed.
func (b *PluginBuilder) CompressedRecord(tag string, formID uint32, subs ...subrecord.Subrecord) *PluginBuilder {
	b.t.Helper()
	packed, err := compression.CompressRaw(b.encode(subs))
	if err != nil {
		b.t.Fatalf("compress %s: %v", tag, err)
	}
	return b.RawRecord(tag, compression.FlagCompressed, formID, packed)
}

// RawRecord appends a record header followed by payload as-is.
func (b *PluginBuilder) RawRecord(tag string, flags, formID uint32, payload []byte) *PluginBuilder {
	b.t.Helper()
	b.writeRecordHeader(tag, uint32(len(payload)), flags, formID)
	b.buf.Write(payload)
	return b
}

// Group appends a top-level GRUP labelled with a record type and sized to
// cover whatever fill adds.
func (b *PluginBuilder) Group(label string, fill func(*PluginBuilder)) *PluginBuilder {
	b.t.Helper()
	var raw [4]byte
	copy(raw[:], label)
	return b.group(binary.LittleEndian.Uint32(raw[:]), 0, fill)
}

// ChildGroup appends a nested GRUP with a numeric label.
func (b *PluginBuilder) ChildGroup(groupType int32, label uint32, fill func(*PluginBuilder)) *PluginBuilder {
	b.t.Helper()
	return b.group(label, groupType, fill)
}

func (b *PluginBuilder) group(label uint32, groupType int32, fill func(*PluginBuilder)) *PluginBuilder {
	start := b.buf.Len()
	header := make([]byte, 24)
	copy(header[0:4], "GRUP")
	binary.LittleEndian.PutUint32(header[8:12], label)
	binary.LittleEndian.PutUint32(header[12:16], uint32(groupType))
	b.buf.Write(header)
	if fill != nil {
		fill(b)
	}
	size := uint32(b.buf.Len() - start)
	binary.LittleEndian.PutUint32(b.buf.Bytes()[start+4:start+8], size)
	return b
}

// Len returns the number of bytes written so far.
func (b *PluginBuilder) Len() int {
	return b.buf.Len()
}

// Bytes returns a copy of the assembled plugin.
func (b *PluginBuilder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// WriteFile writes the plugin into dir under name and returns its path.
func (b *PluginBuilder) WriteFile(dir, name string) string {
	b.t.Helper()
	return WriteBytes(b.t, filepath.Join(dir, name), b.buf.Bytes())
}

func (b *PluginBuilder) writeRecordHeader(tag string, size, flags, formID uint32) {
	header := make([]byte, 24)
	copy(header[0:4], tag)
	binary.LittleEndian.PutUint32(header[4:8], size)
	binary.LittleEndian.PutUint32(header[8:12], flags)
	binary.LittleEndian.PutUint32(header[12:16], formID)
	binary.LittleEndian.PutUint16(header[20:22], 44)
	b.buf.Write(header)
}

func (b *PluginBuilder) encode(subs []subrecord.Subrecord) []byte {
	b.t.Helper()
	payload, err := subrecord.Encode(subs)
	if err != nil {
		b.t.Fatalf("encode subrecords: %v", err)
	}
	return payload
}

// Sub builds a subrecord.
func Sub(tag string, data []byte) subrecord.Subrecord {
	return subrecord.Subrecord{Tag: tag, Data: data}
}

// ZString encodes s as a zero-terminated string.
func ZString(s string) []byte {
	return append([]byte(s), 0)
}

// EditorID builds an EDID subrecord.
func EditorID(id string) subrecord.Subrecord {
	return Sub("EDID", ZString(id))
}
