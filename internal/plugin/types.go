package plugin

import (
	"errors"
	"fmt"

	"esparse/internal/compression"
	"esparse/internal/subrecord"
)

const (
	// FileHeaderTag is the type of the single record that opens every plugin.
	FileHeaderTag = "TES4"
	// GroupTag marks a group container.
	GroupTag = "GRUP"
	// HeaderSize is the on-disk size of both record and group headers.
	HeaderSize = 24
)

// File header flags.
const (
	FlagMaster    uint32 = 0x00000001
	FlagLocalized uint32 = 0x00000080
	FlagLight     uint32 = 0x00000200
)

// Top-level groups carry a record type tag as their label; every other group
// type labels itself with a FormID, block number or grid coordinate.
const GroupTypeTop int32 = 0

var (
	ErrInvalidFileHeader = errors.New("invalid file header")
	ErrTruncatedRecord   = compression.ErrTruncatedRecord
	ErrGroupSpanMismatch = errors.New("group span mismatch")
)

// ParseError is a fatal per-file failure. Err carries the underlying typed
// error (truncation, subrecord overrun, invalid file header).
type ParseError struct {
	Offset     int64
	RecordType string
	Err        error
}

func (e *ParseError) Error() string {
	if e.RecordType != "" {
		return fmt.Sprintf("parse %s at offset %d: %v", e.RecordType, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RecordHeader is the fixed 24-byte header preceding every record payload.
type RecordHeader struct {
	Type           string `json:"type"`
	DataSize       uint32 `json:"data_size"`
	Flags          uint32 `json:"flags"`
	FormID         uint32 `json:"form_id"`
	Timestamp      uint16 `json:"timestamp"`
	VersionControl uint16 `json:"version_control"`
	FormVersion    uint16 `json:"form_version"`
	Unknown        uint16 `json:"unknown"`
}

// Compressed reports whether the payload on disk is deflate-compressed.
func (h RecordHeader) Compressed() bool {
	return compression.IsCompressed(h.Flags)
}

// Span is the number of bytes the record occupies on disk.
func (h RecordHeader) Span() int64 {
	return HeaderSize + int64(h.DataSize)
}

// Record is one parsed non-group record. Data holds the decompressed payload.
type Record struct {
	Header     RecordHeader          `json:"header"`
	Offset     int64                 `json:"offset"`
	Data       []byte                `json:"-"`
	Subrecords []subrecord.Subrecord `json:"subrecords"`
	Compressed bool                  `json:"compressed"`
}

// Group is a GRUP container retained for diagnostics. Size is the declared
// total span including the 24-byte header.
type Group struct {
	Offset         int64  `json:"offset"`
	Size           uint32 `json:"size"`
	GroupType      int32  `json:"group_type"`
	Label          string `json:"label,omitempty"`
	LabelValue     uint32 `json:"label_value"`
	Timestamp      uint16 `json:"timestamp"`
	VersionControl uint16 `json:"version_control"`
	Depth          int    `json:"depth"`
}

// End returns the offset one past the group's declared span.
func (g Group) End() int64 {
	return g.Offset + int64(g.Size)
}

// FileHeader is the parsed TES4 record.
type FileHeader struct {
	Type           string   `json:"type"`
	Version        float32  `json:"version"`
	RecordCount    int32    `json:"record_count"`
	NextObjectID   uint32   `json:"next_object_id"`
	Author         string   `json:"author,omitempty"`
	Description    string   `json:"description,omitempty"`
	Masters        []string `json:"masters"`
	Flags          uint32   `json:"flags"`
	FormID         uint32   `json:"form_id"`
	Timestamp      uint16   `json:"timestamp"`
	VersionControl uint16   `json:"version_control"`
	FormVersion    uint16   `json:"form_version"`
	IsMaster       bool     `json:"is_master"`
	IsLight        bool     `json:"is_light"`
	IsLocalized    bool     `json:"is_localized"`
}

// EditorID returns the record's EDID string, or "" when it has none.
func (r *Record) EditorID() string {
	if r == nil {
		return ""
	}
	if sub, ok := subrecord.Find(r.Subrecords, "EDID"); ok {
		return DecodeString(sub.Data)
	}
	return ""
}
