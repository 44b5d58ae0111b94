package subrecord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the tag plus uint16 length prefix.
	HeaderSize = 6
	// ExtendedSizeTag carries a uint32 length for the subrecord that follows.
	ExtendedSizeTag = "XXXX"
)

var ErrSubrecordOverrun = errors.New("subrecord overruns record payload")

// OverrunError reports a subrecord claiming more bytes than its parent holds.
type OverrunError struct {
	Tag    string
	Offset int
	Want   int
	Have   int
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("subrecord %q at payload offset %d claims %d bytes, %d available", e.Tag, e.Offset, e.Want, e.Have)
}

func (e *OverrunError) Is(target error) bool { return target == ErrSubrecordOverrun }

// Subrecord is one tagged field inside a record payload. Data aliases the
// decompressed payload buffer.
type Subrecord struct {
	Tag  string `json:"tag"`
	Data []byte `json:"data"`
}

func (s Subrecord) Size() int { return len(s.Data) }

// Scan splits a decompressed record payload into its subrecords. Fewer than
// HeaderSize trailing bytes end the scan without error.
func Scan(payload []byte) ([]Subrecord, error) {
	var (
		subs     []Subrecord
		off      int
		override = -1
	)
	for len(payload)-off >= HeaderSize {
		tag := string(payload[off : off+4])
		length := int(binary.LittleEndian.Uint16(payload[off+4 : off+6]))
		start := off + HeaderSize
		if override >= 0 {
			length = override
			override = -1
		}
		if start+length > len(payload) {
			return subs, &OverrunError{Tag: tag, Offset: off, Want: length, Have: len(payload) - start}
		}
		data := payload[start : start+length]
		off = start + length

		if tag == ExtendedSizeTag && len(data) == 4 {
			override = int(binary.LittleEndian.Uint32(data))
			continue
		}
		subs = append(subs, Subrecord{Tag: tag, Data: data})
	}
	return subs, nil
}

// Encode writes subrecords in the 6-byte-header form Scan reads.
func Encode(subs []Subrecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range subs {
		if len(s.Tag) != 4 {
			return nil, fmt.Errorf("subrecord tag %q must be 4 bytes", s.Tag)
		}
		if len(s.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("subrecord %q payload of %d bytes exceeds %d", s.Tag, len(s.Data), math.MaxUint16)
		}
		var hdr [HeaderSize]byte
		copy(hdr[:4], s.Tag)
		binary.LittleEndian.PutUint16(hdr[4:], uint16(len(s.Data)))
		buf.Write(hdr[:])
		buf.Write(s.Data)
	}
	return buf.Bytes(), nil
}

// Find returns the first subrecord with tag.
func Find(subs []Subrecord, tag string) (Subrecord, bool) {
	for _, s := range subs {
		if s.Tag == tag {
			return s, true
		}
	}
	return Subrecord{}, false
}

// FindAll returns every subrecord with tag, in payload order.
func FindAll(subs []Subrecord, tag string) []Subrecord {
	var out []Subrecord
	for _, s := range subs {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}
