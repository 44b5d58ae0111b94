package plugin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"

	"esparse/internal/binread"
	"esparse/internal/compression"
	"esparse/internal/subrecord"
)

// ParseFileHeader parses the TES4 record at the start of buf and returns the
// number of bytes it occupies.
func ParseFileHeader(buf []byte) (FileHeader, int, error) {
	c := binread.New(buf)
	rh, err := readRecordHeader(c)
	if err != nil {
		return FileHeader{}, 0, &ParseError{Err: fmt.Errorf("%w: %w", ErrInvalidFileHeader, err)}
	}
	if rh.Type != FileHeaderTag {
		return FileHeader{}, 0, &ParseError{
			RecordType: rh.Type,
			Err:        fmt.Errorf("%w: first record is %q, want %q", ErrInvalidFileHeader, rh.Type, FileHeaderTag),
		}
	}

	payload := c.Remaining()
	if int64(payload) < int64(rh.DataSize) {
		return FileHeader{}, 0, &ParseError{
			RecordType: rh.Type,
			Err: &compression.TruncatedError{
				RecordInfo:   compression.RecordInfo{Type: rh.Type},
				DeclaredSize: int(rh.DataSize),
				Available:    payload,
			},
		}
	}
	raw, _ := c.Slice(int(rh.DataSize))
	decoded, err := compression.Decompress(raw, rh.Flags, int(rh.DataSize), compression.RecordInfo{Type: rh.Type})
	if err != nil {
		return FileHeader{}, 0, &ParseError{RecordType: rh.Type, Err: fmt.Errorf("%w: %w", ErrInvalidFileHeader, err)}
	}
	subs, err := subrecord.Scan(decoded.Data)
	if err != nil {
		return FileHeader{}, 0, &ParseError{RecordType: rh.Type, Err: err}
	}

	fh := FileHeader{
		Type:           rh.Type,
		Flags:          rh.Flags,
		FormID:         rh.FormID,
		Timestamp:      rh.Timestamp,
		VersionControl: rh.VersionControl,
		FormVersion:    rh.FormVersion,
		IsMaster:       rh.Flags&FlagMaster != 0,
		IsLight:        rh.Flags&FlagLight != 0,
		IsLocalized:    rh.Flags&FlagLocalized != 0,
		Masters:        []string{},
	}
	for _, sub := range subs {
		switch sub.Tag {
		case "HEDR":
			hc := binread.New(sub.Data)
			version, err := hc.F32()
			if err != nil {
				return FileHeader{}, 0, &ParseError{RecordType: rh.Type, Err: fmt.Errorf("%w: HEDR: %w", ErrInvalidFileHeader, err)}
			}
			fh.Version = version
			// Older headers stop after the version field.
			if n, err := hc.I32(); err == nil {
				fh.RecordCount = n
			}
			if next, err := hc.U32(); err == nil {
				fh.NextObjectID = next
			}
		case "CNAM":
			fh.Author = DecodeString(sub.Data)
		case "SNAM":
			fh.Description = DecodeString(sub.Data)
		case "MAST":
			fh.Masters = append(fh.Masters, DecodeString(sub.Data))
		}
	}
	return fh, c.Offset(), nil
}

// DecodeString decodes a zero-terminated Windows-1252 string.
func DecodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if isASCII(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func readRecordHeader(c *binread.Cursor) (RecordHeader, error) {
	raw, err := c.Slice(HeaderSize)
	if err != nil {
		return RecordHeader{}, err
	}
	hc := binread.New(raw)
	var h RecordHeader
	h.Type, _ = hc.Tag()
	h.DataSize, _ = hc.U32()
	h.Flags, _ = hc.U32()
	h.FormID, _ = hc.U32()
	h.Timestamp, _ = hc.U16()
	h.VersionControl, _ = hc.U16()
	h.FormVersion, _ = hc.U16()
	h.Unknown, _ = hc.U16()
	return h, nil
}

func readGroupHeader(c *binread.Cursor) (Group, error) {
	offset := int64(c.Offset())
	raw, err := c.Slice(HeaderSize)
	if err != nil {
		return Group{}, err
	}
	hc := binread.New(raw)
	_, _ = hc.Tag()
	g := Group{Offset: offset}
	g.Size, _ = hc.U32()
	label, _ := hc.Peek(4)
	g.LabelValue, _ = hc.U32()
	g.GroupType, _ = hc.I32()
	g.Timestamp, _ = hc.U16()
	g.VersionControl, _ = hc.U16()
	if g.GroupType == GroupTypeTop {
		g.Label = string(label)
	}
	return g, nil
}

// ReadFileHeader reads only the TES4 record at the start of the file at path.
func ReadFileHeader(path string) (FileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHeader{}, fmt.Errorf("open plugin %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return FileHeader{}, &ParseError{Err: fmt.Errorf("%w: %s: %w", ErrInvalidFileHeader, path, err)}
	}
	size := binary.LittleEndian.Uint32(head[4:8])
	if info, err := f.Stat(); err == nil && int64(size) > info.Size()-HeaderSize {
		size = uint32(max(info.Size()-HeaderSize, 0))
	}
	buf := make([]byte, HeaderSize+int(size))
	copy(buf, head)
	n, err := io.ReadFull(f, buf[HeaderSize:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FileHeader{}, fmt.Errorf("read plugin %s: %w", path, err)
	}
	fh, _, err := ParseFileHeader(buf[:HeaderSize+n])
	return fh, err
}
