package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// FlagCompressed marks a record whose payload is deflate-compressed.
const FlagCompressed uint32 = 0x00040000

// recordHeaderSize mirrors plugin.HeaderSize; duplicated to keep this
// package free of reader dependencies.
const recordHeaderSize = 24

// maxInflatedSize caps a single record's decompressed payload.
const maxInflatedSize = 256 << 20

var (
	ErrTruncatedRecord     = errors.New("truncated record")
	ErrDecompressionFailed = errors.New("decompression failed")
)

// RecordInfo identifies the record being decompressed in error reports.
type RecordInfo struct {
	Type   string
	Offset int64
}

// TruncatedError reports a payload buffer shorter than the header declares.
type TruncatedError struct {
	RecordInfo
	DeclaredSize int
	Available    int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated record %s at offset %d: declared %d bytes, buffer too small (%d available)",
		displayType(e.Type), e.Offset, e.DeclaredSize, e.Available)
}

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncatedRecord }

// DecompressionError reports a corrupt compressed stream. The reader can
// still skip the record using its declared on-disk size.
type DecompressionError struct {
	RecordInfo
	DeclaredSize int
	Err          error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompress record %s at offset %d (declared size %d): %v",
		displayType(e.Type), e.Offset, e.DeclaredSize, e.Err)
}

func (e *DecompressionError) Is(target error) bool { return target == ErrDecompressionFailed }

func (e *DecompressionError) Unwrap() error { return e.Err }

// Result is the outcome of Decompress.
type Result struct {
	Data             []byte
	Compressed       bool
	DecompressedSize int
}

// IsCompressed reports whether the compressed flag is set.
func IsCompressed(flags uint32) bool {
	return flags&FlagCompressed != 0
}

// Decompress returns the record payload, inflating it when flags carries
// FlagCompressed. Uncompressed payloads are returned as-is without copying.
func Decompress(payload []byte, flags uint32, declaredSize int, info RecordInfo) (Result, error) {
	if declaredSize < 0 || len(payload) < declaredSize {
		return Result{}, &TruncatedError{RecordInfo: info, DeclaredSize: declaredSize, Available: len(payload)}
	}
	payload = payload[:declaredSize]
	if !IsCompressed(flags) {
		return Result{Data: payload, DecompressedSize: len(payload)}, nil
	}

	data, err := inflate(payload)
	if err != nil {
		return Result{}, &DecompressionError{RecordInfo: info, DeclaredSize: declaredSize, Err: err}
	}
	return Result{Data: data, Compressed: true, DecompressedSize: len(data)}, nil
}

// DecompressHeaderBuffer reads the flag and size fields from a record-shaped
// buffer (24-byte header followed by the payload) and decompresses it.
func DecompressHeaderBuffer(buf []byte, offset int64) (Result, error) {
	if len(buf) < recordHeaderSize {
		return Result{}, &TruncatedError{
			RecordInfo:   RecordInfo{Offset: offset},
			DeclaredSize: recordHeaderSize,
			Available:    len(buf),
		}
	}
	info := RecordInfo{Type: string(buf[0:4]), Offset: offset}
	size := int(binary.LittleEndian.Uint32(buf[4:8]))
	flags := binary.LittleEndian.Uint32(buf[8:12])
	return Decompress(buf[recordHeaderSize:], flags, size, info)
}

// IsRecordCompressed probes a record-shaped buffer for the compressed flag.
// It never fails: malformed input reports false.
func IsRecordCompressed(buf []byte) bool {
	if len(buf) < recordHeaderSize {
		return false
	}
	return IsCompressed(binary.LittleEndian.Uint32(buf[8:12]))
}

// inflate decodes a raw deflate stream. Payloads written by the game engine
// carry a uint32 inflated size followed by a zlib stream; those are detected
// and verified first, falling back to raw deflate.
func inflate(payload []byte) ([]byte, error) {
	if sizeHint, ok := sizePrefixedZlib(payload); ok {
		if data, err := inflateZlib(payload[4:], sizeHint); err == nil {
			return data, nil
		}
	}
	return inflateRaw(payload)
}

func sizePrefixedZlib(payload []byte) (int, bool) {
	if len(payload) < 6 {
		return 0, false
	}
	cmf, flg := payload[4], payload[5]
	if cmf&0x0F != 8 || cmf>>4 > 7 {
		return 0, false
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return 0, false
	}
	size := binary.LittleEndian.Uint32(payload[:4])
	if size > maxInflatedSize {
		return 0, false
	}
	return int(size), true
}

func inflateZlib(stream []byte, expected int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, 0, expected)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, io.LimitReader(zr, maxInflatedSize+1)); err != nil {
		return nil, err
	}
	if buf.Len() != expected {
		return nil, fmt.Errorf("inflated %d bytes, header declares %d", buf.Len(), expected)
	}
	return buf.Bytes(), nil
}

var flateReaders sync.Pool

func inflateRaw(stream []byte) ([]byte, error) {
	src := bytes.NewReader(stream)
	var fr io.ReadCloser
	if pooled, ok := flateReaders.Get().(io.ReadCloser); ok {
		if err := pooled.(flate.Resetter).Reset(src, nil); err == nil {
			fr = pooled
		}
	}
	if fr == nil {
		fr = flate.NewReader(src)
	}
	defer func() {
		_ = fr.Close()
		flateReaders.Put(fr)
	}()

	var buf bytes.Buffer
	buf.Grow(len(stream) * 3)
	n, err := io.Copy(&buf, io.LimitReader(fr, maxInflatedSize+1))
	if err != nil {
		return nil, err
	}
	if n > maxInflatedSize {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes", maxInflatedSize)
	}
	return buf.Bytes(), nil
}

// CompressRaw deflates data without a container header. It exists for
// fixture builders and round-trip checks.
func CompressRaw(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("flate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("flate write: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("flate close: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressRecord produces the on-disk layout: inflated size prefix followed
// by a zlib stream.
func CompressRecord(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
	buf.Write(prefix[:])
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

func displayType(tag string) string {
	if tag == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%q", tag)
}
