package compression_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"esparse/internal/compression"
)

func recordBuffer(tag string, flags uint32, payload []byte) []byte {
	buf := make([]byte, 24+len(payload))
	copy(buf[0:4], tag)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[8:12], flags)
	copy(buf[24:], payload)
	return buf
}

func TestDecompressUncompressedReturnsInputUnchanged(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("plain"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, payload := range payloads {
		res, err := compression.Decompress(payload, 0x1, len(payload), compression.RecordInfo{Type: "ARMO"})
		if err != nil {
			t.Fatalf("Decompress: %v", err)
		}
		if res.Compressed {
			t.Fatal("expected uncompressed result")
		}
		if !bytes.Equal(res.Data, payload) {
			t.Fatalf("payload changed: got %x want %x", res.Data, payload)
		}
		if res.DecompressedSize != len(payload) {
			t.Fatalf("DecompressedSize = %d, want %d", res.DecompressedSize, len(payload))
		}
	}
}

func TestHelloWorldRawDeflateEndToEnd(t *testing.T) {
	compressed, err := compression.CompressRaw([]byte("Hello World"))
	if err != nil {
		t.Fatalf("CompressRaw: %v", err)
	}
	buf := recordBuffer("TEST", compression.FlagCompressed, compressed)

	if !compression.IsRecordCompressed(buf) {
		t.Fatal("expected IsRecordCompressed to report true")
	}
	res, err := compression.DecompressHeaderBuffer(buf, 0)
	if err != nil {
		t.Fatalf("DecompressHeaderBuffer: %v", err)
	}
	if string(res.Data) != "Hello World" {
		t.Fatalf("unexpected plaintext %q", res.Data)
	}
	if res.DecompressedSize != 11 {
		t.Fatalf("DecompressedSize = %d, want 11", res.DecompressedSize)
	}
	if !res.Compressed {
		t.Fatal("expected Compressed=true")
	}
}

func TestDecompressSizePrefixedZlib(t *testing.T) {
	plain := bytes.Repeat([]byte("EDID\x05\x00Iron\x00"), 40)
	onDisk, err := compression.CompressRecord(plain)
	if err != nil {
		t.Fatalf("CompressRecord: %v", err)
	}
	res, err := compression.Decompress(onDisk, compression.FlagCompressed, len(onDisk), compression.RecordInfo{Type: "WEAP"})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(res.Data, plain) {
		t.Fatalf("zlib payload mismatch: got %d bytes want %d", len(res.Data), len(plain))
	}
}

func TestDecompressCorruptStream(t *testing.T) {
	corrupt := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := compression.Decompress(corrupt, compression.FlagCompressed, len(corrupt), compression.RecordInfo{Type: "NPC_", Offset: 128})
	if !errors.Is(err, compression.ErrDecompressionFailed) {
		t.Fatalf("expected ErrDecompressionFailed, got %v", err)
	}
	var de *compression.DecompressionError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecompressionError, got %T", err)
	}
	if de.Type != "NPC_" || de.Offset != 128 || de.DeclaredSize != len(corrupt) {
		t.Fatalf("missing diagnostic context: %+v", de)
	}
}

func TestDecompressTruncatedBuffer(t *testing.T) {
	_, err := compression.Decompress([]byte{1, 2, 3}, 0, 10, compression.RecordInfo{Type: "ARMO", Offset: 42})
	if !errors.Is(err, compression.ErrTruncatedRecord) {
		t.Fatalf("expected ErrTruncatedRecord, got %v", err)
	}

	buf := recordBuffer("ARMO", 0, []byte("abcdef"))
	_, err = compression.DecompressHeaderBuffer(buf[:26], 0)
	if !errors.Is(err, compression.ErrTruncatedRecord) {
		t.Fatalf("expected ErrTruncatedRecord for short header buffer, got %v", err)
	}
}

func TestIsRecordCompressedNeverFails(t *testing.T) {
	cases := map[string][]byte{
		"nil":          nil,
		"short":        {1, 2, 3},
		"header only":  recordBuffer("ARMO", 0, nil),
		"flag without": recordBuffer("ARMO", compression.FlagCompressed, nil),
	}
	want := map[string]bool{"nil": false, "short": false, "header only": false, "flag without": true}
	for name, buf := range cases {
		if got := compression.IsRecordCompressed(buf); got != want[name] {
			t.Fatalf("%s: IsRecordCompressed = %v, want %v", name, got, want[name])
		}
	}
}
