package plugin_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"esparse/internal/compression"
	"esparse/internal/diag"
	"esparse/internal/plugin"
	"esparse/internal/subrecord"
	"esparse/internal/testsupport"
)

func TestReadMinimalFile(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		RawRecord("TEST", 0, 0x800, nil).
		Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{Plugin: "Minimal.esp"})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if res.Header.Type != plugin.FileHeaderTag {
		t.Fatalf("header type = %q", res.Header.Type)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.Header.Type != "TEST" || rec.Header.DataSize != 0 || len(rec.Subrecords) != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Header.FormID != 0x800 {
		t.Fatalf("form id = %08X", rec.Header.FormID)
	}
	if res.Offset != int64(len(buf)) {
		t.Fatalf("offset %d, want %d", res.Offset, len(buf))
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics %+v", res.Diagnostics)
	}
}

func TestReadOffsetIntegrity(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{Masters: []string{"Skyrim.esm"}})
	headerEnd := b.Len()
	b.Group("WEAP", func(b *testsupport.PluginBuilder) {
		b.Record("WEAP", 0x01000800, testsupport.EditorID("IronSword"), testsupport.Sub("DATA", make([]byte, 10)))
		b.CompressedRecord("WEAP", 0x01000801, testsupport.EditorID("SteelSword"), testsupport.Sub("DESC", bytes.Repeat([]byte("a"), 300)))
	})
	b.Group("CELL", func(b *testsupport.PluginBuilder) {
		b.ChildGroup(2, 0, func(b *testsupport.PluginBuilder) {
			b.ChildGroup(3, 0, func(b *testsupport.PluginBuilder) {
				b.Record("CELL", 0x01000900, testsupport.EditorID("Riverwood"))
			})
		})
	})
	buf := b.Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if res.Offset != int64(len(buf)) {
		t.Fatalf("offset %d, want %d", res.Offset, len(buf))
	}

	consumed := int64(headerEnd)
	for _, rec := range res.Records {
		consumed += rec.Header.Span()
	}
	consumed += int64(len(res.Groups)) * plugin.HeaderSize
	if consumed != int64(len(buf)) {
		t.Fatalf("record spans plus group headers = %d, want %d", consumed, len(buf))
	}

	if len(res.Records) != 3 || len(res.Groups) != 4 {
		t.Fatalf("got %d records and %d groups", len(res.Records), len(res.Groups))
	}
	if res.Groups[0].Label != "WEAP" || res.Groups[0].Depth != 0 {
		t.Fatalf("unexpected first group %+v", res.Groups[0])
	}
	if res.Groups[3].Depth != 2 || res.Groups[3].Label != "" || res.Groups[3].GroupType != 3 {
		t.Fatalf("unexpected nested group %+v", res.Groups[3])
	}
	if !res.Records[1].Compressed {
		t.Fatal("expected second record to be flagged compressed")
	}
	desc, ok := subrecord.Find(res.Records[1].Subrecords, "DESC")
	if !ok || len(desc.Data) != 300 {
		t.Fatalf("compressed record subrecords not recovered: %+v", res.Records[1].Subrecords)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics %+v", res.Diagnostics)
	}
}

func TestReadRejectsMissingFileHeader(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).Bytes()
	copy(buf[0:4], "ARMO")

	res := plugin.Read(context.Background(), buf, plugin.Options{Plugin: "Broken.esp"})
	if !errors.Is(res.Err, plugin.ErrInvalidFileHeader) {
		t.Fatalf("expected ErrInvalidFileHeader, got %v", res.Err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(res.Records))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != diag.CodeInvalidFileHeader {
		t.Fatalf("unexpected diagnostics %+v", res.Diagnostics)
	}
}

func TestReadSecondFileHeaderIsFatal(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		Record("GLOB", 0x800, testsupport.EditorID("First")).
		RawRecord("TES4", 0, 0, nil).
		Record("GLOB", 0x801, testsupport.EditorID("Never")).
		Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if !errors.Is(res.Err, plugin.ErrInvalidFileHeader) {
		t.Fatalf("expected ErrInvalidFileHeader, got %v", res.Err)
	}
	if len(res.Records) != 1 || res.Records[0].Header.FormID != 0x800 {
		t.Fatalf("expected the record before the corruption to survive, got %+v", res.Records)
	}
}

func TestReadTruncatedRecord(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		Record("GLOB", 0x800, testsupport.EditorID("Kept"))
	start := b.Len()
	b.Record("GLOB", 0x801, testsupport.EditorID("Cut"), testsupport.Sub("FLTV", make([]byte, 4)))
	buf := b.Bytes()
	buf = buf[:len(buf)-3]

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if !errors.Is(res.Err, plugin.ErrTruncatedRecord) {
		t.Fatalf("expected ErrTruncatedRecord, got %v", res.Err)
	}
	var truncated *compression.TruncatedError
	if !errors.As(res.Err, &truncated) {
		t.Fatalf("expected TruncatedError, got %T", res.Err)
	}
	if truncated.Offset != int64(start) || truncated.Available != truncated.DeclaredSize-3 {
		t.Fatalf("unexpected truncation details %+v", truncated)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected only the complete record, got %d", len(res.Records))
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).Bytes()
	buf = append(buf, []byte("GLOB\x10\x00")...)

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if !errors.Is(res.Err, plugin.ErrTruncatedRecord) {
		t.Fatalf("expected ErrTruncatedRecord, got %v", res.Err)
	}
}

func TestReadSkipsCorruptCompressedRecord(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{})
	bad := b.Len()
	b.RawRecord("NPC_", compression.FlagCompressed, 0x900, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	b.Record("NPC_", 0x901, testsupport.EditorID("Survivor"))
	buf := b.Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{Plugin: "Mod.esp"})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if len(res.Records) != 1 || res.Records[0].Header.FormID != 0x901 {
		t.Fatalf("expected the following record to survive, got %+v", res.Records)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Code != diag.CodeDecompressionFailed || d.Offset != int64(bad) || d.RecordType != "NPC_" || d.Plugin != "Mod.esp" {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
}

func TestReadSubrecordOverrunIsFatal(t *testing.T) {
	payload := []byte("EDID\x20\x00abc")
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		RawRecord("KYWD", 0, 0x800, payload).
		Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if !errors.Is(res.Err, subrecord.ErrSubrecordOverrun) {
		t.Fatalf("expected ErrSubrecordOverrun, got %v", res.Err)
	}
	if got := res.Diagnostics[len(res.Diagnostics)-1].Code; got != diag.CodeSubrecordOverrun {
		t.Fatalf("diagnostic code = %s", got)
	}
}

func TestReadRecordTypeFilter(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		Record("GLOB", 0x800, testsupport.EditorID("A")).
		RawRecord("NPC_", compression.FlagCompressed, 0x801, []byte{0xde, 0xad}).
		Record("GLOB", 0x802, testsupport.EditorID("B")).
		Bytes()

	res := plugin.Read(context.Background(), buf, plugin.Options{RecordTypes: []string{"GLOB"}})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if len(res.Records) != 2 || len(res.Diagnostics) != 0 {
		t.Fatalf("expected 2 GLOB records and no diagnostics, got %d records, %+v", len(res.Records), res.Diagnostics)
	}
	if res.Offset != int64(len(buf)) {
		t.Fatalf("offset %d, want %d", res.Offset, len(buf))
	}
}

func TestReadGroupSpanMismatch(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{})
	groupStart := b.Len()
	b.Group("GLOB", func(b *testsupport.PluginBuilder) {
		b.Record("GLOB", 0x800, testsupport.EditorID("Inside"))
	})
	b.Record("GLOB", 0x801, testsupport.EditorID("Outside"))
	buf := b.Bytes()
	// Shrink the group so its only record crosses the declared end.
	size := binary.LittleEndian.Uint32(buf[groupStart+4:])
	binary.LittleEndian.PutUint32(buf[groupStart+4:], size-4)

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected both records, got %d", len(res.Records))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != diag.CodeGroupSpanMismatch || res.Diagnostics[0].Offset != int64(groupStart) {
		t.Fatalf("unexpected diagnostics %+v", res.Diagnostics)
	}

	strict := plugin.Read(context.Background(), buf, plugin.Options{StrictGroupSpans: true})
	if !errors.Is(strict.Err, plugin.ErrGroupSpanMismatch) {
		t.Fatalf("expected ErrGroupSpanMismatch, got %v", strict.Err)
	}
	if len(strict.Records) != 0 {
		t.Fatalf("expected no records before the mismatch, got %d", len(strict.Records))
	}
}

func TestReadGroupOpenAtEOF(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{})
	groupStart := b.Len()
	b.Group("GLOB", func(b *testsupport.PluginBuilder) {
		b.Record("GLOB", 0x800, testsupport.EditorID("Inside"))
	})
	buf := b.Bytes()
	size := binary.LittleEndian.Uint32(buf[groupStart+4:])
	binary.LittleEndian.PutUint32(buf[groupStart+4:], size+100)

	res := plugin.Read(context.Background(), buf, plugin.Options{})
	if res.Err != nil {
		t.Fatalf("Read: %v", res.Err)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != diag.CodeGroupSpanMismatch {
		t.Fatalf("unexpected diagnostics %+v", res.Diagnostics)
	}
}

func TestReadHonoursCancellation(t *testing.T) {
	buf := testsupport.NewPlugin(t, testsupport.PluginHeader{}).
		Record("GLOB", 0x800, testsupport.EditorID("A")).
		Bytes()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := plugin.Read(ctx, buf, plugin.Options{})
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
}

func TestReadFileDigest(t *testing.T) {
	b := testsupport.NewPlugin(t, testsupport.PluginHeader{}).Record("GLOB", 0x800, testsupport.EditorID("A"))
	path := b.WriteFile(t.TempDir(), "Digest.esp")

	res, digest, err := plugin.ReadFile(context.Background(), path, plugin.Options{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if res.Err != nil || len(res.Records) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if digest != plugin.Sum(b.Bytes()) || digest.IsZero() || len(digest.String()) != 64 {
		t.Fatalf("unexpected digest %s", digest)
	}

	if _, _, err := plugin.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.esp"), plugin.Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
