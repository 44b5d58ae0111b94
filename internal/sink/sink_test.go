package sink_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"esparse/internal/config"
	"esparse/internal/conflict"
	"esparse/internal/decoders"
	"esparse/internal/plugin"
	"esparse/internal/sink"
	"esparse/internal/store"
	"esparse/internal/subrecord"
	"esparse/internal/testsupport"
)

func sampleRecords() []conflict.ResolvedRecord {
	return []conflict.ResolvedRecord{
		{
			Type: "KYWD", LocalFormID: 0x00000800, GlobalFormID: 0x00000800, Resolved: true,
			Plugin: "Skyrim.esm", StackOrder: 1,
			Record: &plugin.Record{Offset: 0x30, Subrecords: []subrecord.Subrecord{testsupport.EditorID("Base")}},
		},
		{
			Type: "KYWD", LocalFormID: 0x00000800, GlobalFormID: 0x00000800, Resolved: true,
			Plugin: "Patch.esp", LoadOrder: 1, StackOrder: 0, IsWinner: true,
			Fields: decoders.Keyword{EditorID: "Base", Color: "#FF0000"},
		},
		{
			Type: "KYWD", LocalFormID: 0x05000900, Plugin: "Orphan.esp", LoadOrder: 2,
			StackOrder: conflict.NoStackOrder,
		},
	}
}

func TestJSONLines(t *testing.T) {
	dir := t.TempDir()
	s := sink.NewJSONLines(dir)
	if err := s.Write(context.Background(), "KYWD", sampleRecords()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(s.Path("KYWD"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d: %v", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(rows))
	}
	if rows[0]["editor_id"] != "Base" || rows[0]["offset"] != float64(0x30) || rows[0]["form_id"] != "00000800" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	fields, ok := rows[1]["fields"].(map[string]any)
	if !ok || fields["color"] != "#FF0000" || rows[1]["is_winner"] != true {
		t.Fatalf("unexpected second row %v", rows[1])
	}
	if _, ok := rows[2]["form_id"]; ok || rows[2]["resolved"] != false || rows[2]["offset"] != float64(-1) {
		t.Fatalf("unexpected unresolved row %v", rows[2])
	}
}

func TestCBORDeterministic(t *testing.T) {
	dir := t.TempDir()
	s := sink.NewCBOR(dir)
	ctx := context.Background()

	if err := s.Write(ctx, "KYWD", sampleRecords()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first, err := os.ReadFile(s.Path("KYWD"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "KYWD", sampleRecords()); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	second, err := os.ReadFile(s.Path("KYWD"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("CBOR output is not deterministic")
	}

	dec := cbor.NewDecoder(bytes.NewReader(first))
	var rows []sink.Row
	for {
		var row sink.Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("decode row %d: %v", len(rows), err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 3 || rows[1].Plugin != "Patch.esp" || !rows[1].IsWinner || rows[0].EditorID != "Base" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestFileNameSanitized(t *testing.T) {
	s := sink.NewJSONLines("/out")
	if got := s.Path("A\x00B "); got != "/out/A_B_.jsonl" {
		t.Fatalf("Path = %q", got)
	}
}

func TestWriteCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := sink.NewJSONLines(dir)
	if err := s.Write(ctx, "KYWD", sampleRecords()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(s.Path("KYWD")); !os.IsNotExist(err) {
		t.Fatalf("cancelled write left a file: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormats(config.FormatSQLite, config.FormatJSONL, config.FormatCBOR))
	sinks, closeFn, err := sink.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer closeFn()
	if len(sinks) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(sinks))
	}
	if _, ok := sinks[0].(*store.Store); !ok {
		t.Fatalf("first sink is %T", sinks[0])
	}
	if _, ok := sinks[1].(*sink.JSONLines); !ok {
		t.Fatalf("second sink is %T", sinks[1])
	}
	if _, ok := sinks[2].(*sink.CBOR); !ok {
		t.Fatalf("third sink is %T", sinks[2])
	}

	bad := testsupport.NewConfig(t, testsupport.WithFormats("xml"))
	if _, _, err := sink.FromConfig(bad); err == nil {
		t.Fatal("expected unknown format error")
	}
}
