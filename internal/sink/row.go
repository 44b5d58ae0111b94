package sink

import (
	"strings"

	"esparse/internal/conflict"
	"esparse/internal/formid"
)

// Row is the on-disk shape of one resolved record. FormIDs are written both as
// numbers and in the %08X form the game tools show.
type Row struct {
	Type         string `json:"type" cbor:"type"`
	LocalFormID  uint32 `json:"local_form_id" cbor:"local_form_id"`
	GlobalFormID uint32 `json:"global_form_id" cbor:"global_form_id"`
	FormID       string `json:"form_id,omitempty" cbor:"form_id,omitempty"`
	Resolved     bool   `json:"resolved" cbor:"resolved"`
	Plugin       string `json:"plugin" cbor:"plugin"`
	LoadOrder    int    `json:"load_order" cbor:"load_order"`
	StackOrder   int    `json:"stack_order" cbor:"stack_order"`
	IsWinner     bool   `json:"is_winner" cbor:"is_winner"`
	Offset       int64  `json:"offset" cbor:"offset"`
	Compressed   bool   `json:"compressed,omitempty" cbor:"compressed,omitempty"`
	EditorID     string `json:"editor_id,omitempty" cbor:"editor_id,omitempty"`
	Fields       any    `json:"fields,omitempty" cbor:"fields,omitempty"`
}

// NewRow flattens a resolved record.
func NewRow(r conflict.ResolvedRecord) Row {
	row := Row{
		Type:         r.Type,
		LocalFormID:  r.LocalFormID,
		GlobalFormID: r.GlobalFormID,
		Resolved:     r.Resolved,
		Plugin:       r.Plugin,
		LoadOrder:    r.LoadOrder,
		StackOrder:   r.StackOrder,
		IsWinner:     r.IsWinner,
		Offset:       r.Offset(),
		Fields:       r.Fields,
	}
	if r.Resolved {
		row.FormID = formid.Format(r.GlobalFormID)
	}
	if r.Record != nil {
		row.Compressed = r.Record.Compressed
		row.EditorID = r.Record.EditorID()
	}
	return row
}

// fileName maps a record tag to a file name. Tags are four bytes of arbitrary
// data, so anything outside [A-Za-z0-9_] becomes '_'.
func fileName(recordType, ext string) string {
	var b strings.Builder
	for _, c := range recordType {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		b.WriteString("_")
	}
	return b.String() + ext
}
