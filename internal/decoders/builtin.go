package decoders

import (
	"fmt"
	"strings"

	"esparse/internal/binread"
	"esparse/internal/plugin"
	"esparse/internal/subrecord"
)

// Generic carries the fields nearly every record type shares.
type Generic struct {
	EditorID string `json:"editor_id,omitempty" cbor:"editor_id,omitempty"`
	FullName string `json:"full_name,omitempty" cbor:"full_name,omitempty"`
}

// Global is a GLOB record. ValueType is one of s (short), l (long), f (float).
type Global struct {
	EditorID  string  `json:"editor_id" cbor:"editor_id"`
	ValueType string  `json:"value_type" cbor:"value_type"`
	Value     float32 `json:"value" cbor:"value"`
}

// Keyword is a KYWD record.
type Keyword struct {
	EditorID string `json:"editor_id" cbor:"editor_id"`
	Color    string `json:"color,omitempty" cbor:"color,omitempty"`
}

// GameSetting is a GMST record. The editor ID prefix selects the value type.
type GameSetting struct {
	EditorID string `json:"editor_id" cbor:"editor_id"`
	Kind     string `json:"kind" cbor:"kind"`
	Value    any    `json:"value" cbor:"value"`
}

func decodeGeneric(_ string, subs []subrecord.Subrecord) (any, error) {
	return Generic{
		EditorID: stringField(subs, "EDID"),
		FullName: stringField(subs, "FULL"),
	}, nil
}

func decodeGlobal(recordType string, subs []subrecord.Subrecord) (any, error) {
	g := Global{EditorID: stringField(subs, "EDID"), ValueType: "f"}
	if fnam, ok := subrecord.Find(subs, "FNAM"); ok {
		if len(fnam.Data) < 1 {
			return nil, &DecodeError{Type: recordType, Tag: "FNAM", Err: fmt.Errorf("empty value type")}
		}
		g.ValueType = string(fnam.Data[:1])
	}
	fltv, ok := subrecord.Find(subs, "FLTV")
	if !ok {
		return nil, &DecodeError{Type: recordType, Tag: "FLTV", Err: fmt.Errorf("missing value")}
	}
	v, err := binread.New(fltv.Data).F32()
	if err != nil {
		return nil, &DecodeError{Type: recordType, Tag: "FLTV", Err: err}
	}
	g.Value = v
	return g, nil
}

func decodeKeyword(recordType string, subs []subrecord.Subrecord) (any, error) {
	k := Keyword{EditorID: stringField(subs, "EDID")}
	if cnam, ok := subrecord.Find(subs, "CNAM"); ok {
		c := binread.New(cnam.Data)
		rgb, err := c.Slice(3)
		if err != nil {
			return nil, &DecodeError{Type: recordType, Tag: "CNAM", Err: err}
		}
		k.Color = fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2])
	}
	return k, nil
}

func decodeGameSetting(recordType string, subs []subrecord.Subrecord) (any, error) {
	s := GameSetting{EditorID: stringField(subs, "EDID")}
	if s.EditorID == "" {
		return nil, &DecodeError{Type: recordType, Tag: "EDID", Err: fmt.Errorf("missing editor id")}
	}
	data, ok := subrecord.Find(subs, "DATA")
	if !ok {
		return nil, &DecodeError{Type: recordType, Tag: "DATA", Err: fmt.Errorf("missing value")}
	}
	c := binread.New(data.Data)
	var err error
	switch strings.ToLower(s.EditorID[:1]) {
	case "b":
		s.Kind = "bool"
		var v uint32
		v, err = c.U32()
		s.Value = v != 0
	case "i":
		s.Kind = "int"
		s.Value, err = c.I32()
	case "u":
		s.Kind = "uint"
		s.Value, err = c.U32()
	case "f":
		s.Kind = "float"
		s.Value, err = c.F32()
	case "s":
		s.Kind = "string"
		s.Value = plugin.DecodeString(data.Data)
	default:
		return nil, &DecodeError{Type: recordType, Tag: "DATA", Err: fmt.Errorf("unknown setting prefix in %q", s.EditorID)}
	}
	if err != nil {
		return nil, &DecodeError{Type: recordType, Tag: "DATA", Err: err}
	}
	return s, nil
}

func stringField(subs []subrecord.Subrecord, tag string) string {
	if sub, ok := subrecord.Find(subs, tag); ok {
		return plugin.DecodeString(sub.Data)
	}
	return ""
}
