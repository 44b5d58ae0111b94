package diag

import (
	"log/slog"

	"esparse/internal/logging"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Code string

const (
	CodeInvalidFileHeader   Code = "invalid_file_header"
	CodeTruncatedRecord     Code = "truncated_record"
	CodeSubrecordOverrun    Code = "subrecord_overrun"
	CodeDecompressionFailed Code = "decompression_failed"
	CodeGroupSpanMismatch   Code = "group_span_mismatch"
	CodeUnresolvablePlugin  Code = "unresolvable_plugin"
	CodeMissingMasterTable  Code = "missing_master_table"
	CodeAmbiguousWinner     Code = "ambiguous_winner"
	CodeUnresolvedIdentity  Code = "unresolved_identity"
	CodePluginMissing       Code = "plugin_missing"
	CodeDuplicatePlugin     Code = "duplicate_plugin"
	CodeDecodeFailed        Code = "decode_failed"
)

// Diagnostic is a structured warning or error returned next to a component's
// primary output. Offset is -1 when no file position applies.
type Diagnostic struct {
	Severity   Severity `json:"severity" cbor:"severity"`
	Code       Code     `json:"code" cbor:"code"`
	Plugin     string   `json:"plugin,omitempty" cbor:"plugin,omitempty"`
	Offset     int64    `json:"offset" cbor:"offset"`
	RecordType string   `json:"record_type,omitempty" cbor:"record_type,omitempty"`
	FormID     uint32   `json:"form_id,omitempty" cbor:"form_id,omitempty"`
	Target     string   `json:"target,omitempty" cbor:"target,omitempty"`
	Message    string   `json:"message" cbor:"message"`
}

// Warning builds a warning-level diagnostic without a file position.
func Warning(code Code, plugin, message string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Plugin: plugin, Offset: -1, Message: message}
}

// Error builds an error-level diagnostic without a file position.
func Error(code Code, plugin, message string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Plugin: plugin, Offset: -1, Message: message}
}

// At returns a copy positioned at offset inside a record of the given type.
func (d Diagnostic) At(offset int64, recordType string) Diagnostic {
	d.Offset = offset
	d.RecordType = recordType
	return d
}

// WithFormID returns a copy carrying the FormID in question.
func (d Diagnostic) WithFormID(id uint32) Diagnostic {
	d.FormID = id
	return d
}

// WithTarget returns a copy naming the plugin that could not be found.
func (d Diagnostic) WithTarget(target string) Diagnostic {
	d.Target = target
	return d
}

func (d Diagnostic) attrs() []logging.Attr {
	attrs := []logging.Attr{logging.String("code", string(d.Code))}
	if d.Plugin != "" {
		attrs = append(attrs, logging.Plugin(d.Plugin))
	}
	if d.Offset >= 0 {
		attrs = append(attrs, logging.Offset(d.Offset))
	}
	if d.RecordType != "" {
		attrs = append(attrs, logging.RecordType(d.RecordType))
	}
	if d.FormID != 0 {
		attrs = append(attrs, logging.FormID(d.FormID))
	}
	if d.Target != "" {
		attrs = append(attrs, logging.String("target", d.Target))
	}
	return attrs
}

// Log writes each diagnostic to logger at its severity.
func Log(logger *slog.Logger, ds []Diagnostic) {
	if logger == nil {
		return
	}
	for _, d := range ds {
		switch d.Severity {
		case SeverityError:
			logging.ErrorWithContext(logger, d.Message, string(d.Code), d.attrs()...)
		default:
			logging.WarnWithContext(logger, d.Message, string(d.Code), d.attrs()...)
		}
	}
}

// Count returns the number of diagnostics with the given severity.
func Count(ds []Diagnostic, severity Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == severity {
			n++
		}
	}
	return n
}
