package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"

	"esparse/internal/binread"
	"esparse/internal/compression"
	"esparse/internal/diag"
	"esparse/internal/subrecord"
)

// ctxCheckInterval is how many items the reader visits between context checks.
const ctxCheckInterval = 512

// Options tunes a single read.
type Options struct {
	// Plugin names the file in diagnostics.
	Plugin string
	// RecordTypes restricts emitted records to these tags. Unwanted records
	// are bounds-checked and skipped without decompression.
	RecordTypes []string
	// StrictGroupSpans makes a group span mismatch fatal for the file.
	StrictGroupSpans bool
}

// Result is everything a read produced. Records and Groups survive a fatal
// error; Err is set when reading stopped early and Offset is where it stopped.
type Result struct {
	Header      FileHeader
	Records     []Record
	Groups      []Group
	Diagnostics []diag.Diagnostic
	Offset      int64
	Err         error
}

// Read walks buf: the file header first, then a linear scan of groups and
// records until the end of the buffer or a fatal error.
func Read(ctx context.Context, buf []byte, opts Options) Result {
	var res Result
	header, n, err := ParseFileHeader(buf)
	if err != nil {
		res.fail(opts.Plugin, err)
		return res
	}
	res.Header = header

	r := &reader{
		cursor: binread.NewAt(buf, n),
		opts:   opts,
		res:    &res,
	}
	if len(opts.RecordTypes) > 0 {
		r.wanted = make(map[string]struct{}, len(opts.RecordTypes))
		for _, t := range opts.RecordTypes {
			r.wanted[t] = struct{}{}
		}
	}
	r.run(ctx)
	res.Offset = int64(r.cursor.Offset())
	return res
}

// ReadFile reads path once and returns the parse result with the BLAKE3
// digest of the file contents. The error covers I/O only; parse failures are
// reported through Result.Err.
func ReadFile(ctx context.Context, path string, opts Options) (Result, Digest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Result{}, Digest{}, fmt.Errorf("read plugin %s: %w", path, err)
	}
	return Read(ctx, buf, opts), Sum(buf), nil
}

type reader struct {
	cursor *binread.Cursor
	opts   Options
	res    *Result
	wanted map[string]struct{}
	open   []Group
}

func (r *reader) run(ctx context.Context) {
	for visited := 0; !r.cursor.Done(); visited++ {
		if visited%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				r.res.Err = err
				return
			}
		}
		if err := r.step(); err != nil {
			r.res.fail(r.opts.Plugin, err)
			return
		}
	}
	if err := r.closeAtEOF(); err != nil {
		r.res.fail(r.opts.Plugin, err)
	}
}

func (r *reader) step() error {
	offset := int64(r.cursor.Offset())
	tag, err := r.cursor.PeekTag()
	if err != nil {
		return r.truncated(offset, "", HeaderSize, err)
	}
	if tag == GroupTag {
		return r.group(offset)
	}
	return r.record(offset)
}

func (r *reader) group(offset int64) error {
	g, err := readGroupHeader(r.cursor)
	if err != nil {
		return r.truncated(offset, GroupTag, HeaderSize, err)
	}
	end := g.End()
	if g.Size < HeaderSize {
		if err := r.spanMismatch(g, fmt.Sprintf("group declares %d bytes, smaller than its header", g.Size)); err != nil {
			return err
		}
		end = offset + HeaderSize
	}
	if err := r.checkSpan(offset, end); err != nil {
		return err
	}
	g.Depth = len(r.open)
	r.res.Groups = append(r.res.Groups, g)
	g.Size = uint32(end - g.Offset)
	r.open = append(r.open, g)
	return nil
}

func (r *reader) record(offset int64) error {
	h, err := readRecordHeader(r.cursor)
	if err != nil {
		return r.truncated(offset, "", HeaderSize, err)
	}
	if h.Type == FileHeaderTag {
		return &ParseError{
			Offset:     offset,
			RecordType: h.Type,
			Err:        fmt.Errorf("%w: second %s record", ErrInvalidFileHeader, FileHeaderTag),
		}
	}
	if int64(r.cursor.Remaining()) < int64(h.DataSize) {
		return &ParseError{
			Offset:     offset,
			RecordType: h.Type,
			Err: &compression.TruncatedError{
				RecordInfo:   compression.RecordInfo{Type: h.Type, Offset: offset},
				DeclaredSize: int(h.DataSize),
				Available:    r.cursor.Remaining(),
			},
		}
	}
	if err := r.checkSpan(offset, offset+h.Span()); err != nil {
		return err
	}
	raw, _ := r.cursor.Slice(int(h.DataSize))

	if r.wanted != nil {
		if _, ok := r.wanted[h.Type]; !ok {
			return nil
		}
	}

	info := compression.RecordInfo{Type: h.Type, Offset: offset}
	decoded, err := compression.Decompress(raw, h.Flags, int(h.DataSize), info)
	if err != nil {
		if errors.Is(err, compression.ErrDecompressionFailed) {
			r.res.Diagnostics = append(r.res.Diagnostics,
				diag.Warning(diag.CodeDecompressionFailed, r.opts.Plugin, err.Error()).At(offset, h.Type).WithFormID(h.FormID))
			return nil
		}
		return &ParseError{Offset: offset, RecordType: h.Type, Err: err}
	}

	subs, err := subrecord.Scan(decoded.Data)
	if err != nil {
		return &ParseError{Offset: offset, RecordType: h.Type, Err: err}
	}
	r.res.Records = append(r.res.Records, Record{
		Header:     h,
		Offset:     offset,
		Data:       decoded.Data,
		Subrecords: subs,
		Compressed: decoded.Compressed,
	})
	return nil
}

// checkSpan closes groups that ended at or before offset and verifies the
// item [offset, end) fits inside every group still open.
func (r *reader) checkSpan(offset, end int64) error {
	for len(r.open) > 0 && r.open[len(r.open)-1].End() <= offset {
		r.open = r.open[:len(r.open)-1]
	}
	for len(r.open) > 0 {
		top := r.open[len(r.open)-1]
		if end <= top.End() {
			break
		}
		r.open = r.open[:len(r.open)-1]
		msg := fmt.Sprintf("item at offset %d ends at %d, past the end of group %s at %d", offset, end, groupName(top), top.End())
		if err := r.spanMismatch(top, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) closeAtEOF() error {
	eof := int64(r.cursor.Offset())
	for i := len(r.open) - 1; i >= 0; i-- {
		g := r.open[i]
		if g.End() > eof {
			msg := fmt.Sprintf("group %s still open at end of file: declared end %d, file ends at %d", groupName(g), g.End(), eof)
			if err := r.spanMismatch(g, msg); err != nil {
				return err
			}
		}
	}
	r.open = nil
	return nil
}

func (r *reader) spanMismatch(g Group, msg string) error {
	if r.opts.StrictGroupSpans {
		return &ParseError{Offset: g.Offset, RecordType: GroupTag, Err: fmt.Errorf("%w: %s", ErrGroupSpanMismatch, msg)}
	}
	r.res.Diagnostics = append(r.res.Diagnostics,
		diag.Warning(diag.CodeGroupSpanMismatch, r.opts.Plugin, msg).At(g.Offset, GroupTag))
	return nil
}

func (r *reader) truncated(offset int64, recordType string, want int, cause error) error {
	var overrun *binread.OverrunError
	available := r.cursor.Remaining()
	if errors.As(cause, &overrun) {
		available = overrun.Have
	}
	return &ParseError{
		Offset:     offset,
		RecordType: recordType,
		Err: &compression.TruncatedError{
			RecordInfo:   compression.RecordInfo{Type: recordType, Offset: offset},
			DeclaredSize: want,
			Available:    available,
		},
	}
}

func groupName(g Group) string {
	if g.Label != "" {
		return g.Label
	}
	return fmt.Sprintf("type %d/%08X", g.GroupType, g.LabelValue)
}

// fail records a fatal error and its diagnostic.
func (res *Result) fail(plugin string, err error) {
	res.Err = err
	d := diag.Error(codeFor(err), plugin, err.Error())
	var pe *ParseError
	if errors.As(err, &pe) {
		d = d.At(pe.Offset, pe.RecordType)
	}
	res.Diagnostics = append(res.Diagnostics, d)
}

func codeFor(err error) diag.Code {
	switch {
	case errors.Is(err, ErrInvalidFileHeader):
		return diag.CodeInvalidFileHeader
	case errors.Is(err, subrecord.ErrSubrecordOverrun):
		return diag.CodeSubrecordOverrun
	case errors.Is(err, ErrGroupSpanMismatch):
		return diag.CodeGroupSpanMismatch
	default:
		return diag.CodeTruncatedRecord
	}
}
