package statfile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/plan"
)

// rangeDecoder is the per-format adapter interface Reader dispatches
// through; sas.go/stata.go/spss.go each implement one over their own
// internal/* package.
type rangeDecoder interface {
	// decodeRange decodes exactly [offset, offset+limit) — both already
	// clamped to the file's row count by Reader.ReadRange — into a
	// single stitched frame (§4.6).
	decodeRange(ctx context.Context, offset, limit int64) (*frame.Frame, error)
	batchPlan() *plan.Batch
	rowCount() int64
	metadataDoc() MetadataDoc
	compressed() bool
	close() error
}

// Reader is the open handle returned by Open (§6 "Accepted inputs").
// A Reader's Metadata and compiled column plan are read at Open time;
// no row bytes are touched until ReadRange or Iterator pulls a batch.
type Reader struct {
	format Format
	dec    rangeDecoder
	schema *frame.Schema
}

// Open detects (or accepts an explicit, via WithFormat) the file's
// format, parses its header and metadata, and compiles its column plan
// (§4.4, §4.5.4). A parse cannot half-succeed (§7): any metadata error
// fails Open before any row is decoded.
func Open(path string, opts ...Option) (*Reader, error) {
	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	f := o.format
	if !o.formatSet {
		f, err = DetectFormat(path)
		if err != nil {
			return nil, err
		}
	}

	var dec rangeDecoder
	switch f {
	case FormatSAS:
		dec, err = openSAS(path, o)
	case FormatStata:
		dec, err = openStata(path, o)
	case FormatSPSS:
		dec, err = openSPSS(path, o)
	default:
		return nil, fmt.Errorf("statfile: open: %w: %q", errs.ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("statfile: open %q: %w", path, err)
	}

	return &Reader{format: f, dec: dec, schema: dec.batchPlan().Schema()}, nil
}

// Format reports which family the open file belongs to.
func (r *Reader) Format() Format { return r.format }

// Schema returns the frame.Schema a ReadRange/Iterator call always
// produces (§8 "schema parity": derivable from metadata alone).
func (r *Reader) Schema() *frame.Schema { return r.schema }

// ColumnNames returns the schema's field names in declaration order.
func (r *Reader) ColumnNames() []string {
	names := make([]string, r.schema.Len())
	for i := range names {
		names[i] = r.schema.Field(i).Name
	}

	return names
}

// RowCount reports the file's declared row count.
func (r *Reader) RowCount() int64 { return r.dec.rowCount() }

// MetadataJSON renders the file's metadata as the §6 JSON document.
func (r *Reader) MetadataJSON() ([]byte, error) {
	doc, err := json.MarshalIndent(r.dec.metadataDoc(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("statfile: metadata json: %w", err)
	}

	return doc, nil
}

// ReadRange decodes [offset, offset+limit) via the §4.6 parallel range
// reader, clamping to the file's actual row count first: an offset at
// or past end-of-file, or a non-positive limit, yields a zero-row frame
// with the schema still populated (§8 "offset at EOF / limit=0 ->
// zero-row frame, schema preserved") rather than reaching into the
// format decoder at all.
func (r *Reader) ReadRange(ctx context.Context, offset, limit int64) (*frame.Frame, error) {
	if offset < 0 {
		offset = 0
	}

	total := r.dec.rowCount()
	if offset >= total || limit <= 0 {
		return emptyFrame(r.schema), nil
	}
	if offset+limit > total {
		limit = total - offset
	}

	f, err := r.dec.decodeRange(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("statfile: read range [%d,%d): %w", offset, offset+limit, err)
	}
	if f == nil {
		return emptyFrame(r.schema), nil
	}

	return f, nil
}

// Close calls the format adapter's close. No adapter holds an OS file
// handle between calls and every adapter's close returns nil; the
// Stata/SPSS resident file buffer stays referenced by the adapter.
func (r *Reader) Close() error { return r.dec.close() }

// emptyFrame builds a zero-row frame whose columns are sized per the
// schema's declared kinds, used by ReadRange's EOF/limit<=0 boundary
// case and by an adapter whose range genuinely produced no windows.
func emptyFrame(schema *frame.Schema) *frame.Frame {
	cols := make([]frame.Column, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		cols[i] = emptyBuilder(schema.Field(i).Kind).Finalize()
	}

	return &frame.Frame{Schema: schema, Columns: cols}
}

func emptyBuilder(k frame.Kind) frame.Builder {
	switch k {
	case frame.KindInt8:
		return frame.NewInt8Builder(0)
	case frame.KindInt16:
		return frame.NewInt16Builder(0)
	case frame.KindInt32:
		return frame.NewInt32Builder(0)
	case frame.KindInt64:
		return frame.NewInt64Builder(0)
	case frame.KindFloat32:
		return frame.NewFloat32Builder(0)
	case frame.KindFloat64:
		return frame.NewFloat64Builder(0)
	case frame.KindDate:
		return frame.NewDateBuilder(0)
	case frame.KindDateTime:
		return frame.NewDateTimeBuilder(0)
	case frame.KindTime:
		return frame.NewTimeBuilder(0)
	default:
		return frame.NewStringBuilder(0)
	}
}
