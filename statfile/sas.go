package statfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/internal/sas"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/rangereader"
	"github.com/colstat/statread/text"
)

// sasAdapter is the statfile rangeDecoder for SAS7BDAT (§4.4.1, §4.5.1).
// Unlike Stata/SPSS it keeps no resident copy of the file: every call to
// decodeRange opens its own *os.File per §5 ("each opens its own OS
// file handle"), essential for the multi-gigabyte files this format
// targets.
type sasAdapter struct {
	path string

	h  *sas.Header
	md *sas.Metadata

	batch *plan.Batch
	dec   text.Decoder

	threads   int
	chunkSize int
}

func openSAS(path string, o *ScanOptions) (*sasAdapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sas: open: %w", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("sas: read header: %w", err)
	}
	head = head[:n]

	h, err := sas.ParseHeader(head)
	if err != nil {
		return nil, fmt.Errorf("sas: parse header: %w", err)
	}

	md, err := sas.ParseMetadata(h, sasPageReader(f, h))
	if err != nil {
		return nil, fmt.Errorf("sas: parse metadata: %w", err)
	}

	dec := text.ForSASCodepage(h.Encoding)

	columns := make([]plan.Column, len(md.Variables))
	for i, v := range md.Variables {
		col := plan.Column{
			Name:                v.Name,
			Offset:              v.Offset,
			Width:               v.Width,
			StorageKind:         v.Kind,
			Temporal:            v.Temporal,
			MissingStringAsNull: o.missingStringAsNull,
		}

		switch v.Kind {
		case format.KindString:
			col.Kind = frame.KindString
		default:
			switch v.Temporal {
			case format.TemporalDate:
				col.Kind = frame.KindDate
			case format.TemporalDateTime:
				col.Kind = frame.KindDateTime
			case format.TemporalTime:
				col.Kind = frame.KindTime
			default:
				col.Kind = frame.KindFloat64
			}
		}

		columns[i] = col
	}

	return &sasAdapter{
		path:      path,
		h:         h,
		md:        md,
		batch:     plan.NewBatch(columns),
		dec:       dec,
		threads:   rangereader.DefaultThreads(o.threads, runtime.NumCPU()),
		chunkSize: o.chunkSize,
	}, nil
}

// sasPageReader builds a sas.PageReaderFunc backed by f, fetching the
// page at the given index at its fixed byte offset past the header.
func sasPageReader(f *os.File, h *sas.Header) sas.PageReaderFunc {
	return func(index int) ([]byte, error) {
		buf := make([]byte, h.PageLength)
		off := int64(h.HeaderLength) + int64(index)*int64(h.PageLength)
		if _, err := f.ReadAt(buf, off); err != nil {
			return nil, fmt.Errorf("sas: read page %d: %w", index, err)
		}

		return buf, nil
	}
}

func (a *sasAdapter) decodeRange(ctx context.Context, offset, limit int64) (*frame.Frame, error) {
	windows := rangereader.Partition(offset, limit, a.chunkSize)

	decode := func(ctx context.Context, w rangereader.Window) (*frame.Frame, error) {
		f, err := os.Open(a.path)
		if err != nil {
			return nil, fmt.Errorf("sas: open: %w", err)
		}
		defer f.Close()

		rs, err := sas.NewRowSourceAt(a.h, a.md, sasPageReader(f, a.h), w.StartRow)
		if err != nil {
			return nil, err
		}

		return sas.DecodeBatch(rs, a.h, a.batch, a.dec, w.NumRows)
	}

	return rangereader.Run(ctx, windows, a.threads, decode)
}

func (a *sasAdapter) batchPlan() *plan.Batch { return a.batch }
func (a *sasAdapter) rowCount() int64        { return a.md.RowCount }
func (a *sasAdapter) compressed() bool       { return a.md.Compression != format.SASCompressionNone }
func (a *sasAdapter) close() error           { return nil }

func (a *sasAdapter) metadataDoc() MetadataDoc {
	doc := MetadataDoc{
		Format:      "sas7bdat",
		BigEndian:   !a.h.LittleEndian,
		RowCount:    a.md.RowCount,
		ColumnCount: len(a.md.Variables),
		DataOffset:  int64(a.md.DataOffset),
		Encoding:    a.dec.Name(),
		Columns:     make([]ColumnDoc, len(a.md.Variables)),
	}

	for i, v := range a.md.Variables {
		doc.Columns[i] = ColumnDoc{
			Name:     v.Name,
			Label:    v.Label,
			Format:   v.Format,
			Kind:     a.batch.Columns[i].Kind.String(),
			Offset:   v.Offset,
			Width:    v.Width,
			Temporal: temporalName(v.Temporal),
		}
	}

	return doc
}

func temporalName(t format.TemporalClass) string {
	switch t {
	case format.TemporalDate:
		return "date"
	case format.TemporalDateTime:
		return "datetime"
	case format.TemporalTime:
		return "time"
	default:
		return ""
	}
}
