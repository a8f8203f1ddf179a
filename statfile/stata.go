package statfile

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/internal/stata"
	"github.com/colstat/statread/labelmap"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/rangereader"
	"github.com/colstat/statread/text"
)

// stataAdapter is the statfile rangeDecoder for Stata .dta (§4.4.2,
// §4.5.2). Stata files have no page structure and ParseMetadata/
// ParseValueLabels/ParseStrLPool all index their buffer as the whole
// file via Header.Map's absolute offsets, so the adapter reads the
// entire file into memory once at Open and every window decodes by
// slicing that resident buffer directly — no per-worker file handle is
// needed, unlike SAS.
type stataAdapter struct {
	data []byte

	h  *stata.Header
	md *stata.Metadata

	batch *plan.Batch
	dec   text.Decoder
	strls map[uint64]string

	threads   int
	chunkSize int
}

func openStata(path string, o *ScanOptions) (*stataAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stata: read file: %w", err)
	}

	h, err := stata.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("stata: parse header: %w", err)
	}

	md, err := stata.ParseMetadata(h, data)
	if err != nil {
		return nil, fmt.Errorf("stata: parse metadata: %w", err)
	}

	tables, err := stata.ParseValueLabels(h, data)
	if err != nil {
		return nil, fmt.Errorf("stata: parse value labels: %w", err)
	}
	cache := labelmap.NewCache(valueLabelSets(tables))

	var strls map[uint64]string
	if h.FormatVersion >= 117 {
		gso, err := stata.ParseStrLPool(h, data)
		if err != nil {
			return nil, fmt.Errorf("stata: parse strL pool: %w", err)
		}

		// Format 118+ natively stores UTF-8 strings (and strL text);
		// earlier formats (114, 115, 117) predate that convention, so
		// their strings and (for 117) strL payloads are decoded as
		// windows-1252, the common Stata default locale codepage of that
		// era.
		strlDec := text.UTF8
		if h.FormatVersion < 118 {
			strlDec = text.ForName("windows-1252")
		}

		strls = make(map[uint64]string, len(gso))
		for _, g := range gso {
			if g.Type == 130 {
				strls[g.Key()] = strlDec.Decode(g.Data)
			} else {
				strls[g.Key()] = ""
			}
		}
	}

	dec := text.UTF8
	if h.FormatVersion < 118 {
		dec = text.ForName("windows-1252")
	}

	columns := make([]plan.Column, len(md.Variables))
	for i, v := range md.Variables {
		col := plan.Column{
			Name:        v.Name,
			Offset:      v.Offset,
			Width:       v.Width,
			StorageKind: v.Kind,
			Temporal:    v.Temporal,
		}

		switch v.Kind {
		case format.KindInt8:
			col.Kind = frame.KindInt8
		case format.KindInt16:
			col.Kind = frame.KindInt16
		case format.KindInt32:
			if v.Temporal == format.TemporalDate {
				col.Kind = frame.KindDate
			} else {
				col.Kind = frame.KindInt32
			}
		case format.KindFloat32:
			col.Kind = frame.KindFloat32
		case format.KindFloat64:
			if v.Temporal == format.TemporalDateTime {
				col.Kind = frame.KindDateTime
			} else {
				col.Kind = frame.KindFloat64
			}
		case format.KindString, format.KindStrLRef:
			col.Kind = frame.KindString
			col.MissingStringAsNull = o.missingStringAsNull
		}

		if o.valueLabelsAsStrings && v.ValueLabelRef != "" && col.Temporal == format.TemporalNone {
			if m, ok := cache.Get(v.ValueLabelRef); ok {
				col.Labels = m.Acquire()
				col.Kind = frame.KindString
				col.ValueLabelsAsStrings = true
			}
		}

		columns[i] = col
	}

	return &stataAdapter{
		data:      data,
		h:         h,
		md:        md,
		batch:     plan.NewBatch(columns),
		dec:       dec,
		strls:     strls,
		threads:   rangereader.DefaultThreads(o.threads, runtime.NumCPU()),
		chunkSize: o.chunkSize,
	}, nil
}

// valueLabelSets converts the format's int32-keyed ValueLabelTable into
// labelmap.Set, registering each entry under both its integer key and
// its float64 bit-pattern key: a Stata value label always attaches to
// an integer value, but the column carrying it may be stored as any
// numeric width (Int8/16/32 or Float32/64), and appendLabeledFloat
// (internal/stata/batch.go) looks such a column up by exact bit
// pattern.
func valueLabelSets(tables []stata.ValueLabelTable) []labelmap.Set {
	sets := make([]labelmap.Set, len(tables))
	for i, t := range tables {
		entries := make([]labelmap.Entry, 0, len(t.Entries)*2)
		for k, label := range t.Entries {
			entries = append(entries, labelmap.Entry{Kind: labelmap.KeyInt32, IntKey: k, Label: label})
			entries = append(entries, labelmap.Entry{
				Kind: labelmap.KeyFloatBits, BitsKey: math.Float64bits(float64(k)), Label: label,
			})
		}
		sets[i] = labelmap.Set{Name: t.Name, Entries: entries}
	}

	return sets
}

func (a *stataAdapter) decodeRange(ctx context.Context, offset, limit int64) (*frame.Frame, error) {
	dataOffset := stata.DataOffset(a.h, stata.LegacyDataOffset(a.h))
	windows := rangereader.Partition(offset, limit, a.chunkSize)

	decode := func(ctx context.Context, w rangereader.Window) (*frame.Frame, error) {
		start := dataOffset + int(w.StartRow)*a.md.RowLength
		if start > len(a.data) {
			start = len(a.data)
		}

		rr, err := stata.NewRowReader(a.data[start:], a.md.RowLength, int64(w.NumRows))
		if err != nil {
			return nil, err
		}

		return stata.DecodeBatch(rr, a.h, a.batch, a.dec, a.strls, w.NumRows)
	}

	return rangereader.Run(ctx, windows, a.threads, decode)
}

func (a *stataAdapter) batchPlan() *plan.Batch { return a.batch }
func (a *stataAdapter) rowCount() int64        { return a.md.RowCount }
func (a *stataAdapter) compressed() bool       { return false }
func (a *stataAdapter) close() error           { return nil }

func (a *stataAdapter) metadataDoc() MetadataDoc {
	doc := MetadataDoc{
		Format:        "dta",
		FormatVersion: a.h.FormatVersion,
		BigEndian:     a.h.ByteOrder.String() == "BigEndian",
		RowCount:      a.md.RowCount,
		ColumnCount:   len(a.md.Variables),
		DataOffset:    int64(stata.DataOffset(a.h, stata.LegacyDataOffset(a.h))),
		DatasetLabel:  a.h.DatasetLabel,
		Encoding:      a.dec.Name(),
		Columns:       make([]ColumnDoc, len(a.md.Variables)),
	}

	for i, v := range a.md.Variables {
		doc.Columns[i] = ColumnDoc{
			Name:          v.Name,
			Label:         v.Label,
			Format:        v.Format,
			Kind:          a.batch.Columns[i].Kind.String(),
			Offset:        v.Offset,
			Width:         v.Width,
			Temporal:      temporalName(v.Temporal),
			ValueLabelSet: v.ValueLabelRef,
		}
	}

	return doc
}
