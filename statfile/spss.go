package statfile

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/internal/spss"
	"github.com/colstat/statread/labelmap"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/rangereader"
)

// spssAdapter is the statfile rangeDecoder for SPSS .sav/.zsav (§4.4.3,
// §4.5.3). Like Stata, the whole file is read into memory once at Open
// (ParseMetadata and, for ZSAV, the block trailer both index absolute
// file offsets). Uncompressed files decode via the same windowed/
// parallel path as SAS/Stata; compressed files (byte-run or ZSAV) are
// an inherently sequential byte stream, so decodeRange instead walks a
// persistent RowSource cursor under a mutex, matching §5's "SPSS
// downgrades to sequential when compressed".
type spssAdapter struct {
	data []byte

	h    *spss.Header
	md   *spss.Metadata
	vars []*spss.Variable
	zt   *spss.ZTrailer

	batch *plan.Batch

	threads   int
	chunkSize int

	compression format.SPSSCompression

	mu     sync.Mutex
	seqRS  *spss.RowSource
	seqPos int64
}

func openSPSS(path string, o *ScanOptions) (*spssAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spss: read file: %w", err)
	}

	h, err := spss.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("spss: parse header: %w", err)
	}

	md, err := spss.ParseMetadata(h, data)
	if err != nil {
		return nil, fmt.Errorf("spss: parse metadata: %w", err)
	}

	compression := format.SPSSCompression(h.Compression)

	var zt *spss.ZTrailer
	if compression == format.SPSSCompressionZSAV {
		if md.DataOffset+24 > len(data) {
			return nil, fmt.Errorf("spss: zsav: header truncated")
		}
		zhdr, err := spss.ParseZHeader(h.Engine, data[md.DataOffset:md.DataOffset+24])
		if err != nil {
			return nil, fmt.Errorf("spss: zsav: parse zheader: %w", err)
		}
		if zhdr.TrailerOffset < 0 || zhdr.TrailerOffset+zhdr.TrailerLength > int64(len(data)) {
			return nil, fmt.Errorf("spss: zsav: trailer out of bounds")
		}
		zt, err = spss.ParseZTrailer(h.Engine, data[zhdr.TrailerOffset:zhdr.TrailerOffset+zhdr.TrailerLength])
		if err != nil {
			return nil, fmt.Errorf("spss: zsav: parse ztrailer: %w", err)
		}
	}

	sets := make([]labelmap.Set, 0, len(md.ValueLabels))
	for _, s := range md.ValueLabels {
		sets = append(sets, *s)
	}
	cache := labelmap.NewCache(sets)

	columns := make([]plan.Column, len(md.Variables))
	vars := make([]*spss.Variable, len(md.Variables))
	for i := range md.Variables {
		v := &md.Variables[i]
		vars[i] = v

		col := plan.Column{
			Name:                v.Name,
			Offset:              v.Offset,
			Width:               v.Width,
			StorageKind:         v.Kind,
			Temporal:            v.Temporal,
			MissingStringAsNull: o.missingStringAsNull,
			UserMissingAsNull:   o.userMissingAsNull,
			HasDeclaredMissing:  v.HasDeclaredMissing(),
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

		if o.valueLabelsAsStrings && v.ValueLabelRef != "" && col.Kind == frame.KindFloat64 {
			if m, ok := cache.Get(v.ValueLabelRef); ok {
				col.Labels = m.Acquire()
				col.Kind = frame.KindString
				col.ValueLabelsAsStrings = true
			}
		}

		columns[i] = col
	}

	threads := rangereader.DefaultThreads(o.threads, runtime.NumCPU())
	if rangereader.UseSequentialSPSS(compression != format.SPSSCompressionNone) {
		threads = 1
	}

	return &spssAdapter{
		data:        data,
		h:           h,
		md:          md,
		vars:        vars,
		zt:          zt,
		batch:       plan.NewBatch(columns),
		threads:     threads,
		chunkSize:   o.chunkSize,
		compression: compression,
	}, nil
}

func (a *spssAdapter) decodeRange(ctx context.Context, offset, limit int64) (*frame.Frame, error) {
	if a.compression == format.SPSSCompressionNone {
		return a.decodeRangeParallel(ctx, offset, limit)
	}

	return a.decodeRangeSequential(offset, limit)
}

func (a *spssAdapter) decodeRangeParallel(ctx context.Context, offset, limit int64) (*frame.Frame, error) {
	windows := rangereader.Partition(offset, limit, a.chunkSize)

	decode := func(ctx context.Context, w rangereader.Window) (*frame.Frame, error) {
		start := a.md.DataOffset + int(w.StartRow)*a.md.RowLength
		end := start + w.NumRows*a.md.RowLength
		if start > len(a.data) {
			start = len(a.data)
		}
		if end > len(a.data) {
			end = len(a.data)
		}

		br := bytes.NewReader(a.data[start:end])
		rs := spss.NewRowSource(a.h, a.md, br, nil, nil)

		return spss.DecodeBatch(rs, a.h, a.batch, a.vars, a.md.Encoding, w.NumRows)
	}

	return rangereader.Run(ctx, windows, a.threads, decode)
}

// decodeRangeSequential services a compressed file via a single
// persistent RowSource cursor, reused across successive calls and
// rebuilt only on a backward seek, so a forward-streaming caller never
// pays to redecode bytes it already walked past.
func (a *spssAdapter) decodeRangeSequential(offset, limit int64) (*frame.Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seqRS == nil || offset < a.seqPos {
		var r *bytes.Reader
		var raw *bytes.Reader
		if a.compression == format.SPSSCompressionZSAV {
			raw = bytes.NewReader(a.data)
		} else {
			r = bytes.NewReader(a.data[a.md.DataOffset:])
		}

		a.seqRS = spss.NewRowSource(a.h, a.md, r, raw, a.zt)
		a.seqPos = 0
	}

	for a.seqPos < offset {
		if _, err := a.seqRS.Next(); err != nil {
			return nil, err
		}
		a.seqPos++
	}

	f, err := spss.DecodeBatch(a.seqRS, a.h, a.batch, a.vars, a.md.Encoding, int(limit))
	if err != nil {
		return nil, err
	}
	a.seqPos += int64(f.Height())

	return f, nil
}

func (a *spssAdapter) batchPlan() *plan.Batch { return a.batch }
func (a *spssAdapter) rowCount() int64        { return a.md.RowCount }
func (a *spssAdapter) compressed() bool       { return a.compression != format.SPSSCompressionNone }
func (a *spssAdapter) close() error           { return nil }

func (a *spssAdapter) metadataDoc() MetadataDoc {
	doc := MetadataDoc{
		Format:       zsavOrSav(a.compression),
		BigEndian:    a.h.Engine.String() == "BigEndian",
		RowCount:     a.md.RowCount,
		ColumnCount:  len(a.md.Variables),
		DataOffset:   int64(a.md.DataOffset),
		DatasetLabel: a.h.FileLabel,
		Encoding:     a.md.Encoding.Name(),
		Columns:      make([]ColumnDoc, len(a.md.Variables)),
	}

	for i, v := range a.md.Variables {
		doc.Columns[i] = ColumnDoc{
			Name:               v.Name,
			Label:              v.Label,
			Kind:               a.batch.Columns[i].Kind.String(),
			Offset:             v.Offset,
			Width:              v.Width,
			Temporal:           temporalName(v.Temporal),
			ValueLabelSet:      v.ValueLabelRef,
			HasDeclaredMissing: v.HasDeclaredMissing(),
			MissingDoubles:     v.MissingDoubles,
			MissingStrings:     v.MissingStrings,
			MissingRange:       v.MissingRange,
		}
	}

	for name, set := range a.md.ValueLabels {
		doc.ValueLabelSets = append(doc.ValueLabelSets, ValueLabelSetDoc{
			Name:    name,
			Entries: entriesAsStrings(set.Entries),
		})
	}

	return doc
}

func zsavOrSav(c format.SPSSCompression) string {
	if c == format.SPSSCompressionZSAV {
		return "zsav"
	}

	return "sav"
}

func entriesAsStrings(entries []labelmap.Entry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case labelmap.KeyInt32:
			m[fmt.Sprintf("%d", e.IntKey)] = e.Label
		case labelmap.KeyFloatBits:
			m[fmt.Sprintf("%g", math.Float64frombits(e.BitsKey))] = e.Label
		case labelmap.KeyString:
			m[e.StrKey] = e.Label
		}
	}

	return m
}
