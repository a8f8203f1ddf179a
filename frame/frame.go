package frame

import "fmt"

// Frame is a finalized batch: a Schema plus one Column per field, every
// column holding the same row count.
type Frame struct {
	Schema  *Schema
	Columns []Column
}

// Height returns the frame's row count (0 for a frame with no columns).
func (f *Frame) Height() int {
	if len(f.Columns) == 0 {
		return 0
	}

	return f.Columns[0].Len()
}

// Width returns the frame's column count.
func (f *Frame) Width() int {
	return len(f.Columns)
}

// Concat appends other's rows after the receiver's, in place, preserving
// row order (§6: "a Frame.concat(other) ... that preserves row order").
// Both frames must share an equal schema.
func (f *Frame) Concat(other *Frame) error {
	if !f.Schema.Equal(other.Schema) {
		return fmt.Errorf("frame: concat: schema mismatch")
	}

	for i := range f.Columns {
		if err := concatColumn(&f.Columns[i], &other.Columns[i]); err != nil {
			return fmt.Errorf("frame: concat: column %q: %w", f.Schema.Field(i).Name, err)
		}
	}

	return nil
}

func concatColumn(dst, src *Column) error {
	if dst.Kind != src.Kind {
		return fmt.Errorf("kind mismatch: %s vs %s", dst.Kind, src.Kind)
	}

	dst.Null = append(dst.Null, src.Null...)

	switch dst.Kind {
	case KindInt8:
		dst.Int8 = append(dst.Int8, src.Int8...)
	case KindInt16:
		dst.Int16 = append(dst.Int16, src.Int16...)
	case KindInt32:
		dst.Int32 = append(dst.Int32, src.Int32...)
	case KindInt64:
		dst.Int64 = append(dst.Int64, src.Int64...)
	case KindFloat32:
		dst.Float32 = append(dst.Float32, src.Float32...)
	case KindFloat64:
		dst.Float64 = append(dst.Float64, src.Float64...)
	case KindDate:
		dst.Date = append(dst.Date, src.Date...)
	case KindDateTime:
		dst.DateTime = append(dst.DateTime, src.DateTime...)
	case KindTime:
		dst.Time = append(dst.Time, src.Time...)
	case KindString:
		dst.String = append(dst.String, src.String...)
	}

	return nil
}

// Slice returns the half-open row range [start,end) as a new Frame
// sharing the receiver's schema; used to implement offset/limit
// equivalence checks (§8) without re-decoding.
func (f *Frame) Slice(start, end int) *Frame {
	out := &Frame{Schema: f.Schema, Columns: make([]Column, len(f.Columns))}
	for i, c := range f.Columns {
		out.Columns[i] = sliceColumn(c, start, end)
	}

	return out
}

func sliceColumn(c Column, start, end int) Column {
	out := Column{Kind: c.Kind, Null: append([]bool(nil), c.Null[start:end]...)}

	switch c.Kind {
	case KindInt8:
		out.Int8 = append([]int8(nil), c.Int8[start:end]...)
	case KindInt16:
		out.Int16 = append([]int16(nil), c.Int16[start:end]...)
	case KindInt32:
		out.Int32 = append([]int32(nil), c.Int32[start:end]...)
	case KindInt64:
		out.Int64 = append([]int64(nil), c.Int64[start:end]...)
	case KindFloat32:
		out.Float32 = append([]float32(nil), c.Float32[start:end]...)
	case KindFloat64:
		out.Float64 = append([]float64(nil), c.Float64[start:end]...)
	case KindDate:
		out.Date = append([]int32(nil), c.Date[start:end]...)
	case KindDateTime:
		out.DateTime = append([]int64(nil), c.DateTime[start:end]...)
	case KindTime:
		out.Time = append([]int64(nil), c.Time[start:end]...)
	case KindString:
		out.String = append([]string(nil), c.String[start:end]...)
	}

	return out
}
