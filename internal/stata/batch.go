package stata

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/text"
)

// DecodeBatch pulls up to limit rows from r and decodes them into a
// frame.Frame under batch's compiled column plans. strls resolves a
// strL reference's combined key (StrLKey) to its decoded text; nil or a
// missing key yields an empty string.
func DecodeBatch(r *RowReader, h *Header, batch *plan.Batch, dec text.Decoder, strls map[uint64]string, limit int) (*frame.Frame, error) {
	order := h.ByteOrder
	builders := newBuilders(batch, limit)

	rowsRead := 0
	for rowsRead < limit {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stata: decode batch: %w", err)
		}

		for i := range batch.Columns {
			col := &batch.Columns[i]
			cell := row[col.Offset : col.Offset+col.Width]

			if err := decodeCell(col, cell, h.FormatVersion, order, dec, strls, builders[i]); err != nil {
				return nil, fmt.Errorf("stata: decode batch: column %q: %w", col.Name, err)
			}
		}

		rowsRead++
	}

	cols := make([]frame.Column, len(builders))
	for i, b := range builders {
		cols[i] = b.Finalize()
	}

	return &frame.Frame{Schema: batch.Schema(), Columns: cols}, nil
}

func newBuilders(batch *plan.Batch, capacity int) []frame.Builder {
	out := make([]frame.Builder, len(batch.Columns))
	for i, col := range batch.Columns {
		switch col.Kind {
		case frame.KindInt8:
			out[i] = frame.NewInt8Builder(capacity)
		case frame.KindInt16:
			out[i] = frame.NewInt16Builder(capacity)
		case frame.KindInt32:
			out[i] = frame.NewInt32Builder(capacity)
		case frame.KindFloat32:
			out[i] = frame.NewFloat32Builder(capacity)
		case frame.KindFloat64:
			out[i] = frame.NewFloat64Builder(capacity)
		case frame.KindDate:
			out[i] = frame.NewDateBuilder(capacity)
		case frame.KindDateTime:
			out[i] = frame.NewDateTimeBuilder(capacity)
		case frame.KindString:
			out[i] = frame.NewStringBuilder(capacity)
		default:
			out[i] = frame.NewStringBuilder(capacity)
		}
	}

	return out
}

func decodeCell(col *plan.Column, cell []byte, formatVersion int, order binary.ByteOrder, dec text.Decoder, strls map[uint64]string, builder frame.Builder) error {
	switch col.StorageKind {
	case format.KindInt8:
		v, isNull := DecodeInt8(int8(cell[0]))
		if isNull {
			builder.AppendNull()
			return nil
		}
		if col.Kind == frame.KindString && col.Labels != nil {
			return appendLabeledInt(col, builder, v)
		}
		appendInt(col, builder, v)

	case format.KindInt16:
		v, isNull := DecodeInt16(int16(order.Uint16(cell)))
		if isNull {
			builder.AppendNull()
			return nil
		}
		if col.Kind == frame.KindString && col.Labels != nil {
			return appendLabeledInt(col, builder, v)
		}
		appendInt(col, builder, v)

	case format.KindInt32:
		raw := int32(order.Uint32(cell))
		v, isNull := DecodeInt32(raw)
		if isNull {
			builder.AppendNull()
			return nil
		}
		if col.Temporal == format.TemporalDate {
			if b, ok := builder.(*frame.DateBuilder); ok {
				b.AppendValue(ConvertDate(raw))
			}
			return nil
		}
		if col.Kind == frame.KindString && col.Labels != nil {
			return appendLabeledInt(col, builder, v)
		}
		appendInt(col, builder, v)

	case format.KindFloat32:
		bits := order.Uint32(cell)
		v, isNull := DecodeFloat32(bits)
		if isNull {
			builder.AppendNull()
			return nil
		}
		if col.Kind == frame.KindString && col.Labels != nil {
			return appendLabeledFloat(col, builder, v)
		}
		if b, ok := builder.(*frame.Float32Builder); ok {
			b.AppendValue(float32(v))
		}

	case format.KindFloat64:
		bits := order.Uint64(cell)
		v, isNull := DecodeFloat64(bits)
		if isNull {
			builder.AppendNull()
			return nil
		}
		if col.Temporal == format.TemporalDateTime {
			if b, ok := builder.(*frame.DateTimeBuilder); ok {
				b.AppendValue(ConvertDateTime(v))
			}
			return nil
		}
		if col.Kind == frame.KindString && col.Labels != nil {
			return appendLabeledFloat(col, builder, v)
		}
		if b, ok := builder.(*frame.Float64Builder); ok {
			b.AppendValue(v)
		}

	case format.KindStrLRef:
		key := StrLKey(decodeStrLRef(cell, formatVersion, order))

		value := ""
		if strls != nil {
			value = strls[key]
		}
		if b, ok := builder.(*frame.StringBuilder); ok {
			b.AppendValue(value)
		}

	case format.KindString:
		value := DecodeFixedString(cell, dec)
		if value == "" && col.MissingStringAsNull {
			builder.AppendNull()
			return nil
		}
		if b, ok := builder.(*frame.StringBuilder); ok {
			b.AppendValue(value)
		}

	default:
		return &errs.ParseError{Msg: "stata: decodeCell: unsupported storage kind"}
	}

	return nil
}

// decodeStrLRef splits an in-row strL reference into its v/o pair. Format
// 118+ packs the reference as 2 bytes v followed by 6 bytes o; format 117
// uses two full 4-byte integers (_examples/original_source/src/stata/data.rs
// decode_strl_ref).
func decodeStrLRef(cell []byte, formatVersion int, order binary.ByteOrder) (v, o uint64) {
	if formatVersion < 118 {
		return uint64(order.Uint32(cell[:4])), uint64(order.Uint32(cell[4:8]))
	}

	v = uint64(order.Uint16(cell[:2]))

	var buf8 [8]byte
	if order == binary.BigEndian {
		copy(buf8[2:], cell[2:8])
	} else {
		copy(buf8[:6], cell[2:8])
	}
	o = order.Uint64(buf8[:])

	return v, o
}

// appendLabeledInt substitutes a numeric Int8/16/32 column's value-label
// text for its raw value, when the column was compiled with Kind ==
// frame.KindString because it carries an attached label set and
// ValueLabelsAsStrings is set (§6 "value_labels_as_strings"). An
// unlabeled value falls back to its decimal text.
func appendLabeledInt(col *plan.Column, builder frame.Builder, v int64) error {
	b, ok := builder.(*frame.StringBuilder)
	if !ok {
		return nil
	}
	if label, ok := col.Labels.LookupInt(int32(v)); ok {
		b.AppendValue(label)
	} else {
		b.AppendValue(strconv.FormatInt(v, 10))
	}

	return nil
}

// appendLabeledFloat is appendLabeledInt for Float32/Float64 columns,
// looking the label up by exact bit pattern.
func appendLabeledFloat(col *plan.Column, builder frame.Builder, v float64) error {
	b, ok := builder.(*frame.StringBuilder)
	if !ok {
		return nil
	}
	if label, ok := col.Labels.LookupFloat(v); ok {
		b.AppendValue(label)
	} else {
		b.AppendValue(strconv.FormatFloat(v, 'g', -1, 64))
	}

	return nil
}

func appendInt(col *plan.Column, builder frame.Builder, v int64) {
	switch col.Kind {
	case frame.KindInt8:
		if b, ok := builder.(*frame.Int8Builder); ok {
			b.AppendValue(int8(v))
		}
	case frame.KindInt16:
		if b, ok := builder.(*frame.Int16Builder); ok {
			b.AppendValue(int16(v))
		}
	case frame.KindInt32:
		if b, ok := builder.(*frame.Int32Builder); ok {
			b.AppendValue(int32(v))
		}
	case frame.KindFloat64:
		if b, ok := builder.(*frame.Float64Builder); ok {
			b.AppendValue(float64(v))
		}
	}
}
