package sas

import (
	"fmt"
	"io"

	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/text"
)

// DecodeBatch pulls up to limit rows from rs and decodes them into a
// frame.Frame under batch's compiled column plans. It returns fewer than
// limit rows (never an error) when rs is exhausted first.
func DecodeBatch(rs *RowSource, h *Header, batch *plan.Batch, dec text.Decoder, limit int) (*frame.Frame, error) {
	builders := newBuilders(batch, limit)

	rowsRead := 0
	for rowsRead < limit {
		row, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sas: decode batch: %w", err)
		}

		for i := range batch.Columns {
			col := &batch.Columns[i]
			cell := row[col.Offset : col.Offset+col.Width]

			if err := decodeCell(col, cell, h, dec, builders[i]); err != nil {
				return nil, fmt.Errorf("sas: decode batch: column %q: %w", col.Name, err)
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
		case frame.KindFloat64:
			out[i] = frame.NewFloat64Builder(capacity)
		case frame.KindDate:
			out[i] = frame.NewDateBuilder(capacity)
		case frame.KindDateTime:
			out[i] = frame.NewDateTimeBuilder(capacity)
		case frame.KindTime:
			out[i] = frame.NewTimeBuilder(capacity)
		case frame.KindString:
			out[i] = frame.NewStringBuilder(capacity)
		default:
			out[i] = frame.NewFloat64Builder(capacity)
		}
	}

	return out
}

func decodeCell(col *plan.Column, cell []byte, h *Header, dec text.Decoder, builder frame.Builder) error {
	if col.Kind == frame.KindString {
		value, isNull := DecodeCharacter(cell, dec, col.MissingStringAsNull)
		if isNull {
			builder.AppendNull()
		} else if b, ok := builder.(*frame.StringBuilder); ok {
			b.AppendValue(value)
		}

		return nil
	}

	numeric, err := DecodeNumeric(cell, h.Engine)
	if err != nil {
		return err
	}
	if numeric.Missing {
		builder.AppendNull()

		return nil
	}

	switch col.Kind {
	case frame.KindDate:
		if b, ok := builder.(*frame.DateBuilder); ok {
			b.AppendValue(ConvertDate(numeric.Value))
		}
	case frame.KindDateTime:
		if b, ok := builder.(*frame.DateTimeBuilder); ok {
			b.AppendValue(ConvertDateTime(numeric.Value))
		}
	case frame.KindTime:
		if b, ok := builder.(*frame.TimeBuilder); ok {
			b.AppendValue(ConvertTime(numeric.Value))
		}
	default:
		if b, ok := builder.(*frame.Float64Builder); ok {
			b.AppendValue(numeric.Value)
		}
	}

	return nil
}
