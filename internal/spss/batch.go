package spss

import (
	"fmt"
	"io"
	"strconv"

	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/plan"
	"github.com/colstat/statread/text"
)

// DecodeBatch pulls up to limit rows from rs and decodes them into a
// frame.Frame under batch's compiled column plans. vars supplies each
// column's Variable descriptor (declared missing values/range, by
// index matching batch.Columns); a column's plan.Column.Labels, if set,
// resolves a user-missing bit pattern to its indicator label.
func DecodeBatch(rs *RowSource, h *Header, batch *plan.Batch, vars []*Variable, dec text.Decoder, limit int) (*frame.Frame, error) {
	builders := newBuilders(batch, limit)

	rowsRead := 0
	for rowsRead < limit {
		row, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spss: decode batch: %w", err)
		}

		for i := range batch.Columns {
			col := &batch.Columns[i]
			cell := row[col.Offset : col.Offset+col.Width]

			if err := decodeCell(col, vars[i], cell, h, dec, builders[i]); err != nil {
				return nil, fmt.Errorf("spss: decode batch: column %q: %w", col.Name, err)
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

func decodeCell(col *plan.Column, v *Variable, cell []byte, h *Header, dec text.Decoder, builder frame.Builder) error {
	switch col.StorageKind {
	case format.KindString:
		value, isMissing := DecodeString(cell, dec, v)
		if (isMissing || value == "") && col.MissingStringAsNull {
			builder.AppendNull()

			return nil
		}
		if b, ok := builder.(*frame.StringBuilder); ok {
			b.AppendValue(value)
		}

		return nil

	case format.KindFloat64:
		var labelFor func(bits uint64) (string, bool)
		if col.Labels != nil {
			labelFor = col.Labels.LookupBits
		}

		numeric, err := DecodeNumeric(cell, h.Engine, v, labelFor)
		if err != nil {
			return err
		}
		if numeric.SystemMissing || (numeric.UserMissing && col.UserMissingAsNull) {
			builder.AppendNull()

			return nil
		}

		if col.Kind == frame.KindString && col.Labels != nil {
			b, ok := builder.(*frame.StringBuilder)
			if !ok {
				return nil
			}
			if label, ok := col.Labels.LookupFloat(numeric.Value); ok {
				b.AppendValue(label)
			} else {
				b.AppendValue(strconv.FormatFloat(numeric.Value, 'g', -1, 64))
			}

			return nil
		}

		switch col.Temporal {
		case format.TemporalDate:
			if b, ok := builder.(*frame.DateBuilder); ok {
				b.AppendValue(ConvertDate(numeric.Value))
			}
		case format.TemporalDateTime:
			if b, ok := builder.(*frame.DateTimeBuilder); ok {
				b.AppendValue(ConvertDateTime(numeric.Value))
			}
		case format.TemporalTime:
			if b, ok := builder.(*frame.TimeBuilder); ok {
				b.AppendValue(ConvertTime(numeric.Value))
			}
		default:
			if b, ok := builder.(*frame.Float64Builder); ok {
				b.AppendValue(numeric.Value)
			}
		}

		return nil

	default:
		return &errs.ParseError{Msg: "spss: decodeCell: unsupported storage kind"}
	}
}
