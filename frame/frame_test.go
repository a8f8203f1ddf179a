package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSimpleFrame(values []float64, nulls []bool) *Frame {
	schema := NewSchema(1)
	schema.Add("x", KindFloat64)

	b := NewFloat64Builder(len(values))
	for i, v := range values {
		if nulls[i] {
			b.AppendNull()
		} else {
			b.AppendValue(v)
		}
	}

	return &Frame{Schema: schema, Columns: []Column{b.Finalize()}}
}

func TestBuilderAppendValueAndNull(t *testing.T) {
	f := buildSimpleFrame([]float64{1, 2, 3}, []bool{false, true, false})
	require.Equal(t, 3, f.Height())
	require.Equal(t, 1, f.Width())
	require.False(t, f.Columns[0].IsNull(0))
	require.True(t, f.Columns[0].IsNull(1))
	require.Equal(t, []float64{1, 0, 3}, f.Columns[0].Float64)
}

func TestFrameConcatPreservesOrder(t *testing.T) {
	a := buildSimpleFrame([]float64{1, 2}, []bool{false, false})
	b := buildSimpleFrame([]float64{3, 4}, []bool{false, false})

	require.NoError(t, a.Concat(b))
	require.Equal(t, 4, a.Height())
	require.Equal(t, []float64{1, 2, 3, 4}, a.Columns[0].Float64)
}

func TestFrameConcatRejectsSchemaMismatch(t *testing.T) {
	a := buildSimpleFrame([]float64{1}, []bool{false})

	schema := NewSchema(1)
	schema.Add("y", KindFloat64)
	b := &Frame{Schema: schema, Columns: []Column{NewFloat64Builder(1).Finalize()}}

	err := a.Concat(b)
	require.Error(t, err)
}

func TestFrameSliceMatchesStreamSubrange(t *testing.T) {
	full := buildSimpleFrame([]float64{1, 2, 3, 4, 5}, []bool{false, false, false, false, false})
	sub := full.Slice(1, 3)
	require.Equal(t, []float64{2, 3}, sub.Columns[0].Float64)
}

func TestSchemaEqual(t *testing.T) {
	a := NewSchema(2)
	a.Add("x", KindFloat64)
	a.Add("y", KindString)

	b := NewSchema(2)
	b.Add("x", KindFloat64)
	b.Add("y", KindString)

	require.True(t, a.Equal(b))

	c := NewSchema(1)
	c.Add("x", KindFloat64)
	require.False(t, a.Equal(c))
}
