package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/labelmap"
)

func TestCompileFastNoChecksForPlainString(t *testing.T) {
	c := Column{Kind: frame.KindString}
	c.Compile()
	require.True(t, c.FastNoChecks)
}

func TestCompileFastNoChecksDisabledByMissingStringAsNull(t *testing.T) {
	c := Column{Kind: frame.KindString, MissingStringAsNull: true}
	c.Compile()
	require.False(t, c.FastNoChecks)
}

func TestCompileFastNoChecksDisabledByLabels(t *testing.T) {
	m := labelmap.Build(labelmap.Set{Name: "x"})
	c := Column{Kind: frame.KindString, Labels: m}
	c.Compile()
	require.False(t, c.FastNoChecks)
}

func TestNewBatchDetectsAllNumericNoLabels(t *testing.T) {
	columns := []Column{
		{Name: "a", Kind: frame.KindFloat64},
		{Name: "b", Kind: frame.KindInt32},
	}
	batch := NewBatch(columns)
	require.True(t, batch.AllNumericNoLabels)
}

func TestNewBatchDetectsStringBreaksAllNumeric(t *testing.T) {
	columns := []Column{
		{Name: "a", Kind: frame.KindFloat64},
		{Name: "b", Kind: frame.KindString},
	}
	batch := NewBatch(columns)
	require.False(t, batch.AllNumericNoLabels)
}

func TestBatchSchemaMatchesColumns(t *testing.T) {
	columns := []Column{
		{Name: "a", Kind: frame.KindFloat64},
		{Name: "b", Kind: frame.KindString},
	}
	batch := NewBatch(columns)
	schema := batch.Schema()
	require.Equal(t, 2, schema.Len())
	require.Equal(t, "a", schema.Field(0).Name)
	require.Equal(t, frame.KindString, schema.Field(1).Kind)
}
