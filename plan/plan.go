// Package plan implements the shared ColumnPlan structure (§4.5.4):
// compiled once per batch, reused across every row in that batch, fusing
// the decisions a naive per-row decoder would otherwise repeat — target
// builder kind, missing-value policy, label-map pointer, fast-path
// eligibility — into a single object the row decoders dispatch against.
package plan

import (
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/labelmap"
)

// Column is one column's compiled decode plan, shared read-only across
// all rows of a batch (and, for the parallel range reader, across
// workers that each decode a disjoint row window of the same file).
type Column struct {
	Name   string
	Kind   frame.Kind
	Offset int // byte offset within the packed record
	Width  int // byte width within the packed record

	// StorageKind is the on-disk representation backing this column,
	// distinct from Kind (the output type): a Stata strL reference, for
	// instance, has StorageKind == format.KindStrLRef but Kind ==
	// frame.KindString.
	StorageKind format.StorageKind

	Temporal format.TemporalClass

	// Labels is the shared, refcounted value-label projection for this
	// column, or nil when the column has no attached label set.
	Labels               *labelmap.Map
	ValueLabelsAsStrings bool

	MissingStringAsNull bool
	UserMissingAsNull   bool

	// HasDeclaredMissing is true when the variable carries format-specific
	// declared-missing info (SAS: none — SAS only has the NaN tag; Stata:
	// none — missingness is sentinel-range based, not declared; SPSS:
	// true when the variable's MissingSpec is non-empty). Kept generic
	// here so FastNoChecks can be computed uniformly across formats.
	HasDeclaredMissing bool

	// FastNoChecks mirrors §9's `fast_no_checks = string & !missing_null &
	// no_missing_set & no_labels`: when true the row decoder may skip the
	// missing-value and label-substitution branches entirely for this
	// column.
	FastNoChecks bool
}

// Compile finalizes a Column's FastNoChecks flag from its already-set
// fields. Callers build a Column, set its fields from the format's
// Variable descriptor, then call Compile before the first row of a batch
// uses it.
func (c *Column) Compile() {
	c.FastNoChecks = c.Kind == frame.KindString &&
		!c.MissingStringAsNull &&
		!c.HasDeclaredMissing &&
		c.Labels == nil
}

// Batch is the full per-batch compiled plan: one Column per output
// column, built once and shared across every row the batch decodes.
type Batch struct {
	Columns []Column

	// AllNumericNoLabels is true when every column is a plain numeric
	// kind (Int8/16/32/64, Float32/64) with no label map attached; when
	// true the row decoder may switch to the specialized numeric-only
	// loop §4.5.4 describes instead of per-column dispatch.
	AllNumericNoLabels bool
}

// NewBatch compiles every column and derives AllNumericNoLabels.
func NewBatch(columns []Column) *Batch {
	allNumeric := true
	for i := range columns {
		columns[i].Compile()

		switch columns[i].Kind {
		case frame.KindInt8, frame.KindInt16, frame.KindInt32, frame.KindInt64,
			frame.KindFloat32, frame.KindFloat64:
			if columns[i].Labels != nil {
				allNumeric = false
			}
		default:
			allNumeric = false
		}
	}

	return &Batch{Columns: columns, AllNumericNoLabels: allNumeric}
}

// Schema projects the plan's columns into a frame.Schema, used both to
// validate "schema derived from metadata alone equals frame.schema"
// (§8) and to size builders ahead of decoding.
func (b *Batch) Schema() *frame.Schema {
	s := frame.NewSchema(len(b.Columns))
	for _, c := range b.Columns {
		s.Add(c.Name, c.Kind)
	}

	return s
}
