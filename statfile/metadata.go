package statfile

// MetadataDoc is the JSON projection of an open file's metadata (§6
// "Metadata JSON emission"): a lossless-enough rendering of the
// decoded FileHeader/Metadata/Variable triad (§3) for callers that want
// to inspect a file without decoding any rows.
type MetadataDoc struct {
	Format        string `json:"format"`
	FormatVersion int    `json:"format_version,omitempty"`
	BigEndian     bool   `json:"big_endian"`

	RowCount    int64 `json:"row_count"`
	ColumnCount int   `json:"column_count"`
	DataOffset  int64 `json:"data_offset"`

	DatasetLabel string `json:"dataset_label,omitempty"`
	Encoding     string `json:"encoding,omitempty"`

	Columns []ColumnDoc `json:"columns"`

	ValueLabelSets []ValueLabelSetDoc `json:"value_label_sets,omitempty"`
}

// ColumnDoc is one Variable's metadata projection.
type ColumnDoc struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Format string `json:"format,omitempty"`

	Kind   string `json:"kind"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`

	Temporal string `json:"temporal,omitempty"`

	ValueLabelSet string `json:"value_label_set,omitempty"`

	HasDeclaredMissing bool     `json:"has_declared_missing,omitempty"`
	MissingDoubles     []float64 `json:"missing_doubles,omitempty"`
	MissingStrings     []string  `json:"missing_strings,omitempty"`
	MissingRange       bool      `json:"missing_range,omitempty"`
}

// ValueLabelSetDoc is one named value-label set, keyed by its string
// form regardless of the underlying key representation (int32 or f64
// bit pattern both render as their decimal text; a string key renders
// as-is).
type ValueLabelSetDoc struct {
	Name    string            `json:"name"`
	Entries map[string]string `json:"entries"`
}
