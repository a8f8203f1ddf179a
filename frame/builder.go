package frame

// Builder is the common append-only interface every per-Kind builder
// satisfies (§6: "append_value, append_null, bulk finalize to a column").
type Builder interface {
	AppendNull()
	Len() int
	Finalize() Column
}

// Int8Builder, Int16Builder, ... below are the tagged variant's inner
// builder objects (§9). Each is a thin typed wrapper over a growable
// slice plus a parallel null bitmap; there is no dynamic dispatch inside
// AppendValue itself, only at the ColumnPlan level that picks which
// builder's AppendValue to call for a given column.

type Int8Builder struct {
	values []int8
	null   []bool
}

func NewInt8Builder(capacity int) *Int8Builder {
	return &Int8Builder{values: make([]int8, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Int8Builder) AppendValue(v int8) { b.values = append(b.values, v); b.null = append(b.null, false) }
func (b *Int8Builder) AppendNull()        { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Int8Builder) Len() int           { return len(b.values) }
func (b *Int8Builder) Finalize() Column   { return Column{Kind: KindInt8, Int8: b.values, Null: b.null} }

type Int16Builder struct {
	values []int16
	null   []bool
}

func NewInt16Builder(capacity int) *Int16Builder {
	return &Int16Builder{values: make([]int16, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Int16Builder) AppendValue(v int16) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *Int16Builder) AppendNull()      { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Int16Builder) Len() int         { return len(b.values) }
func (b *Int16Builder) Finalize() Column { return Column{Kind: KindInt16, Int16: b.values, Null: b.null} }

type Int32Builder struct {
	values []int32
	null   []bool
}

func NewInt32Builder(capacity int) *Int32Builder {
	return &Int32Builder{values: make([]int32, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Int32Builder) AppendValue(v int32) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *Int32Builder) AppendNull()      { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Int32Builder) Len() int         { return len(b.values) }
func (b *Int32Builder) Finalize() Column { return Column{Kind: KindInt32, Int32: b.values, Null: b.null} }

type Int64Builder struct {
	values []int64
	null   []bool
}

func NewInt64Builder(capacity int) *Int64Builder {
	return &Int64Builder{values: make([]int64, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Int64Builder) AppendValue(v int64) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *Int64Builder) AppendNull()      { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Int64Builder) Len() int         { return len(b.values) }
func (b *Int64Builder) Finalize() Column { return Column{Kind: KindInt64, Int64: b.values, Null: b.null} }

type Float32Builder struct {
	values []float32
	null   []bool
}

func NewFloat32Builder(capacity int) *Float32Builder {
	return &Float32Builder{values: make([]float32, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Float32Builder) AppendValue(v float32) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *Float32Builder) AppendNull() { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Float32Builder) Len() int    { return len(b.values) }
func (b *Float32Builder) Finalize() Column {
	return Column{Kind: KindFloat32, Float32: b.values, Null: b.null}
}

type Float64Builder struct {
	values []float64
	null   []bool
}

func NewFloat64Builder(capacity int) *Float64Builder {
	return &Float64Builder{values: make([]float64, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *Float64Builder) AppendValue(v float64) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *Float64Builder) AppendNull() { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *Float64Builder) Len() int    { return len(b.values) }
func (b *Float64Builder) Finalize() Column {
	return Column{Kind: KindFloat64, Float64: b.values, Null: b.null}
}

// DateBuilder stores days-since-epoch values (§6).
type DateBuilder struct {
	values []int32
	null   []bool
}

func NewDateBuilder(capacity int) *DateBuilder {
	return &DateBuilder{values: make([]int32, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *DateBuilder) AppendValue(days int32) {
	b.values = append(b.values, days)
	b.null = append(b.null, false)
}
func (b *DateBuilder) AppendNull()      { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *DateBuilder) Len() int         { return len(b.values) }
func (b *DateBuilder) Finalize() Column { return Column{Kind: KindDate, Date: b.values, Null: b.null} }

// DateTimeBuilder stores microseconds-since-epoch values (§6).
type DateTimeBuilder struct {
	values []int64
	null   []bool
}

func NewDateTimeBuilder(capacity int) *DateTimeBuilder {
	return &DateTimeBuilder{values: make([]int64, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *DateTimeBuilder) AppendValue(micros int64) {
	b.values = append(b.values, micros)
	b.null = append(b.null, false)
}
func (b *DateTimeBuilder) AppendNull() { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *DateTimeBuilder) Len() int    { return len(b.values) }
func (b *DateTimeBuilder) Finalize() Column {
	return Column{Kind: KindDateTime, DateTime: b.values, Null: b.null}
}

// TimeBuilder stores nanoseconds-of-day values (§6).
type TimeBuilder struct {
	values []int64
	null   []bool
}

func NewTimeBuilder(capacity int) *TimeBuilder {
	return &TimeBuilder{values: make([]int64, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *TimeBuilder) AppendValue(nanos int64) {
	b.values = append(b.values, nanos)
	b.null = append(b.null, false)
}
func (b *TimeBuilder) AppendNull()      { b.values = append(b.values, 0); b.null = append(b.null, true) }
func (b *TimeBuilder) Len() int         { return len(b.values) }
func (b *TimeBuilder) Finalize() Column { return Column{Kind: KindTime, Time: b.values, Null: b.null} }

type StringBuilder struct {
	values []string
	null   []bool
}

func NewStringBuilder(capacity int) *StringBuilder {
	return &StringBuilder{values: make([]string, 0, capacity), null: make([]bool, 0, capacity)}
}
func (b *StringBuilder) AppendValue(v string) {
	b.values = append(b.values, v)
	b.null = append(b.null, false)
}
func (b *StringBuilder) AppendNull()      { b.values = append(b.values, ""); b.null = append(b.null, true) }
func (b *StringBuilder) Len() int         { return len(b.values) }
func (b *StringBuilder) Finalize() Column { return Column{Kind: KindString, String: b.values, Null: b.null} }
