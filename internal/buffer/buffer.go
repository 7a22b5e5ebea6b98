package buffer

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the value type stored in a column
type Kind int

const (
	KindBool Kind = iota
	KindUint8
	KindUint32
	KindUint64
	KindFloat64
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint8:
		return "uint8"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the closed set of types a column can hold
type Value interface {
	bool | uint8 | uint32 | uint64 | float64 | string | time.Time
}

// Column is a nullable, index-addressed vector of one Kind.
// The only implementations are the Vector instantiations of Value.
type Column interface {
	Len() int
	IsNull(i int) bool
	SetNull(i int)
	SetAllNull()
	Kind() Kind
	sealed()
}

// Vector holds the values of one column together with a validity mask
type Vector[T Value] struct {
	values []T
	valid  []bool
}

// NewVector creates a vector of n null values
func NewVector[T Value](n int) *Vector[T] {
	return &Vector[T]{
		values: make([]T, n),
		valid:  make([]bool, n),
	}
}

func (v *Vector[T]) sealed() {}

// Len returns the number of rows in the vector
func (v *Vector[T]) Len() int {
	return len(v.values)
}

// IsNull reports whether row i holds no value. Rows past the end and rows of
// a nil vector are null.
func (v *Vector[T]) IsNull(i int) bool {
	return v == nil || i < 0 || i >= len(v.valid) || !v.valid[i]
}

// Get returns the value at row i, or the zero value for null rows
func (v *Vector[T]) Get(i int) T {
	var zero T
	if v.IsNull(i) {
		return zero
	}
	return v.values[i]
}

// Set stores val at row i, growing the vector if needed
func (v *Vector[T]) Set(i int, val T) {
	v.grow(i + 1)
	v.values[i] = val
	v.valid[i] = true
}

// Append adds a value at the end
func (v *Vector[T]) Append(val T) {
	v.values = append(v.values, val)
	v.valid = append(v.valid, true)
}

// AppendNull adds a null row at the end
func (v *Vector[T]) AppendNull() {
	var zero T
	v.values = append(v.values, zero)
	v.valid = append(v.valid, false)
}

// SetNull clears row i
func (v *Vector[T]) SetNull(i int) {
	v.grow(i + 1)
	var zero T
	v.values[i] = zero
	v.valid[i] = false
}

// SetAllNull clears every row, keeping the length
func (v *Vector[T]) SetAllNull() {
	var zero T
	for i := range v.values {
		v.values[i] = zero
		v.valid[i] = false
	}
}

// Kind returns the kind of the vector's element type
func (v *Vector[T]) Kind() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBool
	case uint8:
		return KindUint8
	case uint32:
		return KindUint32
	case uint64:
		return KindUint64
	case float64:
		return KindFloat64
	case string:
		return KindString
	case time.Time:
		return KindTime
	}
	panic("buffer: unsupported vector element type")
}

func (v *Vector[T]) grow(n int) {
	if n <= len(v.values) {
		return
	}
	v.values = append(v.values, make([]T, n-len(v.values))...)
	v.valid = append(v.valid, make([]bool, n-len(v.valid))...)
}

// Buffer is a set of named columns describing the rows of one content type
type Buffer struct {
	columns map[string]Column
}

// New creates an empty buffer
func New() *Buffer {
	return &Buffer{columns: make(map[string]Column)}
}

// Add registers a column under name, replacing any existing one
func (b *Buffer) Add(name string, c Column) {
	b.columns[name] = c
}

// Has reports whether a column with the given name exists
func (b *Buffer) Has(name string) bool {
	_, ok := b.columns[name]
	return ok
}

// Column returns the named column
func (b *Buffer) Column(name string) (Column, bool) {
	c, ok := b.columns[name]
	return c, ok
}

// Names returns the column names in sorted order
func (b *Buffer) Names() []string {
	names := make([]string, 0, len(b.columns))
	for name := range b.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of rows, the length of the longest column
func (b *Buffer) Size() int {
	size := 0
	for _, c := range b.columns {
		if c.Len() > size {
			size = c.Len()
		}
	}
	return size
}

// Delete removes the named column
func (b *Buffer) Delete(name string) {
	delete(b.columns, name)
}

// Rename moves a column to a new name
func (b *Buffer) Rename(from, to string) error {
	c, ok := b.columns[from]
	if !ok {
		return fmt.Errorf("column %q not found", from)
	}
	if _, exists := b.columns[to]; exists && from != to {
		return fmt.Errorf("column %q already exists", to)
	}
	delete(b.columns, from)
	b.columns[to] = c
	return nil
}

// Keep drops every column not listed in names
func (b *Buffer) Keep(names ...string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for name := range b.columns {
		if !keep[name] {
			delete(b.columns, name)
		}
	}
}

// Get returns the named column as a typed vector. The second result is false
// if the column is missing or holds a different kind.
func Get[T Value](b *Buffer, name string) (*Vector[T], bool) {
	c, ok := b.columns[name]
	if !ok {
		return nil, false
	}
	v, ok := c.(*Vector[T])
	return v, ok
}

// ValueAt returns row i of c as an untyped value, or nil for null rows
func ValueAt(c Column, i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch v := c.(type) {
	case *Vector[bool]:
		return v.Get(i)
	case *Vector[uint8]:
		return v.Get(i)
	case *Vector[uint32]:
		return v.Get(i)
	case *Vector[uint64]:
		return v.Get(i)
	case *Vector[float64]:
		return v.Get(i)
	case *Vector[string]:
		return v.Get(i)
	case *Vector[time.Time]:
		return v.Get(i)
	}
	panic(fmt.Sprintf("buffer: unsupported column kind %s", c.Kind()))
}

// Ensure returns the named vector, creating an all-null one sized to the
// buffer if it does not exist yet.
func Ensure[T Value](b *Buffer, name string) (*Vector[T], error) {
	if c, ok := b.columns[name]; ok {
		v, ok := c.(*Vector[T])
		if !ok {
			return nil, fmt.Errorf("column %q has kind %s", name, c.Kind())
		}
		v.grow(b.Size())
		return v, nil
	}
	v := NewVector[T](b.Size())
	b.columns[name] = v
	return v, nil
}
