package domain

// ColumnType is the coarse type carried by every persisted column
type ColumnType string

const (
	TypeDecimal ColumnType = "decimal"
	TypeInteger ColumnType = "integer"
	TypeBoolean ColumnType = "boolean"
	TypeString  ColumnType = "string"
	TypeDate    ColumnType = "date"
)

// Column describes one column of a self-describing table
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Row is implemented by every persisted row type.
// Values returns the cells in column order; a nil cell is the canonical null.
type Row interface {
	Values() []any
}

// Dataset is the untyped, read-only face of a Table used by sinks and
// the HTTP layer.
type Dataset interface {
	TableName() string
	Schema() []Column
	Len() int
	Cells(i int) []any
}

// Table is a named, typed, self-describing table.
type Table[T Row] struct {
	Name    string
	Columns []Column
	Rows    []T
}

// NewTable creates a table with the given name and schema
func NewTable[T Row](name string, columns []Column, rows []T) *Table[T] {
	if rows == nil {
		rows = []T{}
	}
	return &Table[T]{Name: name, Columns: columns, Rows: rows}
}

// TableName returns the table name
func (t *Table[T]) TableName() string { return t.Name }

// Schema returns the ordered column list
func (t *Table[T]) Schema() []Column { return t.Columns }

// Len returns the number of rows
func (t *Table[T]) Len() int { return len(t.Rows) }

// Cells returns the cells of row i in column order
func (t *Table[T]) Cells(i int) []any { return t.Rows[i].Values() }

// Header returns the column names in order
func (t *Table[T]) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Filter returns a new table holding the rows for which keep returns true
func (t *Table[T]) Filter(keep func(T) bool) *Table[T] {
	out := make([]T, 0, len(t.Rows))
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return NewTable(t.Name, t.Columns, out)
}

// RawTable is the string-typed input table exactly as read from the source
type RawTable struct {
	Source string
	Header []string
	Rows   [][]string
}

// Width returns the number of header columns
func (r *RawTable) Width() int { return len(r.Header) }
