// Package dataset loads CSV files into an in-memory table of typed columns.
package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns parse as floats in every non-missing cell.
	Numeric Kind = iota
	// Categorical columns hold free text.
	Categorical
	// Boolean columns hold only true/false in any case.
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Column is one named column of a Frame.
type Column struct {
	Name string
	Kind Kind
	// Raw holds the cell text as read ("" for missing cells).
	Raw []string
	// Values holds the parsed cells: floats for Numeric, 1/0 for Boolean,
	// NaN for missing cells and for Categorical columns.
	Values []float64
	// Missing marks empty cells and NA tokens.
	Missing []bool
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.Raw)
}

// NMissing returns the number of missing cells.
func (c *Column) NMissing() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

func (c *Column) take(idx []int) *Column {
	out := &Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Raw:     make([]string, len(idx)),
		Values:  make([]float64, len(idx)),
		Missing: make([]bool, len(idx)),
	}
	for i, r := range idx {
		out.Raw[i] = c.Raw[r]
		out.Values[i] = c.Values[r]
		out.Missing[i] = c.Missing[r]
	}
	return out
}

// Frame is an in-memory table of equally long named columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame builds a frame from columns. Names must be unique and all
// columns must have the same length.
func NewFrame(columns []*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValueError("NewFrame", "duplicate column name "+c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errors.NewDimensionError("NewFrame", f.rows, c.Len(), 0)
		}
		f.index[c.Name] = i
	}
	f.columns = columns
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.rows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Column returns the named column, or nil if there is none.
func (f *Frame) Column(name string) *Column {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.columns[i]
}

// ColumnAt returns the i-th column.
func (f *Frame) ColumnAt(i int) *Column {
	return f.columns[i]
}

// Names returns the column names in file order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) namesOfKind(k Kind) []string {
	var names []string
	for _, c := range f.columns {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// CategoricalColumns returns the names of Categorical columns in file order.
func (f *Frame) CategoricalColumns() []string { return f.namesOfKind(Categorical) }

// NumericColumns returns the names of Numeric columns in file order.
func (f *Frame) NumericColumns() []string { return f.namesOfKind(Numeric) }

// BooleanColumns returns the names of Boolean columns in file order.
func (f *Frame) BooleanColumns() []string { return f.namesOfKind(Boolean) }

// Take returns a new frame made of the given rows, in order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(idx)
	}
	return &Frame{columns: cols, index: f.index, rows: len(idx)}
}

// Sample returns n rows drawn without replacement, in sampled order.
// The draw is deterministic for a seed. If n >= NRows the frame is returned
// unchanged.
func (f *Frame) Sample(n int, seed uint64) *Frame {
	if n >= f.rows {
		return f
	}
	if n < 0 {
		n = 0
	}
	r := rand.New(rand.NewPCG(seed, seed))
	return f.Take(r.Perm(f.rows)[:n])
}

func newColumn(name string, raw []string) *Column {
	c := &Column{
		Name:    name,
		Raw:     raw,
		Values:  make([]float64, len(raw)),
		Missing: make([]bool, len(raw)),
	}
	for i, s := range raw {
		if isNA(s) {
			c.Missing[i] = true
			c.Raw[i] = ""
		}
	}
	c.Kind = inferKind(c)

	for i, s := range c.Raw {
		if c.Missing[i] {
			c.Values[i] = math.NaN()
			continue
		}
		switch c.Kind {
		case Numeric:
			c.Values[i], _ = parseFloat(s)
		case Boolean:
			if isTrue(s) {
				c.Values[i] = 1
			}
		default:
			c.Values[i] = math.NaN()
		}
	}
	return c
}
