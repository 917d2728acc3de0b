package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// naTokens are the cell values read as missing, as in pandas.read_csv.
var naTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"NULL": {},
	"null": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
}

func isNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

const bom = "\uFEFF"

type readOptions struct {
	encoding string
}

// ReadOption configures ReadCSV and Load.
type ReadOption func(*readOptions)

// WithEncoding decodes the input from the named character set before parsing.
// Supported: utf-8, latin1 (iso-8859-1), windows-1252, gbk, shift_jis.
func WithEncoding(name string) ReadOption {
	return func(o *readOptions) { o.encoding = name }
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "gbk", "cp936":
		return simplifiedchinese.GBK, nil
	case "shift_jis", "shift-jis", "sjis", "cp932":
		return japanese.ShiftJIS, nil
	default:
		return nil, errors.NewValueError("ReadCSV", "unsupported encoding "+strconv.Quote(name))
	}
}

// ReadCSV parses CSV text whose first record is the header.
func ReadCSV(r io.Reader, opts ...ReadOption) (*Frame, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	enc, err := lookupEncoding(o.encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}
	header[0] = strings.TrimPrefix(header[0], bom)
	names := dedupeNames(header)

	cells := make([][]string, len(names))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read CSV")
		}
		for j, v := range record {
			cells[j] = append(cells[j], v)
		}
	}

	columns := make([]*Column, len(names))
	for j, name := range names {
		if cells[j] == nil {
			cells[j] = []string{}
		}
		columns[j] = newColumn(name, cells[j])
	}
	return NewFrame(columns)
}

// dedupeNames renames repeated header names to "name.1", "name.2", ...
// and empty names to "Unnamed: <i>".
func dedupeNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		if n, dup := seen[h]; dup {
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[h] = n
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

func isTrue(s string) bool  { return strings.EqualFold(s, "true") }
func isFalse(s string) bool { return strings.EqualFold(s, "false") }

func inferKind(c *Column) Kind {
	numeric, boolean := true, true
	for i, s := range c.Raw {
		if c.Missing[i] {
			continue
		}
		if numeric {
			if _, ok := parseFloat(s); !ok {
				numeric = false
			}
		}
		if boolean && !isTrue(s) && !isFalse(s) {
			boolean = false
		}
		if !numeric && !boolean {
			return Categorical
		}
	}
	if numeric {
		return Numeric
	}
	return Boolean
}
