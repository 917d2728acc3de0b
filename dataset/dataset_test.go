package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

const sampleCSV = "\uFEFFcity,age,member,score\n" +
	"Tokyo,31,true,1.5\n" +
	"Osaka,NA,False,2.5\n" +
	",45,TRUE,\n" +
	"Tokyo,28,,3.0\n"

func TestReadCSV(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Equal(t, 4, f.NRows())
	require.Equal(t, 4, f.NCols())
	assert.Equal(t, []string{"city", "age", "member", "score"}, f.Names(), "BOM should be trimmed")

	tests := []struct {
		name    string
		kind    Kind
		missing int
	}{
		{"city", Categorical, 1},
		{"age", Numeric, 1},
		{"member", Boolean, 1},
		{"score", Numeric, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.Column(tt.name)
			require.NotNil(t, c)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.missing, c.NMissing())
		})
	}

	age := f.Column("age")
	assert.Equal(t, 31.0, age.Values[0])
	assert.True(t, math.IsNaN(age.Values[1]))
	assert.True(t, age.Missing[1])
	assert.Equal(t, []float64{1, 0, 1}, f.Column("member").Values[:3])

	assert.Equal(t, []string{"city"}, f.CategoricalColumns())
	assert.Equal(t, []string{"age", "score"}, f.NumericColumns())
	assert.Equal(t, []string{"member"}, f.BooleanColumns())
	assert.Nil(t, f.Column("missing"))
}

func TestReadCSVNATokens(t *testing.T) {
	tokens := []string{"NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan", "NULL", "null", "None", "#N/A", "<NA>"}
	var b strings.Builder
	b.WriteString("x\n")
	for _, tok := range tokens {
		b.WriteString(tok + "\n")
	}
	b.WriteString("1\n")

	f, err := ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)
	c := f.Column("x")
	assert.Equal(t, len(tokens), c.NMissing())
	assert.Equal(t, Numeric, c.Kind, "only NA and numbers")
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData), "got %v", err)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	var ve *errors.ValueError
	_, err = ReadCSV(strings.NewReader("a\n1\n"), WithEncoding("ebcdic"))
	assert.True(t, errors.As(err, &ve), "unknown encoding: got %v", err)
}

func TestReadCSVDuplicateHeaders(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("a,a,,a.1\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "a.1.1"}, f.Names())
}

func TestReadCSVEncodings(t *testing.T) {
	t.Run("latin1", func(t *testing.T) {
		f, err := ReadCSV(strings.NewReader("name\ncaf\xe9\n"), WithEncoding("latin1"))
		require.NoError(t, err)
		assert.Equal(t, "café", f.Column("name").Raw[0])
	})

	t.Run("shift_jis", func(t *testing.T) {
		encoded, err := japanese.ShiftJIS.NewEncoder().String("名前\n東京\n")
		require.NoError(t, err)
		f, err := ReadCSV(strings.NewReader(encoded), WithEncoding("shift_jis"))
		require.NoError(t, err)
		c := f.Column("名前")
		require.NotNil(t, c, "columns: %v", f.Names())
		assert.Equal(t, "東京", c.Raw[0])
	})
}

func TestFrameSampleAndTake(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,label\n")
	for i := 0; i < 50; i++ {
		b.WriteString(strings.Repeat("x", i%3+1) + "," + string(rune('a'+i%5)) + "\n")
	}
	f, err := ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)

	s1 := f.Sample(20, 42)
	s2 := f.Sample(20, 42)
	require.Equal(t, 20, s1.NRows())
	assert.Equal(t, s1.Column("label").Raw, s2.Column("label").Raw, "deterministic for a seed")
	assert.Same(t, f, f.Sample(100, 42), "n >= rows returns the frame itself")

	sub := f.Take([]int{4, 0})
	assert.Equal(t, []string{"e", "a"}, sub.Column("label").Raw)
}

func TestNewFrameValidation(t *testing.T) {
	a := newColumn("a", []string{"1", "2"})
	b := newColumn("b", []string{"1"})

	_, err := NewFrame([]*Column{a, b})
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim), "expected DimensionError, got %v", err)

	_, err = NewFrame([]*Column{a, newColumn("a", []string{"3", "4"})})
	assert.Error(t, err, "duplicate names")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "a_small.csv")
	large := filepath.Join(dir, "nested", "deep", "large.csv")
	writeFile(t, small, "x,y\n1,2\n")
	writeFile(t, large, "x,y\n1,2\n3,4\n5,6\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), strings.Repeat("z", 1000))

	t.Run("directory picks largest", func(t *testing.T) {
		f, path, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, large, path)
		assert.Equal(t, 3, f.NRows())
	})

	t.Run("file", func(t *testing.T) {
		f, path, err := Load(small)
		require.NoError(t, err)
		assert.Equal(t, small, path)
		assert.Equal(t, 1, f.NRows())
	})

	t.Run("ties break lexically", func(t *testing.T) {
		tie := t.TempDir()
		writeFile(t, filepath.Join(tie, "b.csv"), "x\n1\n")
		writeFile(t, filepath.Join(tie, "a.csv"), "x\n2\n")
		_, path, err := Load(tie)
		require.NoError(t, err)
		assert.Equal(t, "a.csv", filepath.Base(path))
	})

	t.Run("hidden entries are skipped", func(t *testing.T) {
		root := t.TempDir()
		visible := filepath.Join(root, "data", "train.csv")
		writeFile(t, visible, "x\n1\n")
		writeFile(t, filepath.Join(root, ".git", "huge.csv"), "x\n"+strings.Repeat("1\n", 100))
		writeFile(t, filepath.Join(root, "data", ".cache", "huge.csv"), "x\n"+strings.Repeat("2\n", 100))
		writeFile(t, filepath.Join(root, ".backup.csv"), "x\n"+strings.Repeat("3\n", 100))

		path, err := LargestCSV(root)
		require.NoError(t, err)
		assert.Equal(t, visible, path)

		// a hidden directory given as the root is still searched
		hiddenRoot := filepath.Join(root, ".git")
		path, err = LargestCSV(hiddenRoot)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(hiddenRoot, "huge.csv"), path)
	})

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	tests := []struct {
		name string
		path string
		want string
	}{
		{"no csv", filepath.Join(dir, "empty"), "no CSV files found"},
		{"not csv", filepath.Join(dir, "notes.txt"), "invalid dataset path"},
		{"missing", filepath.Join(dir, "nope.csv"), "invalid dataset path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(tt.path)
			var dsErr *errors.DatasetError
			require.True(t, errors.As(err, &dsErr), "expected DatasetError, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
