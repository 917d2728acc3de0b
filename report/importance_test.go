package report

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

func TestFeatureImportancePlot(t *testing.T) {
	tests := []struct {
		name      string
		nFeatures int
	}{
		{"few features", 3},
		{"capped at twenty", 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, tt.nFeatures)
			values := make([]float64, tt.nFeatures)
			for i := range names {
				names[i] = fmt.Sprintf("feature_%d", i)
				values[i] = float64(i+1) / float64(tt.nFeatures)
			}

			path := filepath.Join(t.TempDir(), "importance.png")
			require.NoError(t, FeatureImportancePlot(names, values, path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []byte("\x89PNG"), data[:4], "output is not a PNG image")
		})
	}
}

func TestFeatureImportancePlotErrors(t *testing.T) {
	dir := t.TempDir()

	var dim *errors.DimensionError
	err := FeatureImportancePlot([]string{"a"}, []float64{1, 2}, filepath.Join(dir, "a.png"))
	assert.True(t, errors.As(err, &dim), "expected DimensionError, got %v", err)

	err = FeatureImportancePlot(nil, nil, filepath.Join(dir, "b.png"))
	assert.True(t, errors.Is(err, errors.ErrEmptyData), "got %v", err)

	var ve *errors.ValueError
	err = FeatureImportancePlot([]string{"a"}, []float64{1}, filepath.Join(dir, "plot"))
	assert.True(t, errors.As(err, &ve), "expected ValueError, got %v", err)
}
