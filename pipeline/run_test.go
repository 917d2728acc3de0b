package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabforest/ledger"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

const tinyCSV = `color,size
red,1.0
blue,5.0
red,1.2
blue,5.5
red,0.8
blue,4.9
red,1.1
blue,5.2
red,0.9
blue,5.1
`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

// captureLogs routes the process-wide logger into memory for one test.
func captureLogs(t *testing.T) *log.TestLogger {
	t.Helper()
	provider := log.NewTestLoggerProvider(log.LevelDebug)
	prev := log.SetProvider(provider)
	t.Cleanup(func() { log.SetProvider(prev) })
	return provider.Logger()
}

func TestRunEndToEnd(t *testing.T) {
	data := writeDataset(t, tinyCSV)
	out := filepath.Join(t.TempDir(), "models")

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	res, err := Run(context.Background(), Options{
		DatasetPath: data,
		OutputDir:   out,
		Plot:        true,
		Ledger:      l,
	})
	require.NoError(t, err)

	for _, name := range []string{ModelFile, ScalerFile, LabelEncoderFile, ManifestFile, PlotFile} {
		info, err := os.Stat(filepath.Join(out, name))
		if assert.NoError(t, err, "%s not written", name) {
			assert.NotZero(t, info.Size(), "%s is empty", name)
		}
	}

	assert.Equal(t, "color", res.Prepared.Schema.Target)
	assert.Len(t, res.Prepared.TrainIndex, 8)
	assert.Len(t, res.Prepared.TestIndex, 2)
	assert.Equal(t, 1.0, res.Evaluation.Accuracy, "separable data")
	assert.Equal(t, res.RunID, res.Manifest.RunID)
	assert.Len(t, res.Manifest.Digests, 3)

	runs, err := l.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 10, runs[0].Samples)
}

func TestRunLogsStages(t *testing.T) {
	logs := captureLogs(t)
	data := writeDataset(t, tinyCSV)

	res, err := Run(context.Background(), Options{DatasetPath: data, OutputDir: t.TempDir()})
	require.NoError(t, err)

	completed := logs.Find("Stage completed")
	require.Len(t, completed, 5)
	wantPhases := []string{log.PhaseLoad, log.PhasePreprocessing, log.PhaseTraining, log.PhaseEvaluation, log.PhaseSave}
	for i, e := range completed {
		phase, _ := e.Field(log.PhaseKey)
		assert.Equal(t, wantPhases[i], phase)
		runID, _ := e.Field(log.RunIDKey)
		assert.Equal(t, res.RunID, runID)
		assert.Equal(t, "pipeline", e.Fields[log.ComponentKey])
		d, ok := e.Field(log.DurationMsKey)
		require.True(t, ok, "stage %s has no duration", phase)
		assert.GreaterOrEqual(t, d.(int64), int64(0))
	}

	done := logs.Find("Pipeline completed")
	require.Len(t, done, 1)
	assert.Equal(t, 1.0, done[0].Fields[log.AccuracyKey])

	t.Run("failing stage", func(t *testing.T) {
		logs.Reset()
		_, err := Run(context.Background(), Options{DatasetPath: t.TempDir(), OutputDir: t.TempDir()})
		require.Error(t, err)

		failed := logs.Find("Stage failed")
		require.Len(t, failed, 1)
		assert.Equal(t, log.LevelError, failed[0].Level)
		assert.Equal(t, log.PhaseLoad, failed[0].Fields[log.PhaseKey])
		assert.NotEmpty(t, failed[0].Fields[log.RunIDKey])
		assert.Contains(t, failed[0].Fields["error"], "no CSV files found")
		assert.Empty(t, logs.Find("Stage completed"))
	})
}

func TestRunPartialPreprocessConfig(t *testing.T) {
	data := writeDataset(t, tinyCSV)

	res, err := Run(context.Background(), Options{
		DatasetPath: data,
		OutputDir:   t.TempDir(),
		Preprocess:  PreprocessConfig{Target: "color"},
	})
	require.NoError(t, err)
	assert.Equal(t, "color", res.Prepared.Schema.Target)
	assert.Equal(t, []string{"size"}, res.Prepared.Schema.FeatureNames)
	assert.Len(t, res.Prepared.TestIndex, 2)
}

func TestArtifactsRoundTrip(t *testing.T) {
	data := writeDataset(t, labelledCSV(300, 3))
	out := t.TempDir()

	res, err := Run(context.Background(), Options{
		DatasetPath: data,
		OutputDir:   out,
		Forest:      []ensemble.Option{ensemble.WithNEstimators(15)},
	})
	require.NoError(t, err)

	a, err := LoadArtifacts(out)
	require.NoError(t, err)
	assert.Equal(t, res.Evaluation.Accuracy, a.Score(res.Prepared.XTest, res.Prepared.YTest))

	// the inference path rebuilds the same features from raw rows
	testFrame := res.Prepared.Frame.Take(res.Prepared.TestIndex)
	preds, err := a.Predict(testFrame)
	require.NoError(t, err)
	require.Len(t, preds, len(res.Prepared.TestIndex))
	for i, p := range preds {
		want := res.Prepared.LabelEncoder.ClassName(int(res.Evaluation.Predictions.AtVec(i)))
		require.Equal(t, want, p, "prediction %d", i)
	}

	// tampering with an artifact is detected
	path := filepath.Join(out, ScalerFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(raw, 0), 0o644))

	_, err = LoadArtifacts(out)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve), "expected digest mismatch ValueError, got %v", err)
}

func TestLoadArtifactsWithoutManifest(t *testing.T) {
	data := writeDataset(t, tinyCSV)
	out := t.TempDir()
	_, err := Run(context.Background(), Options{DatasetPath: data, OutputDir: out})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(out, ManifestFile)))

	a, err := LoadArtifacts(out)
	require.NoError(t, err)
	assert.Nil(t, a.Manifest)
	assert.True(t, a.Model.IsFitted())
	assert.True(t, a.Scaler.IsFitted())
	assert.True(t, a.LabelEncoder.IsFitted())

	_, err = a.Predict(readFrame(t, tinyCSV))
	assert.Error(t, err, "Predict needs the manifest schema")
}

func TestRunErrors(t *testing.T) {
	data := writeDataset(t, tinyCSV)

	var vErr *errors.ValidationError
	_, err := Run(context.Background(), Options{OutputDir: t.TempDir()})
	assert.True(t, errors.As(err, &vErr), "missing dataset path: got %v", err)

	_, err = Run(context.Background(), Options{DatasetPath: data})
	assert.True(t, errors.As(err, &vErr), "missing output dir: got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, Options{DatasetPath: data, OutputDir: t.TempDir()})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	var dsErr *errors.DatasetError
	_, err = Run(context.Background(), Options{DatasetPath: t.TempDir(), OutputDir: t.TempDir()})
	assert.True(t, errors.As(err, &dsErr), "empty directory: got %v", err)
}

func TestPredictFileAndWrite(t *testing.T) {
	data := writeDataset(t, tinyCSV)
	out := t.TempDir()
	_, err := Run(context.Background(), Options{DatasetPath: data, OutputDir: out})
	require.NoError(t, err)

	input := filepath.Join(t.TempDir(), "new.csv")
	require.NoError(t, os.WriteFile(input, []byte("size,color\n1.0,\n5.3,blue\n"), 0o644))

	frame, preds, err := PredictFile(out, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, preds)

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, frame, preds))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"size", "color", PredictionColumn},
		{"1.0", "", "red"},
		{"5.3", "blue", "blue"},
	}, records)

	var dim *errors.DimensionError
	err = WritePredictions(&buf, frame, preds[:1])
	assert.True(t, errors.As(err, &dim), "expected DimensionError, got %v", err)
}
