package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if scaler.Mean[0] != 2.5 || scaler.Mean[1] != 10 {
		t.Errorf("unexpected mean: %v", scaler.Mean)
	}
	// population std of 1..4 is sqrt(1.25)
	if math.Abs(scaler.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("unexpected scale: %v", scaler.Scale)
	}
	if scaler.Scale[1] != 1 {
		t.Errorf("constant column should get scale 1, got %v", scaler.Scale[1])
	}

	col := mat.Col(nil, 0, Xs)
	var sum float64
	for _, v := range col {
		sum += v
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("scaled column should have zero mean, sum=%v", sum)
	}
	if Xs.At(0, 1) != 0 {
		t.Errorf("constant column should scale to 0, got %v", Xs.At(0, 1))
	}

	back, err := scaler.InverseTransform(Xs)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("InverseTransform did not restore input")
	}
}

func TestStandardScalerErrors(t *testing.T) {
	scaler := NewStandardScalerDefault()

	var nf *errors.NotFittedError
	if _, err := scaler.Transform(mat.NewDense(1, 1, nil)); !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}

	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, math.NaN(), 4})); err == nil {
		t.Error("expected error for NaN input")
	}

	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	var dim *errors.DimensionError
	if _, err := scaler.Transform(mat.NewDense(1, 3, nil)); !errors.As(err, &dim) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestStandardScalerGob(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(3, 1, []float64{1, 2, 6})); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(scaler); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var loaded StandardScaler
	if err := gob.NewDecoder(&buf).Decode(&loaded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !loaded.IsFitted() || loaded.NFeatures() != 1 {
		t.Fatalf("loaded scaler lost its state: %s", loaded.String())
	}
	got, err := loaded.Transform(mat.NewDense(1, 1, []float64{3}))
	if err != nil {
		t.Fatalf("Transform after load failed: %v", err)
	}
	if got.At(0, 0) != 0 {
		t.Errorf("expected 0 for the mean, got %v", got.At(0, 0))
	}
}

func TestLabelEncoder(t *testing.T) {
	enc := NewLabelEncoder()
	codes, err := enc.FitTransform([]string{"dog", "cat", "nan", "dog"})
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if !reflect.DeepEqual(enc.Classes, []string{"cat", "dog", "nan"}) {
		t.Errorf("classes should be sorted, got %v", enc.Classes)
	}
	if !reflect.DeepEqual(codes, []int{1, 0, 2, 1}) {
		t.Errorf("unexpected codes %v", codes)
	}

	names, err := enc.InverseTransform([]int{2, 0})
	if err != nil || !reflect.DeepEqual(names, []string{"nan", "cat"}) {
		t.Errorf("InverseTransform = %v, %v", names, err)
	}

	var ve *errors.ValueError
	if _, err := enc.Transform([]string{"bird"}); !errors.As(err, &ve) {
		t.Errorf("expected ValueError for unseen label, got %v", err)
	}
	if _, err := enc.InverseTransform([]int{5}); !errors.As(err, &ve) {
		t.Errorf("expected ValueError for out-of-range code, got %v", err)
	}
	if enc.ClassName(1) != "dog" || enc.ClassName(9) != "9" {
		t.Errorf("ClassName mismatch")
	}

	if _, err := NewLabelEncoder().Transform([]string{"a"}); err == nil {
		t.Error("expected NotFittedError before Fit")
	}
}

func TestTopCategories(t *testing.T) {
	values := []string{"b", "a", "c", "a", "b", "d", "", "c"}
	missing := []bool{false, false, false, false, false, false, true, false}

	tests := []struct {
		k    int
		want []string
	}{
		{k: 2, want: []string{"b", "a"}},
		{k: 3, want: []string{"b", "a", "c"}},
		{k: 0, want: []string{"b", "a", "c", "d"}},
	}
	for _, tt := range tests {
		if got := TopCategories(values, missing, tt.k); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TopCategories(k=%d) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestOneHotEncoder(t *testing.T) {
	values := []string{"red", "blue", "red", "green", "", "blue", "red"}
	missing := []bool{false, false, false, false, true, false, false}

	enc := NewOneHotEncoder("color", 2)
	X, err := enc.FitTransform(values, missing)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if !reflect.DeepEqual(enc.Kept, []string{"red", "blue"}) {
		t.Errorf("Kept = %v", enc.Kept)
	}
	if !reflect.DeepEqual(enc.Categories, []string{"Other", "blue", "red"}) {
		t.Errorf("Categories = %v", enc.Categories)
	}
	wantNames := []string{"color_blue", "color_red"}
	if !reflect.DeepEqual(enc.FeatureNames(), wantNames) {
		t.Errorf("FeatureNames = %v", enc.FeatureNames())
	}

	want := mat.NewDense(7, 2, []float64{
		0, 1,
		1, 0,
		0, 1,
		0, 0, // green -> Other (dropped)
		0, 0, // missing -> Other
		1, 0,
		0, 1,
	})
	if !mat.Equal(X, want) {
		t.Errorf("unexpected encoding:\n%v", mat.Formatted(X))
	}

	unseen, err := enc.Transform([]string{"purple", "blue"}, nil)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if unseen.At(0, 0) != 0 || unseen.At(0, 1) != 0 || unseen.At(1, 0) != 1 {
		t.Errorf("unseen category should encode as Other")
	}
}

func TestOneHotEncoderCategoryCap(t *testing.T) {
	var values []string
	for i := 0; i < 30; i++ {
		values = append(values, string(rune('a'+i%15)))
	}

	enc := NewOneHotEncoder("letter", 10)
	if err := enc.Fit(values, nil); err != nil {
		t.Fatal(err)
	}
	if len(enc.Categories) != 11 {
		t.Errorf("expected 10 kept categories plus Other, got %d", len(enc.Categories))
	}
	if len(enc.FeatureNames()) != 10 {
		t.Errorf("expected 10 output columns after drop_first, got %d", len(enc.FeatureNames()))
	}
}

func TestOneHotEncoderSingleCategory(t *testing.T) {
	enc := NewOneHotEncoder("flag", 10)
	X, err := enc.FitTransform([]string{"x", "x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if X != nil || len(enc.FeatureNames()) != 0 {
		t.Errorf("single category should yield no output columns")
	}
}
