package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/core/model"
	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/preprocessing"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

// Artifact file names inside an output directory.
const (
	ModelFile        = "model.gob"
	ScalerFile       = "scaler.gob"
	LabelEncoderFile = "label_encoder.gob"
	ManifestFile     = "manifest.json"
)

// Manifest ties the artifact files of one run together.
type Manifest struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Dataset   string         `json:"dataset"`
	Schema    *FeatureSchema `json:"schema"`
	Classes   []string       `json:"classes"`
	Accuracy  float64        `json:"accuracy"`
	NTrain    int            `json:"n_train"`
	NTest     int            `json:"n_test"`
	// Digests maps artifact file names to hex SHA-256 digests.
	Digests map[string]string `json:"digests"`
}

// Artifacts is the deployable unit of a run.
type Artifacts struct {
	Model        *ensemble.RandomForestClassifier
	Scaler       *preprocessing.StandardScaler
	LabelEncoder *preprocessing.LabelEncoder
	// Manifest is nil when a directory was saved without one.
	Manifest *Manifest
}

// SaveArtifacts writes the model, scaler and label encoder as gob files into
// dir, creating it if needed. When a.Manifest is set its digests are filled
// in and it is written as manifest.json.
func SaveArtifacts(dir string, a *Artifacts) error {
	if a == nil || a.Model == nil || a.Scaler == nil || a.LabelEncoder == nil {
		return errors.NewValueError("SaveArtifacts", "model, scaler and label encoder are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}

	files := []struct {
		name  string
		value interface{}
	}{
		{ModelFile, a.Model},
		{ScalerFile, a.Scaler},
		{LabelEncoderFile, a.LabelEncoder},
	}
	digests := make(map[string]string, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := model.SaveModel(f.value, path); err != nil {
			return errors.Wrapf(err, "save %s", f.name)
		}
		sum, err := fileDigest(path)
		if err != nil {
			return err
		}
		digests[f.name] = sum
	}

	if a.Manifest != nil {
		a.Manifest.Digests = digests
		data, err := json.MarshalIndent(a.Manifest, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode manifest")
		}
		if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
			return errors.Wrap(err, "write manifest")
		}
	}

	log.GetLoggerWithName("pipeline").Info("Artifacts saved",
		log.PhaseKey, log.PhaseSave,
		log.PathKey, dir,
	)
	return nil
}

// LoadArtifacts reads the artifacts written by SaveArtifacts. If dir holds a
// manifest, every artifact must match its recorded digest.
func LoadArtifacts(dir string) (*Artifacts, error) {
	a := &Artifacts{
		Model:        &ensemble.RandomForestClassifier{},
		Scaler:       &preprocessing.StandardScaler{},
		LabelEncoder: &preprocessing.LabelEncoder{},
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	switch {
	case err == nil:
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, "decode manifest")
		}
		a.Manifest = &m
	case !os.IsNotExist(err):
		return nil, errors.Wrap(err, "read manifest")
	}

	for name, target := range map[string]interface{}{
		ModelFile:        a.Model,
		ScalerFile:       a.Scaler,
		LabelEncoderFile: a.LabelEncoder,
	} {
		path := filepath.Join(dir, name)
		if a.Manifest != nil {
			sum, err := fileDigest(path)
			if err != nil {
				return nil, err
			}
			if want := a.Manifest.Digests[name]; sum != want {
				return nil, errors.NewValueError("LoadArtifacts",
					fmt.Sprintf("digest mismatch for %s: manifest %q, file %q", name, want, sum))
			}
		}
		if err := model.LoadModel(target, path); err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
	}
	return a, nil
}

// Predict returns the predicted class name for every row of frame.
// The frame must contain the feature columns recorded in the manifest.
func (a *Artifacts) Predict(frame *dataset.Frame) ([]string, error) {
	if a.Manifest == nil || a.Manifest.Schema == nil {
		return nil, errors.NewValueError("Artifacts.Predict", "a manifest with a feature schema is required")
	}

	X, err := a.Manifest.Schema.Transform(frame)
	if err != nil {
		return nil, err
	}
	Xs, err := a.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	pred, err := predictCodes(a.Model, Xs)
	if err != nil {
		return nil, err
	}

	codes := make([]int, pred.Len())
	for i := range codes {
		codes[i] = int(pred.AtVec(i))
	}
	return a.LabelEncoder.InverseTransform(codes)
}

// Score returns the accuracy of the model on already scaled features.
func (a *Artifacts) Score(X *mat.Dense, y *mat.VecDense) float64 {
	return a.Model.Score(X, y)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
