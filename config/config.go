// Package config loads the YAML configuration of the run command.
package config

import (
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

// Environment variables that override the file.
const (
	EnvDatasetPath = "TABFOREST_DATASET_PATH"
	EnvOutputDir   = "TABFOREST_OUTPUT_DIR"
)

// Config is the content of a tabforest YAML file.
type Config struct {
	Dataset struct {
		Path     string `yaml:"path"`
		Encoding string `yaml:"encoding"`
	} `yaml:"dataset"`
	Output struct {
		Dir  string `yaml:"dir"`
		Plot bool   `yaml:"plot"`
	} `yaml:"output"`
	Training Training `yaml:"training"`
	Log      struct {
		Level  string `yaml:"level"`
		File   string `yaml:"file"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`
}

// Training holds the preprocessing and forest settings.
type Training struct {
	MaxRows       int     `yaml:"max_rows"`
	TestSize      float64 `yaml:"test_size"`
	RandomState   uint64  `yaml:"random_state"`
	NEstimators   int     `yaml:"n_estimators"`
	MaxCategories int     `yaml:"max_categories"`
	Target        string  `yaml:"target"`
}

// Default returns a Config with every optional field set. Dataset.Path and
// Output.Dir are left empty.
func Default() *Config {
	c := &Config{}
	c.Dataset.Encoding = "utf-8"
	c.Training = Training{
		MaxRows:       5000,
		TestSize:      0.2,
		RandomState:   42,
		NEstimators:   100,
		MaxCategories: 10,
	}
	c.Log.Level = "info"
	c.Log.Format = "console"
	return c
}

// Load reads the file at path on top of Default, applies the environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	c := Default()
	dec := yaml.NewDecoder(f)
	dec.SetStrict(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	c.ApplyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides the dataset path and output directory from the
// environment when the variables are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatasetPath); v != "" {
		c.Dataset.Path = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
}

// Validate returns a ValidationError for the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Dataset.Path == "":
		return errors.NewValidationError("dataset.path", "is required", c.Dataset.Path)
	case c.Output.Dir == "":
		return errors.NewValidationError("output.dir", "is required", c.Output.Dir)
	case c.Training.MaxRows < 1:
		return errors.NewValidationError("training.max_rows", "must be positive", c.Training.MaxRows)
	case !(c.Training.TestSize > 0 && c.Training.TestSize < 1):
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	case c.Training.NEstimators < 1:
		return errors.NewValidationError("training.n_estimators", "must be positive", c.Training.NEstimators)
	case c.Training.MaxCategories < 1:
		return errors.NewValidationError("training.max_categories", "must be positive", c.Training.MaxCategories)
	case c.Log.Format != "console" && c.Log.Format != "json":
		return errors.NewValidationError("log.format", "must be console or json", c.Log.Format)
	}
	_, err := log.ParseLevel(c.Log.Level)
	return err
}
