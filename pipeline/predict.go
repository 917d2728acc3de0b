package pipeline

import (
	"encoding/csv"
	"io"

	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

// PredictionColumn is the column appended by WritePredictions.
const PredictionColumn = "prediction"

// PredictFile loads the CSV at input and predicts every row with the
// artifacts in modelDir.
func PredictFile(modelDir, input string, opts ...dataset.ReadOption) (*dataset.Frame, []string, error) {
	a, err := LoadArtifacts(modelDir)
	if err != nil {
		return nil, nil, err
	}
	frame, path, err := dataset.Load(input, opts...)
	if err != nil {
		return nil, nil, err
	}
	preds, err := a.Predict(frame)
	if err != nil {
		return nil, nil, err
	}
	log.GetLoggerWithName("pipeline").Info("Predictions computed",
		log.PhaseKey, log.PhaseInference,
		log.OperationKey, log.OperationPredict,
		log.PathKey, path,
		log.SamplesKey, len(preds),
	)
	return frame, preds, nil
}

// WritePredictions writes frame as CSV with the predictions as a last column.
// Missing cells are written empty.
func WritePredictions(w io.Writer, frame *dataset.Frame, preds []string) error {
	if len(preds) != frame.NRows() {
		return errors.NewDimensionError("WritePredictions", frame.NRows(), len(preds), 0)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append(frame.Names(), PredictionColumn)); err != nil {
		return errors.Wrap(err, "write header")
	}
	record := make([]string, frame.NCols()+1)
	for i := 0; i < frame.NRows(); i++ {
		for j := 0; j < frame.NCols(); j++ {
			record[j] = frame.ColumnAt(j).Raw[i]
		}
		record[len(record)-1] = preds[i]
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write record")
		}
	}
	cw.Flush()
	return errors.WithStack(cw.Error())
}
