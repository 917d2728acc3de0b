package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	scierrors "github.com/YuminosukeSato/tabforest/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても
// 既存のファイルが壊れることはない。
//
// 使用例:
//
//	forest := ensemble.NewRandomForestClassifier()
//	// ... モデルの学習 ...
//	err := model.SaveModel(forest, "artifacts/model.gob")
func SaveModel(model interface{}, filename string) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return scierrors.Wrapf(err, "failed to create file for %s", filename)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return scierrors.Wrapf(err, "failed to flush %s", filename)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return scierrors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var forest ensemble.RandomForestClassifier
//	err := model.LoadModel(&forest, "artifacts/model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return scierrors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return scierrors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return scierrors.Wrap(err, "failed to decode model")
	}
	return nil
}
