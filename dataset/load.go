package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

// Load reads the dataset at path and returns it together with the CSV file
// that was actually read.
//
// path は CSV ファイル、またはディレクトリを指定できます。ディレクトリの場合は
// 再帰的に *.csv を探し、最も大きいファイルを読み込みます。
func Load(path string, opts ...ReadOption) (*Frame, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", errors.NewDatasetError(path, "invalid dataset path", err)
	}

	file := path
	switch {
	case info.IsDir():
		file, err = LargestCSV(path)
		if err != nil {
			return nil, "", err
		}
	case !isCSV(path):
		return nil, "", errors.NewDatasetError(path, "invalid dataset path", nil)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, "", errors.NewDatasetError(file, "open failed", err)
	}
	defer f.Close()

	frame, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, "", errors.NewDatasetError(file, "parse failed", err)
	}

	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.PathKey, file,
		log.SamplesKey, frame.NRows(),
		log.FeaturesKey, frame.NCols(),
	)
	return frame, file, nil
}

// LargestCSV returns the largest *.csv file under root by byte size.
// Ties are broken by lexical path order. Hidden files and directories below
// root (names starting with ".") are skipped.
func LargestCSV(root string) (string, error) {
	var (
		best     string
		bestSize int64 = -1
	)
	// WalkDir visits entries in lexical order, so the first file of a given
	// size wins.
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isCSV(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > bestSize {
			best, bestSize = p, info.Size()
		}
		return nil
	})
	if err != nil {
		return "", errors.NewDatasetError(root, "walk failed", err)
	}
	if best == "" {
		return "", errors.NewDatasetError(root, "no CSV files found in directory", nil)
	}
	return best, nil
}

func isCSV(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".csv")
}
