package folds

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const DefaultK = 4

type Splitter struct {
	Fs        afero.Fs
	Layout    Layout
	K         int
	Prefix    string
	OutputDir string
	Seed      int64
	Log       zerolog.Logger
}

type FoldResult struct {
	Fold
	TrainFile string
	TestFile  string
	TrainRows int
	TestRows  int
}

type Result struct {
	Patients int
	Seed     int64
	Folds    []FoldResult
}

func (s *Splitter) k() int {
	if s.K == 0 {
		return DefaultK
	}

	return s.K
}

func (s *Splitter) relative(patients []string) []string {
	ret := make([]string, 0, len(patients))
	for _, p := range sorted(patients) {
		rel, err := filepath.Rel(s.Layout.Images(), p)
		if err != nil {
			rel = p
		}
		ret = append(ret, rel)
	}

	return ret
}

func (s *Splitter) Run() (*Result, error) {
	patients, err := Discover(s.Fs, s.Layout.Images())
	if err != nil {
		return nil, err
	}
	s.Log.Info().Int("patients", len(patients)).Int64("seed", s.Seed).Msg("found patients")

	groups, err := Split(Shuffle(patients, s.Seed), s.k())
	if err != nil {
		return nil, err
	}

	outDir := s.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := s.Fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", outDir)
	}

	ret := &Result{Patients: len(patients), Seed: s.Seed}
	for _, f := range Assign(groups) {
		fr := FoldResult{Fold: f}
		train, test := ManifestNames(s.Prefix, f.Index)
		fr.TrainFile = filepath.Join(outDir, train)
		fr.TestFile = filepath.Join(outDir, test)

		testRows, err := Rows(s.Fs, f.Test, s.Layout)
		if err != nil {
			return nil, err
		}
		trainRows, err := Rows(s.Fs, f.Train, s.Layout)
		if err != nil {
			return nil, err
		}
		fr.TestRows, fr.TrainRows = len(testRows), len(trainRows)

		if err := WriteManifest(s.Fs, fr.TrainFile, trainRows); err != nil {
			return nil, err
		}
		if err := WriteManifest(s.Fs, fr.TestFile, testRows); err != nil {
			return nil, err
		}

		s.Log.Info().Int("fold", f.Index).Str("train", fr.TrainFile).Str("test", fr.TestFile).
			Int("train_rows", fr.TrainRows).Int("test_rows", fr.TestRows).Msg("manifests saved")
		s.Log.Info().Int("fold", f.Index).Int("count", len(f.Test)).Strs("patients", s.relative(f.Test)).Msg("test set")
		s.Log.Info().Int("fold", f.Index).Int("count", len(f.Train)).Strs("patients", s.relative(f.Train)).Msg("train set")

		ret.Folds = append(ret.Folds, fr)
	}

	return ret, nil
}
