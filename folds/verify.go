package folds

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Report collects everything wrong with a set of fold manifests.
type Report struct {
	Folds    int
	Patients int
	Rows     int
	Problems []string
}

func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

func (r *Report) addf(format string, args ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(fs afero.Fs, path string) ([]Row, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if strings.TrimSpace(lines[0]) != strings.Join(header, ",") {
		return nil, errors.Errorf("%s: unexpected header %q", path, strings.TrimSpace(lines[0]))
	}
	if len(lines) == 1 {
		return nil, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "parse %s", path)
	}

	names := df.Names()
	if len(names) != 3 {
		return nil, errors.Errorf("%s: expected 3 columns, got %d", path, len(names))
	}

	idx := df.Col(names[0]).Records()
	imgs := df.Col("imgs").Records()
	masks := df.Col("masks").Records()

	ret := make([]Row, len(idx))
	for i := range idx {
		n, err := strconv.Atoi(idx[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: row %d index", path, i)
		}
		ret[i] = Row{Index: n, Image: imgs[i], Mask: masks[i]}
	}

	return ret, nil
}

func patientsOf(rows []Row) map[string]bool {
	ret := make(map[string]bool)
	for _, r := range rows {
		ret[filepath.Dir(r.Image)] = true
	}

	return ret
}

// Verify re-reads the k train/test manifest pairs in dir and checks that
// indices are contiguous, that no fold trains on its own test patients and
// that the test sets partition the patients. With checkMasks every referenced
// mask must also exist.
func Verify(fs afero.Fs, dir, prefix string, k int, checkMasks bool) (*Report, error) {
	if k < 1 {
		return nil, errors.Wrapf(ErrBadK, "k=%d", k)
	}

	rep := &Report{Folds: k}
	all := make(map[string]bool)
	tested := make(map[string]int)
	sets := make([]map[string]bool, k)

	for i := 0; i < k; i++ {
		trainName, testName := ManifestNames(prefix, i)

		train, err := ReadManifest(fs, filepath.Join(dir, trainName))
		if err != nil {
			return nil, err
		}
		test, err := ReadManifest(fs, filepath.Join(dir, testName))
		if err != nil {
			return nil, err
		}

		for _, m := range []struct {
			name string
			rows []Row
		}{{trainName, train}, {testName, test}} {
			name, rows := m.name, m.rows
			rep.Rows += len(rows)
			for pos, r := range rows {
				if r.Index != pos {
					rep.addf("%s: row %d has index %d", name, pos, r.Index)
				}
				if checkMasks {
					if ok, _ := afero.Exists(fs, r.Mask); !ok {
						rep.addf("%s: missing mask %s", name, r.Mask)
					}
				}
			}
		}

		trainSet, testSet := patientsOf(train), patientsOf(test)
		for p := range testSet {
			tested[p]++
			all[p] = true
			if trainSet[p] {
				rep.addf("fold %d: patient %s is in both train and test", i, p)
			}
		}

		union := make(map[string]bool)
		for p := range trainSet {
			all[p] = true
			union[p] = true
		}
		for p := range testSet {
			union[p] = true
		}
		sets[i] = union
	}

	for p := range all {
		if tested[p] != 1 {
			rep.addf("patient %s is tested in %d folds", p, tested[p])
		}
	}
	for i, s := range sets {
		if len(s) != len(all) {
			rep.addf("fold %d covers %d of %d patients", i, len(s), len(all))
		}
	}
	rep.Patients = len(all)

	return rep, nil
}
