// Package folds splits a dataset into patient-level cross-validation folds
// and writes one train and one test manifest per fold.
package folds

import (
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrBadK is returned when the number of folds is below one.
var ErrBadK = errors.New("number of folds must be at least 1")

const (
	ImagesDir = "ganseg"
	MasksDir  = "ganseg_mask"
)

// Layout locates the image and mask trees of a dataset.
type Layout struct {
	Root string
}

func (l Layout) Images() string {
	return filepath.Join(l.Root, ImagesDir)
}

func (l Layout) Masks() string {
	return filepath.Join(l.Root, MasksDir)
}

type Fold struct {
	Index int
	Test  []string
	Train []string
}

func subDirs(fs afero.Fs, dir string) ([]string, error) {
	fsl, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}

	var ret []string
	for _, f := range fsl {
		if f.IsDir() {
			ret = append(ret, filepath.Join(dir, f.Name()))
		}
	}

	return ret, nil
}

// Discover lists the patient directories two levels below imagesRoot.
func Discover(fs afero.Fs, imagesRoot string) ([]string, error) {
	groups, err := subDirs(fs, imagesRoot)
	if err != nil {
		return nil, err
	}

	var ret []string
	for _, g := range groups {
		patients, err := subDirs(fs, g)
		if err != nil {
			return nil, err
		}
		ret = append(ret, patients...)
	}

	return ret, nil
}

// Shuffle returns a permutation of patients determined by seed. The input is
// left as it is.
func Shuffle(patients []string, seed int64) []string {
	ret := make([]string, len(patients))
	copy(ret, patients)

	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(ret), func(i, j int) {
		ret[i], ret[j] = ret[j], ret[i]
	})

	return ret
}

// Split cuts patients into k contiguous groups. When len(patients) is not a
// multiple of k the first len(patients)%k groups hold one extra patient.
func Split(patients []string, k int) ([][]string, error) {
	if k < 1 {
		return nil, errors.Wrapf(ErrBadK, "k=%d", k)
	}

	n := len(patients)
	size, extra := n/k, n%k

	ret := make([][]string, k)
	start := 0
	for i := 0; i < k; i++ {
		end := start + size
		if i < extra {
			end++
		}
		ret[i] = patients[start:end:end]
		start = end
	}

	return ret, nil
}

// Assign makes fold i test on group i and train on every other group.
func Assign(groups [][]string) []Fold {
	ret := make([]Fold, len(groups))
	for i := range groups {
		f := Fold{Index: i, Test: append([]string(nil), groups[i]...)}
		for j, g := range groups {
			if j != i {
				f.Train = append(f.Train, g...)
			}
		}
		ret[i] = f
	}

	return ret
}

func sorted(ss []string) []string {
	ret := append([]string(nil), ss...)
	sort.Strings(ret)
	return ret
}
