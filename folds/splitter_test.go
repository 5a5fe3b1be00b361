package folds

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenPatients(t *testing.T, fs afero.Fs) {
	t.Helper()

	makeDataset(t, fs, "/ds", map[string][]string{
		"GANSEG_01": {"0.mp4_", "1.mp4_", "2.mp4_", "3.mp4_"},
		"GANSEG_02": {"4.mp4_", "5.mp4_", "6.mp4_"},
		"GANSEG_03": {"7.mp4_", "8.mp4_", "9.mp4_"},
	}, "f1.png", "f2.png", "skip.json")
}

func newSplitter(fs afero.Fs, out string, seed int64) *Splitter {
	return &Splitter{
		Fs:        fs,
		Layout:    Layout{Root: "/ds"},
		K:         4,
		Prefix:    "Lap_anatomy",
		OutputDir: out,
		Seed:      seed,
		Log:       zerolog.Nop(),
	}
}

func TestSplitterRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	tenPatients(t, fs)

	res, err := newSplitter(fs, "/csv", 11).Run()
	require.NoError(t, err)
	assert.Equal(t, 10, res.Patients)
	require.Len(t, res.Folds, 4)

	var testSizes []int
	for i, f := range res.Folds {
		assert.Equal(t, fmt.Sprintf("/csv/Lap_anatomy_train_%d.csv", i), f.TrainFile)
		assert.Equal(t, fmt.Sprintf("/csv/Lap_anatomy_test_%d.csv", i), f.TestFile)
		assert.Equal(t, 2*len(f.Test), f.TestRows)
		assert.Equal(t, 2*len(f.Train), f.TrainRows)
		testSizes = append(testSizes, len(f.Test))

		for _, name := range []string{f.TrainFile, f.TestFile} {
			ok, _ := afero.Exists(fs, name)
			assert.True(t, ok, name)
		}
	}
	assert.ElementsMatch(t, []int{3, 3, 2, 2}, testSizes)

	rep, err := Verify(fs, "/csv", "Lap_anatomy", 4, false)
	require.NoError(t, err)
	assert.True(t, rep.OK(), rep.Problems)
	assert.Equal(t, 10, rep.Patients)
	assert.Equal(t, 4*20, rep.Rows)
}

func TestSplitterIsReproducible(t *testing.T) {
	fs := afero.NewMemMapFs()
	tenPatients(t, fs)

	_, err := newSplitter(fs, "/a", 5).Run()
	require.NoError(t, err)
	_, err = newSplitter(fs, "/b", 5).Run()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		train, test := ManifestNames("Lap_anatomy", i)
		for _, name := range []string{train, test} {
			a, err := afero.ReadFile(fs, "/a/"+name)
			require.NoError(t, err)
			b, err := afero.ReadFile(fs, "/b/"+name)
			require.NoError(t, err)
			assert.Equal(t, a, b, name)
		}
	}
}

func TestSplitterMissingRoot(t *testing.T) {
	_, err := newSplitter(afero.NewMemMapFs(), "/csv", 1).Run()
	assert.Error(t, err)
}

func TestVerifyFindsProblems(t *testing.T) {
	fs := afero.NewMemMapFs()
	tenPatients(t, fs)

	res, err := newSplitter(fs, "/csv", 3).Run()
	require.NoError(t, err)

	rep, err := Verify(fs, "/csv", "Lap_anatomy", 4, true)
	require.NoError(t, err)
	assert.Len(t, rep.Problems, rep.Rows, "every mask is missing")

	// train fold 0 on its own test patients
	f := res.Folds[0]
	rows, err := Rows(fs, append(append([]string(nil), f.Train...), f.Test[0]), Layout{Root: "/ds"})
	require.NoError(t, err)
	require.NoError(t, WriteManifest(fs, f.TrainFile, rows))

	rep, err = Verify(fs, "/csv", "Lap_anatomy", 4, false)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Contains(t, rep.Problems[0], "in both train and test")

	_, err = Verify(fs, "/csv", "Lap_anatomy", 5, false)
	assert.Error(t, err, "fold 4 does not exist")
}
