package folds

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImage(t *testing.T) {
	for _, n := range []string{"a.jpg", "a.JPEG", "b.Png", "c.bmp"} {
		assert.True(t, IsImage(n), n)
	}
	for _, n := range []string{"a.txt", "png", "a.png.bak", "a.tiff"} {
		assert.False(t, IsImage(n), n)
	}
}

func TestMaskPath(t *testing.T) {
	l := Layout{Root: "/ds"}
	got, err := MaskPath(l, "/ds/ganseg/G01/p1/frame_7.JPG")
	require.NoError(t, err)
	assert.Equal(t, "/ds/ganseg_mask/G01/p1/frame_7_mask.JPG", got)
}

func TestRowsAndManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	makeDataset(t, fs, "/ds", map[string][]string{"G01": {"p2", "p1"}}, "b.jpg", "a.PNG", "notes.txt")
	require.NoError(t, fs.MkdirAll("/ds/ganseg/G01/p1/thumbs.png", 0o755))

	l := Layout{Root: "/ds"}
	rows, err := Rows(fs, []string{"/ds/ganseg/G01/p2", "/ds/ganseg/G01/p1"}, l)
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{0, "/ds/ganseg/G01/p1/a.PNG", "/ds/ganseg_mask/G01/p1/a_mask.PNG"},
		{1, "/ds/ganseg/G01/p1/b.jpg", "/ds/ganseg_mask/G01/p1/b_mask.jpg"},
		{2, "/ds/ganseg/G01/p2/a.PNG", "/ds/ganseg_mask/G01/p2/a_mask.PNG"},
		{3, "/ds/ganseg/G01/p2/b.jpg", "/ds/ganseg_mask/G01/p2/b_mask.jpg"},
	}, rows)

	require.NoError(t, WriteManifest(fs, "/out/m.csv", rows[:2]))
	data, err := afero.ReadFile(fs, "/out/m.csv")
	require.NoError(t, err)
	assert.Equal(t, ",imgs,masks\r\n"+
		"0,/ds/ganseg/G01/p1/a.PNG,/ds/ganseg_mask/G01/p1/a_mask.PNG\r\n"+
		"1,/ds/ganseg/G01/p1/b.jpg,/ds/ganseg_mask/G01/p1/b_mask.jpg\r\n", string(data))

	back, err := ReadManifest(fs, "/out/m.csv")
	require.NoError(t, err)
	assert.Equal(t, rows[:2], back)
}

func TestEmptyManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteManifest(fs, "/out/empty.csv", nil))

	data, err := afero.ReadFile(fs, "/out/empty.csv")
	require.NoError(t, err)
	assert.Equal(t, ",imgs,masks\r\n", string(data))

	rows, err := ReadManifest(fs, "/out/empty.csv")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadManifestRejectsForeignCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/x.csv", []byte("id,path\n1,a\n"), 0o644))

	_, err := ReadManifest(fs, "/x.csv")
	assert.Error(t, err)
}

func TestManifestNames(t *testing.T) {
	train, test := ManifestNames("Lap_anatomy", 3)
	assert.Equal(t, "Lap_anatomy_train_3.csv", train)
	assert.Equal(t, "Lap_anatomy_test_3.csv", test)
}
