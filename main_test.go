package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestMain(m *testing.M) {
	cli.OsExiter = func(int) {}
	os.Exit(m.Run())
}

func runApp(fs afero.Fs, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(fs, &out)
	app.ErrWriter = &out

	err := app.Run(append([]string{"lapseg"}, args...))
	return out.String(), err
}

func TestPresetsCommand(t *testing.T) {
	out, err := runApp(afero.NewMemMapFs(), "presets")
	require.NoError(t, err)

	assert.Contains(t, out, "anatomy\n")
	assert.Contains(t, out, "auxtool\n")
	assert.Contains(t, out, "instrument\n")
	assert.Regexp(t, `suturing-instrument\s+ids=6,12,13,16\s+label=-`, out)
	assert.Regexp(t, `cannula\s+ids=14,28\s+label=255`, out)
}

const runConfig = `
backend: vector
jobs:
  anatomy:
    mode: mask
    annotations: /ann/anatomy.json
    preset: anatomy
    input_root: /data/ganseg
    output_root: /out/anatomy_mask
`

func TestRunCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data/ganseg/G01/p1", 0o755))
	writeSolid(t, fs, "/data/ganseg/G01/p1/a.png", image.Pt(16, 16), color.RGBA{0, 0, 0, 255})
	require.NoError(t, afero.WriteFile(fs, "/ann/anatomy.json", []byte(previewDoc), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(runConfig), 0o644))

	_, err := runApp(fs, "--config", "/cfg.yaml", "--json-log", "run")
	require.NoError(t, err)

	ok, _ := afero.Exists(fs, "/out/anatomy_mask/G01/p1/a_mask.png")
	assert.True(t, ok)

	_, err = runApp(fs, "--config", "/cfg.yaml", "run", "nope")
	assert.Error(t, err)

	_, err = runApp(fs, "--config", "/missing.yaml", "presets")
	assert.Error(t, err)
}

func TestFoldsAndVerifyCommands(t *testing.T) {
	fs := afero.NewMemMapFs()
	for i := 0; i < 6; i++ {
		dir := fmt.Sprintf("/ds/ganseg/GANSEG_01/%d.mp4_", i)
		require.NoError(t, fs.MkdirAll(dir, 0o755))
		require.NoError(t, afero.WriteFile(fs, dir+"/f.png", []byte("x"), 0o644))
	}

	out, err := runApp(fs, "--json-log", "folds", "--dataset-root", "/ds", "--output-dir", "/csv", "--prefix", "T", "--k", "3", "--seed", "9")
	require.NoError(t, err)
	assert.Contains(t, out, `"seed":9`)

	for i := 0; i < 3; i++ {
		for _, kind := range []string{"train", "test"} {
			ok, _ := afero.Exists(fs, fmt.Sprintf("/csv/T_%s_%d.csv", kind, i))
			assert.True(t, ok)
		}
	}

	_, err = runApp(fs, "verify", "--dir", "/csv", "--prefix", "T", "--k", "3")
	assert.NoError(t, err)

	_, err = runApp(fs, "verify", "--dir", "/csv", "--prefix", "T", "--k", "4")
	assert.Error(t, err)

	_, err = runApp(fs, "folds", "--dataset-root", "/ds", "--output-dir", "/csv", "--k", "0", "--seed", "1")
	assert.Error(t, err)
}
