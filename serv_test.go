package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	http "github.com/valyala/fasthttp"

	"github.com/model-collapse/lapseg/annot"
	"github.com/model-collapse/lapseg/pipeline"
	"github.com/model-collapse/lapseg/raster"
)

func writeSolid(t *testing.T, fs afero.Fs, path string, size image.Point, c color.RGBA) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}

	f, err := fs.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

const previewDoc = `{
  "images": [
    {"id": 1, "path": "/data/ganseg/G01/p1/a.png", "width": 16, "height": 16},
    {"id": 2, "path": "/data/ganseg/G01/p1/broken.png"}
  ],
  "annotations": [
    {"image_id": 1, "category_id": 20, "segmentation": [[2, 2, 12, 2, 12, 12, 2, 12]]},
    {"image_id": 2, "category_id": 20, "segmentation": [[2, 2, 12, 2, 12, 12]]}
  ]
}`

func newTestPreview(t *testing.T) *previewServer {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data/ganseg/G01/p1", 0o755))
	writeSolid(t, fs, "/data/ganseg/G01/p1/a.png", image.Pt(16, 16), color.RGBA{0, 0, 0, 255})
	require.NoError(t, afero.WriteFile(fs, "/data/ganseg/G01/p1/broken.png", []byte("x"), 0o644))

	doc, err := annot.Parse([]byte(previewDoc))
	require.NoError(t, err)

	p, _ := annot.LookupPreset("anatomy")
	job := pipeline.Job{
		Name:       "anatomy-mask",
		Mode:       pipeline.ModeMask,
		Classes:    p.Classes,
		Labels:     p.Labels,
		InputRoot:  "/data/ganseg",
		OutputRoot: "/out/mask",
	}

	r := pipeline.NewRunner(fs, raster.NewVector(fs), zerolog.Nop())
	s, err := newPreviewServer(r, job, doc)
	require.NoError(t, err)
	return s
}

func get(s *previewServer, uri string) *http.RequestCtx {
	c := &http.RequestCtx{}
	c.Request.SetRequestURI(uri)
	s.handle(c)
	return c
}

func TestPreviewMask(t *testing.T) {
	s := newTestPreview(t)

	c := get(s, "/mask?id=1")
	require.Equal(t, http.StatusOK, c.Response.StatusCode())
	assert.Equal(t, "image/png", string(c.Response.Header.ContentType()))

	img, err := png.Decode(bytes.NewReader(c.Response.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	assert.Equal(t, uint8(85), color.GrayModel.Convert(img.At(6, 6)).(color.Gray).Y)
	assert.Equal(t, uint8(0), color.GrayModel.Convert(img.At(14, 14)).(color.Gray).Y)

	c = get(s, "/mask?id=1&width=8")
	require.Equal(t, http.StatusOK, c.Response.StatusCode())
	img, err = png.Decode(bytes.NewReader(c.Response.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
}

func TestPreviewOverlay(t *testing.T) {
	s := newTestPreview(t)

	c := get(s, "/overlay?id=1&width=8")
	require.Equal(t, http.StatusOK, c.Response.StatusCode())
	assert.Equal(t, "image/jpeg", string(c.Response.Header.ContentType()))

	img, err := jpeg.Decode(bytes.NewReader(c.Response.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	c = get(s, "/overlay?id=1")
	require.Equal(t, http.StatusOK, c.Response.StatusCode())
	img, err = jpeg.Decode(bytes.NewReader(c.Response.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	exists, _ := afero.DirExists(s.runner.Fs, "/out")
	assert.False(t, exists, "previews never write outputs")
}

func TestPreviewErrors(t *testing.T) {
	s := newTestPreview(t)

	tests := []struct {
		uri  string
		code int
	}{
		{"/mask", http.StatusBadRequest},
		{"/mask?id=abc", http.StatusBadRequest},
		{"/mask?id=99", http.StatusNotFound},
		{"/overlay?id=2", http.StatusUnprocessableEntity},
		{"/heatmap?id=1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.code, get(s, tt.uri).Response.StatusCode())
		})
	}
}
