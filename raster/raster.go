// Package raster draws annotation polygons into label masks and blended
// overlays. CV is backed by OpenCV through gocv; Vector is pure Go and draws
// with draw2d.
package raster

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrDecode is returned when a source image cannot be read or decoded.
var ErrDecode = errors.New("could not load image")

// Polygon is a closed outline in pixel coordinates.
type Polygon []image.Point

// Raster is an image owned by a Rasterizer. Masks have one 8-bit channel,
// decoded images have three.
type Raster interface {
	Size() image.Point
	Image() (image.Image, error)
	Close() error
}

type Rasterizer interface {
	Decode(path string) (Raster, error)
	NewMask(size image.Point) (Raster, error)
	Clone(r Raster) (Raster, error)
	// FillMask sets every pixel of the polygon to label. Later fills overwrite
	// earlier ones.
	FillMask(mask Raster, poly Polygon, label uint8) error
	// Blend fills the polygon on a scratch copy of canvas and mixes it back
	// as canvas = alpha*scratch + (1-alpha)*canvas.
	Blend(canvas Raster, poly Polygon, c color.RGBA, alpha float64) error
	Write(path string, r Raster) error
	Encode(ext string, r Raster) ([]byte, error)
}

// Captioner is implemented by rasterizers that can print text on a raster.
type Captioner interface {
	Caption(canvas Raster, text string, at image.Point) error
}

const (
	BackendCV     = "cv"
	BackendVector = "vector"
)

// New returns the rasterizer registered under name. fs is only used by the
// vector backend; the cv backend always works on the local disk.
func New(name string, fs afero.Fs) (Rasterizer, error) {
	switch name {
	case "", BackendCV:
		return CV{}, nil
	case BackendVector:
		return NewVector(fs), nil
	}

	return nil, errors.Errorf("unknown raster backend %q", name)
}

// Centroid is the mean of the polygon's points, truncated.
func Centroid(poly Polygon) image.Point {
	if len(poly) == 0 {
		return image.Point{}
	}

	var sx, sy int
	for _, p := range poly {
		sx += p.X
		sy += p.Y
	}

	return image.Point{X: sx / len(poly), Y: sy / len(poly)}
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}

	return ext
}

func extOf(path string) string {
	return normExt(filepath.Ext(path))
}
