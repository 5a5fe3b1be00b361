package raster

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Caption prints white text over a black outline, baseline-left at at.
func (CV) Caption(canvas Raster, text string, at image.Point) error {
	m, err := asMat(canvas)
	if err != nil {
		return err
	}

	gocv.PutTextWithParams(&m.mat, text, at, gocv.FontHersheySimplex, 0.5, color.RGBA{0, 0, 0, 255}, 2, gocv.LineAA, false)
	gocv.PutTextWithParams(&m.mat, text, at, gocv.FontHersheySimplex, 0.5, color.RGBA{255, 255, 255, 255}, 1, gocv.LineAA, false)
	return nil
}
