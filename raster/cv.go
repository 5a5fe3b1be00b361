package raster

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// CV rasterizes with OpenCV. Paths are read and written on the local disk.
type CV struct{}

type cvRaster struct {
	mat gocv.Mat
}

func (r *cvRaster) Size() image.Point {
	return image.Point{X: r.mat.Cols(), Y: r.mat.Rows()}
}

func (r *cvRaster) Image() (image.Image, error) {
	return r.mat.ToImage()
}

func (r *cvRaster) Close() error {
	return r.mat.Close()
}

func asMat(r Raster) (*cvRaster, error) {
	m, ok := r.(*cvRaster)
	if !ok {
		return nil, errors.Errorf("raster %T does not belong to the cv backend", r)
	}

	return m, nil
}

func (CV) Decode(path string) (Raster, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, errors.Wrap(ErrDecode, path)
	}

	return &cvRaster{mat: mat}, nil
}

func (CV) NewMask(size image.Point) (Raster, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid mask size %v", size)
	}

	return &cvRaster{mat: gocv.Zeros(size.Y, size.X, gocv.MatTypeCV8UC1)}, nil
}

func (CV) Clone(r Raster) (Raster, error) {
	m, err := asMat(r)
	if err != nil {
		return nil, err
	}

	return &cvRaster{mat: m.mat.Clone()}, nil
}

func fillPoly(mat *gocv.Mat, poly Polygon, c color.RGBA) {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer pv.Close()

	gocv.FillPoly(mat, pv, c)
}

func (CV) FillMask(mask Raster, poly Polygon, label uint8) error {
	m, err := asMat(mask)
	if err != nil {
		return err
	}
	if len(poly) == 0 {
		return nil
	}

	fillPoly(&m.mat, poly, color.RGBA{R: label, G: label, B: label, A: 255})
	return nil
}

func (CV) Blend(canvas Raster, poly Polygon, c color.RGBA, alpha float64) error {
	m, err := asMat(canvas)
	if err != nil {
		return err
	}
	if len(poly) == 0 {
		return nil
	}

	scratch := m.mat.Clone()
	defer scratch.Close()

	fillPoly(&scratch, poly, c)
	gocv.AddWeighted(scratch, alpha, m.mat, 1-alpha, 0, &m.mat)
	return nil
}

func (CV) Write(path string, r Raster) error {
	m, err := asMat(r)
	if err != nil {
		return err
	}

	if !gocv.IMWrite(path, m.mat) {
		return errors.Errorf("could not write image %s", path)
	}

	return nil
}

func (CV) Encode(ext string, r Raster) ([]byte, error) {
	m, err := asMat(r)
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.FileExt(normExt(ext)), m.mat)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", ext)
	}
	defer buf.Close()

	data := buf.GetBytes()
	ret := make([]byte, len(data))
	copy(ret, data)

	return ret, nil
}
