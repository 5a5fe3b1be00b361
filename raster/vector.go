package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chewxy/math32"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/image/bmp"
)

// Vector rasterizes in pure Go on an afero filesystem. Polygons are filled
// without anti-aliasing and include their boundary pixels, as with the CV
// backend.
type Vector struct {
	Fs afero.Fs
}

func NewVector(fs afero.Fs) *Vector {
	return &Vector{Fs: fs}
}

type vecRaster struct {
	img draw.Image
}

func (r *vecRaster) Size() image.Point {
	return r.img.Bounds().Size()
}

func (r *vecRaster) Image() (image.Image, error) {
	return r.img, nil
}

func (r *vecRaster) Close() error {
	return nil
}

func asVec(r Raster) (*vecRaster, error) {
	v, ok := r.(*vecRaster)
	if !ok {
		return nil, errors.Errorf("raster %T does not belong to the vector backend", r)
	}

	return v, nil
}

func (v *Vector) Decode(path string) (Raster, error) {
	f, err := v.Fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, path)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return &vecRaster{img: rgba}, nil
}

func (v *Vector) NewMask(size image.Point) (Raster, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid mask size %v", size)
	}

	return &vecRaster{img: image.NewGray(image.Rect(0, 0, size.X, size.Y))}, nil
}

func (v *Vector) Clone(r Raster) (Raster, error) {
	src, err := asVec(r)
	if err != nil {
		return nil, err
	}

	switch img := src.img.(type) {
	case *image.Gray:
		c := image.NewGray(img.Rect)
		copy(c.Pix, img.Pix)
		return &vecRaster{img: c}, nil
	case *image.RGBA:
		c := image.NewRGBA(img.Rect)
		copy(c.Pix, img.Pix)
		return &vecRaster{img: c}, nil
	}

	return nil, errors.Errorf("unsupported raster image %T", src.img)
}

// cover marks the pixels OpenCV's fillPoly would set for poly: the outline
// is traced through pixel centres and stroked one pixel wide, so boundary
// pixels count as inside. Vertices are always covered.
func cover(rect image.Rectangle, poly Polygon) *image.Alpha {
	rgba := image.NewRGBA(rect)
	gc := draw2dimg.NewGraphicContext(rgba)
	gc.SetFillColor(color.White)
	gc.SetStrokeColor(color.White)
	gc.SetLineWidth(1)
	gc.SetLineJoin(draw2d.MiterJoin)
	gc.SetLineCap(draw2d.SquareCap)

	last := poly[len(poly)-1]
	gc.MoveTo(float64(last.X)+0.5, float64(last.Y)+0.5)
	for _, p := range poly {
		gc.LineTo(float64(p.X)+0.5, float64(p.Y)+0.5)
	}
	gc.Close()
	gc.FillStroke()

	ret := image.NewAlpha(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if rgba.Pix[rgba.PixOffset(x, y)+3] >= 0x80 {
				ret.Pix[ret.PixOffset(x, y)] = 0xff
			}
		}
	}
	for _, p := range poly {
		if p.In(rect) {
			ret.Pix[ret.PixOffset(p.X, p.Y)] = 0xff
		}
	}

	return ret
}

func (v *Vector) FillMask(mask Raster, poly Polygon, label uint8) error {
	m, err := asVec(mask)
	if err != nil {
		return err
	}
	gray, ok := m.img.(*image.Gray)
	if !ok {
		return errors.Errorf("mask must be single channel, got %T", m.img)
	}
	if len(poly) == 0 {
		return nil
	}

	in := cover(gray.Rect, poly)
	for i, a := range in.Pix {
		if a != 0 {
			gray.Pix[i] = label
		}
	}

	return nil
}

func (v *Vector) Blend(canvas Raster, poly Polygon, c color.RGBA, alpha float64) error {
	m, err := asVec(canvas)
	if err != nil {
		return err
	}
	dst, ok := m.img.(*image.RGBA)
	if !ok {
		return errors.Errorf("canvas must be color, got %T", m.img)
	}
	if len(poly) == 0 {
		return nil
	}

	a := float32(alpha)
	mix := func(fill, px uint8) uint8 {
		return uint8(math32.Round(a*float32(fill) + (1-a)*float32(px)))
	}

	in := cover(dst.Rect, poly)
	for i, cov := range in.Pix {
		if cov == 0 {
			continue
		}
		o := i * 4
		dst.Pix[o] = mix(c.R, dst.Pix[o])
		dst.Pix[o+1] = mix(c.G, dst.Pix[o+1])
		dst.Pix[o+2] = mix(c.B, dst.Pix[o+2])
	}

	return nil
}

func (v *Vector) Write(path string, r Raster) error {
	f, err := v.Fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	if err := encode(f, extOf(path), r); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}

	return errors.Wrapf(f.Close(), "close %s", path)
}

func (v *Vector) Encode(ext string, r Raster) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, normExt(ext), r); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encode(w io.Writer, ext string, r Raster) error {
	src, err := asVec(r)
	if err != nil {
		return err
	}

	switch ext {
	case ".png":
		return png.Encode(w, src.img)
	case ".jpg":
		return jpeg.Encode(w, src.img, &jpeg.Options{Quality: 95})
	case ".bmp":
		return bmp.Encode(w, src.img)
	}

	return errors.Errorf("unsupported image format %q", ext)
}
