package pipeline

import (
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/model-collapse/lapseg/raster"
)

const (
	KindMask     = "mask"
	KindOverlay  = "overlay"
	KindOriginal = "original"
)

// Output is one rendered image and the path it belongs at.
type Output struct {
	Kind    string
	Path    string
	Raster  raster.Raster
	Classes []string
}

// Renderer draws one task. It takes ownership of src: src is either returned
// as part of the outputs or closed.
type Renderer interface {
	Render(rz raster.Rasterizer, src raster.Raster, t Task) ([]Output, error)
}

type MaskRenderer struct {
	Job Job
	Log zerolog.Logger
}

func (m *MaskRenderer) Render(rz raster.Rasterizer, src raster.Raster, t Task) ([]Output, error) {
	size := src.Size()
	src.Close()

	if s, ok := t.Image.Size(); ok {
		if s != size {
			m.Log.Debug().Str("path", t.Image.Path).Interface("json", s).Interface("decoded", size).
				Msg("image size differs from annotation document")
		}
		size = s
	}

	mask, err := rz.NewMask(size)
	if err != nil {
		return nil, err
	}

	for _, ann := range t.Annotations {
		label := m.Job.Labels.Label(m.Job.Classes, *ann.CategoryID)
		for _, poly := range ann.Points() {
			if err := rz.FillMask(mask, poly, label); err != nil {
				mask.Close()
				return nil, err
			}
		}
	}

	return []Output{{
		Kind:   KindMask,
		Path:   filepath.Join(m.Job.OutputRoot, t.RelDir, MaskName(t.Image.Name())),
		Raster: mask,
	}}, nil
}

type OverlayRenderer struct {
	Job Job
	Log zerolog.Logger
}

func (o *OverlayRenderer) Render(rz raster.Rasterizer, src raster.Raster, t Task) ([]Output, error) {
	canvas, err := rz.Clone(src)
	if err != nil {
		src.Close()
		return nil, err
	}

	captioner, captions := rz.(raster.Captioner)
	captions = captions && o.Job.Captions
	alpha := o.Job.alpha()
	seen := make(map[string]bool)

	fail := func(err error) ([]Output, error) {
		canvas.Close()
		src.Close()
		return nil, err
	}

	for _, ann := range t.Annotations {
		name := o.Job.Classes[*ann.CategoryID]
		seen[name] = true
		c := ann.DisplayColor()

		for _, poly := range ann.Points() {
			if err := rz.Blend(canvas, poly, c, alpha); err != nil {
				return fail(err)
			}
			if captions {
				if err := captioner.Caption(canvas, name, raster.Centroid(poly)); err != nil {
					return fail(err)
				}
			}
		}
	}

	classes := make([]string, 0, len(seen))
	for n := range seen {
		classes = append(classes, n)
	}
	sort.Strings(classes)

	name := t.Image.Name()
	return []Output{
		{
			Kind:    KindOverlay,
			Path:    filepath.Join(o.Job.OutputRoot, t.RelDir, OverlayName(name)),
			Raster:  canvas,
			Classes: classes,
		},
		{
			Kind:   KindOriginal,
			Path:   filepath.Join(o.Job.OriginalsRoot, t.RelDir, name),
			Raster: src,
		},
	}, nil
}
