package main

import (
	"bytes"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	http "github.com/valyala/fasthttp"

	"github.com/model-collapse/lapseg/annot"
	"github.com/model-collapse/lapseg/pipeline"
	"github.com/model-collapse/lapseg/raster"
)

// previewServer renders masks and overlays of one job on request, without
// touching the output trees.
type previewServer struct {
	runner *pipeline.Runner
	job    pipeline.Job
	tasks  map[int64]pipeline.Task
	log    zerolog.Logger
}

func newPreviewServer(runner *pipeline.Runner, job pipeline.Job, doc *annot.Document) (*previewServer, error) {
	plan, err := runner.Plan(job, doc)
	if err != nil {
		return nil, err
	}

	tasks := make(map[int64]pipeline.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		tasks[t.Image.ID] = t
	}

	return &previewServer{
		runner: runner,
		job:    job,
		tasks:  tasks,
		log:    runner.Log.With().Str("job", job.Name).Logger(),
	}, nil
}

func (s *previewServer) handle(c *http.RequestCtx) {
	var mode pipeline.Mode
	switch string(c.Path()) {
	case "/mask":
		mode = pipeline.ModeMask
	case "/overlay":
		mode = pipeline.ModeOverlay
	default:
		c.Error("not found", http.StatusNotFound)
		return
	}

	id, err := c.QueryArgs().GetUint("id")
	if err != nil {
		c.Error("missing or invalid id", http.StatusBadRequest)
		return
	}

	t, ok := s.tasks[int64(id)]
	if !ok {
		c.Error("no annotated image with that id", http.StatusNotFound)
		return
	}

	width := c.QueryArgs().GetUintOrZero("width")
	data, ctype, err := s.render(mode, t, width)
	if errors.Cause(err) == raster.ErrDecode {
		s.log.Warn().Str("path", t.Image.Path).Msg("could not load image")
		c.Error("could not load image", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int("id", id).Msg("render failed")
		c.Error("render failed", http.StatusInternalServerError)
		return
	}

	s.log.Debug().Str("mode", string(mode)).Int("id", id).Int("bytes", len(data)).Msg("served")
	c.SetContentType(ctype)
	c.Write(data)
}

func (s *previewServer) render(mode pipeline.Mode, t pipeline.Task, width int) (data []byte, ctype string, err error) {
	job := s.job
	job.Mode = mode

	outs, err := s.runner.Render(job, t)
	if err != nil {
		return
	}
	defer func() {
		for _, o := range outs {
			o.Raster.Close()
		}
	}()

	out := outs[0].Raster
	ctype, ext := "image/jpeg", ".jpg"
	if mode == pipeline.ModeMask {
		ctype, ext = "image/png", ".png"
	}

	if width <= 0 {
		data, err = s.runner.Raster.Encode(ext, out)
		return
	}

	img, err := out.Image()
	if err != nil {
		return
	}

	var buf bytes.Buffer
	if mode == pipeline.ModeMask {
		err = png.Encode(&buf, resize.Resize(uint(width), 0, img, resize.NearestNeighbor))
	} else {
		err = jpeg.Encode(&buf, resize.Resize(uint(width), 0, img, resize.Lanczos3), &jpeg.Options{Quality: 90})
	}

	return buf.Bytes(), ctype, err
}

func serve(addr string, s *previewServer) error {
	s.log.Info().Str("addr", addr).Int("images", len(s.tasks)).Msg("serving")
	return http.ListenAndServe(addr, s.handle)
}
