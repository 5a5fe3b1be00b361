// Package pipeline turns annotation documents into mask or overlay images.
// One Job describes a whole batch: which classes to keep, how to draw them and
// where the results go.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/model-collapse/lapseg/annot"
	"github.com/model-collapse/lapseg/raster"
)

type Mode string

const (
	ModeMask    Mode = "mask"
	ModeOverlay Mode = "overlay"
)

const DefaultAlpha = 0.4

type Job struct {
	Name          string
	Mode          Mode
	Classes       annot.ClassMap
	Labels        annot.LabelTable
	InputRoot     string
	OutputRoot    string
	OriginalsRoot string
	Alpha         float64
	// Captions prints the effective class name at each polygon's centroid on
	// overlays. Only rasterizers implementing raster.Captioner honour it.
	Captions bool
}

func (j Job) Validate() error {
	switch j.Mode {
	case ModeMask, ModeOverlay:
	default:
		return errors.Errorf("job %s: unknown mode %q", j.Name, j.Mode)
	}

	if len(j.Classes) == 0 {
		return errors.Errorf("job %s: empty class table", j.Name)
	}
	if j.InputRoot == "" || j.OutputRoot == "" {
		return errors.Errorf("job %s: input and output roots are required", j.Name)
	}
	if j.Mode == ModeOverlay && j.OriginalsRoot == "" {
		return errors.Errorf("job %s: overlay needs an originals root", j.Name)
	}
	if j.Alpha < 0 || j.Alpha > 1 {
		return errors.Errorf("job %s: alpha %v out of range", j.Name, j.Alpha)
	}

	return nil
}

func (j Job) alpha() float64 {
	if j.Alpha == 0 {
		return DefaultAlpha
	}

	return j.Alpha
}

func (j Job) roots() []string {
	if j.Mode == ModeOverlay {
		return []string{j.OutputRoot, j.OriginalsRoot}
	}

	return []string{j.OutputRoot}
}

func (j Job) renderer(log zerolog.Logger) Renderer {
	if j.Mode == ModeOverlay {
		return &OverlayRenderer{Job: j, Log: log}
	}

	return &MaskRenderer{Job: j, Log: log}
}

// Task is one image with its retained annotations.
type Task struct {
	Image       annot.Image
	Annotations []annot.Annotation
	RelDir      string
}

type Plan struct {
	Tasks []Task
	// Missing lists image ids referenced by retained annotations but absent
	// from the image table.
	Missing []int64
}

type Stats struct {
	Images  int
	Skipped int
	Files   int
}

type Runner struct {
	Fs     afero.Fs
	Raster raster.Rasterizer
	Log    zerolog.Logger
}

func NewRunner(fs afero.Fs, rz raster.Rasterizer, log zerolog.Logger) *Runner {
	return &Runner{Fs: fs, Raster: rz, Log: log}
}

// Plan groups the retained annotations per image and resolves where every
// image's outputs go. An image outside the input root fails the whole plan,
// so nothing is written for a misconfigured job.
func (r *Runner) Plan(job Job, doc *annot.Document) (*Plan, error) {
	idx := doc.Index()
	ret := &Plan{}

	for _, g := range doc.Group(job.Classes) {
		img, ok := idx[g.ImageID]
		if !ok {
			r.Log.Warn().Str("job", job.Name).Int64("image_id", g.ImageID).Msg("image id not found")
			ret.Missing = append(ret.Missing, g.ImageID)
			continue
		}

		rel, err := RelDir(job.InputRoot, img.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "job %s, image %d", job.Name, img.ID)
		}

		ret.Tasks = append(ret.Tasks, Task{Image: img, Annotations: g.Annotations, RelDir: rel})
	}

	return ret, nil
}

// Render decodes the task's image and draws it without writing anything. The
// caller closes the returned rasters.
func (r *Runner) Render(job Job, t Task) ([]Output, error) {
	src, err := r.Raster.Decode(t.Image.Path)
	if err != nil {
		return nil, err
	}

	return job.renderer(r.Log).Render(r.Raster, src, t)
}

func (r *Runner) Run(ctx context.Context, job Job, doc *annot.Document) (Stats, error) {
	var stats Stats
	if err := job.Validate(); err != nil {
		return stats, err
	}

	log := r.Log.With().Str("job", job.Name).Logger()
	if job.Mode == ModeMask && len(job.Labels) == 0 {
		log.Warn().Msg("no label values configured, masks will stay empty")
	}
	if _, ok := r.Raster.(raster.Captioner); job.Captions && !ok {
		log.Warn().Msg("rasterizer cannot draw captions, skipping them")
	}

	plan, err := r.Plan(job, doc)
	if err != nil {
		return stats, err
	}
	stats.Skipped = len(plan.Missing)

	for _, root := range job.roots() {
		if err := r.Fs.MkdirAll(root, 0o755); err != nil {
			return stats, errors.Wrapf(err, "create %s", root)
		}
	}

	log.Info().Int("images", len(plan.Tasks)).Msg("processing")
	for _, t := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		outs, err := r.Render(job, t)
		if errors.Cause(err) == raster.ErrDecode {
			log.Warn().Str("path", t.Image.Path).Msg("could not load image")
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}

		n, err := r.write(log, outs)
		closeAll(outs)
		stats.Files += n
		if err != nil {
			return stats, err
		}
		stats.Images++
	}

	log.Info().Int("images", stats.Images).Int("skipped", stats.Skipped).Int("files", stats.Files).Msg("done")
	return stats, nil
}

func (r *Runner) write(log zerolog.Logger, outs []Output) (n int, err error) {
	for _, o := range outs {
		if err = r.Fs.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
			return n, errors.Wrapf(err, "create %s", filepath.Dir(o.Path))
		}
		if err = r.Raster.Write(o.Path, o.Raster); err != nil {
			return n, err
		}

		n++
		ev := log.Info().Str("kind", o.Kind).Str("path", o.Path)
		if len(o.Classes) > 0 {
			ev = ev.Strs("classes", o.Classes)
		}
		ev.Msg("saved")
	}

	return n, nil
}

func closeAll(outs []Output) {
	for _, o := range outs {
		o.Raster.Close()
	}
}
