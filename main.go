package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/model-collapse/lapseg/annot"
	"github.com/model-collapse/lapseg/folds"
	"github.com/model-collapse/lapseg/logger"
	"github.com/model-collapse/lapseg/pipeline"
	"github.com/model-collapse/lapseg/raster"
)

const defaultConfigPath = "lapseg.yaml"

type env struct {
	fs  afero.Fs
	out io.Writer
	log zerolog.Logger
	cfg *Config
}

func (e *env) setup(c *cli.Context) error {
	level := logger.Level(c.GlobalBool("verbose"))
	if c.GlobalBool("json-log") {
		e.log = logger.New(e.out, level)
	} else {
		e.log = logger.NewConsole(e.out, level)
	}

	path := c.GlobalString("config")
	if ok, _ := afero.Exists(e.fs, path); !ok && !c.GlobalIsSet("config") {
		e.log.Debug().Str("config", path).Msg("no config file, using built-in jobs")
		e.cfg = DefaultConfig()
	} else {
		cfg, err := LoadConfig(e.fs, path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		e.cfg = cfg
	}

	if c.GlobalIsSet("backend") {
		e.cfg.Backend = c.GlobalString("backend")
	}
	return nil
}

func (e *env) runner(component string) (*pipeline.Runner, error) {
	rz, err := raster.New(e.cfg.Backend, e.fs)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}

	return pipeline.NewRunner(e.fs, rz, logger.Component(e.log, component)), nil
}

func (e *env) runJobs(c *cli.Context) error {
	names := []string(c.Args())
	if len(names) == 0 {
		names = e.cfg.JobNames()
	}

	r, err := e.runner("pipeline")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, name := range names {
		job, jc, err := e.cfg.Job(name)
		if err != nil {
			return cli.NewExitError(err, 1)
		}

		doc, err := annot.Load(e.fs, jc.Annotations)
		if err != nil {
			return cli.NewExitError(err, 2)
		}

		if _, err := r.Run(ctx, job, doc); err != nil {
			return cli.NewExitError(errors.Wrapf(err, "job %s", name), 2)
		}
	}

	return nil
}

func (e *env) splitFolds(c *cli.Context) error {
	fc := e.cfg.Folds
	if c.IsSet("dataset-root") {
		fc.DatasetRoot = c.String("dataset-root")
	}
	if c.IsSet("k") {
		fc.K = c.Int("k")
	}
	if c.IsSet("prefix") {
		fc.Prefix = c.String("prefix")
	}
	if c.IsSet("output-dir") {
		fc.OutputDir = c.String("output-dir")
	}

	var seed int64
	switch {
	case c.IsSet("seed"):
		seed = c.Int64("seed")
	case fc.Seed != nil:
		seed = *fc.Seed
	default:
		seed = time.Now().UnixNano()
	}

	s := &folds.Splitter{
		Fs:        e.fs,
		Layout:    folds.Layout{Root: fc.DatasetRoot},
		K:         fc.K,
		Prefix:    fc.Prefix,
		OutputDir: fc.OutputDir,
		Seed:      seed,
		Log:       logger.Component(e.log, "folds"),
	}

	if _, err := s.Run(); err != nil {
		if errors.Cause(err) == folds.ErrBadK {
			return cli.NewExitError(err, 1)
		}
		return cli.NewExitError(err, 2)
	}

	return nil
}

func (e *env) verify(c *cli.Context) error {
	fc := e.cfg.Folds
	dir, prefix, k := fc.OutputDir, fc.Prefix, fc.K
	if c.IsSet("dir") {
		dir = c.String("dir")
	}
	if c.IsSet("prefix") {
		prefix = c.String("prefix")
	}
	if c.IsSet("k") {
		k = c.Int("k")
	}

	rep, err := folds.Verify(e.fs, dir, prefix, k, c.Bool("check-masks"))
	if err != nil {
		return cli.NewExitError(err, 2)
	}

	log := logger.Component(e.log, "verify")
	for _, p := range rep.Problems {
		log.Warn().Msg(p)
	}
	log.Info().Int("folds", rep.Folds).Int("patients", rep.Patients).Int("rows", rep.Rows).
		Int("problems", len(rep.Problems)).Msg("verified")

	if !rep.OK() {
		return cli.NewExitError(fmt.Sprintf("%d problems found", len(rep.Problems)), 2)
	}
	return nil
}

func (e *env) serve(c *cli.Context) error {
	name := c.String("job")
	if name == "" {
		return cli.NewExitError("missing commandline flag `--job`", 1)
	}

	job, jc, err := e.cfg.Job(name)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	doc, err := annot.Load(e.fs, jc.Annotations)
	if err != nil {
		return cli.NewExitError(err, 2)
	}

	r, err := e.runner("preview")
	if err != nil {
		return err
	}

	s, err := newPreviewServer(r, job, doc)
	if err != nil {
		return cli.NewExitError(err, 2)
	}

	return serve(c.String("addr"), s)
}

func (e *env) presets(c *cli.Context) error {
	for _, n := range annot.PresetNames() {
		p, _ := annot.LookupPreset(n)
		fmt.Fprintf(e.out, "%s\n", n)
		for _, class := range p.Classes.Names() {
			ids := make([]string, 0)
			for _, id := range p.Classes.IDs(class) {
				ids = append(ids, fmt.Sprint(id))
			}

			label := "-"
			if v, ok := p.Labels[class]; ok {
				label = fmt.Sprint(v)
			}
			fmt.Fprintf(e.out, "  %-20s ids=%-12s label=%s\n", class, strings.Join(ids, ","), label)
		}
	}

	return nil
}

func newApp(fs afero.Fs, out io.Writer) *cli.App {
	e := &env{fs: fs, out: out}

	app := cli.NewApp()
	app.Name = "lapseg"
	app.Version = "0.1.0"
	app.Usage = "Turn polygon annotations into label masks and overlays, and split datasets into folds"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Value:  defaultConfigPath,
			Usage:  "YAML config with jobs and fold settings",
			EnvVar: "LAPSEG_CONFIG",
		},
		cli.StringFlag{
			Name:   "backend",
			Value:  raster.BackendCV,
			Usage:  "raster backend: cv or vector",
			EnvVar: "LAPSEG_BACKEND",
		},
		cli.BoolFlag{
			Name:   "verbose",
			Usage:  "log debug messages",
			EnvVar: "LAPSEG_VERBOSE",
		},
		cli.BoolFlag{
			Name:   "json-log",
			Usage:  "log JSON lines instead of console text",
			EnvVar: "LAPSEG_JSON_LOG",
		},
	}
	app.Before = e.setup
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Run mask and overlay jobs (all of them when none is named)",
			ArgsUsage: "[job...]",
			Action:    e.runJobs,
		},
		{
			Name:  "folds",
			Usage: "Split patient directories into cross-validation folds and write manifests",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dataset-root", Usage: "folder holding ganseg and ganseg_mask", EnvVar: "LAPSEG_DATASET_ROOT"},
				cli.IntFlag{Name: "k", Value: folds.DefaultK, Usage: "number of folds", EnvVar: "LAPSEG_FOLDS_K"},
				cli.StringFlag{Name: "prefix", Usage: "manifest file name prefix", EnvVar: "LAPSEG_PREFIX"},
				cli.StringFlag{Name: "output-dir", Usage: "folder the manifests are written to", EnvVar: "LAPSEG_OUTPUT_DIR"},
				cli.Int64Flag{Name: "seed", Usage: "shuffle seed; drawn from the clock and logged when unset", EnvVar: "LAPSEG_SEED"},
			},
			Action: e.splitFolds,
		},
		{
			Name:  "verify",
			Usage: "Check fold manifests for leaks between train and test",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir", Usage: "folder holding the manifests", EnvVar: "LAPSEG_OUTPUT_DIR"},
				cli.StringFlag{Name: "prefix", Usage: "manifest file name prefix", EnvVar: "LAPSEG_PREFIX"},
				cli.IntFlag{Name: "k", Value: folds.DefaultK, Usage: "number of folds", EnvVar: "LAPSEG_FOLDS_K"},
				cli.BoolFlag{Name: "check-masks", Usage: "also require every referenced mask to exist"},
			},
			Action: e.verify,
		},
		{
			Name:  "serve",
			Usage: "Serve on-demand mask and overlay previews for one job",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "job", Usage: "job to preview", EnvVar: "LAPSEG_JOB"},
				cli.StringFlag{Name: "addr", Value: "0.0.0.0:8093", Usage: "listen address", EnvVar: "LAPSEG_ADDR"},
			},
			Action: e.serve,
		},
		{
			Name:   "presets",
			Usage:  "Print the built-in class and label tables",
			Action: e.presets,
		},
	}

	return app
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "lapseg: %v\n", err)
		os.Exit(1)
	}

	app := newApp(afero.NewOsFs(), os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lapseg: %v\n", err)
		os.Exit(1)
	}
}
