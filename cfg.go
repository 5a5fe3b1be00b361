package main

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/model-collapse/lapseg/annot"
	"github.com/model-collapse/lapseg/folds"
	"github.com/model-collapse/lapseg/pipeline"
	"github.com/model-collapse/lapseg/raster"
)

type JobConfig struct {
	Mode          string         `yaml:"mode"`
	Annotations   string         `yaml:"annotations"`
	Preset        string         `yaml:"preset"`
	Classes       map[int]string `yaml:"classes"`
	Labels        map[string]int `yaml:"labels"`
	InputRoot     string         `yaml:"input_root"`
	OutputRoot    string         `yaml:"output_root"`
	OriginalsRoot string         `yaml:"originals_root"`
	Alpha         float64        `yaml:"alpha"`
	Captions      bool           `yaml:"captions"`
}

type FoldsConfig struct {
	DatasetRoot string `yaml:"dataset_root"`
	K           int    `yaml:"k"`
	Prefix      string `yaml:"prefix"`
	OutputDir   string `yaml:"output_dir"`
	Seed        *int64 `yaml:"seed"`
}

type Config struct {
	Backend string               `yaml:"backend"`
	Jobs    map[string]JobConfig `yaml:"jobs"`
	Folds   FoldsConfig          `yaml:"folds"`
}

func defaultJobs() map[string]JobConfig {
	return map[string]JobConfig{
		"anatomy-mask": {
			Mode:        string(pipeline.ModeMask),
			Annotations: "Lap_Segmentation/anatomy.json",
			Preset:      "anatomy",
			InputRoot:   "Lap_Segmentation/ganseg",
			OutputRoot:  "anatomy_mask",
		},
		"anatomy-overlay": {
			Mode:          string(pipeline.ModeOverlay),
			Annotations:   "Lap_Segmentation/anatomy.json",
			Preset:        "anatomy",
			InputRoot:     "Lap_Segmentation/ganseg",
			OutputRoot:    "anatomy_overlays",
			OriginalsRoot: "anatomy_originals",
			Alpha:         pipeline.DefaultAlpha,
		},
		"instrument-overlay": {
			Mode:          string(pipeline.ModeOverlay),
			Annotations:   "Lap_Segmentation_1/instruments.json",
			Preset:        "instrument",
			InputRoot:     "Lap_Segmentation_1/insseg",
			OutputRoot:    "instrument_overlays",
			OriginalsRoot: "instrument_originals",
			Alpha:         pipeline.DefaultAlpha,
		},
		"auxtool-mask": {
			Mode:        string(pipeline.ModeMask),
			Annotations: "Lap_Segmentation_1/instruments.json",
			Preset:      "auxtool",
			InputRoot:   "Lap_Segmentation_1/insseg",
			OutputRoot:  "auxtool_mask",
		},
	}
}

// DefaultConfig reproduces the dataset layout the tool was first written for.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = raster.BackendCV
	}
	if c.Jobs == nil {
		c.Jobs = defaultJobs()
	}
	if c.Folds.DatasetRoot == "" {
		c.Folds.DatasetRoot = "Lap_anatomy_dataset"
	}
	if c.Folds.K == 0 {
		c.Folds.K = folds.DefaultK
	}
	if c.Folds.Prefix == "" {
		c.Folds.Prefix = "Lap_anatomy"
	}
	if c.Folds.OutputDir == "" {
		c.Folds.OutputDir = "."
	}
}

// LoadConfig reads a YAML config. Jobs listed in the file replace the
// built-in ones; every other unset field keeps its default.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	c.applyDefaults()

	return c, nil
}

// JobNames lists the configured jobs in name order.
func (c *Config) JobNames() []string {
	ret := make([]string, 0, len(c.Jobs))
	for n := range c.Jobs {
		ret = append(ret, n)
	}
	sort.Strings(ret)

	return ret
}

// Job resolves the named job into a pipeline job. Explicit classes and labels
// take precedence over the preset.
func (c *Config) Job(name string) (pipeline.Job, JobConfig, error) {
	jc, ok := c.Jobs[name]
	if !ok {
		return pipeline.Job{}, jc, errors.Errorf("no job named %q", name)
	}

	job := pipeline.Job{
		Name:          name,
		Mode:          pipeline.Mode(jc.Mode),
		InputRoot:     jc.InputRoot,
		OutputRoot:    jc.OutputRoot,
		OriginalsRoot: jc.OriginalsRoot,
		Alpha:         jc.Alpha,
		Captions:      jc.Captions,
	}

	if jc.Preset != "" {
		p, err := annot.LookupPreset(jc.Preset)
		if err != nil {
			return job, jc, errors.Wrapf(err, "job %s", name)
		}
		job.Classes, job.Labels = p.Classes, p.Labels
	}

	if len(jc.Classes) > 0 {
		job.Classes = annot.ClassMap(jc.Classes)
	}
	if len(jc.Labels) > 0 {
		job.Labels = make(annot.LabelTable, len(jc.Labels))
		for n, v := range jc.Labels {
			if v < 0 || v > 255 {
				return job, jc, errors.Errorf("job %s: label %s=%d does not fit in 8 bits", name, n, v)
			}
			job.Labels[n] = uint8(v)
		}
	}

	if jc.Annotations == "" {
		return job, jc, errors.Errorf("job %s: annotations file is required", name)
	}

	return job, jc, job.Validate()
}
