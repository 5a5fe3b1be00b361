package annot

import (
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ClassMap maps raw category ids onto effective class names. Several ids may
// share one name.
type ClassMap map[int]string

// LabelTable maps effective class names onto mask pixel values. 0 is background.
type LabelTable map[string]uint8

type Preset struct {
	Name    string
	Classes ClassMap
	Labels  LabelTable
}

var presets = map[string]Preset{
	"anatomy": {
		Name: "anatomy",
		Classes: ClassMap{
			20: "uterus",
			22: "tube",
			23: "ovary",
		},
		Labels: LabelTable{
			"uterus": 85,
			"tube":   170,
			"ovary":  255,
		},
	},
	"instrument": {
		Name: "instrument",
		Classes: ClassMap{
			2:  "grasper",
			3:  "irrigator",
			5:  "bipolar-forceps",
			7:  "sealer-divider",
			10: "scissors",
			11: "hook",
			6:  "suturing-instrument",
			12: "suturing-instrument",
			13: "suturing-instrument",
			16: "suturing-instrument",
		},
	},
	"auxtool": {
		Name: "auxtool",
		Classes: ClassMap{
			4:  "morcellator",
			9:  "thread",
			27: "trocar-sleeve",
			14: "cannula",
			28: "cannula",
		},
		Labels: LabelTable{
			"morcellator":   60,
			"thread":        85,
			"trocar-sleeve": 170,
			"cannula":       255,
		},
	},
}

func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, errors.Errorf("unknown class preset %q", name)
	}

	return p, nil
}

// PresetNames lists the built-in presets in name order.
func PresetNames() []string {
	ret := make([]string, 0, len(presets))
	for n := range presets {
		ret = append(ret, n)
	}
	sort.Strings(ret)

	return ret
}

// Names returns the distinct effective names in name order.
func (c ClassMap) Names() []string {
	seen := make(map[string]bool)
	var ret []string
	for _, n := range c {
		if !seen[n] {
			seen[n] = true
			ret = append(ret, n)
		}
	}
	sort.Strings(ret)

	return ret
}

// IDs returns the category ids of the class name in ascending order.
func (c ClassMap) IDs(name string) []int {
	var ret []int
	for id, n := range c {
		if n == name {
			ret = append(ret, id)
		}
	}
	sort.Ints(ret)

	return ret
}

// Label resolves a raw category id to its mask value. Unknown ids and names
// without a label resolve to 0.
func (l LabelTable) Label(classes ClassMap, categoryID int) uint8 {
	name, ok := classes[categoryID]
	if !ok {
		return 0
	}

	return l[name]
}

var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// ParseHexColor reads "#RRGGBB". Anything that is not six hex digits after the
// optional '#' gives white.
func ParseHexColor(s string) color.RGBA {
	s = strings.TrimLeft(s, "#")
	if len(s) != 6 {
		return White
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return White
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// DisplayColor is the annotation's display color, white when unset.
func (a Annotation) DisplayColor() color.RGBA {
	if a.Color == "" {
		return White
	}

	return ParseHexColor(a.Color)
}
