// Package annot reads COCO-like polygon annotation documents and the class
// tables that decide which annotations are kept.
package annot

import (
	"image"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Polygons is the segmentation field of an annotation. Anything that is not a
// list of coordinate lists (COCO RLE objects, strings) decodes as no polygons.
type Polygons [][]float64

func (p *Polygons) UnmarshalJSON(data []byte) error {
	var raw [][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = nil
		return nil
	}

	*p = raw
	return nil
}

type Annotation struct {
	ID           int64    `json:"id"`
	ImageID      int64    `json:"image_id"`
	CategoryID   *int     `json:"category_id"`
	Segmentation Polygons `json:"segmentation"`
	Color        string   `json:"color"`
}

type Image struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Width    *int   `json:"width"`
	Height   *int   `json:"height"`
}

type Document struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
}

// Group holds the retained annotations of one image.
type Group struct {
	ImageID     int64
	Annotations []Annotation
}

func Load(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read annotations %s", path)
	}

	return Parse(data)
}

func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "decode annotations")
	}

	return doc, nil
}

// Index maps image ids to their records. A repeated id keeps the last record.
func (d *Document) Index() map[int64]Image {
	ret := make(map[int64]Image, len(d.Images))
	for _, img := range d.Images {
		ret[img.ID] = img
	}

	return ret
}

// Group keeps the annotations whose category id is in classes and groups them
// per image. Groups come in the order their image id first appears.
func (d *Document) Group(classes ClassMap) []Group {
	pos := make(map[int64]int)
	var ret []Group
	for _, ann := range d.Annotations {
		if ann.CategoryID == nil {
			continue
		}
		if _, ok := classes[*ann.CategoryID]; !ok {
			continue
		}

		i, ok := pos[ann.ImageID]
		if !ok {
			i = len(ret)
			pos[ann.ImageID] = i
			ret = append(ret, Group{ImageID: ann.ImageID})
		}
		ret[i].Annotations = append(ret[i].Annotations, ann)
	}

	return ret
}

// Name is the file name of the image, falling back to the base of its path.
func (img Image) Name() string {
	if img.FileName != "" {
		return img.FileName
	}

	return filepath.Base(img.Path)
}

// Size reports the width and height stored in the document. ok is false when
// either one is missing or not positive.
func (img Image) Size() (size image.Point, ok bool) {
	if img.Width == nil || img.Height == nil || *img.Width <= 0 || *img.Height <= 0 {
		return
	}

	return image.Point{X: *img.Width, Y: *img.Height}, true
}

// Points converts each flat coordinate list into integer pixel points,
// truncating toward zero. A trailing odd coordinate is dropped and empty
// polygons are skipped.
func (a Annotation) Points() [][]image.Point {
	ret := make([][]image.Point, 0, len(a.Segmentation))
	for _, seg := range a.Segmentation {
		n := len(seg) / 2
		if n == 0 {
			continue
		}

		pts := make([]image.Point, n)
		for i := 0; i < n; i++ {
			pts[i] = image.Point{X: int(seg[2*i]), Y: int(seg[2*i+1])}
		}
		ret = append(ret, pts)
	}

	return ret
}
