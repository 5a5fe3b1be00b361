package folds

import (
	"encoding/csv"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

var header = []string{"", "imgs", "masks"}

// Row is one manifest line: an image and the mask it is paired with.
type Row struct {
	Index int
	Image string
	Mask  string
}

func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// MaskPath mirrors image from the images tree into the masks tree and adds
// the _mask suffix.
func MaskPath(l Layout, image string) (string, error) {
	rel, err := filepath.Rel(l.Images(), image)
	if err != nil {
		return "", errors.Wrapf(err, "relative path of %s", image)
	}

	name := filepath.Base(rel)
	ext := filepath.Ext(name)
	return filepath.Join(l.Masks(), filepath.Dir(rel), strings.TrimSuffix(name, ext)+"_mask"+ext), nil
}

// Rows lists the images of the patients, patients and files both in name
// order. Index restarts at 0 and paths are absolute. Mask files are not
// checked for existence.
func Rows(fs afero.Fs, patients []string, l Layout) ([]Row, error) {
	var ret []Row
	for _, p := range sorted(patients) {
		fsl, err := afero.ReadDir(fs, p)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", p)
		}

		for _, f := range fsl {
			if f.IsDir() || !IsImage(f.Name()) {
				continue
			}

			img := filepath.Join(p, f.Name())
			mask, err := MaskPath(l, img)
			if err != nil {
				return nil, err
			}

			absImg, err := filepath.Abs(img)
			if err != nil {
				return nil, errors.Wrapf(err, "absolute path of %s", img)
			}
			absMask, err := filepath.Abs(mask)
			if err != nil {
				return nil, errors.Wrapf(err, "absolute path of %s", mask)
			}

			ret = append(ret, Row{Index: len(ret), Image: absImg, Mask: absMask})
		}
	}

	return ret, nil
}

// WriteManifest writes rows as CSV with a ",imgs,masks" header. Lines end in
// CRLF, the way Python's csv module writes them.
func WriteManifest(fs afero.Fs, path string, rows []Row) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true

	if err := w.Write(header); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	for _, r := range rows {
		if err := w.Write([]string{strconv.Itoa(r.Index), r.Image, r.Mask}); err != nil {
			f.Close()
			return errors.Wrapf(err, "write %s", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}

	return errors.Wrapf(f.Close(), "close %s", path)
}

func ManifestNames(prefix string, fold int) (train, test string) {
	return prefix + "_train_" + strconv.Itoa(fold) + ".csv",
		prefix + "_test_" + strconv.Itoa(fold) + ".csv"
}
