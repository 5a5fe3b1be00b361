package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrOutsideRoot is returned for image paths that do not live under the job's
// input root.
var ErrOutsideRoot = errors.New("image path is outside the input root")

// RelDir strips "<root>/" from path and returns the directory left over.
func RelDir(root, path string) (string, error) {
	prefix := filepath.Clean(root)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", errors.Wrapf(ErrOutsideRoot, "%s not under %s", path, root)
	}

	return filepath.Dir(path[len(prefix):]), nil
}

func splitName(name string) (base, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// MaskName is always PNG so label values survive untouched.
func MaskName(fileName string) string {
	base, _ := splitName(fileName)
	return base + "_mask.png"
}

func OverlayName(fileName string) string {
	base, ext := splitName(fileName)
	return base + "_annotated" + ext
}
