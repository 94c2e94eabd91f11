// Package corpus turns a labeled image directory into flattened grayscale vectors.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresmejia3/eigensentinel/internal/types"
	"github.com/disintegration/imaging"
	_ "github.com/spakin/netpbm" // Register PBM/PGM/PPM/PAM decoders
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

var (
	ErrEmptyCorpus       = types.ErrEmptyCorpus
	ErrDimensionMismatch = types.ErrDimensionMismatch
	// ErrUnreadableImage indicates a corpus or probe file that cannot be opened or decoded.
	ErrUnreadableImage = errors.New("corpus: unreadable image")
)

// Extensions lists the file types picked up by Discover (lower case).
var Extensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
	".pgm": true, ".ppm": true, ".pnm": true,
}

// Options controls decoding. Width and Height resize every image before
// flattening; leave both at 0 to keep native sizes.
type Options struct {
	Width, Height int
	// Progress, when set, is called after every file with the running count.
	Progress func(done, total int)
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Discover returns every image file under root in lexical walk order.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// LabelFor derives the class label of path relative to root: the first
// directory below root, or for files directly in root the file name up to the
// first '_' or '-'.
func LabelFor(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if dir, _, ok := strings.Cut(rel, "/"); ok {
		return dir
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	if i := strings.IndexAny(stem, "_-"); i > 0 {
		return stem[:i]
	}
	return stem
}

// Load decodes every image under root into a LabeledSample. All images must
// flatten to the same length; the first image fixes the dimension.
func Load(ctx context.Context, root string, opts Options) ([]types.LabeledSample, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images under %s", ErrEmptyCorpus, root)
	}

	log := opts.logger()
	samples := make([]types.LabeledSample, 0, len(paths))
	var first image.Rectangle
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, bounds, err := decode(path, opts)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = bounds
		} else if len(vec) != len(samples[0].Vector) {
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrDimensionMismatch,
				path, bounds.Dx(), bounds.Dy(), paths[0], first.Dx(), first.Dy())
		}

		label := LabelFor(root, path)
		samples = append(samples, types.LabeledSample{Vector: vec, Label: label, Path: path})
		log.Debug("loaded image", zap.String("path", path), zap.String("label", label), zap.Int("dim", len(vec)))

		if opts.Progress != nil {
			opts.Progress(i+1, len(paths))
		}
	}
	return samples, nil
}

// LoadImage decodes a single probe image with the same pipeline as Load.
func LoadImage(path string, opts Options) (types.ImageVector, error) {
	vec, _, err := decode(path, opts)
	return vec, err
}

// Size reports the width and height path has after the Load pipeline resizes it.
func Size(path string, opts Options) (width, height int, err error) {
	_, b, err := decode(path, opts)
	if err != nil {
		return 0, 0, err
	}
	return b.Dx(), b.Dy(), nil
}

func decode(path string, opts Options) (types.ImageVector, image.Rectangle, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("%w: %s: %v", ErrUnreadableImage, path, err)
	}
	if opts.Width > 0 || opts.Height > 0 {
		img = imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos)
	}
	return Flatten(img), img.Bounds(), nil
}

// Flatten returns the luminance of img in row-major order, one value in [0,255] per pixel.
func Flatten(img image.Image) types.ImageVector {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	vec := make(types.ImageVector, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			// Grayscale output has R == G == B.
			vec = append(vec, float64(row[4*x]))
		}
	}
	return vec
}
