package corpus

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

// ToImage lays vec out as a width×height grayscale image, stretching its
// min..max range to 0..255. Eigenfaces have signed, unit-scale values, so a
// plain clamp would render them black.
func ToImage(vec []float64, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 || width*height != len(vec) {
		return nil, fmt.Errorf("%w: %d values do not fill %dx%d", ErrDimensionMismatch, len(vec), width, height)
	}
	lo, hi := floats.Min(vec), floats.Max(vec)
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range vec {
		img.Pix[i] = uint8((v-lo)*scale + 0.5)
	}
	return img, nil
}

// SaveVector writes vec as an image; the format follows the file extension.
func SaveVector(path string, vec []float64, width, height int) error {
	img, err := ToImage(vec, width, height)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}
