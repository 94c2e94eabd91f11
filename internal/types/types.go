package types

// ImageVector is a flattened grayscale image, one float64 per pixel (row-major).
type ImageVector []float64

// LabeledSample is a single corpus entry handed from the loader to training and evaluation.
type LabeledSample struct {
	Vector ImageVector
	Label  string // Person/class identifier recovered from the corpus layout
	Path   string // Source file, only used to re-load the original pixels for display
}

// Labels returns the labels of samples in corpus order.
func Labels(samples []LabeledSample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Label
	}
	return out
}
