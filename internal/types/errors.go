package types

import "errors"

var (
	// ErrEmptyCorpus indicates a corpus or training set with zero samples.
	ErrEmptyCorpus = errors.New("eigensentinel: corpus contains no samples")
	// ErrDimensionMismatch indicates vectors of differing length within a corpus,
	// or a probe whose length differs from the trained model.
	ErrDimensionMismatch = errors.New("eigensentinel: image vector dimension mismatch")
)
