package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// ShowError prints the unified error box to stderr without exiting.
func ShowError(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 EIGENSENTINEL ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Fingerprint returns a deterministic hash of a corpus, based on the path,
// size and modification time of every file in order. Two runs with the same
// fingerprint trained on the same images.
func Fingerprint(paths []string) (string, error) {
	h := sha256.New()
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s-%d-%d\n", path, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
