package types

import "fmt"

// DetectionMethod selects the duplicate-detection strategy for a leaky-splits
// analysis.
type DetectionMethod string

const (
	// DetectionHash detects duplicates by fingerprint equality.
	DetectionHash DetectionMethod = "hash"

	// DetectionSimilarity detects duplicates by embedding-space distance.
	DetectionSimilarity DetectionMethod = "similarity"
)

// Validate checks that the detection method is one of the supported values.
func (m DetectionMethod) Validate() error {
	switch m {
	case DetectionHash, DetectionSimilarity:
		return nil
	}
	return fmt.Errorf("%w: unknown detection method %q", ErrConfiguration, string(m))
}

// HashMethod selects the fingerprint strategy for hash-based detection.
type HashMethod string

const (
	// HashFilepath fingerprints the raw file bytes. Byte-identical files
	// collide; re-encoded or resized duplicates do not.
	HashFilepath HashMethod = "filepath"

	// HashImage fingerprints the decoded image with a difference hash
	// (dHash), tolerant of mild re-encoding.
	HashImage HashMethod = "image"
)

// Validate checks that the hash method is one of the supported values.
func (m HashMethod) Validate() error {
	switch m {
	case HashFilepath, HashImage:
		return nil
	}
	return fmt.Errorf("%w: unknown hash method %q", ErrConfiguration, string(m))
}
