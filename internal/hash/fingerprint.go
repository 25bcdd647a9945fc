// Package hash computes content fingerprints for duplicate detection: a
// strong non-cryptographic hash over raw file bytes for exact duplicates,
// and a difference hash (dHash) over decoded pixels for near-duplicates that
// survive re-encoding.
package hash

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/DougOr/fiftyone-brain/internal/types"
)

// DefaultHashSize is the dHash grid size. A 24x24 difference grid yields a
// 144-character hexadecimal fingerprint.
const DefaultHashSize = 24

// Fingerprinter computes a deterministic, fixed-format fingerprint for a
// sample's source file. Two samples with equal fingerprints are considered
// identical for hash-based detection.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

// New returns the fingerprinter for the given method. hashSize applies to the
// image method only; pass 0 for the default. It must be a positive even
// number so the bit string packs into whole hexadecimal digits.
func New(method types.HashMethod, hashSize int) (Fingerprinter, error) {
	if err := method.Validate(); err != nil {
		return nil, err
	}
	switch method {
	case types.HashFilepath:
		return fileFingerprinter{}, nil
	default:
		if hashSize == 0 {
			hashSize = DefaultHashSize
		}
		if hashSize < 2 || hashSize%2 != 0 {
			return nil, fmt.Errorf("%w: hash size must be a positive even number (got %d)",
				types.ErrConfiguration, hashSize)
		}
		return dHashFingerprinter{hashSize: hashSize}, nil
	}
}

// fileFingerprinter hashes the raw file bytes with xxhash64.
type fileFingerprinter struct{}

var _ Fingerprinter = fileFingerprinter{}

func (fileFingerprinter) Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash: open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: read %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
