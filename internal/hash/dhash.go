package hash

import (
	"fmt"
	"image"
	"os"
	"strings"

	// Registered decoders for the common image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// dHashFingerprinter computes a difference hash: the image is decoded,
// converted to grayscale, resized to (hashSize+1) x hashSize, and each pixel
// is compared against its right neighbor. The boolean comparison matrix is
// flattened row-major into a bit string and encoded as fixed-width hex of
// length hashSize*hashSize/4.
//
// Small photometric changes (mild re-compression, minor crops) usually leave
// the comparison matrix intact; structurally different images almost never
// collide.
type dHashFingerprinter struct {
	hashSize int
}

var _ Fingerprinter = dHashFingerprinter{}

func (d dHashFingerprinter) Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash: open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("hash: decode %s: %w", path, err)
	}

	// Grayscale and resize in one pass: scaling into a *image.Gray target
	// performs the color conversion.
	gray := image.NewGray(image.Rect(0, 0, d.hashSize+1, d.hashSize))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)

	var sb strings.Builder
	sb.Grow(d.hashSize * d.hashSize / 4)
	var nibble, nbits uint
	for row := 0; row < d.hashSize; row++ {
		for col := 0; col < d.hashSize; col++ {
			nibble <<= 1
			if gray.GrayAt(col+1, row).Y > gray.GrayAt(col, row).Y {
				nibble |= 1
			}
			nbits++
			if nbits == 4 {
				fmt.Fprintf(&sb, "%x", nibble)
				nibble, nbits = 0, 0
			}
		}
	}
	return sb.String(), nil
}
