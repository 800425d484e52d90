// Package stack validates and loads the per-orientation 2D image stacks
// behind the triplanar slice viewer. A manifest may carry one, two or all
// three orientations; within one orientation every image must share a
// single pixel size or the whole request is rejected before any encoding
// work starts.
package stack

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"sort"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var (
	// ErrUnrecognizedOrientation is returned for manifest keys outside
	// sagittal/coronal/axial.
	ErrUnrecognizedOrientation = errors.New("unrecognized orientation")

	// ErrInconsistentStack is returned when images within one
	// orientation disagree on pixel size.
	ErrInconsistentStack = errors.New("inconsistent image sizes within stack")
)

// Orientations is the fixed set of stack keys the viewer understands.
// Stacks are ordered bottom-left origin: axial I->S, coronal P->A,
// sagittal L->R.
var Orientations = []string{"sagittal", "coronal", "axial"}

// Manifest maps an orientation name to its ordered slice image paths.
type Manifest map[string][]string

// Summary describes one validated orientation: the common pixel size and
// the slice count used to size the viewer's slider range (zero-based, so
// file count minus one).
type Summary struct {
	Width  int
	Height int
	Slices int
}

// UserMessage renders the operator-facing failure text shown by the
// presentation layer. The code correlates the report with server logs.
func UserMessage(code string) string {
	return fmt.Sprintf("Triplanar view not responding. Please contact the "+
		"service administrator specifying the snap code '%s'.", code)
}

// Validate checks every orientation of the manifest and returns the
// per-orientation summaries. Validation is fail-fast: the first
// unrecognized key or size mismatch aborts with no partial result. Files
// are opened and closed one at a time.
func Validate(m Manifest) (map[string]Summary, error) {
	keys := make([]string, 0, len(m))
	for orient := range m {
		keys = append(keys, orient)
	}
	sort.Strings(keys)

	out := make(map[string]Summary, len(keys))
	for _, orient := range keys {
		if !validOrientation(orient) {
			return nil, fmt.Errorf("%w: %q", ErrUnrecognizedOrientation, orient)
		}
		if len(m[orient]) == 0 {
			return nil, fmt.Errorf("%s stack has no images", orient)
		}

		var ref image.Config
		for i, path := range m[orient] {
			cfg, err := imageSize(path)
			if err != nil {
				return nil, fmt.Errorf("%s stack: %v", orient, err)
			}
			if i == 0 {
				ref = cfg
				continue
			}
			if cfg.Width != ref.Width || cfg.Height != ref.Height {
				return nil, fmt.Errorf("%w: %s stack, %s is %dx%d, expected %dx%d",
					ErrInconsistentStack, orient, path,
					cfg.Width, cfg.Height, ref.Width, ref.Height)
			}
		}

		out[orient] = Summary{
			Width:  ref.Width,
			Height: ref.Height,
			Slices: len(m[orient]) - 1,
		}
	}
	return out, nil
}

// LoadEncoded validates the manifest and then returns each stack file's
// raw contents base64-encoded, keyed identically to the input. The context
// is checked between files so a large stack load can be bounded.
func LoadEncoded(ctx context.Context, m Manifest) (map[string][]string, error) {
	if _, err := Validate(m); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(m))
	for orient, paths := range m {
		encoded := make([]string, len(paths))
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("%s stack: %v", orient, err)
			}
			encoded[i] = base64.StdEncoding.EncodeToString(raw)
		}
		out[orient] = encoded
	}
	return out, nil
}

func validOrientation(name string) bool {
	for _, o := range Orientations {
		if name == o {
			return true
		}
	}
	return false
}

// imageSize reads just enough of one image file to learn its pixel size.
func imageSize(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to decode %s: %v", path, err)
	}
	return cfg, nil
}
