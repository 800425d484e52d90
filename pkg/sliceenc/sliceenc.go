// Package sliceenc decomposes a rescaled volume into the per-slice buffers
// shipped to the viewer: either one flat row-major array (raw mode) or an
// ordered sequence of compressed, base64-encoded 2D slices (encoded mode).
package sliceenc

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"neuroview/internal/models"
	"neuroview/pkg/geometry"
)

// FlattenRaw reorders a rescaled buffer into the flat row-major sequence
// expected in raw mode. For a 4D volume the time axis is moved to the
// leading position, so the output order is (t, x, y, z); a 3D volume is
// returned in (x, y, z) order.
//
// data must be in the storage order of models.Volume: (x, y, z, t) with t
// fastest.
func FlattenRaw(h models.VolumeHeader, data []uint16) ([]uint16, error) {
	if h.NDim != 3 && h.NDim != 4 {
		return nil, fmt.Errorf("%w (got rank %d)", geometry.ErrUnsupportedDimensionality, h.NDim)
	}
	if want := h.Nx * h.Ny * h.Nz * h.Nt; len(data) != want {
		return nil, fmt.Errorf("buffer has %d values, header implies %d", len(data), want)
	}

	out := make([]uint16, len(data))
	for x := 0; x < h.Nx; x++ {
		for y := 0; y < h.Ny; y++ {
			for z := 0; z < h.Nz; z++ {
				base := ((x*h.Ny+y)*h.Nz + z) * h.Nt
				for t := 0; t < h.Nt; t++ {
					out[((t*h.Nx+x)*h.Ny+y)*h.Nz+z] = data[base+t]
				}
			}
		}
	}
	return out, nil
}

// EncodeSlices compresses every 2D cross-section along the leading spatial
// axis and returns the base64 text of each, ordered time-major: slice k of
// timepoint t lands at index t*Nx + k. The output is pre-sized and filled
// by computed position, never appended.
//
// data must be the uint8 rescaled buffer in (x, y, z, t) storage order.
// The context is checked between slices so a slow decode can be bounded by
// the caller.
func EncodeSlices(ctx context.Context, h models.VolumeHeader, data []uint8, enc Encoder, quality int) ([]string, error) {
	if h.NDim != 3 && h.NDim != 4 {
		return nil, fmt.Errorf("%w (got rank %d)", geometry.ErrUnsupportedDimensionality, h.NDim)
	}
	if want := h.Nx * h.Ny * h.Nz * h.Nt; len(data) != want {
		return nil, fmt.Errorf("buffer has %d values, header implies %d", len(data), want)
	}

	out := make([]string, h.Nt*h.Nx)
	for t := 0; t < h.Nt; t++ {
		for x := 0; x < h.Nx; x++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			img := sliceImage(h, data, x, t)
			raw, err := enc.Encode(img, quality)
			if err != nil {
				return nil, fmt.Errorf("failed to encode slice %d of timepoint %d: %w", x, t, err)
			}
			out[t*h.Nx+x] = base64.StdEncoding.EncodeToString(raw)
		}
	}
	return out, nil
}

// sliceImage extracts the (y, z) plane at position x, timepoint t as a
// grayscale image with y rows and z columns.
func sliceImage(h models.VolumeHeader, data []uint8, x, t int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, h.Nz, h.Ny))
	for y := 0; y < h.Ny; y++ {
		for z := 0; z < h.Nz; z++ {
			img.Pix[y*img.Stride+z] = data[((x*h.Ny+y)*h.Nz+z)*h.Nt+t]
		}
	}
	return img
}
