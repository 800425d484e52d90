// Package rescale maps raw voxel intensities onto the unsigned integer
// ranges the viewer transports: 8-bit for JPEG-encoded slices, 16-bit for
// raw buffers.
package rescale

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ToUint8 linearly rescales data so its minimum maps to 0 and its maximum
// to 255. A constant volume (max == min) rescales to all zeros.
// The input slice is never mutated.
func ToUint8(data []float64) []uint8 {
	out := make([]uint8, len(data))
	if len(data) == 0 {
		return out
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if hi == lo {
		return out
	}

	scale := 255.0 / (hi - lo)
	for i, v := range data {
		out[i] = uint8(math.Round((v - lo) * scale))
	}
	return out
}

// ToUint16 linearly rescales data so its minimum maps to 0 and its maximum
// to 65535. The degenerate-range and mutation rules match ToUint8.
func ToUint16(data []float64) []uint16 {
	out := make([]uint16, len(data))
	if len(data) == 0 {
		return out
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if hi == lo {
		return out
	}

	scale := 65535.0 / (hi - lo)
	for i, v := range data {
		out[i] = uint16(math.Round((v - lo) * scale))
	}
	return out
}
