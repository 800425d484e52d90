package sliceenc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/jpeg"
	"math"
	"testing"

	"neuroview/internal/models"
	"neuroview/pkg/geometry"
)

// header4D is a small time series: time=2, x=4, y=4, z=3
func header4D() models.VolumeHeader {
	return models.VolumeHeader{
		NDim: 4,
		Nx:   4, Ny: 4, Nz: 3,
		Nt:      2,
		Spacing: [3]float64{1, 1, 1},
	}
}

// storageIndex computes the (x, y, z, t) flat position in volume storage
// order, t fastest
func storageIndex(h models.VolumeHeader, x, y, z, t int) int {
	return ((x*h.Ny+y)*h.Nz+z)*h.Nt + t
}

// TestFlattenRaw4D verifies the raw-mode flatten: 96 values for the
// (2,4,4,3) scenario, row-major with time leading
func TestFlattenRaw4D(t *testing.T) {
	h := header4D()

	// Encode the timepoint and the spatial position into each value so
	// the output ordering is fully checkable
	data := make([]uint16, h.Nx*h.Ny*h.Nz*h.Nt)
	for x := 0; x < h.Nx; x++ {
		for y := 0; y < h.Ny; y++ {
			for z := 0; z < h.Nz; z++ {
				for tp := 0; tp < h.Nt; tp++ {
					spatial := (x*h.Ny+y)*h.Nz + z
					data[storageIndex(h, x, y, z, tp)] = uint16(tp*1000 + spatial)
				}
			}
		}
	}

	out, err := FlattenRaw(h, data)
	if err != nil {
		t.Fatalf("FlattenRaw failed: %v", err)
	}

	if len(out) != 96 {
		t.Fatalf("Expected 96 values (2*4*4*3), got %d", len(out))
	}

	// Time must lead: the full first volume precedes timepoint 1
	volSize := h.Nx * h.Ny * h.Nz
	for tp := 0; tp < h.Nt; tp++ {
		for spatial := 0; spatial < volSize; spatial++ {
			want := uint16(tp*1000 + spatial)
			if out[tp*volSize+spatial] != want {
				t.Fatalf("Expected %d at flat index %d, got %d",
					want, tp*volSize+spatial, out[tp*volSize+spatial])
			}
		}
	}
}

// TestFlattenRaw3D verifies that a 3D buffer passes through in row-major
// order
func TestFlattenRaw3D(t *testing.T) {
	h := models.VolumeHeader{NDim: 3, Nx: 2, Ny: 3, Nz: 4, Nt: 1}

	data := make([]uint16, 24)
	for i := range data {
		data[i] = uint16(i)
	}

	out, err := FlattenRaw(h, data)
	if err != nil {
		t.Fatalf("FlattenRaw failed: %v", err)
	}
	for i := range out {
		if out[i] != uint16(i) {
			t.Fatalf("Expected identity ordering for 3D, got %d at %d", out[i], i)
		}
	}
}

// TestFlattenRawRejectsRank verifies the dimensionality gate
func TestFlattenRawRejectsRank(t *testing.T) {
	h := header4D()
	h.NDim = 5
	if _, err := FlattenRaw(h, make([]uint16, 96)); !errors.Is(err, geometry.ErrUnsupportedDimensionality) {
		t.Errorf("Expected ErrUnsupportedDimensionality, got %v", err)
	}
}

// TestFlattenRawLengthMismatch verifies the buffer length check
func TestFlattenRawLengthMismatch(t *testing.T) {
	if _, err := FlattenRaw(header4D(), make([]uint16, 7)); err == nil {
		t.Error("Expected error for short buffer, got nil")
	}
}

// TestEncodeSlicesOrdering verifies the traversal order invariant: the
// slice at flat index t*S+k holds timepoint t, slice k
func TestEncodeSlicesOrdering(t *testing.T) {
	h := header4D()

	// Each (timepoint, slice) pair gets a unique constant intensity, so
	// the decoded JPEG identifies which slice landed where
	data := make([]uint8, h.Nx*h.Ny*h.Nz*h.Nt)
	for x := 0; x < h.Nx; x++ {
		for y := 0; y < h.Ny; y++ {
			for z := 0; z < h.Nz; z++ {
				for tp := 0; tp < h.Nt; tp++ {
					data[storageIndex(h, x, y, z, tp)] = uint8(30 * (tp*h.Nx + x))
				}
			}
		}
	}

	enc, err := GetEncoder("jpeg")
	if err != nil {
		t.Fatalf("GetEncoder failed: %v", err)
	}

	out, err := EncodeSlices(context.Background(), h, data, enc, 90)
	if err != nil {
		t.Fatalf("EncodeSlices failed: %v", err)
	}

	if len(out) != h.Nt*h.Nx {
		t.Fatalf("Expected %d slices (T*S), got %d", h.Nt*h.Nx, len(out))
	}

	for i, b64 := range out {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("Slice %d is not valid base64: %v", i, err)
		}

		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("Slice %d is not a valid JPEG: %v", i, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != h.Nz || bounds.Dy() != h.Ny {
			t.Errorf("Slice %d: expected %dx%d image, got %dx%d",
				i, h.Nz, h.Ny, bounds.Dx(), bounds.Dy())
		}

		// A constant slice survives lossy compression almost exactly
		want := float64(30 * i)
		r, _, _, _ := img.At(bounds.Dx()/2, bounds.Dy()/2).RGBA()
		got := float64(r >> 8)
		if math.Abs(got-want) > 3 {
			t.Errorf("Slice %d: expected intensity ~%g, got %g", i, want, got)
		}
	}
}

// TestEncodeSlicesCancel verifies that a cancelled context aborts encoding
func TestEncodeSlicesCancel(t *testing.T) {
	h := header4D()
	data := make([]uint8, h.Nx*h.Ny*h.Nz*h.Nt)

	enc, err := GetEncoder("jpeg")
	if err != nil {
		t.Fatalf("GetEncoder failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := EncodeSlices(ctx, h, data, enc, 90); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestEncoderRegistry verifies lookup of registered and unknown formats
func TestEncoderRegistry(t *testing.T) {
	for _, name := range []string{"jpeg", "png"} {
		enc, err := GetEncoder(name)
		if err != nil {
			t.Errorf("Expected %s encoder, got error %v", name, err)
			continue
		}
		if enc.Name() != name {
			t.Errorf("Expected encoder name %s, got %s", name, enc.Name())
		}
	}

	if _, err := GetEncoder("webp"); !errors.Is(err, ErrEncoderNotFound) {
		t.Errorf("Expected ErrEncoderNotFound, got %v", err)
	}
}

// TestJPEGQualityBounds verifies the quality validation of the lossy
// encoder
func TestJPEGQualityBounds(t *testing.T) {
	h := models.VolumeHeader{NDim: 3, Nx: 1, Ny: 2, Nz: 2, Nt: 1}
	data := make([]uint8, 4)

	enc, err := GetEncoder("jpeg")
	if err != nil {
		t.Fatalf("GetEncoder failed: %v", err)
	}

	for _, quality := range []int{0, -1, 101} {
		if _, err := EncodeSlices(context.Background(), h, data, enc, quality); !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("Quality %d: expected ErrInvalidQuality, got %v", quality, err)
		}
	}
}
