// Package export extracts orthogonal 2D slices from a loaded volume and
// writes them to disk as image sequences. The three orientations map onto
// the stack names the triplanar viewer consumes, so an exported directory
// can be fed straight into a stack manifest.
package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"neuroview/internal/models"
	"neuroview/pkg/rescale"
	"neuroview/pkg/sliceenc"
)

// Exporter slices one volume. The voxel buffer is rescaled to 8-bit once
// at construction; the source volume is not mutated.
type Exporter struct {
	vol  *models.Volume
	gray []uint8
}

// NewExporter creates an exporter for the given volume.
func NewExporter(vol *models.Volume) *Exporter {
	return &Exporter{
		vol:  vol,
		gray: rescale.ToUint8(vol.Data),
	}
}

// SliceCount returns the number of slices along an orientation.
func (e *Exporter) SliceCount(orientation string) (int, error) {
	h := &e.vol.Header
	switch orientation {
	case "sagittal":
		return h.Nx, nil
	case "coronal":
		return h.Ny, nil
	case "axial":
		return h.Nz, nil
	}
	return 0, fmt.Errorf("invalid orientation: %s (must be sagittal, coronal or axial)", orientation)
}

// ExtractSlice extracts the 2D cross-section at the given position and
// timepoint. Sagittal fixes x (z columns, y rows), coronal fixes y
// (x columns, z rows) and axial fixes z (x columns, y rows).
func (e *Exporter) ExtractSlice(orientation string, position, timepoint int) (*image.Gray, error) {
	h := &e.vol.Header
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	if timepoint < 0 || timepoint >= h.Nt {
		return nil, fmt.Errorf("timepoint %d out of range [0,%d)", timepoint, h.Nt)
	}

	at := func(x, y, z int) uint8 {
		return e.gray[((x*h.Ny+y)*h.Nz+z)*h.Nt+timepoint]
	}

	var img *image.Gray
	switch orientation {
	case "sagittal":
		if position >= h.Nx {
			return nil, fmt.Errorf("position %d exceeds x length %d", position, h.Nx)
		}
		img = image.NewGray(image.Rect(0, 0, h.Nz, h.Ny))
		for y := 0; y < h.Ny; y++ {
			for z := 0; z < h.Nz; z++ {
				img.Pix[y*img.Stride+z] = at(position, y, z)
			}
		}

	case "coronal":
		if position >= h.Ny {
			return nil, fmt.Errorf("position %d exceeds y length %d", position, h.Ny)
		}
		img = image.NewGray(image.Rect(0, 0, h.Nx, h.Nz))
		for z := 0; z < h.Nz; z++ {
			for x := 0; x < h.Nx; x++ {
				img.Pix[z*img.Stride+x] = at(x, position, z)
			}
		}

	case "axial":
		if position >= h.Nz {
			return nil, fmt.Errorf("position %d exceeds z length %d", position, h.Nz)
		}
		img = image.NewGray(image.Rect(0, 0, h.Nx, h.Ny))
		for y := 0; y < h.Ny; y++ {
			for x := 0; x < h.Nx; x++ {
				img.Pix[y*img.Stride+x] = at(x, y, position)
			}
		}

	default:
		return nil, fmt.Errorf("invalid orientation: %s (must be sagittal, coronal or axial)", orientation)
	}

	return img, nil
}

// SaveSliceSequence extracts every slice along an orientation at timepoint
// 0 and writes them to outputDir through the named encoder ("jpeg" or
// "png"). Files are numbered in traversal order so the directory listing
// is already a valid stack ordering.
func (e *Exporter) SaveSliceSequence(orientation, outputDir, format string, quality int) error {
	enc, err := sliceenc.GetEncoder(format)
	if err != nil {
		return err
	}

	count, err := e.SliceCount(orientation)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	ext := format
	if format == "jpeg" {
		ext = "jpg"
	}

	for pos := 0; pos < count; pos++ {
		img, err := e.ExtractSlice(orientation, pos, 0)
		if err != nil {
			return err
		}

		raw, err := enc.Encode(img, quality)
		if err != nil {
			return fmt.Errorf("failed to encode %s slice %d: %w", orientation, pos, err)
		}

		name := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", orientation, pos, ext))
		if err := os.WriteFile(name, raw, 0644); err != nil {
			return err
		}
	}
	return nil
}
