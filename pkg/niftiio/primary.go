package niftiio

import (
	"fmt"

	"github.com/henghuang/nifti"

	"neuroview/internal/models"
	"neuroview/pkg/geometry"
)

// primaryReader wraps the nifti library. The library panics on malformed
// input, so every call is funnelled through a recover wrapper that turns
// panics into recoverable errors.
type primaryReader struct{}

func (primaryReader) Name() string { return "nifti" }

func (primaryReader) Read(path string) (*models.Volume, error) {
	hdr, err := safelyLoadHeader(path)
	if err != nil {
		return nil, fmt.Errorf("header parse failed: %v", err)
	}

	h, err := headerFromNifti(&hdr)
	if err != nil {
		return nil, err
	}

	img, err := safelyLoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("voxel read failed: %v", err)
	}

	vol := &models.Volume{
		Header: h,
		Data:   make([]float64, h.Nx*h.Ny*h.Nz*h.Nt),
	}
	for x := 0; x < h.Nx; x++ {
		for y := 0; y < h.Ny; y++ {
			for z := 0; z < h.Nz; z++ {
				base := ((x*h.Ny+y)*h.Nz + z) * h.Nt
				for t := 0; t < h.Nt; t++ {
					vol.Data[base+t] = float64(img.GetAt(x, y, z, t))
				}
			}
		}
	}
	return vol, nil
}

// headerFromNifti reduces the full NIfTI-1 header to the fields the viewer
// contract needs.
func headerFromNifti(hdr *nifti.Nifti1Header) (models.VolumeHeader, error) {
	ndim := int(hdr.Dim[0])
	if ndim != 3 && ndim != 4 {
		return models.VolumeHeader{}, fmt.Errorf("%w (got rank %d)", geometry.ErrUnsupportedDimensionality, ndim)
	}

	h := models.VolumeHeader{
		NDim:    ndim,
		Nx:      int(hdr.Dim[1]),
		Ny:      int(hdr.Dim[2]),
		Nz:      int(hdr.Dim[3]),
		Nt:      1,
		Offset:  [3]float64{float64(hdr.QoffsetX), float64(hdr.QoffsetY), float64(hdr.QoffsetZ)},
		Spacing: [3]float64{float64(hdr.Pixdim[1]), float64(hdr.Pixdim[2]), float64(hdr.Pixdim[3])},
	}
	for i := 0; i < 3; i++ {
		h.DirCos[0][i] = float64(hdr.SrowX[i])
		h.DirCos[1][i] = float64(hdr.SrowY[i])
		h.DirCos[2][i] = float64(hdr.SrowZ[i])
	}
	if ndim == 4 {
		h.Nt = int(hdr.Dim[4])
	}
	return h, nil
}

// safelyLoadImage consumes panics emitted by the nifti library so they can
// be handled as ordinary decode failures.
func safelyLoadImage(path string) (img nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	img.LoadImage(path, true)

	return
}

// safelyLoadHeader is the header-only variant of safelyLoadImage.
func safelyLoadHeader(path string) (hdr nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	hdr.LoadHeader(path)

	return
}
