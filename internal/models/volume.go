package models

// VolumeHeader holds the spatial metadata extracted from a NIfTI-1 header,
// reduced to the fields the viewer contract needs.
type VolumeHeader struct {
	// NDim is the image rank: 3 for a volume, 4 for a volume with time.
	NDim int

	// Nx, Ny, Nz are the spatial axis lengths in voxels.
	Nx, Ny, Nz int

	// Nt is the number of timepoints. It is 1 for a 3D image.
	Nt int

	// Offset holds the qoffset_x/y/z world-space origin of each axis.
	Offset [3]float64

	// Spacing holds pixdim[1..3], the step between consecutive voxels
	// along each spatial axis.
	Spacing [3]float64

	// DirCos holds the first three columns of srow_x/y/z: the unit
	// direction cosines mapping each voxel axis into world space.
	DirCos [3][3]float64
}

// Volume is a fully loaded image: header plus voxel intensities.
//
// Data is stored in row-major (x, y, z, t) order: the flat index of voxel
// (x, y, z, t) is ((x*Ny+y)*Nz+z)*Nt + t. For a 3D image Nt is 1 and the
// trailing stride collapses.
type Volume struct {
	Header VolumeHeader

	// Data holds one intensity per voxel, already converted to float64
	// with any on-disk scaling (scl_slope/scl_inter) applied.
	Data []float64
}

// NumVoxels returns the expected length of Data.
func (v *Volume) NumVoxels() int {
	return v.Header.Nx * v.Header.Ny * v.Header.Nz * v.Header.Nt
}

// At returns the intensity at voxel (x, y, z, t). No bounds checking is
// performed beyond what the slice index implies.
func (v *Volume) At(x, y, z, t int) float64 {
	h := &v.Header
	return v.Data[((x*h.Ny+y)*h.Nz+z)*h.Nt+t]
}
