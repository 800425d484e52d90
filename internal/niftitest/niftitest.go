// Package niftitest writes small synthetic NIfTI-1 files used by loader
// and pipeline tests.
package niftitest

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"os"
	"testing"
)

// Fixed geometry stamped into every generated header, chosen so tests can
// tell axes apart.
var (
	Offset  = [3]float32{10, -5, 2.5}
	Spacing = [3]float32{1.5, 2, 2.5}
)

// header mirrors the 348-byte NIfTI-1 layout. Only the fields the readers
// consume are populated.
type header struct {
	SizeofHdr     int32
	Unused        [35]byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Write creates a single-file float32 NIfTI-1 image at path. dims is
// [nx ny nz] or [nx ny nz nt]; voxels is called in on-disk order (x
// fastest) to produce each intensity. Set gzipped to wrap the file in a
// gzip stream.
func Write(t *testing.T, path string, dims []int, gzipped bool, voxels func(x, y, z, tp int) float64) {
	t.Helper()

	if len(dims) != 3 && len(dims) != 4 {
		t.Fatalf("niftitest.Write: need 3 or 4 dims, got %d", len(dims))
	}

	hdr := header{
		SizeofHdr: 348,
		Datatype:  16, // float32
		Bitpix:    32,
		VoxOffset: 352,
		SclSlope:  1,
		QoffsetX:  Offset[0],
		QoffsetY:  Offset[1],
		QoffsetZ:  Offset[2],
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = int16(len(dims))
	for i, d := range dims {
		hdr.Dim[i+1] = int16(d)
	}
	hdr.Pixdim[0] = 1
	for i, s := range Spacing {
		hdr.Pixdim[i+1] = s
	}
	// Diagonal sform scaled by the spacing.
	hdr.SrowX = [4]float32{Spacing[0], 0, 0, Offset[0]}
	hdr.SrowY = [4]float32{0, Spacing[1], 0, Offset[1]}
	hdr.SrowZ = [4]float32{0, 0, Spacing[2], Offset[2]}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("niftitest.Write: %v", err)
	}
	defer f.Close()

	var w *bufio.Writer
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(f)
		w = bufio.NewWriter(gz)
	} else {
		w = bufio.NewWriter(f)
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("niftitest.Write: %v", err)
	}
	// Pad out to vox_offset.
	if _, err := w.Write(make([]byte, 4)); err != nil {
		t.Fatalf("niftitest.Write: %v", err)
	}

	nt := 1
	if len(dims) == 4 {
		nt = dims[3]
	}
	for tp := 0; tp < nt; tp++ {
		for z := 0; z < dims[2]; z++ {
			for y := 0; y < dims[1]; y++ {
				for x := 0; x < dims[0]; x++ {
					v := float32(voxels(x, y, z, tp))
					if err := binary.Write(w, binary.LittleEndian, v); err != nil {
						t.Fatalf("niftitest.Write: %v", err)
					}
				}
			}
		}
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("niftitest.Write: %v", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			t.Fatalf("niftitest.Write: %v", err)
		}
	}
}
