package niftiio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"neuroview/internal/models"
	"neuroview/pkg/geometry"
)

// NIfTI-1 datatype codes for the voxel buffer.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

const nifti1HeaderSize = 348

// nifti1Header mirrors the fixed 348-byte NIfTI-1 header layout. Fields
// the loader never touches are kept as padding blocks so binary.Read can
// consume the struct in one pass.
type nifti1Header struct {
	SizeofHdr     int32
	Unused        [35]byte // data_type, db_name, extents, session_error, regular
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

// legacyReader is a self-contained NIfTI-1 parser used when the primary
// library rejects a file. It handles single-file .nii and .nii.gz images
// with the common scalar datatypes and applies scl_slope/scl_inter.
type legacyReader struct{}

func (legacyReader) Name() string { return "legacy" }

func (legacyReader) Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var src io.Reader = br

	// Sniff the gzip magic rather than trusting the extension.
	head, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("failed to read file preamble: %v", err)
	}
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %v", err)
		}
		defer gz.Close()
		src = gz
	}

	raw := make([]byte, nifti1HeaderSize)
	if _, err := io.ReadFull(src, raw); err != nil {
		return nil, fmt.Errorf("failed to read header: %v", err)
	}

	hdr, order, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	h, err := headerFromLegacy(hdr)
	if err != nil {
		return nil, err
	}

	// Skip the gap between the fixed header and the voxel data
	// (extension blocks live there).
	offset := int64(hdr.VoxOffset)
	if offset < nifti1HeaderSize {
		return nil, fmt.Errorf("vox_offset %d is inside the header", offset)
	}
	if _, err := io.CopyN(io.Discard, src, offset-nifti1HeaderSize); err != nil {
		return nil, fmt.Errorf("failed to seek to voxel data: %v", err)
	}

	data, err := readVoxels(src, order, hdr, h)
	if err != nil {
		return nil, err
	}

	return &models.Volume{Header: h, Data: data}, nil
}

// parseHeader decodes the fixed header, detecting byte order from the
// sizeof_hdr field.
func parseHeader(raw []byte) (*nifti1Header, binary.ByteOrder, error) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		hdr := new(nifti1Header)
		if err := binary.Read(bytes.NewReader(raw), order, hdr); err != nil {
			return nil, nil, fmt.Errorf("failed to decode header: %v", err)
		}
		if hdr.SizeofHdr != nifti1HeaderSize {
			continue
		}
		if string(hdr.Magic[:3]) != "n+1" {
			return nil, nil, fmt.Errorf("unsupported magic %q (only single-file n+1 images)", hdr.Magic[:3])
		}
		return hdr, order, nil
	}
	return nil, nil, fmt.Errorf("not a NIfTI-1 file (bad sizeof_hdr)")
}

// headerFromLegacy reduces the parsed header to the viewer fields, mirroring
// headerFromNifti for the primary reader.
func headerFromLegacy(hdr *nifti1Header) (models.VolumeHeader, error) {
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
	if h.Nx <= 0 || h.Ny <= 0 || h.Nz <= 0 || h.Nt <= 0 {
		return models.VolumeHeader{}, fmt.Errorf("non-positive axis length in dim %v", hdr.Dim[:5])
	}
	return h, nil
}

// readVoxels reads the full voxel buffer. On disk NIfTI stores x fastest
// (column-major); the volume model wants t fastest, so every value is
// placed by computed index rather than appended.
func readVoxels(src io.Reader, order binary.ByteOrder, hdr *nifti1Header, h models.VolumeHeader) ([]float64, error) {
	n := h.Nx * h.Ny * h.Nz * h.Nt

	width, ok := map[int16]int{
		dtUint8: 1, dtInt8: 1,
		dtInt16: 2, dtUint16: 2,
		dtInt32: 4, dtUint32: 4, dtFloat32: 4,
		dtFloat64: 8,
	}[hdr.Datatype]
	if !ok {
		return nil, fmt.Errorf("unsupported datatype code %d", hdr.Datatype)
	}

	raw := make([]byte, n*width)
	if _, err := io.ReadFull(src, raw); err != nil {
		return nil, fmt.Errorf("failed to read voxel data: %v", err)
	}

	slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
	if slope == 0 {
		slope, inter = 1, 0
	}

	data := make([]float64, n)
	i := 0
	for t := 0; t < h.Nt; t++ {
		for z := 0; z < h.Nz; z++ {
			for y := 0; y < h.Ny; y++ {
				for x := 0; x < h.Nx; x++ {
					v := decodeVoxel(raw[i*width:(i+1)*width], order, hdr.Datatype)
					data[((x*h.Ny+y)*h.Nz+z)*h.Nt+t] = v*slope + inter
					i++
				}
			}
		}
	}
	return data, nil
}

// decodeVoxel converts one on-disk sample to float64.
func decodeVoxel(b []byte, order binary.ByteOrder, datatype int16) float64 {
	switch datatype {
	case dtUint8:
		return float64(b[0])
	case dtInt8:
		return float64(int8(b[0]))
	case dtInt16:
		return float64(int16(order.Uint16(b)))
	case dtUint16:
		return float64(order.Uint16(b))
	case dtInt32:
		return float64(int32(order.Uint32(b)))
	case dtUint32:
		return float64(order.Uint32(b))
	case dtFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case dtFloat64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}
