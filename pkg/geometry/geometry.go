// Package geometry normalizes NIfTI spatial metadata into the axis
// description consumed by the browser-side volume viewer. The JSON field
// names and axis ordering follow the viewer's loader contract and must not
// change.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"neuroview/internal/models"
)

// ErrUnsupportedDimensionality is returned for images that are neither 3D
// nor 3D+time.
var ErrUnsupportedDimensionality = errors.New("only 3D or 3D+t images are supported")

// Axis describes one spatial axis of a volume in world space.
type Axis struct {
	// Start is the world-space offset of the first voxel (qoffset_*).
	Start float64 `json:"start"`

	// SpaceLength is the axis length in voxels.
	SpaceLength int `json:"space_length"`

	// Step is the spacing between consecutive voxels (pixdim).
	Step float64 `json:"step"`

	// DirectionCosines maps the voxel axis into world space (srow_* row).
	DirectionCosines [3]float64 `json:"direction_cosines"`
}

// TimeAxis describes the time axis of a 4D volume. Time has no physical
// step or direction in the viewer contract.
type TimeAxis struct {
	Start       float64 `json:"start"`
	SpaceLength int     `json:"space_length"`
}

// Geometry is the canonical axis description of a volume. Marshalled to
// JSON it is exactly the header object the viewer's parseHeader expects.
type Geometry struct {
	Order  []string  `json:"order"`
	XSpace Axis      `json:"xspace"`
	YSpace Axis      `json:"yspace"`
	ZSpace Axis      `json:"zspace"`
	Time   *TimeAxis `json:"time,omitempty"`
}

// FromHeader builds the viewer geometry from a volume header.
//
// For a 3D image the axis order is [xspace yspace zspace]; for a 4D image
// time is prepended and carries only its start and length. Any other rank
// is rejected with ErrUnsupportedDimensionality.
func FromHeader(h models.VolumeHeader) (*Geometry, error) {
	if h.NDim != 3 && h.NDim != 4 {
		return nil, fmt.Errorf("%w (got rank %d)", ErrUnsupportedDimensionality, h.NDim)
	}

	for i, step := range h.Spacing {
		if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
			return nil, fmt.Errorf("axis %d has invalid spacing %v", i, step)
		}
	}

	g := &Geometry{
		Order:  []string{"xspace", "yspace", "zspace"},
		XSpace: Axis{Start: h.Offset[0], SpaceLength: h.Nx, Step: h.Spacing[0], DirectionCosines: h.DirCos[0]},
		YSpace: Axis{Start: h.Offset[1], SpaceLength: h.Ny, Step: h.Spacing[1], DirectionCosines: h.DirCos[1]},
		ZSpace: Axis{Start: h.Offset[2], SpaceLength: h.Nz, Step: h.Spacing[2], DirectionCosines: h.DirCos[2]},
	}

	if h.NDim == 4 {
		g.Order = append([]string{"time"}, g.Order...)
		g.Time = &TimeAxis{Start: 0, SpaceLength: h.Nt}
	}

	return g, nil
}

// JSON serializes the geometry as the header text embedded in a viewer
// payload.
func (g *Geometry) JSON() (string, error) {
	out, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to marshal geometry: %v", err)
	}
	return string(out), nil
}
