// Package payload assembles the response object the remote viewer loads:
// the geometry header text plus either a flat intensity buffer or a
// sequence of base64 slice images. It is the entry point of the whole
// transcoding pipeline; every call reloads and reprocesses the source
// file, so concurrent requests are independent.
package payload

import (
	"context"
	"encoding/json"
	"fmt"

	"neuroview/pkg/geometry"
	"neuroview/pkg/niftiio"
	"neuroview/pkg/rescale"
	"neuroview/pkg/sliceenc"
)

// Mode selects how voxel data is transported to the viewer.
type Mode int

const (
	// Raw ships the full volume as one flat uint16 buffer.
	Raw Mode = iota

	// Encoded ships each 2D slice as a lossy-compressed base64 string.
	Encoded
)

// ParseMode maps the wire/config names onto a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "raw":
		return Raw, nil
	case "jpeg", "encoded":
		return Encoded, nil
	}
	return 0, fmt.Errorf("unknown encoding mode %q", name)
}

func (m Mode) String() string {
	if m == Encoded {
		return "jpeg"
	}
	return "raw"
}

// Payload is the unit returned across the system boundary. Header is the
// geometry serialized as JSON text (the viewer parses it separately from
// the envelope); Data is []uint16 in raw mode or []string in encoded mode.
type Payload struct {
	Header string `json:"header"`
	Data   any    `json:"data"`
}

// JSON serializes the payload envelope.
func (p *Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}

// Encode runs the full pipeline on the NIfTI image at path: load with
// fallback, normalize geometry, rescale intensities and slice or flatten.
// Quality applies to every slice in encoded mode and is ignored in raw
// mode. All failures are detected before any partial payload exists.
func Encode(ctx context.Context, path string, mode Mode, quality int) (*Payload, error) {
	vol, err := niftiio.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	geo, err := geometry.FromHeader(vol.Header)
	if err != nil {
		return nil, err
	}
	headerText, err := geo.JSON()
	if err != nil {
		return nil, err
	}

	switch mode {
	case Raw:
		flat, err := sliceenc.FlattenRaw(vol.Header, rescale.ToUint16(vol.Data))
		if err != nil {
			return nil, err
		}
		return &Payload{Header: headerText, Data: flat}, nil

	case Encoded:
		enc, err := sliceenc.GetEncoder("jpeg")
		if err != nil {
			return nil, err
		}
		slices, err := sliceenc.EncodeSlices(ctx, vol.Header, rescale.ToUint8(vol.Data), enc, quality)
		if err != nil {
			return nil, err
		}
		return &Payload{Header: headerText, Data: slices}, nil
	}

	return nil, fmt.Errorf("unknown encoding mode %d", mode)
}
