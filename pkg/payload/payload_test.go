package payload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"neuroview/internal/niftitest"
)

// writeVolume writes a synthetic gradient volume and returns its path
func writeVolume(t *testing.T, dims []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vol.nii")
	niftitest.Write(t, path, dims, false, func(x, y, z, tp int) float64 {
		return float64(x + 2*y + 3*z + 5*tp)
	})
	return path
}

// TestEncodeRaw4D runs the full raw pipeline on a small time series:
// time=2, x=4, y=4, z=3
func TestEncodeRaw4D(t *testing.T) {
	path := writeVolume(t, []int{4, 4, 3, 2})

	p, err := Encode(context.Background(), path, Raw, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	flat, ok := p.Data.([]uint16)
	if !ok {
		t.Fatalf("Expected []uint16 data in raw mode, got %T", p.Data)
	}
	if len(flat) != 96 {
		t.Fatalf("Expected 96 values (2*4*4*3), got %d", len(flat))
	}

	// Rescaled output fills the full 16-bit range
	lo, hi := flat[0], flat[0]
	for _, v := range flat {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo != 0 || hi != 65535 {
		t.Errorf("Expected rescaled range [0,65535], got [%d,%d]", lo, hi)
	}

	// The minimum intensity sits at the origin of timepoint 0, the
	// maximum at the far corner of the last timepoint; with time leading
	// they are the first and last flat positions
	if flat[0] != 0 {
		t.Errorf("Expected minimum at flat index 0, got %d", flat[0])
	}
	if flat[95] != 65535 {
		t.Errorf("Expected maximum at flat index 95, got %d", flat[95])
	}

	if !strings.Contains(p.Header, `"time"`) {
		t.Errorf("Expected a time axis in header: %s", p.Header)
	}
}

// TestEncodeJPEG3D runs the encoded pipeline on a 3D volume
func TestEncodeJPEG3D(t *testing.T) {
	path := writeVolume(t, []int{3, 4, 5})

	p, err := Encode(context.Background(), path, Encoded, 80)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	slices, ok := p.Data.([]string)
	if !ok {
		t.Fatalf("Expected []string data in encoded mode, got %T", p.Data)
	}
	if len(slices) != 3 {
		t.Fatalf("Expected 3 slices (one per x position), got %d", len(slices))
	}

	for i, b64 := range slices {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("Slice %d is not valid base64: %v", i, err)
		}
		// JPEG SOI marker
		if len(raw) < 2 || raw[0] != 0xFF || raw[1] != 0xD8 {
			t.Errorf("Slice %d does not start with a JPEG marker", i)
		}
	}

	if strings.Contains(p.Header, `"time"`) {
		t.Errorf("Unexpected time axis in 3D header: %s", p.Header)
	}
}

// TestEncodeIdempotent verifies that the same file and parameters yield
// byte-identical payloads
func TestEncodeIdempotent(t *testing.T) {
	path := writeVolume(t, []int{4, 4, 3, 2})

	for _, mode := range []Mode{Raw, Encoded} {
		a, err := Encode(context.Background(), path, mode, 60)
		if err != nil {
			t.Fatalf("First encode (%s) failed: %v", mode, err)
		}
		b, err := Encode(context.Background(), path, mode, 60)
		if err != nil {
			t.Fatalf("Second encode (%s) failed: %v", mode, err)
		}

		aj, err := a.JSON()
		if err != nil {
			t.Fatalf("JSON failed: %v", err)
		}
		bj, err := b.JSON()
		if err != nil {
			t.Fatalf("JSON failed: %v", err)
		}
		if !bytes.Equal(aj, bj) {
			t.Errorf("Mode %s: payloads differ between runs", mode)
		}
	}
}

// TestPayloadEnvelope verifies the JSON envelope structure
func TestPayloadEnvelope(t *testing.T) {
	path := writeVolume(t, []int{3, 3, 3})

	p, err := Encode(context.Background(), path, Raw, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	out, err := p.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var envelope struct {
		Header string   `json:"header"`
		Data   []uint16 `json:"data"`
	}
	if err := json.Unmarshal(out, &envelope); err != nil {
		t.Fatalf("Envelope does not parse: %v", err)
	}
	if envelope.Header == "" {
		t.Error("Expected non-empty header text")
	}
	if len(envelope.Data) != 27 {
		t.Errorf("Expected 27 data values, got %d", len(envelope.Data))
	}

	// The header field itself is JSON text
	var header map[string]any
	if err := json.Unmarshal([]byte(envelope.Header), &header); err != nil {
		t.Fatalf("Header text does not parse as JSON: %v", err)
	}
	if _, ok := header["order"]; !ok {
		t.Error("Header missing order key")
	}
}

// TestEncodeCancelled verifies the decode bound
func TestEncodeCancelled(t *testing.T) {
	path := writeVolume(t, []int{3, 3, 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Encode(ctx, path, Raw, 0); err == nil {
		t.Error("Expected error from cancelled context, got nil")
	}
}

// TestParseMode covers the wire names of both modes
func TestParseMode(t *testing.T) {
	cases := []struct {
		name string
		want Mode
		ok   bool
	}{
		{"raw", Raw, true},
		{"jpeg", Encoded, true},
		{"encoded", Encoded, true},
		{"webm", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, err := ParseMode(tc.name)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseMode(%q): expected %v, got %v (%v)", tc.name, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseMode(%q): expected error, got nil", tc.name)
		}
	}
}
