package sliceenc

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"sync"
)

var (
	// ErrEncoderNotFound is returned when no encoder is registered under
	// the requested format name.
	ErrEncoderNotFound = errors.New("encoder not found")

	// ErrInvalidQuality is returned when a lossy quality factor is
	// outside 1-100.
	ErrInvalidQuality = errors.New("invalid quality (must be 1-100)")
)

// Encoder compresses a single 2D slice image into a transport byte buffer.
type Encoder interface {
	// Encode compresses img. Quality is the lossy quality factor
	// (1-100); lossless encoders ignore it.
	Encode(img image.Image, quality int) ([]byte, error)

	// Name returns the format name used as the registry key.
	Name() string
}

// registry maps format names to encoders. Access is guarded so encoders
// can be registered from init functions in other packages.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Encoder)
)

// Register makes an encoder available under its format name.
func Register(enc Encoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[enc.Name()] = enc
}

// GetEncoder retrieves an encoder by format name ("jpeg", "png").
func GetEncoder(name string) (Encoder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	enc, ok := registry[name]
	if !ok {
		return nil, ErrEncoderNotFound
	}
	return enc, nil
}

func init() {
	Register(jpegEncoder{})
	Register(pngEncoder{})
}

// jpegEncoder is the default lossy slice encoder.
type jpegEncoder struct{}

func (jpegEncoder) Name() string { return "jpeg" }

func (jpegEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, ErrInvalidQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pngEncoder is a lossless alternative, mainly used when exporting slice
// stacks to disk.
type pngEncoder struct{}

func (pngEncoder) Name() string { return "png" }

func (pngEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
