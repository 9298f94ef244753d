// Package imaging normalizes item photos: sniffed format check, downscale,
// JPEG re-encode.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/erazemk/evidenca/internal/model"
)

// Defaults for stored photos.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
	DefaultMaxBytes     = 10 << 20
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Options controls photo normalization. Zero fields take the defaults.
type Options struct {
	MaxDimension int
	Quality      int
	MaxBytes     int64
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// Photo is a normalized item photo, always JPEG.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process reads a JPEG or PNG upload and returns it downscaled to fit
// MaxDimension and re-encoded as JPEG. Rejected input wraps
// model.ErrValidation.
func Process(r io.Reader, opts Options) (*Photo, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: photo larger than %d bytes", model.ErrValidation, opts.MaxBytes)
	}

	// Client headers are not trusted.
	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: unsupported photo format %s", model.ErrValidation, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding photo: %w", model.ErrValidation, err)
	}
	img = Fit(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// Fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Smaller images are returned unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
