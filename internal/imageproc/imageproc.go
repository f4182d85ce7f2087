// Package imageproc converts between images and model tensors.
//
// Everything here is a pure function of its inputs; the target size and the
// normalization scheme come from configuration.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

// Normalization selects how 8-bit channels map to tensor values.
type Normalization string

const (
	// ZeroOne maps 0..255 to 0..1.
	ZeroOne Normalization = "0_1"
	// MinusOneOne maps 0..255 to -1..1.
	MinusOneOne Normalization = "minus1_1"
)

func (n Normalization) Valid() bool {
	return n == ZeroOne || n == MinusOneOne
}

func (n Normalization) normalize(v uint8) float32 {
	if n == MinusOneOne {
		return float32(v)/127.5 - 1
	}
	return float32(v) / 255
}

func (n Normalization) denormalize(v float32) uint8 {
	if n == MinusOneOne {
		return uint8((clamp(v, -1, 1) + 1) * 127.5)
	}
	return uint8(clamp(v*255, 0, 255))
}

func clamp(v, lo, hi float32) float32 {
	if v != v { // NaN
		return lo
	}
	return max(lo, min(v, hi))
}

const channels = 3

// Decode reads any supported image format, honouring EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty image")
	}
	return img, nil
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Preprocess resizes img to size with a bicubic filter and returns a
// 1×H×W×3 tensor normalized with norm. Alpha is dropped.
func Preprocess(img image.Image, size image.Point, norm Normalization) (tensor.Tensor, error) {
	if !norm.Valid() {
		return tensor.Tensor{}, fmt.Errorf("unknown normalization %q", norm)
	}
	if size.X <= 0 || size.Y <= 0 {
		return tensor.Tensor{}, fmt.Errorf("invalid target size %dx%d", size.X, size.Y)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return tensor.Tensor{}, fmt.Errorf("cannot preprocess empty image")
	}

	resized := imaging.Resize(img, size.X, size.Y, imaging.CatmullRom)
	t := tensor.New(1, size.Y, size.X, channels)
	for y := 0; y < size.Y; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size.X; x++ {
			px := row[x*4:]
			base := t.Index(0, y, x, 0)
			t.Data[base] = norm.normalize(px[0])
			t.Data[base+1] = norm.normalize(px[1])
			t.Data[base+2] = norm.normalize(px[2])
		}
	}
	return t, nil
}

// Postprocess turns the first image of a model output tensor back into an
// opaque RGB image, clipping values outside the normalization range.
func Postprocess(t tensor.Tensor, norm Normalization) (*image.NRGBA, error) {
	if !norm.Valid() {
		return nil, fmt.Errorf("unknown normalization %q", norm)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.C != channels {
		return nil, fmt.Errorf("expected %d channels, got %d", channels, t.C)
	}

	out := image.NewNRGBA(image.Rect(0, 0, t.W, t.H))
	for y := 0; y < t.H; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < t.W; x++ {
			base := t.Index(0, y, x, 0)
			px := row[x*4:]
			px[0] = norm.denormalize(t.Data[base])
			px[1] = norm.denormalize(t.Data[base+1])
			px[2] = norm.denormalize(t.Data[base+2])
			px[3] = 0xff
		}
	}
	return out, nil
}

// Upscale resizes img to size with a Lanczos filter.
func Upscale(img image.Image, size image.Point) (*image.NRGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", size.X, size.Y)
	}
	return imaging.Resize(img, size.X, size.Y, imaging.Lanczos), nil
}
