package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestPreprocess(t *testing.T) {
	img := solid(10, 6, color.NRGBA{R: 255, G: 0, B: 51, A: 255})

	tests := []struct {
		name string
		norm Normalization
		want [3]float32
	}{
		{name: "zero one", norm: ZeroOne, want: [3]float32{1, 0, 0.2}},
		{name: "minus one one", norm: MinusOneOne, want: [3]float32{1, -1, 51/127.5 - 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Preprocess(img, image.Pt(4, 4), tt.norm)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 4, 4, 3}, out.Shape())
			require.NoError(t, out.Validate())

			base := out.Index(0, 2, 3, 0)
			assert.InDelta(t, tt.want[0], out.Data[base], 1e-4)
			assert.InDelta(t, tt.want[1], out.Data[base+1], 1e-4)
			assert.InDelta(t, tt.want[2], out.Data[base+2], 1e-4)
		})
	}
}

func TestPreprocessRejects(t *testing.T) {
	img := solid(2, 2, color.NRGBA{A: 255})

	_, err := Preprocess(img, image.Pt(4, 4), Normalization("0_255"))
	require.Error(t, err)

	_, err = Preprocess(img, image.Pt(0, 4), ZeroOne)
	require.Error(t, err)

	_, err = Preprocess(image.NewNRGBA(image.Rect(0, 0, 0, 0)), image.Pt(4, 4), ZeroOne)
	require.Error(t, err)
}

func TestPostprocessClipsAndDenormalizes(t *testing.T) {
	tests := []struct {
		name string
		norm Normalization
		in   [3]float32
		want color.NRGBA
	}{
		{name: "zero one", norm: ZeroOne, in: [3]float32{1.5, -0.2, 0.5}, want: color.NRGBA{R: 255, G: 0, B: 127, A: 255}},
		{name: "minus one one", norm: MinusOneOne, in: [3]float32{2, -3, 0}, want: color.NRGBA{R: 255, G: 0, B: 127, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tensor.New(1, 2, 2, 3)
			for i := 0; i < len(in.Data); i += 3 {
				in.Data[i], in.Data[i+1], in.Data[i+2] = tt.in[0], tt.in[1], tt.in[2]
			}
			img, err := Postprocess(in, tt.norm)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
			assert.Equal(t, tt.want, img.NRGBAAt(1, 1))
		})
	}
}

func TestPostprocessRejects(t *testing.T) {
	_, err := Postprocess(tensor.New(1, 2, 2, 1), ZeroOne)
	require.Error(t, err)

	bad := tensor.New(1, 2, 2, 3)
	bad.Data = bad.Data[:5]
	_, err = Postprocess(bad, ZeroOne)
	require.Error(t, err)

	_, err = Postprocess(tensor.New(1, 2, 2, 3), Normalization("raw"))
	require.Error(t, err)
}

func TestRoundTripPreservesColour(t *testing.T) {
	src := solid(8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	for _, norm := range []Normalization{ZeroOne, MinusOneOne} {
		in, err := Preprocess(src, image.Pt(8, 8), norm)
		require.NoError(t, err)
		out, err := Postprocess(in, norm)
		require.NoError(t, err)
		got := out.NRGBAAt(4, 4)
		assert.InDelta(t, 200, int(got.R), 1, string(norm))
		assert.InDelta(t, 100, int(got.G), 1, string(norm))
		assert.InDelta(t, 50, int(got.B), 1, string(norm))
	}
}

func TestUpscale(t *testing.T) {
	out, err := Upscale(solid(4, 4, color.NRGBA{A: 255}), image.Pt(37, 23))
	require.NoError(t, err)
	assert.Equal(t, 37, out.Bounds().Dx())
	assert.Equal(t, 23, out.Bounds().Dy())

	_, err = Upscale(solid(4, 4, color.NRGBA{A: 255}), image.Pt(0, 1))
	require.Error(t, err)
}

func TestDecodeAndEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(5, 3, color.NRGBA{R: 1, A: 255})))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	encoded, err := EncodePNG(img)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Width)

	_, err = Decode(bytes.NewReader([]byte("definitely not an image")))
	require.Error(t, err)
}
