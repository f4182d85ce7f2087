// Package pipeline runs the restoration stages for submitted jobs.
package pipeline

import (
	"context"
	"image"

	"github.com/harishchavandke01/FaceClear/internal/imageproc"
	"github.com/harishchavandke01/FaceClear/internal/inference"
	"github.com/harishchavandke01/FaceClear/internal/model"
	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

// Pipeline holds the pure image stages around the model. It keeps no
// per-job state and is shared by every runner goroutine.
type Pipeline struct {
	Model      inference.Model
	TargetSize image.Point
	Normalize  imageproc.Normalization
}

func (p Pipeline) Preprocess(img image.Image) (tensor.Tensor, error) {
	t, err := imageproc.Preprocess(img, p.TargetSize, p.Normalize)
	if err != nil {
		return tensor.Tensor{}, stageErr(model.ErrPreprocess, err)
	}
	return t, nil
}

func (p Pipeline) Infer(ctx context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	out, err := p.Model.Infer(ctx, in)
	if err != nil {
		return tensor.Tensor{}, stageErr(model.ErrInference, err)
	}
	return out, nil
}

// Postprocess denormalizes out and resizes it back to size.
func (p Pipeline) Postprocess(out tensor.Tensor, size image.Point) (*image.NRGBA, error) {
	img, err := imageproc.Postprocess(out, p.Normalize)
	if err != nil {
		return nil, stageErr(model.ErrPostprocess, err)
	}
	up, err := imageproc.Upscale(img, size)
	if err != nil {
		return nil, stageErr(model.ErrPostprocess, err)
	}
	return up, nil
}

// Restore runs preprocess, inference and postprocess on img and returns an
// image with the same dimensions.
func (p Pipeline) Restore(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	in, err := p.Preprocess(img)
	if err != nil {
		return nil, err
	}
	out, err := p.Infer(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.Postprocess(out, img.Bounds().Size())
}
