package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harishchavandke01/FaceClear/internal/imageproc"
)

func restoreAction(ctx context.Context, cmd *cli.Command) error {
	_, log, p, err := setup(ctx)
	if err != nil {
		return err
	}
	in, out := cmd.String("in"), cmd.String("out")
	start := time.Now()

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := imageproc.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}

	restored, err := p.Restore(ctx, img)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	data, err := imageproc.EncodePNG(restored)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}

	log.Info("restored image", "in", in, "out", out,
		"width", restored.Bounds().Dx(), "height", restored.Bounds().Dy(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
