package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path"
	"runtime/debug"
	"sync"
	"time"

	"github.com/harishchavandke01/FaceClear/internal/blob"
	"github.com/harishchavandke01/FaceClear/internal/imageproc"
	"github.com/harishchavandke01/FaceClear/internal/model"
	"github.com/harishchavandke01/FaceClear/internal/store"
)

const (
	UploadDir    = "uploads"
	ResultDir    = "results"
	StaticPrefix = "/static"
)

// ResultName is the artifact name a job writes for the given upload.
func ResultName(uploadName string) string {
	return "result_" + uploadName
}

// Runner executes jobs, one goroutine per job. It is the only writer of the
// records it is started with.
type Runner struct {
	jobs     store.Store
	blobs    blob.LocalFS
	pipeline Pipeline
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewRunner(jobs store.Store, blobs blob.LocalFS, p Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{jobs: jobs, blobs: blobs, pipeline: p, logger: logger}
}

// Start runs job in the background and returns immediately.
func (r *Runner) Start(job model.Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(context.Background(), job.ID, job.UploadName)
	}()
}

// Wait blocks until every started job has finished or ctx is done. It does
// not interrupt running jobs.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes every stage of one job in order and leaves the record in a
// terminal state. Failures, including panics, stay inside this call.
func (r *Runner) Run(ctx context.Context, id, uploadName string) {
	start := time.Now()
	logger := r.logger.With("job_id", id)
	stage := model.ErrLoad

	defer func() {
		if p := recover(); p != nil {
			err := &StageError{Kind: stage, Err: fmt.Errorf("panic: %v", p), Stack: debug.Stack()}
			r.fail(ctx, logger, id, err)
		}
	}()

	locator, err := r.run(ctx, id, uploadName, &stage)
	if err != nil {
		r.fail(ctx, logger, id, err)
		return
	}
	r.jobs.Update(ctx, id, model.Done(locator))
	logger.Info("job done", "result", locator, "duration_ms", time.Since(start).Milliseconds())
}

func (r *Runner) run(ctx context.Context, id, uploadName string, stage *model.ErrorKind) (string, error) {
	enter := func(kind model.ErrorKind, progress int, message string) {
		*stage = kind
		r.jobs.Update(ctx, id, model.Stage(model.JobProcessing, progress, message))
	}

	enter(model.ErrLoad, 10, "loading image")
	img, err := r.load(uploadName)
	if err != nil {
		return "", err
	}

	enter(model.ErrPreprocess, 20, "preprocessing")
	in, err := r.pipeline.Preprocess(img)
	if err != nil {
		return "", err
	}

	enter(model.ErrInference, 40, "running model")
	out, err := r.pipeline.Infer(ctx, in)
	if err != nil {
		return "", err
	}

	enter(model.ErrPostprocess, 70, "postprocessing")
	restored, err := r.pipeline.Postprocess(out, img.Bounds().Size())
	if err != nil {
		return "", err
	}

	enter(model.ErrSave, 85, "saving result")
	return r.save(uploadName, restored)
}

func (r *Runner) load(uploadName string) (image.Image, error) {
	f, err := r.blobs.Open(path.Join(UploadDir, uploadName))
	if err != nil {
		return nil, stageErr(model.ErrLoad, err)
	}
	defer f.Close()
	img, err := imageproc.Decode(f)
	if err != nil {
		return nil, stageErr(model.ErrLoad, err)
	}
	return img, nil
}

func (r *Runner) save(uploadName string, img image.Image) (string, error) {
	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return "", stageErr(model.ErrSave, err)
	}
	key, err := r.blobs.Put(path.Join(ResultDir, ResultName(uploadName)), bytes.NewReader(data))
	if err != nil {
		return "", stageErr(model.ErrSave, err)
	}
	return blob.Locator(StaticPrefix, key), nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, id string, err error) {
	detail := Detail(err, model.ErrLoad)
	r.jobs.Update(ctx, id, model.Failed(detail))
	logger.Error("job failed", "kind", detail.Kind, "error", detail.Message)
}
