package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harishchavandke01/FaceClear/internal/blob"
	"github.com/harishchavandke01/FaceClear/internal/httpapi"
	"github.com/harishchavandke01/FaceClear/internal/pipeline"
	"github.com/harishchavandke01/FaceClear/internal/store"
)

const shutdownTimeout = 30 * time.Second

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, p, err := setup(ctx)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Addr = addr
	}

	for _, dir := range []string{pipeline.UploadDir, pipeline.ResultDir} {
		if err := os.MkdirAll(filepath.Join(cfg.PublicDir, dir), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	jobStore, err := store.Open(cfg.JobStore, cfg.JobStoreDSN, log)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer jobStore.Close()

	blobStore := blob.LocalFS{Root: cfg.PublicDir}
	runner := pipeline.NewRunner(jobStore, blobStore, p, log)

	server := httpapi.Server{
		Blobs:          blobStore,
		Jobs:           jobStore,
		Runner:         runner,
		BaseURL:        cfg.PublicBaseURL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API listening", "addr", cfg.Addr, "public_dir", cfg.PublicDir, "job_store", cfg.JobStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		log.Warn("jobs still running at exit", "error", err)
	}
	return nil
}
