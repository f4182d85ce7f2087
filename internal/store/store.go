package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harishchavandke01/FaceClear/internal/model"
)

// Store is the registry of job records shared by the endpoints and runners.
//
// Get always returns a snapshot. Update never reports failure to the caller:
// only the runner owning a job writes to it, so an unknown id or a rejected
// write is logged and dropped.
type Store interface {
	Create(ctx context.Context, id, uploadName string) (model.Job, error)
	Get(ctx context.Context, id string) (model.Job, error)
	Update(ctx context.Context, id string, patch model.JobPatch)
	Close() error
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by kind.
func Open(kind, dsn string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemory(logger), nil
	case BackendSQLite:
		return OpenSQLite(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown job store backend %q", kind)
	}
}

func newJob(id, uploadName string, now func() time.Time) model.Job {
	ts := now().UTC()
	return model.Job{
		ID:         id,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		Status:     model.JobQueued,
		Progress:   0,
		Message:    "queued",
		UploadName: uploadName,
	}
}
