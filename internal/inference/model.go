// Package inference loads the restoration model the pipeline calls into.
package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

// Model runs one forward pass. Implementations must not modify their input.
type Model interface {
	Infer(ctx context.Context, in tensor.Tensor) (tensor.Tensor, error)
}

const (
	BackendIdentity  = "identity"
	BackendTFServing = "tfserving"
)

type Config struct {
	Backend string
	URL     string
	Name    string
	Timeout time.Duration
	// Serialize forces one inference at a time, for runtimes that are not
	// safe for concurrent use.
	Serialize bool
}

// Load returns a ready model or an error; the server must not start without
// one.
func Load(ctx context.Context, cfg Config) (Model, error) {
	var (
		m   Model
		err error
	)
	switch cfg.Backend {
	case "", BackendIdentity:
		m = Identity{}
	case BackendTFServing:
		m, err = DialTFServing(ctx, cfg.URL, cfg.Name, cfg.Timeout)
	default:
		err = fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Serialize {
		m = &Serialized{Model: m}
	}
	return m, nil
}

// Warmup runs a single inference on a zero tensor of the model input shape.
func Warmup(ctx context.Context, m Model, height, width int) error {
	_, err := m.Infer(ctx, tensor.New(1, height, width, 3))
	return err
}

// Identity returns a copy of its input. It stands in for a real model in
// demos and tests.
type Identity struct{}

func (Identity) Infer(_ context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	if err := in.Validate(); err != nil {
		return tensor.Tensor{}, err
	}
	return in.Clone(), nil
}

// Serialized guards a model that cannot run concurrently.
type Serialized struct {
	mu    sync.Mutex
	Model Model
}

func (s *Serialized) Infer(ctx context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Infer(ctx, in)
}
