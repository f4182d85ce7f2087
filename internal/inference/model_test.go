package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

func fakeTFServing(t *testing.T, state string, predict http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/deblur", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model_version_status": []map[string]string{{"version": "1", "state": state}},
		})
	})
	mux.HandleFunc("POST /v1/models/deblur:predict", predict)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// echoPredict returns each instance with every value doubled.
func echoPredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, img := range req.Instances {
		for _, row := range img {
			for _, px := range row {
				for i := range px {
					px[i] *= 2
				}
			}
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"predictions": req.Instances})
}

func TestLoadIdentity(t *testing.T) {
	m, err := Load(context.Background(), Config{Backend: BackendIdentity})
	require.NoError(t, err)

	in := tensor.New(1, 2, 2, 3)
	in.Data[0] = 0.5
	out, err := m.Infer(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)

	out.Data[0] = 1
	assert.Equal(t, float32(0.5), in.Data[0], "identity must not alias its input")
}

func TestLoadUnknownBackend(t *testing.T) {
	_, err := Load(context.Background(), Config{Backend: "onnx"})
	require.Error(t, err)
}

func TestLoadSerialized(t *testing.T) {
	m, err := Load(context.Background(), Config{Backend: BackendIdentity, Serialize: true})
	require.NoError(t, err)
	assert.IsType(t, &Serialized{}, m)
}

func TestTFServingInfer(t *testing.T) {
	srv := fakeTFServing(t, "AVAILABLE", echoPredict)

	m, err := Load(context.Background(), Config{Backend: BackendTFServing, URL: srv.URL, Name: "deblur", Timeout: 5 * time.Second})
	require.NoError(t, err)

	in := tensor.New(1, 3, 2, 3)
	for i := range in.Data {
		in.Data[i] = float32(i) / 100
	}
	out, err := m.Infer(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Shape(), out.Shape())
	for i := range in.Data {
		assert.InDelta(t, in.Data[i]*2, out.Data[i], 1e-6)
	}
}

func TestTFServingUnavailable(t *testing.T) {
	srv := fakeTFServing(t, "LOADING", echoPredict)
	_, err := DialTFServing(context.Background(), srv.URL, "deblur", time.Second)
	require.Error(t, err)

	_, err = DialTFServing(context.Background(), srv.URL, "missing", time.Second)
	require.Error(t, err)

	_, err = DialTFServing(context.Background(), "", "deblur", time.Second)
	require.Error(t, err)
}

func TestTFServingPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		predict http.HandlerFunc
	}{
		{
			name: "server error",
			predict: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "oom", http.StatusInternalServerError)
			},
		},
		{
			name: "error body",
			predict: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad input"})
			},
		},
		{
			name: "ragged output",
			predict: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"predictions": [[[[1,2,3]],[[1,2]]]]}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeTFServing(t, "AVAILABLE", tt.predict)
			m, err := DialTFServing(context.Background(), srv.URL, "deblur", time.Second)
			require.NoError(t, err)
			_, err = m.Infer(context.Background(), tensor.New(1, 2, 1, 3))
			require.Error(t, err)
		})
	}
}

type countingModel struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (c *countingModel) Infer(_ context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return in, nil
}

func TestSerializedRunsOneAtATime(t *testing.T) {
	inner := &countingModel{}
	m := &Serialized{Model: inner}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Infer(context.Background(), tensor.New(1, 1, 1, 3))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.maxSeen.Load())
}

type failingModel struct{}

func (failingModel) Infer(context.Context, tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Tensor{}, errors.New("no weights")
}

func TestWarmup(t *testing.T) {
	require.NoError(t, Warmup(context.Background(), Identity{}, 64, 64))
	require.Error(t, Warmup(context.Background(), failingModel{}, 64, 64))
}
