package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harishchavandke01/FaceClear/internal/tensor"
)

// TFServing calls a model hosted by TensorFlow Serving over its REST API.
// The HTTP client is safe for concurrent use.
type TFServing struct {
	baseURL string
	name    string
	client  *http.Client
}

type modelStatus struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][][][]float32 `json:"predictions"`
	Error       string          `json:"error"`
}

// DialTFServing checks that the model has an AVAILABLE version before
// returning a client for it.
func DialTFServing(ctx context.Context, baseURL, name string, timeout time.Duration) (*TFServing, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("tfserving: model url is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("tfserving: model name is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &TFServing{
		baseURL: strings.TrimRight(baseURL, "/"),
		name:    name,
		client:  &http.Client{Timeout: timeout},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.modelURL(""), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tfserving: model status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tfserving: model status: %s", readStatus(resp))
	}
	var status modelStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("tfserving: decode model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return s, nil
		}
	}
	return nil, fmt.Errorf("tfserving: model %q has no AVAILABLE version", name)
}

func (s *TFServing) modelURL(verb string) string {
	return s.baseURL + "/v1/models/" + url.PathEscape(s.name) + verb
}

func (s *TFServing) Infer(ctx context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	if err := in.Validate(); err != nil {
		return tensor.Tensor{}, err
	}
	body, err := json.Marshal(predictRequest{Instances: toNested(in)})
	if err != nil {
		return tensor.Tensor{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.modelURL(":predict"), bytes.NewReader(body))
	if err != nil {
		return tensor.Tensor{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("tfserving: predict: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tensor.Tensor{}, fmt.Errorf("tfserving: predict: %s", readStatus(resp))
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tensor.Tensor{}, fmt.Errorf("tfserving: decode prediction: %w", err)
	}
	if out.Error != "" {
		return tensor.Tensor{}, fmt.Errorf("tfserving: %s", out.Error)
	}
	return fromNested(out.Predictions)
}

func readStatus(resp *http.Response) string {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(bytes.TrimSpace(msg)) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(msg))
}

func toNested(t tensor.Tensor) [][][][]float32 {
	out := make([][][][]float32, t.N)
	for n := range out {
		rows := make([][][]float32, t.H)
		for y := range rows {
			cols := make([][]float32, t.W)
			for x := range cols {
				start := t.Index(n, y, x, 0)
				cols[x] = t.Data[start : start+t.C : start+t.C]
			}
			rows[y] = cols
		}
		out[n] = rows
	}
	return out
}

func fromNested(v [][][][]float32) (tensor.Tensor, error) {
	if len(v) == 0 || len(v[0]) == 0 || len(v[0][0]) == 0 || len(v[0][0][0]) == 0 {
		return tensor.Tensor{}, fmt.Errorf("tfserving: empty prediction")
	}
	t := tensor.New(len(v), len(v[0]), len(v[0][0]), len(v[0][0][0]))
	i := 0
	for _, img := range v {
		if len(img) != t.H {
			return tensor.Tensor{}, fmt.Errorf("tfserving: ragged prediction")
		}
		for _, row := range img {
			if len(row) != t.W {
				return tensor.Tensor{}, fmt.Errorf("tfserving: ragged prediction")
			}
			for _, px := range row {
				if len(px) != t.C {
					return tensor.Tensor{}, fmt.Errorf("tfserving: ragged prediction")
				}
				i += copy(t.Data[i:], px)
			}
		}
	}
	return t, nil
}
