// Package tensor holds the NHWC float32 arrays exchanged with the model.
package tensor

import "fmt"

// Tensor is a dense float32 array in NHWC order.
type Tensor struct {
	N, H, W, C int
	Data       []float32
}

// New allocates a zeroed tensor of the given shape.
func New(n, h, w, c int) Tensor {
	return Tensor{N: n, H: h, W: w, C: c, Data: make([]float32, n*h*w*c)}
}

// Shape returns the dimensions as a slice, in NHWC order.
func (t Tensor) Shape() []int { return []int{t.N, t.H, t.W, t.C} }

// Validate checks that Data matches the declared shape.
func (t Tensor) Validate() error {
	if t.N <= 0 || t.H <= 0 || t.W <= 0 || t.C <= 0 {
		return fmt.Errorf("invalid tensor shape %v", t.Shape())
	}
	if len(t.Data) != t.N*t.H*t.W*t.C {
		return fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape())
	}
	return nil
}

// Index returns the offset of element (n, y, x, c).
func (t Tensor) Index(n, y, x, c int) int {
	return ((n*t.H+y)*t.W+x)*t.C + c
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	out := t
	out.Data = append([]float32(nil), t.Data...)
	return out
}
