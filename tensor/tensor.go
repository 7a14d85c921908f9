// Package tensor holds the channel-last volumes that convolution and pooling
// layers reshape flat matrix rows into.
package tensor

import "fmt"

// Tensor is a simple n-D array backed by a flat []float64 in row-major order.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a zero Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	return &Tensor{
		Data:  make([]float64, Volume(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// FromSlice copies data into a Tensor of the given shape.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	if len(data) != Volume(shape) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(data), shape)
	}
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Volume returns the product of dims.
func Volume(shape []int) int {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return total
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}

// At returns the element at the given indices.
// For a volume [h, w, c], At(y, x, ch) returns the element at [y][x][ch].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

// AddAt accumulates value into the element at the given indices.
func (t *Tensor) AddAt(value float64, indices ...int) {
	t.Data[t.offset("AddAt", indices)] += value
}

// Pad2D returns a copy of the [h, w, c] volume t surrounded by zero rows and
// columns. The amounts may differ per side.
func Pad2D(t *Tensor, top, bottom, left, right int) *Tensor {
	if len(t.Shape) != 3 {
		panic(fmt.Sprintf("Pad2D: expected [h, w, c] volume, got shape %v", t.Shape))
	}
	h, w, c := t.Shape[0], t.Shape[1], t.Shape[2]
	if top == 0 && bottom == 0 && left == 0 && right == 0 {
		out, _ := FromSlice(t.Data, h, w, c)
		return out
	}
	pw := w + left + right
	out := New(h+top+bottom, pw, c)
	for y := 0; y < h; y++ {
		src := t.Data[y*w*c : (y+1)*w*c]
		dst := out.Data[((y+top)*pw+left)*c:]
		copy(dst[:w*c], src)
	}
	return out
}

// Crop2D is the inverse of Pad2D: it drops the given border rows and columns
// from an [h, w, c] volume.
func Crop2D(t *Tensor, top, bottom, left, right int) *Tensor {
	if len(t.Shape) != 3 {
		panic(fmt.Sprintf("Crop2D: expected [h, w, c] volume, got shape %v", t.Shape))
	}
	ph, pw, c := t.Shape[0], t.Shape[1], t.Shape[2]
	h, w := ph-top-bottom, pw-left-right
	out := New(h, w, c)
	for y := 0; y < h; y++ {
		src := t.Data[((y+top)*pw+left)*c:]
		copy(out.Data[y*w*c:(y+1)*w*c], src[:w*c])
	}
	return out
}
