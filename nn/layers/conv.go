package layers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
	"neuralimg/tensor"
)

// Conv2D is a 2D convolutional layer over channel-last [h, w, c] volumes.
//
// Each of the filters kernels is stored as a kh×(kw*inC) matrix: row dy
// holds the kw*inC weights that meet one padded input row, which is
// contiguous in channel-last layout. One bias per filter.
type Conv2D struct {
	cfg        Config
	activation Activation

	inH, inW, inC int
	filters       int
	kh, kw        int
	sh, sw        int
	outH, outW    int

	padTop, padBottom, padLeft, padRight int

	kernels []*matrix.Matrix
	biases  *matrix.Matrix // 1×filters

	// cached by Forward for Backward
	lastPadded []*tensor.Tensor
	lastPreAct *matrix.Matrix
}

// NewConv2D creates a convolutional layer. cfg.InputShape must be
// [height, width, channels]; KernelSize and Strides accept one or two values.
func NewConv2D(cfg Config) (*Conv2D, error) {
	if len(cfg.InputShape) != 3 || cfg.InputShape.Size() <= 0 {
		return nil, fmt.Errorf("%w: convolutional layer needs a [h, w, c] inputShape, got %v", ErrValidation, cfg.InputShape)
	}
	if cfg.Filters <= 0 {
		return nil, fmt.Errorf("%w: convolutional layer needs positive filters, got %d", ErrValidation, cfg.Filters)
	}
	if len(cfg.KernelSize) == 0 {
		return nil, fmt.Errorf("%w: convolutional layer needs a kernelSize", ErrValidation)
	}
	kh, kw, err := pair("kernelSize", cfg.KernelSize, 0)
	if err != nil {
		return nil, err
	}
	sh, sw, err := pair("strides", cfg.Strides, 1)
	if err != nil {
		return nil, err
	}
	act, err := NewActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	if cfg.Padding == "" {
		cfg.Padding = PaddingValid
	}

	c := &Conv2D{
		activation: act,
		inH:        cfg.InputShape[0],
		inW:        cfg.InputShape[1],
		inC:        cfg.InputShape[2],
		filters:    cfg.Filters,
		kh:         kh,
		kw:         kw,
		sh:         sh,
		sw:         sw,
	}

	switch cfg.Padding {
	case PaddingValid:
		if c.inH < kh || c.inW < kw {
			return nil, fmt.Errorf("%w: kernel %dx%d larger than input %dx%d", ErrValidation, kh, kw, c.inH, c.inW)
		}
		c.outH, c.outW = (c.inH-kh)/sh+1, (c.inW-kw)/sw+1
	case PaddingSame:
		c.outH, c.outW = ceilDiv(c.inH, sh), ceilDiv(c.inW, sw)
		c.padTop, c.padBottom = samePadding(c.inH, c.outH, kh, sh)
		c.padLeft, c.padRight = samePadding(c.inW, c.outW, kw, sw)
	default:
		return nil, fmt.Errorf("%w: padding %q", ErrUnsupportedOperation, cfg.Padding)
	}

	if cfg.ID == "" {
		cfg.ID = newID(TypeConvolutional)
	}
	cfg.Type = TypeConvolutional
	c.cfg = cfg
	return c, nil
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// samePadding puts floor((k-1)/2) zeros before the input and as many after
// as the last of the out windows needs.
func samePadding(in, out, k, s int) (int, int) {
	lead := (k - 1) / 2
	trail := (out-1)*s + k - in - lead
	if trail < 0 {
		trail = 0
	}
	return lead, trail
}

func (c *Conv2D) ID() string             { return c.cfg.ID }
func (c *Conv2D) Type() Type             { return TypeConvolutional }
func (c *Conv2D) InputShape() Shape      { return c.cfg.InputShape }
func (c *Conv2D) OutputShape() Shape     { return Shape{c.outH, c.outW, c.filters} }
func (c *Conv2D) Activation() Activation { return c.activation }
func (c *Conv2D) Config() Config         { return c.cfg }

// GetOutputShape returns the output spatial size.
func (c *Conv2D) GetOutputShape() (outH, outW int) {
	return c.outH, c.outW
}

// Initialize draws every kernel uniform in [-s, s] with Glorot fan sizes.
func (c *Conv2D) Initialize() {
	if c.kernels != nil {
		return
	}
	fanIn := c.kh * c.kw * c.inC
	fanOut := c.kh * c.kw * c.filters
	s := math.Sqrt(2 / float64(fanIn+fanOut))
	c.kernels = make([]*matrix.Matrix, c.filters)
	for f := range c.kernels {
		c.kernels[f] = matrix.Random(c.kh, c.kw*c.inC, -s, s)
	}
	c.biases = matrix.New(1, c.filters)
}

func (c *Conv2D) paddedWidth() int  { return c.inW + c.padLeft + c.padRight }
func (c *Conv2D) paddedHeight() int { return c.inH + c.padTop + c.padBottom }

// window returns the offset in a padded volume where row dy of the receptive
// field of output (oy, ox) starts, or -1 when that row lies outside it.
func (c *Conv2D) window(oy, ox, dy int) int {
	y := oy*c.sh + dy
	x := ox * c.sw
	if y >= c.paddedHeight() || x+c.kw > c.paddedWidth() {
		return -1
	}
	return (y*c.paddedWidth() + x) * c.inC
}

// Forward convolves each batch row and returns batch×(outH*outW*filters).
func (c *Conv2D) Forward(input *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInput(c.cfg.ID, input, c.cfg.InputShape.Size()); err != nil {
		return nil, err
	}
	c.Initialize()

	batch := input.Rows()
	span := c.kw * c.inC
	preAct := matrix.New(batch, c.outH*c.outW*c.filters)
	padded := make([]*tensor.Tensor, batch)
	bias := c.biases.RawRow(0)

	for b := 0; b < batch; b++ {
		vol, err := tensor.FromSlice(input.RawRow(b), c.inH, c.inW, c.inC)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.cfg.ID, err)
		}
		p := tensor.Pad2D(vol, c.padTop, c.padBottom, c.padLeft, c.padRight)
		padded[b] = p

		out := preAct.RawRow(b)
		for oy := 0; oy < c.outH; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				for f := 0; f < c.filters; f++ {
					sum := bias[f]
					for dy := 0; dy < c.kh; dy++ {
						base := c.window(oy, ox, dy)
						if base < 0 {
							continue
						}
						sum += floats.Dot(c.kernels[f].RawRow(dy), p.Data[base:base+span])
					}
					out[(oy*c.outW+ox)*c.filters+f] = sum
				}
			}
		}
	}

	c.lastPadded = padded
	c.lastPreAct = preAct
	return c.activation.ForwardMatrix(preAct), nil
}

// Backward retraces every output position's receptive field: kernel and
// bias gradients accumulate over positions and batch rows, and the input
// gradient is scattered into a padded volume that is cropped back to the
// input size.
func (c *Conv2D) Backward(outputGradient *matrix.Matrix, opt optim.Optimizer) (*matrix.Matrix, error) {
	if c.lastPreAct == nil {
		return nil, fmt.Errorf("%s: %w", c.cfg.ID, ErrNoForwardPass)
	}
	delta, err := outputGradient.HadamardProduct(c.activation.BackwardMatrix(c.lastPreAct))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.cfg.ID, err)
	}

	span := c.kw * c.inC
	kernelGrads := make([]*matrix.Matrix, c.filters)
	for f := range kernelGrads {
		kernelGrads[f] = matrix.New(c.kh, span)
	}
	biasGrad := matrix.New(1, c.filters)
	bg := biasGrad.RawRow(0)
	inputGrad := matrix.New(delta.Rows(), c.cfg.InputShape.Size())

	for b := 0; b < delta.Rows(); b++ {
		p := c.lastPadded[b]
		dp := tensor.New(p.Shape...)
		g := delta.RawRow(b)
		for oy := 0; oy < c.outH; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				for f := 0; f < c.filters; f++ {
					gv := g[(oy*c.outW+ox)*c.filters+f]
					if gv == 0 {
						continue
					}
					bg[f] += gv
					for dy := 0; dy < c.kh; dy++ {
						base := c.window(oy, ox, dy)
						if base < 0 {
							continue
						}
						floats.AddScaled(kernelGrads[f].RawRow(dy), gv, p.Data[base:base+span])
						floats.AddScaled(dp.Data[base:base+span], gv, c.kernels[f].RawRow(dy))
					}
				}
			}
		}
		cropped := tensor.Crop2D(dp, c.padTop, c.padBottom, c.padLeft, c.padRight)
		copy(inputGrad.RawRow(b), cropped.Data)
	}

	kernels := make([]*matrix.Matrix, c.filters)
	for f := range kernels {
		kernels[f], err = opt.UpdateWeights(fmt.Sprintf("%s/kernel_%d", c.cfg.ID, f), c.kernels[f], kernelGrads[f])
		if err != nil {
			return nil, fmt.Errorf("%s: update kernel %d: %w", c.cfg.ID, f, err)
		}
	}
	biases, err := opt.UpdateWeights(c.cfg.ID+"/biases", c.biases, biasGrad)
	if err != nil {
		return nil, fmt.Errorf("%s: update biases: %w", c.cfg.ID, err)
	}
	c.kernels, c.biases = kernels, biases
	return inputGrad, nil
}

// Weights returns kernel_0..kernel_{filters-1} (kh×(kw*inC) each) and
// biases (1×filters).
func (c *Conv2D) Weights() map[string][][]float64 {
	c.Initialize()
	w := make(map[string][][]float64, c.filters+1)
	for f, k := range c.kernels {
		w[fmt.Sprintf("kernel_%d", f)] = k.ToArray()
	}
	w["biases"] = c.biases.ToArray()
	return w
}

// SetWeights replaces all kernels and biases. Nothing changes if any entry is invalid.
func (c *Conv2D) SetWeights(weights map[string][][]float64) error {
	kernels := make([]*matrix.Matrix, c.filters)
	for f := range kernels {
		k, err := paramFromArray(weights, fmt.Sprintf("kernel_%d", f), c.kh, c.kw*c.inC)
		if err != nil {
			return fmt.Errorf("%s: %w", c.cfg.ID, err)
		}
		kernels[f] = k
	}
	b, err := paramFromArray(weights, "biases", 1, c.filters)
	if err != nil {
		return fmt.Errorf("%s: %w", c.cfg.ID, err)
	}
	c.kernels, c.biases = kernels, b
	return nil
}
