package layers

import (
	"fmt"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// Pool2D downsamples each channel of a [h, w, c] volume with a max or
// average over non-padded ph×pw windows. It has no parameters.
type Pool2D struct {
	cfg Config

	inH, inW, inC int
	ph, pw        int
	sh, sw        int
	outH, outW    int
	mode          PoolMode

	// cached by Forward: for max pooling the input feature that won each
	// output cell, per batch row
	lastArgMax [][]int
	lastBatch  int
}

// NewPool2D creates a pooling layer. PoolSize defaults to 2 and Strides to PoolSize.
func NewPool2D(cfg Config) (*Pool2D, error) {
	if len(cfg.InputShape) != 3 || cfg.InputShape.Size() <= 0 {
		return nil, fmt.Errorf("%w: pooling layer needs a [h, w, c] inputShape, got %v", ErrValidation, cfg.InputShape)
	}
	ph, pw, err := pair("poolSize", cfg.PoolSize, 2)
	if err != nil {
		return nil, err
	}
	sh, sw := ph, pw
	if len(cfg.Strides) > 0 {
		if sh, sw, err = pair("strides", cfg.Strides, 0); err != nil {
			return nil, err
		}
	}
	if cfg.PoolMode == "" {
		cfg.PoolMode = PoolMax
	}
	if cfg.PoolMode != PoolMax && cfg.PoolMode != PoolAverage {
		return nil, fmt.Errorf("%w: pool mode %q", ErrUnsupportedOperation, cfg.PoolMode)
	}
	a := &Pool2D{
		inH:  cfg.InputShape[0],
		inW:  cfg.InputShape[1],
		inC:  cfg.InputShape[2],
		ph:   ph,
		pw:   pw,
		sh:   sh,
		sw:   sw,
		mode: cfg.PoolMode,
	}
	if a.inH < ph || a.inW < pw {
		return nil, fmt.Errorf("%w: pool %dx%d larger than input %dx%d", ErrValidation, ph, pw, a.inH, a.inW)
	}
	a.outH, a.outW = (a.inH-ph)/sh+1, (a.inW-pw)/sw+1
	if cfg.ID == "" {
		cfg.ID = newID(TypePooling)
	}
	cfg.Type = TypePooling
	a.cfg = cfg
	return a, nil
}

func (a *Pool2D) ID() string             { return a.cfg.ID }
func (a *Pool2D) Type() Type             { return TypePooling }
func (a *Pool2D) InputShape() Shape      { return a.cfg.InputShape }
func (a *Pool2D) OutputShape() Shape     { return Shape{a.outH, a.outW, a.inC} }
func (a *Pool2D) Activation() Activation { return nil }
func (a *Pool2D) Initialize()            {}
func (a *Pool2D) Config() Config         { return a.cfg }

func (a *Pool2D) inIndex(y, x, c int) int { return (y*a.inW+x)*a.inC + c }

func (a *Pool2D) Forward(x *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInput(a.cfg.ID, x, a.cfg.InputShape.Size()); err != nil {
		return nil, err
	}
	batch := x.Rows()
	outSize := a.outH * a.outW * a.inC
	out := matrix.New(batch, outSize)
	var argMax [][]int
	if a.mode == PoolMax {
		argMax = make([][]int, batch)
	}
	norm := 1 / float64(a.ph*a.pw)

	for b := 0; b < batch; b++ {
		in := x.RawRow(b)
		o := out.RawRow(b)
		if argMax != nil {
			argMax[b] = make([]int, outSize)
		}
		for oy := 0; oy < a.outH; oy++ {
			for ox := 0; ox < a.outW; ox++ {
				for c := 0; c < a.inC; c++ {
					oi := (oy*a.outW+ox)*a.inC + c
					best := a.inIndex(oy*a.sh, ox*a.sw, c)
					sum := 0.0
					for dy := 0; dy < a.ph; dy++ {
						for dx := 0; dx < a.pw; dx++ {
							ii := a.inIndex(oy*a.sh+dy, ox*a.sw+dx, c)
							sum += in[ii]
							if in[ii] > in[best] {
								best = ii
							}
						}
					}
					if a.mode == PoolMax {
						o[oi] = in[best]
						argMax[b][oi] = best
					} else {
						o[oi] = sum * norm
					}
				}
			}
		}
	}
	a.lastArgMax = argMax
	a.lastBatch = batch
	return out, nil
}

// Backward routes each output gradient to the winning input (max) or
// spreads it evenly over its window (avg).
func (a *Pool2D) Backward(dOut *matrix.Matrix, _ optim.Optimizer) (*matrix.Matrix, error) {
	if a.lastBatch == 0 {
		return nil, fmt.Errorf("%s: %w", a.cfg.ID, ErrNoForwardPass)
	}
	outSize := a.outH * a.outW * a.inC
	if dOut.Rows() != a.lastBatch || dOut.Cols() != outSize {
		return nil, fmt.Errorf("%s: %w: gradient %dx%d, want %dx%d", a.cfg.ID, matrix.ErrShapeMismatch,
			dOut.Rows(), dOut.Cols(), a.lastBatch, outSize)
	}
	dIn := matrix.New(a.lastBatch, a.cfg.InputShape.Size())
	norm := 1 / float64(a.ph*a.pw)

	for b := 0; b < a.lastBatch; b++ {
		g := dOut.RawRow(b)
		d := dIn.RawRow(b)
		if a.mode == PoolMax {
			for oi, ii := range a.lastArgMax[b] {
				d[ii] += g[oi]
			}
			continue
		}
		for oy := 0; oy < a.outH; oy++ {
			for ox := 0; ox < a.outW; ox++ {
				for c := 0; c < a.inC; c++ {
					share := g[(oy*a.outW+ox)*a.inC+c] * norm
					for dy := 0; dy < a.ph; dy++ {
						for dx := 0; dx < a.pw; dx++ {
							d[a.inIndex(oy*a.sh+dy, ox*a.sw+dx, c)] += share
						}
					}
				}
			}
		}
	}
	return dIn, nil
}

func (a *Pool2D) Weights() map[string][][]float64 { return map[string][][]float64{} }

func (a *Pool2D) SetWeights(weights map[string][][]float64) error {
	return checkNoWeights(a.cfg.ID, weights)
}
