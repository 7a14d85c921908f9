package optim

import (
	"math"

	"neuralimg/matrix"
)

// Adam implements the Adam optimizer (Kingma & Ba, 2014).
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g²
//	param = param - lr * m̂ / (sqrt(v̂) + epsilon)
//
// where m̂ and v̂ are the bias-corrected moments. State is tracked per key.
type Adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64
	state   map[string]*adamState
}

type adamState struct {
	m, v *matrix.Matrix
	t    int
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR      float64 // default 0.001
	Beta1   float64 // default 0.9
	Beta2   float64 // default 0.999
	Epsilon float64 // default 1e-8
}

// NewAdam creates an Adam optimizer, filling zero config fields with defaults.
func NewAdam(cfg AdamConfig) *Adam {
	if cfg.LR <= 0 {
		cfg.LR = 0.001
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return &Adam{
		lr:      cfg.LR,
		beta1:   cfg.Beta1,
		beta2:   cfg.Beta2,
		epsilon: cfg.Epsilon,
		state:   make(map[string]*adamState),
	}
}

// UpdateWeights applies one Adam step to the parameter identified by key.
func (a *Adam) UpdateWeights(key string, weights, gradients *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkShapes(weights, gradients); err != nil {
		return nil, err
	}
	st, ok := a.state[key]
	if !ok || st.m.Rows() != weights.Rows() || st.m.Cols() != weights.Cols() {
		st = &adamState{m: matrix.New(weights.Dims()), v: matrix.New(weights.Dims())}
	}

	m := st.m.Map(func(v float64, i, j int) float64 {
		return a.beta1*v + (1-a.beta1)*gradients.At(i, j)
	})
	v := st.v.Map(func(v float64, i, j int) float64 {
		g := gradients.At(i, j)
		return a.beta2*v + (1-a.beta2)*g*g
	})
	t := st.t + 1
	c1 := 1 - math.Pow(a.beta1, float64(t))
	c2 := 1 - math.Pow(a.beta2, float64(t))

	out := weights.Map(func(w float64, i, j int) float64 {
		mHat := m.At(i, j) / c1
		vHat := v.At(i, j) / c2
		return w - a.lr*mHat/(math.Sqrt(vHat)+a.epsilon)
	})
	a.state[key] = &adamState{m: m, v: v, t: t}
	return out, nil
}

func (a *Adam) LearningRate() float64 { return a.lr }

func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

func (a *Adam) Config() Config {
	return Config{
		Type:         TypeAdam,
		LearningRate: a.lr,
		Beta1:        a.beta1,
		Beta2:        a.beta2,
		Epsilon:      a.epsilon,
	}
}
