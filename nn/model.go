package nn

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"neuralimg/matrix"
	"neuralimg/nn/layers"
	"neuralimg/nn/optim"
)

// Kind labels a model's architecture family.
type Kind string

const (
	KindSequential    Kind = "sequential"
	KindConvolutional Kind = "convolutional"
)

// State is the model lifecycle: Uninitialized, then Initialized, then
// Trained once Train has completed at least one run.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTrained:
		return "trained"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options configure a new model. Zero values pick defaults: a random ID,
// KindSequential, SGD at optim.DefaultLearningRate, and a loss inferred from
// the output activation when the model is initialized.
type Options struct {
	ID        string
	Name      string
	Kind      Kind
	Optimizer optim.Optimizer
	Loss      LossType
	// Labels name the output classes in order, for Classify.
	Labels []string
}

// Model owns an ordered chain of layers together with the optimizer and the
// loss used to train them.
type Model struct {
	id     string
	name   string
	kind   Kind
	labels []string

	seq      Sequential
	opt      optim.Optimizer
	lossType LossType
	loss     Loss
	state    State
}

// NewModel creates an empty model.
func NewModel(opts Options) (*Model, error) {
	switch opts.Kind {
	case "":
		opts.Kind = KindSequential
	case KindSequential, KindConvolutional:
	default:
		return nil, fmt.Errorf("%w: model kind %q", ErrUnsupportedOperation, opts.Kind)
	}
	if opts.Loss != "" {
		if _, err := NewLoss(opts.Loss); err != nil {
			return nil, err
		}
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Optimizer == nil {
		opts.Optimizer = optim.NewSGD(optim.DefaultLearningRate)
	}
	return &Model{
		id:       opts.ID,
		name:     opts.Name,
		kind:     opts.Kind,
		labels:   append([]string(nil), opts.Labels...),
		opt:      opts.Optimizer,
		lossType: opts.Loss,
	}, nil
}

func (m *Model) ID() string                 { return m.id }
func (m *Model) Name() string               { return m.name }
func (m *Model) Kind() Kind                 { return m.kind }
func (m *Model) State() State               { return m.state }
func (m *Model) Optimizer() optim.Optimizer { return m.opt }
func (m *Model) Labels() []string           { return append([]string(nil), m.labels...) }

// Layers returns the model's layers in forward order.
func (m *Model) Layers() []layers.Layer {
	return append([]layers.Layer(nil), m.seq.Layers...)
}

// Loss returns the configured loss, or the resolved one once initialized.
// It is empty for an uninitialized model left to auto-detection.
func (m *Model) Loss() LossType { return m.lossType }

// Add builds a layer from cfg and appends it. A missing InputShape is taken
// from the previous layer's output.
func (m *Model) Add(cfg layers.Config) (layers.Layer, error) {
	if len(cfg.InputShape) == 0 {
		last := m.seq.Last()
		if last == nil {
			return nil, fmt.Errorf("%w: first layer needs an inputShape", ErrValidation)
		}
		cfg.InputShape = last.OutputShape()
	}
	l, err := layers.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.AddLayer(l); err != nil {
		return nil, err
	}
	return l, nil
}

// AddLayer appends l. Its input must take as many features as the previous
// layer produces, and its ID must be unique within the model.
func (m *Model) AddLayer(l layers.Layer) error {
	if m.state != StateUninitialized {
		return fmt.Errorf("%w: cannot add layers to an initialized model", ErrValidation)
	}
	for _, other := range m.seq.Layers {
		if other.ID() == l.ID() {
			return fmt.Errorf("%w: duplicate layer id %q", ErrValidation, l.ID())
		}
	}
	if last := m.seq.Last(); last != nil && last.OutputShape().Size() != l.InputShape().Size() {
		return fmt.Errorf("%w: layer %q expects %v, previous layer %q produces %v",
			ErrValidation, l.ID(), l.InputShape(), last.ID(), last.OutputShape())
	}
	m.seq.Layers = append(m.seq.Layers, l)
	return nil
}

func isSoftmax(l layers.Layer) bool {
	a := l.Activation()
	return a != nil && a.Type() == layers.Softmax
}

// validate checks the architecture and resolves the loss.
func (m *Model) validate() (Loss, error) {
	n := len(m.seq.Layers)
	if n == 0 {
		return nil, fmt.Errorf("%w: model has no layers", ErrValidation)
	}
	for i, l := range m.seq.Layers[:n-1] {
		if isSoftmax(l) {
			return nil, fmt.Errorf("%w: softmax is only allowed on the output layer, found on layer %d (%s)", ErrValidation, i, l.ID())
		}
	}
	if m.kind == KindConvolutional {
		found := false
		for _, l := range m.seq.Layers {
			if l.Type() == layers.TypeConvolutional {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: convolutional model has no convolutional layer", ErrValidation)
		}
	}

	softmaxOut := isSoftmax(m.seq.Last())
	t := m.lossType
	if t == "" {
		t = LossMSE
		if softmaxOut {
			t = LossCrossEntropy
		}
	}
	if t == LossCrossEntropy && !softmaxOut {
		return nil, fmt.Errorf("%w: cross entropy needs a softmax output layer", ErrValidation)
	}
	if t != LossCrossEntropy && softmaxOut {
		return nil, fmt.Errorf("%w: a softmax output layer must be trained with cross entropy, got %s", ErrValidation, t)
	}
	return NewLoss(t)
}

// Initialize validates the architecture, fixes the loss and initializes
// every layer. Calls after the first are no-ops.
func (m *Model) Initialize() error {
	if m.state != StateUninitialized {
		return nil
	}
	loss, err := m.validate()
	if err != nil {
		return err
	}
	m.seq.Initialize()
	m.loss, m.lossType = loss, loss.Type()
	m.state = StateInitialized
	return nil
}

func (m *Model) inputSize() int  { return m.seq.Layers[0].InputShape().Size() }
func (m *Model) outputSize() int { return m.seq.Last().OutputShape().Size() }

func (m *Model) checkData(inputs, targets *matrix.Matrix) error {
	if inputs.Cols() != m.inputSize() {
		return fmt.Errorf("%w: inputs have %d features, model takes %d", matrix.ErrShapeMismatch, inputs.Cols(), m.inputSize())
	}
	if targets == nil {
		return nil
	}
	if targets.Rows() != inputs.Rows() {
		return fmt.Errorf("%w: %d inputs but %d targets", matrix.ErrShapeMismatch, inputs.Rows(), targets.Rows())
	}
	if targets.Cols() != m.outputSize() {
		return fmt.Errorf("%w: targets have %d columns, model produces %d", matrix.ErrShapeMismatch, targets.Cols(), m.outputSize())
	}
	return nil
}

// Predict runs a batch through every layer. It initializes the model first
// if needed and never changes parameters.
func (m *Model) Predict(inputs *matrix.Matrix) (*matrix.Matrix, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	if err := m.checkData(inputs, nil); err != nil {
		return nil, err
	}
	return m.seq.Forward(inputs)
}

// Prediction is the outcome of classifying one sample.
type Prediction struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify predicts every row and returns its arg-max class. Without
// labels, or with fewer labels than outputs, the label is the class index.
func (m *Model) Classify(inputs *matrix.Matrix) ([]Prediction, error) {
	out, err := m.Predict(inputs)
	if err != nil {
		return nil, err
	}
	preds := make([]Prediction, out.Rows())
	for i := range preds {
		idx := out.ArgMaxRow(i)
		preds[i] = Prediction{Index: idx, Label: m.labelFor(idx), Confidence: out.At(i, idx)}
	}
	return preds, nil
}

func (m *Model) labelFor(index int) string {
	if index < len(m.labels) {
		return m.labels[index]
	}
	return strconv.Itoa(index)
}

// Metrics aggregate loss and arg-max accuracy over a data set.
type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// EpochMetrics are the metrics of one training epoch, numbered from 1.
type EpochMetrics struct {
	Epoch int `json:"epoch"`
	Metrics
}

// History records every completed epoch of a Train call.
type History struct {
	Epochs []EpochMetrics `json:"epochs"`
}

// Final returns the metrics of the last epoch.
func (h *History) Final() EpochMetrics {
	if len(h.Epochs) == 0 {
		return EpochMetrics{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// ErrStopped wraps the error an OnEpoch callback used to end training early.
var ErrStopped = errors.New("training stopped")

// TrainConfig controls a Train call.
type TrainConfig struct {
	Epochs int
	// BatchSize rows are forwarded together and produce one update.
	// Zero means 1.
	BatchSize int
	// Shuffle reorders samples every epoch with a generator seeded by Seed.
	Shuffle bool
	Seed    uint64
	// OnEpoch is called after every epoch. Returning an error stops
	// training; Train then returns the history so far and an error wrapping
	// both ErrStopped and the callback's error.
	OnEpoch func(EpochMetrics) error
}

// Train fits the model to one-hot (or regression) targets and returns the
// per-epoch history. On error, parameters keep the last completed update.
func (m *Model) Train(inputs, targets *matrix.Matrix, cfg TrainConfig) (*History, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	if err := m.checkData(inputs, targets); err != nil {
		return nil, err
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrValidation, cfg.Epochs)
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size must not be negative, got %d", ErrValidation, cfg.BatchSize)
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 1
	}

	n := inputs.Rows()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))

	history := &History{}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if cfg.Shuffle {
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		var lossSum float64
		var correct int
		for _, batch := range createBatches(order, batchSize) {
			loss, hits, err := m.trainBatch(inputs, targets, batch)
			if err != nil {
				return history, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			lossSum += loss * float64(len(batch))
			correct += hits
		}
		em := EpochMetrics{Epoch: epoch, Metrics: Metrics{
			Loss:     lossSum / float64(n),
			Accuracy: float64(correct) / float64(n),
		}}
		history.Epochs = append(history.Epochs, em)
		m.state = StateTrained
		if cfg.OnEpoch != nil {
			if err := cfg.OnEpoch(em); err != nil {
				return history, fmt.Errorf("%w after epoch %d: %w", ErrStopped, epoch, err)
			}
		}
	}
	return history, nil
}

func createBatches(order []int, batchSize int) [][]int {
	batches := make([][]int, 0, (len(order)+batchSize-1)/batchSize)
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		batches = append(batches, order[start:end])
	}
	return batches
}

func (m *Model) trainBatch(inputs, targets *matrix.Matrix, rows []int) (float64, int, error) {
	x, err := inputs.SelectRows(rows)
	if err != nil {
		return 0, 0, err
	}
	y, err := targets.SelectRows(rows)
	if err != nil {
		return 0, 0, err
	}
	out, err := m.seq.Forward(x)
	if err != nil {
		return 0, 0, err
	}
	loss, err := m.loss.Compute(out, y)
	if err != nil {
		return 0, 0, err
	}
	grad, err := m.loss.Gradient(out, y)
	if err != nil {
		return 0, 0, err
	}
	if _, err := m.seq.Backward(grad, m.opt); err != nil {
		return 0, 0, err
	}
	return loss, countCorrect(out, y), nil
}

func countCorrect(out, targets *matrix.Matrix) int {
	correct := 0
	for i := 0; i < out.Rows(); i++ {
		if out.ArgMaxRow(i) == targets.ArgMaxRow(i) {
			correct++
		}
	}
	return correct
}

// Evaluate computes loss and accuracy without touching parameters.
func (m *Model) Evaluate(inputs, targets *matrix.Matrix) (Metrics, error) {
	if err := m.Initialize(); err != nil {
		return Metrics{}, err
	}
	if err := m.checkData(inputs, targets); err != nil {
		return Metrics{}, err
	}
	out, err := m.seq.Forward(inputs)
	if err != nil {
		return Metrics{}, err
	}
	loss, err := m.loss.Compute(out, targets)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Loss:     loss,
		Accuracy: float64(countCorrect(out, targets)) / float64(out.Rows()),
	}, nil
}

// Summary describes the layers, their shapes and parameter counts.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s model %q (%s)\n", m.kind, m.name, m.id)
	total := 0
	for i, l := range m.seq.Layers {
		params := layers.ParamCount(l)
		total += params
		act := ""
		if a := l.Activation(); a != nil {
			act = " " + string(a.Type())
		}
		fmt.Fprintf(&b, "  %d %-14s %-13s %v -> %v%s params=%d\n", i, l.ID(), l.Type(), l.InputShape(), l.OutputShape(), act, params)
	}
	fmt.Fprintf(&b, "  total params=%d", total)
	return b.String()
}
