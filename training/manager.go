// Package training runs model training in the background and tracks each
// run's status and per-epoch metrics so callers can poll progress.
package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neuralimg/matrix"
	"neuralimg/nn"
	"neuralimg/utils"
)

var (
	// ErrNotFound is returned for an unknown run ID.
	ErrNotFound = errors.New("training: run not found")
	// ErrBusy is returned when a model already has an unfinished run.
	ErrBusy = errors.New("training: model is already training")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether the run has finished, successfully or not.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is a snapshot of one training run.
type Run struct {
	ID          string            `json:"id"`
	ModelID     string            `json:"modelId"`
	Status      Status            `json:"status"`
	Epoch       int               `json:"epoch"`
	TotalEpochs int               `json:"totalEpochs"`
	Metrics     []nn.EpochMetrics `json:"metrics"`
	Error       string            `json:"error,omitempty"`
	// ModelPath is set when a completed model was written to disk.
	ModelPath  string    `json:"modelPath,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Progress is the fraction of epochs completed, in [0,1].
func (r Run) Progress() float64 {
	if r.TotalEpochs == 0 {
		return 0
	}
	return float64(r.Epoch) / float64(r.TotalEpochs)
}

type job struct {
	run    Run
	model  *nn.Model
	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures a Manager.
type Config struct {
	// ModelDir, when set, receives every successfully trained model as
	// <ModelDir>/<model id>.json.
	ModelDir string
}

// Manager starts training runs and records their progress.
type Manager struct {
	cfg Config

	mu     sync.RWMutex
	jobs   map[string]*job
	active map[*nn.Model]string
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		jobs:   make(map[string]*job),
		active: make(map[*nn.Model]string),
	}
}

// Start launches model.Train in a new goroutine and returns the run ID at
// once. Cancelling ctx, or calling Cancel, ends the run after the current
// epoch; the run is then reported as cancelled and its model is not saved.
func (m *Manager) Start(ctx context.Context, model *nn.Model, inputs, targets *matrix.Matrix, cfg nn.TrainConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.active[model]; ok {
		return "", fmt.Errorf("%w: run %s", ErrBusy, id)
	}

	ctx, cancel := context.WithCancel(ctx)
	j := &job{
		run: Run{
			ID:          uuid.NewString(),
			ModelID:     model.ID(),
			Status:      StatusPending,
			TotalEpochs: cfg.Epochs,
			StartedAt:   time.Now(),
		},
		model:  model,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.jobs[j.run.ID] = j
	m.active[model] = j.run.ID
	utils.Logf("training run %s for model %s: %s", j.run.ID, model.ID(), StatusPending)

	go m.execute(ctx, j, inputs, targets, cfg)
	return j.run.ID, nil
}

func (m *Manager) execute(ctx context.Context, j *job, inputs, targets *matrix.Matrix, cfg nn.TrainConfig) {
	defer close(j.done)
	defer j.cancel()

	if ctx.Err() != nil {
		m.finish(j, StatusCancelled, ctx.Err(), "")
		return
	}
	m.update(j, func(r *Run) { r.Status = StatusRunning })

	onEpoch := cfg.OnEpoch
	cfg.OnEpoch = func(em nn.EpochMetrics) error {
		m.update(j, func(r *Run) {
			r.Epoch = em.Epoch
			r.Metrics = append(r.Metrics, em)
		})
		if onEpoch != nil {
			if err := onEpoch(em); err != nil {
				return err
			}
		}
		return ctx.Err()
	}

	_, err := j.model.Train(inputs, targets, cfg)
	switch {
	case ctx.Err() != nil:
		m.finish(j, StatusCancelled, ctx.Err(), "")
	case err != nil:
		m.finish(j, StatusFailed, err, "")
	default:
		var path string
		if m.cfg.ModelDir != "" {
			path = utils.ModelPath(m.cfg.ModelDir, j.model.ID())
			if err := utils.SaveModel(path, j.model); err != nil {
				m.finish(j, StatusFailed, err, "")
				return
			}
		}
		m.finish(j, StatusCompleted, nil, path)
	}
}

func (m *Manager) update(j *job, fn func(r *Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&j.run)
}

func (m *Manager) finish(j *job, status Status, err error, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.run.Status = status
	j.run.FinishedAt = time.Now()
	j.run.ModelPath = path
	if err != nil {
		j.run.Error = err.Error()
	}
	delete(m.active, j.model)
	utils.Logf("training run %s for model %s: %s", j.run.ID, j.run.ModelID, status)
}

func (m *Manager) get(id string) (*job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

func (j *job) snapshot() Run {
	r := j.run
	r.Metrics = append([]nn.EpochMetrics(nil), j.run.Metrics...)
	return r
}

// Status returns a snapshot of the run.
func (m *Manager) Status(id string) (Run, error) {
	j, err := m.get(id)
	if err != nil {
		return Run{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return j.snapshot(), nil
}

// Cancel asks a run to stop after its current epoch. Cancelling a finished
// run has no effect.
func (m *Manager) Cancel(id string) error {
	j, err := m.get(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done and returns the run's
// latest snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (Run, error) {
	j, err := m.get(id)
	if err != nil {
		return Run{}, err
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		r, _ := m.Status(id)
		return r, ctx.Err()
	}
	return m.Status(id)
}

// List returns every run, oldest first.
func (m *Manager) List() []Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]Run, 0, len(m.jobs))
	for _, j := range m.jobs {
		runs = append(runs, j.snapshot())
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].StartedAt.Before(runs[b].StartedAt) })
	return runs
}
