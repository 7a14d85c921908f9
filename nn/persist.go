package nn

import (
	"fmt"

	"neuralimg/nn/layers"
	"neuralimg/nn/optim"
)

// LayerData is one layer's parameter snapshot.
type LayerData struct {
	ID      string                 `json:"id"`
	Type    layers.Type            `json:"type"`
	Weights map[string][][]float64 `json:"weights"`
}

// ModelData is the plain snapshot produced by Save and consumed by Load.
// Architecture is enough for FromData to rebuild the model without the
// code that originally assembled it.
type ModelData struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         Kind            `json:"kind,omitempty"`
	Layers       []string        `json:"layers"`
	LayersData   []LayerData     `json:"layersData"`
	Optimizer    optim.Config    `json:"optimizer"`
	Loss         LossType        `json:"loss,omitempty"`
	Labels       []string        `json:"labels,omitempty"`
	Architecture []layers.Config `json:"architecture,omitempty"`
}

// Save snapshots the model. An uninitialized model is initialized first.
func (m *Model) Save() (*ModelData, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	data := &ModelData{
		ID:        m.id,
		Name:      m.name,
		Kind:      m.kind,
		Optimizer: m.opt.Config(),
		Loss:      m.lossType,
		Labels:    m.Labels(),
	}
	for _, l := range m.seq.Layers {
		data.Layers = append(data.Layers, l.ID())
		data.LayersData = append(data.LayersData, LayerData{ID: l.ID(), Type: l.Type(), Weights: l.Weights()})
		data.Architecture = append(data.Architecture, l.Config())
	}
	return data, nil
}

// Load restores parameters from a snapshot. Every layer must have exactly
// one entry, matched by ID and of the same type. Either every layer is
// updated or, on any error, none is.
func (m *Model) Load(data *ModelData) error {
	if data == nil || data.LayersData == nil {
		return fmt.Errorf("%w: missing layersData", ErrValidation)
	}
	if len(data.LayersData) != len(m.seq.Layers) {
		return fmt.Errorf("%w: snapshot has %d layers, model has %d", ErrValidation, len(data.LayersData), len(m.seq.Layers))
	}
	if err := m.Initialize(); err != nil {
		return err
	}

	byID := make(map[string]LayerData, len(data.LayersData))
	for _, ld := range data.LayersData {
		if _, dup := byID[ld.ID]; dup {
			return fmt.Errorf("%w: duplicate layer id %q in snapshot", ErrValidation, ld.ID)
		}
		byID[ld.ID] = ld
	}
	for _, l := range m.seq.Layers {
		ld, ok := byID[l.ID()]
		if !ok {
			return fmt.Errorf("%w: no snapshot for layer %q", ErrValidation, l.ID())
		}
		if ld.Type != l.Type() {
			return fmt.Errorf("%w: layer %q is %s, snapshot has %s", ErrValidation, l.ID(), l.Type(), ld.Type)
		}
	}

	backup := make([]map[string][][]float64, len(m.seq.Layers))
	for i, l := range m.seq.Layers {
		backup[i] = l.Weights()
	}
	for i, l := range m.seq.Layers {
		if err := l.SetWeights(byID[l.ID()].Weights); err != nil {
			for j := 0; j < i; j++ {
				// restoring a snapshot taken from the same layer cannot fail
				_ = m.seq.Layers[j].SetWeights(backup[j])
			}
			return fmt.Errorf("load layer %q: %w", l.ID(), err)
		}
	}
	return nil
}

// FromData rebuilds a model from a snapshot that carries its architecture
// and loads its parameters.
func FromData(data *ModelData) (*Model, error) {
	if data == nil || len(data.Architecture) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no architecture", ErrValidation)
	}
	opt, err := optim.New(data.Optimizer)
	if err != nil {
		return nil, err
	}
	m, err := NewModel(Options{
		ID:        data.ID,
		Name:      data.Name,
		Kind:      data.Kind,
		Optimizer: opt,
		Loss:      data.Loss,
		Labels:    data.Labels,
	})
	if err != nil {
		return nil, err
	}
	for i, cfg := range data.Architecture {
		if _, err := m.Add(cfg); err != nil {
			return nil, fmt.Errorf("architecture layer %d: %w", i, err)
		}
	}
	if err := m.Load(data); err != nil {
		return nil, err
	}
	return m, nil
}
