package main

import (
	"fmt"

	"neuralimg/nn"
	"neuralimg/nn/layers"
	"neuralimg/nn/optim"
	"neuralimg/utils"
)

type modelParams struct {
	Name    string
	Filters int
	Kernel  int
}

// buildModel assembles the network described by cfg.
//
// mlp: Input(arch[0]) then one ReLU dense layer per hidden size and a
// softmax output of arch[len-1] units.
// cnn: Input(image) -> Conv(same, ReLU) -> MaxPool(2) -> Flatten, then a
// ReLU dense layer per arch entry but the last, which is the softmax output.
func buildModel(cfg *utils.Config, params modelParams) (*nn.Model, error) {
	opt, err := optim.New(optim.Config{Type: optim.Type(cfg.Optimizer), LearningRate: cfg.LearningRate})
	if err != nil {
		return nil, err
	}
	kind := nn.KindSequential
	if cfg.Model == utils.ModelCNN {
		kind = nn.KindConvolutional
	}
	name := params.Name
	if name == "" {
		name = fmt.Sprintf("%s-%v", cfg.Model, cfg.Architecture)
	}
	model, err := nn.NewModel(nn.Options{Name: name, Kind: kind, Optimizer: opt, Labels: cfg.Labels})
	if err != nil {
		return nil, err
	}

	var stack []layers.Config
	dense := cfg.Architecture
	switch cfg.Model {
	case utils.ModelMLP:
		stack = append(stack, layers.Config{Type: layers.TypeInput, InputShape: layers.Shape{cfg.Architecture[0]}})
		dense = cfg.Architecture[1:]
	case utils.ModelCNN:
		stack = append(stack,
			layers.Config{Type: layers.TypeInput, InputShape: layers.Shape(cfg.ImageSize)},
			layers.Config{Type: layers.TypeConvolutional, Filters: params.Filters, KernelSize: []int{params.Kernel}, Padding: layers.PaddingSame, Activation: layers.ReLU},
			layers.Config{Type: layers.TypePooling, PoolSize: []int{2}},
			layers.Config{Type: layers.TypeFlatten},
		)
	default:
		return nil, fmt.Errorf("unknown model type %q", cfg.Model)
	}
	for i, units := range dense {
		act := layers.ReLU
		if i == len(dense)-1 {
			act = layers.Softmax
		}
		stack = append(stack, layers.Config{Type: layers.TypeDense, Units: units, Activation: act})
	}

	for _, lc := range stack {
		if _, err := model.Add(lc); err != nil {
			return nil, err
		}
	}
	return model, nil
}
