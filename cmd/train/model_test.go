package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralimg/nn"
	"neuralimg/nn/layers"
	"neuralimg/utils"
)

func TestBuildMLP(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Architecture = []int{4, 8, 3}
	m, err := buildModel(cfg, modelParams{Name: "tiny"})
	require.NoError(t, err)
	require.NoError(t, m.Initialize())

	ls := m.Layers()
	require.Len(t, ls, 3)
	assert.Equal(t, layers.TypeInput, ls[0].Type())
	assert.Equal(t, layers.ReLU, ls[1].Activation().Type())
	assert.Equal(t, layers.Shape{3}, ls[2].OutputShape())
	assert.Equal(t, nn.LossCrossEntropy, m.Loss())
	assert.Equal(t, "tiny", m.Name())
}

func TestBuildCNN(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Model = utils.ModelCNN
	cfg.ImageSize = []int{8, 8, 1}
	cfg.Architecture = []int{16, 4}
	cfg.Optimizer = "adam"
	m, err := buildModel(cfg, modelParams{Filters: 2, Kernel: 3})
	require.NoError(t, err)
	require.NoError(t, m.Initialize())

	ls := m.Layers()
	require.Len(t, ls, 6)
	assert.Equal(t, layers.Shape{8, 8, 2}, ls[1].OutputShape())
	assert.Equal(t, layers.Shape{4, 4, 2}, ls[2].OutputShape())
	assert.Equal(t, layers.Shape{32}, ls[3].OutputShape())
	assert.Equal(t, nn.KindConvolutional, m.Kind())
	assert.Equal(t, "adam", string(m.Optimizer().Config().Type))
}

func TestBuildModelRejectsUnknownOptimizer(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Optimizer = "rmsprop"
	_, err := buildModel(cfg, modelParams{})
	assert.Error(t, err)
}

func TestLoadSyntheticData(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Architecture = []int{2, 3}
	train, test, err := loadData(cfg, 10, 0.8)
	require.NoError(t, err)
	assert.Len(t, train, 24)
	assert.Len(t, test, 6)
}

func TestReportSaved(t *testing.T) {
	var buf bytes.Buffer
	reportSaved(&buf, "models/m.json")
	assert.Contains(t, buf.String(), "Model saved to models/m.json")

	buf.Reset()
	reportSaved(&buf, "")
	assert.NotContains(t, buf.String(), "saved to")
	assert.Contains(t, buf.String(), "not saved")
}
