package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"neuralimg/nn"
)

// SaveModel writes a model snapshot to a JSON file, creating parent
// directories as needed.
func SaveModel(path string, m *nn.Model) error {
	data, err := m.Save()
	if err != nil {
		return fmt.Errorf("failed to snapshot model: %w", err)
	}
	return SaveModelData(path, data)
}

// SaveModelData writes a snapshot to a JSON file.
func SaveModelData(path string, data *nn.ModelData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model dir: %w", err)
		}
	}
	return os.WriteFile(path, raw, 0644)
}

// LoadModelData reads a snapshot written by SaveModelData.
func LoadModelData(path string) (*nn.ModelData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var data nn.ModelData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return &data, nil
}

// LoadModel rebuilds a model from a file written by SaveModel.
func LoadModel(path string) (*nn.Model, error) {
	data, err := LoadModelData(path)
	if err != nil {
		return nil, err
	}
	m, err := nn.FromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild model from %s: %w", path, err)
	}
	return m, nil
}

// ModelPath is where a model with the given ID is stored under dir.
func ModelPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}
