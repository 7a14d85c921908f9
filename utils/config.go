package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Model families the CLIs can build.
const (
	ModelMLP = "mlp"
	ModelCNN = "cnn"
)

// Config holds training configuration. LoadConfig fills it from the
// environment; the CLIs override fields with flags.
type Config struct {
	Model        string
	Architecture []int
	ImageSize    []int
	Labels       []string
	DataPath     string
	TestPath     string
	Epochs       int
	BatchSize    int
	LearningRate float64
	Optimizer    string
	ModelDir     string
	Seed         uint64
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Model:        ModelMLP,
		Architecture: []int{784, 128, 10},
		ImageSize:    []int{28, 28, 1},
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.01,
		Optimizer:    "sgd",
		ModelDir:     "models",
		Seed:         1,
	}
}

// LoadConfig reads NEURALIMG_* variables, after loading the nearest .env
// file found in the working directory or its parents. Variables already set
// in the environment win over the .env file.
func LoadConfig() (*Config, error) {
	_ = loadEnvFile()

	cfg := DefaultConfig()
	if v := os.Getenv("NEURALIMG_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("NEURALIMG_ARCH"); v != "" {
		arch, err := ParseArchitecture(v)
		if err != nil {
			return nil, fmt.Errorf("NEURALIMG_ARCH: %w", err)
		}
		cfg.Architecture = arch
	}
	if v := os.Getenv("NEURALIMG_IMAGE_SIZE"); v != "" {
		size, err := ParseArchitecture(strings.ReplaceAll(v, "x", " "))
		if err != nil {
			return nil, fmt.Errorf("NEURALIMG_IMAGE_SIZE: %w", err)
		}
		cfg.ImageSize = size
	}
	if v := os.Getenv("NEURALIMG_LABELS"); v != "" {
		cfg.Labels = ParseLabels(v)
	}
	cfg.DataPath = os.Getenv("NEURALIMG_DATA")
	cfg.TestPath = os.Getenv("NEURALIMG_TEST_DATA")
	if v := os.Getenv("NEURALIMG_OPTIMIZER"); v != "" {
		cfg.Optimizer = v
	}
	if v := os.Getenv("NEURALIMG_MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}

	var err error
	if cfg.Epochs, err = envInt("NEURALIMG_EPOCHS", cfg.Epochs); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("NEURALIMG_BATCH_SIZE", cfg.BatchSize); err != nil {
		return nil, err
	}
	if v := os.Getenv("NEURALIMG_LEARNING_RATE"); v != "" {
		if cfg.LearningRate, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("NEURALIMG_LEARNING_RATE: %w", err)
		}
	}
	if v := os.Getenv("NEURALIMG_SEED"); v != "" {
		if cfg.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, fmt.Errorf("NEURALIMG_SEED: %w", err)
		}
	}
	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// loadEnvFile looks up to 5 levels up for a .env file.
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(archStr)
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		arch[i] = n
	}
	return arch, nil
}

// ParseLabels splits a comma separated label list.
func ParseLabels(s string) []string {
	var labels []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	switch config.Model {
	case ModelMLP:
		if len(config.Architecture) < 2 {
			return fmt.Errorf("architecture must have at least 2 layers (input and output)")
		}
	case ModelCNN:
		if len(config.ImageSize) != 3 {
			return fmt.Errorf("image size must be height x width x channels")
		}
		if len(config.Architecture) < 1 {
			return fmt.Errorf("architecture must end with the number of classes")
		}
	default:
		return fmt.Errorf("model must be %q or %q, got %q", ModelMLP, ModelCNN, config.Model)
	}
	for _, n := range append(append([]int{}, config.Architecture...), config.ImageSize...) {
		if n <= 0 {
			return fmt.Errorf("layer and image sizes must be positive")
		}
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if config.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}
	if n := config.Classes(); len(config.Labels) > 0 && len(config.Labels) != n {
		return fmt.Errorf("got %d labels for %d classes", len(config.Labels), n)
	}
	return nil
}

// Classes is the size of the output layer.
func (c *Config) Classes() int {
	if len(c.Architecture) == 0 {
		return 0
	}
	return c.Architecture[len(c.Architecture)-1]
}

// InputSize is the number of features per sample.
func (c *Config) InputSize() int {
	if c.Model == ModelCNN {
		n := 1
		for _, d := range c.ImageSize {
			n *= d
		}
		return n
	}
	if len(c.Architecture) == 0 {
		return 0
	}
	return c.Architecture[0]
}
