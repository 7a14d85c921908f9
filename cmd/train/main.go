// neuralimg-train: trains an image classifier and saves it as JSON.
//
// Usage:
//
//	neuralimg-train --model=mlp --arch="784 128 10" --data=mnist_train.csv --epochs=10 --lr=0.01
//	neuralimg-train --model=cnn --image=28x28x1 --arch="10" --data=mnist_train.csv
//
// Without --data a synthetic clustered data set is generated. Every flag
// falls back to its NEURALIMG_* environment variable (or .env entry).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"neuralimg/dataset"
	"neuralimg/nn"
	"neuralimg/training"
	"neuralimg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	var (
		arch      = flag.String("arch", joinInts(cfg.Architecture, " "), "Layer sizes; for cnn only the dense sizes after the conv stack")
		image     = flag.String("image", joinInts(cfg.ImageSize, "x"), "Image size HxWxC (cnn)")
		labels    = flag.String("labels", strings.Join(cfg.Labels, ","), "Comma separated class labels")
		name      = flag.String("name", "", "Model name")
		verbose   = flag.Bool("verbose", true, "Verbose output")
		samples   = flag.Int("samples", 200, "Synthetic samples per class when --data is empty")
		split     = flag.Float64("split", 0.9, "Training fraction when --test is empty")
		shuffle   = flag.Bool("shuffle", true, "Shuffle samples every epoch")
		filters   = flag.Int("filters", 8, "Convolution filters (cnn)")
		kernel    = flag.Int("kernel", 3, "Convolution kernel size (cnn)")
		seedFlag  = flag.Uint64("seed", cfg.Seed, "Random seed for shuffling and synthetic data")
		modelType = flag.String("model", cfg.Model, "Model type: mlp, cnn")
	)
	flag.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Labelled CSV training data (label, pixels...)")
	flag.StringVar(&cfg.TestPath, "test", cfg.TestPath, "Labelled CSV test data")
	flag.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Number of training epochs")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Mini-batch size")
	flag.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "Learning rate")
	flag.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "Optimizer: sgd, adam")
	flag.StringVar(&cfg.ModelDir, "out", cfg.ModelDir, "Directory the trained model is written to")
	flag.Parse()

	utils.Verbose = *verbose
	cfg.Model = *modelType
	cfg.Seed = *seedFlag
	cfg.Labels = utils.ParseLabels(*labels)
	if cfg.Architecture, err = utils.ParseArchitecture(*arch); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing --arch: %v\n", err)
		os.Exit(1)
	}
	if cfg.ImageSize, err = utils.ParseArchitecture(strings.ReplaceAll(*image, "x", " ")); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing --image: %v\n", err)
		os.Exit(1)
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	utils.Logf("Configuration:")
	utils.Logf("  Model:         %s", cfg.Model)
	utils.Logf("  Architecture:  %v", cfg.Architecture)
	utils.Logf("  Epochs:        %d", cfg.Epochs)
	utils.Logf("  Batch size:    %d", cfg.BatchSize)
	utils.Logf("  Learning Rate: %.4f", cfg.LearningRate)
	utils.Logf("  Optimizer:     %s", cfg.Optimizer)

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	stopLoad := utils.Measure(&stats.DataLoadingTime)
	train, test, err := loadData(cfg, *samples, *split)
	stopLoad()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}
	utils.Logf("Loaded %d training and %d test samples", len(train), len(test))

	stopInit := utils.Measure(&stats.ModelInitTime)
	model, err := buildModel(cfg, modelParams{Name: *name, Filters: *filters, Kernel: *kernel})
	if err == nil {
		err = model.Initialize()
	}
	stopInit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building model: %v\n", err)
		os.Exit(1)
	}
	utils.Logf("\n%s\n", model.Summary())

	x, y, err := dataset.ToMatrices(train)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing data: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	manager := training.NewManager(training.Config{ModelDir: cfg.ModelDir})
	utils.Logf("\nStarting training...")
	stopTrain := utils.Measure(&stats.TrainingTime)
	id, err := manager.Start(ctx, model, x, y, nn.TrainConfig{
		Epochs:    cfg.Epochs,
		BatchSize: cfg.BatchSize,
		Shuffle:   *shuffle,
		Seed:      cfg.Seed,
		OnEpoch: func(em nn.EpochMetrics) error {
			utils.PrintEpoch(em, cfg.Epochs)
			return nil
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting training: %v\n", err)
		os.Exit(1)
	}
	run, err := manager.Wait(context.Background(), id)
	stopTrain()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error waiting for training: %v\n", err)
		os.Exit(1)
	}
	if run.Status != training.StatusCompleted {
		fmt.Fprintf(os.Stderr, "Training %s: %s\n", run.Status, run.Error)
		os.Exit(1)
	}

	if len(test) > 0 {
		stopEval := utils.Measure(&stats.EvaluationTime)
		err = evaluate(model, test)
		stopEval()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error evaluating: %v\n", err)
			os.Exit(1)
		}
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, run.Epoch)
	reportSaved(os.Stdout, run.ModelPath)
}

// reportSaved prints where the model went; an empty path means it was not saved.
func reportSaved(w io.Writer, path string) {
	if path == "" {
		fmt.Fprintln(w, "\nModel not saved (no output directory)")
		return
	}
	fmt.Fprintf(w, "\nModel saved to %s\n", path)
}

func loadData(cfg *utils.Config, samples int, split float64) (train, test dataset.Lines, err error) {
	if cfg.DataPath == "" {
		lines := dataset.Blobs(cfg.Classes(), samples, cfg.InputSize(), 3, cfg.Seed)
		train, test = dataset.Split(lines, split)
		return train, test, nil
	}
	if train, err = dataset.LoadLabeled(cfg.DataPath, cfg.InputSize(), cfg.Classes()); err != nil {
		return nil, nil, err
	}
	if cfg.TestPath == "" {
		train, test = dataset.Split(train, split)
		return train, test, nil
	}
	if test, err = dataset.LoadLabeled(cfg.TestPath, cfg.InputSize(), cfg.Classes()); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func evaluate(model *nn.Model, test dataset.Lines) error {
	x, y, err := dataset.ToMatrices(test)
	if err != nil {
		return err
	}
	metrics, err := model.Evaluate(x, y)
	if err != nil {
		return err
	}
	fmt.Printf("\nTest accuracy %.2f%% (loss %.4f) on %d samples\n", metrics.Accuracy*100, metrics.Loss, x.Rows())
	return nil
}

func joinInts(v []int, sep string) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, sep)
}
