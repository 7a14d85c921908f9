// neuralimg-infer: classifies samples with a model written by neuralimg-train.
//
// Usage:
//
//	neuralimg-infer --model=models/<id>.json --input=sample.json --topk=3
//	neuralimg-infer --model=models/<id>.json --csv=mnist_test.csv
//
// --input holds one sample ([]float64) or a batch ([][]float64) of features
// already scaled to [0,1]; with --raw they are 0-255 pixel intensities.
// --csv evaluates accuracy on a labelled file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"neuralimg/dataset"
	"neuralimg/matrix"
	"neuralimg/nn"
	"neuralimg/utils"
)

var (
	modelFile = flag.String("model", "", "Model JSON file")
	inputFile = flag.String("input", "", "Input JSON file")
	csvFile   = flag.String("csv", "", "Labelled CSV file to evaluate")
	raw       = flag.Bool("raw", false, "Input holds 0-255 pixel values")
	verbose   = flag.Bool("verbose", true, "Verbose output")
	topK      = flag.Int("topk", 3, "Top predictions to show")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *modelFile == "" {
		fmt.Fprintln(os.Stderr, "--model is required")
		flag.Usage()
		os.Exit(2)
	}
	model, err := utils.LoadModel(*modelFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}
	utils.Logf("%s\n", model.Summary())

	if *csvFile != "" {
		if err := evaluateCSV(model, *csvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "one of --input or --csv is required")
		os.Exit(2)
	}
	data, err := os.ReadFile(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	inputs, err := parseInput(data, *raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing input: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	out, err := model.Predict(inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	utils.Logf("Inference time: %.4fs", time.Since(start).Seconds())

	for i := 0; i < out.Rows(); i++ {
		fmt.Printf("\nSample %d:\n", i)
		for _, s := range topScores(out.Row(i), model.Labels(), *topK) {
			fmt.Printf("  %-10s %.4f\n", s.label, s.score)
		}
	}
}

// parseInput accepts a single sample or a batch of samples.
func parseInput(data []byte, raw bool) (*matrix.Matrix, error) {
	var batch [][]float64
	if err := json.Unmarshal(data, &batch); err != nil {
		var single []float64
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("input must be a JSON array of numbers or of arrays: %w", err)
		}
		batch = [][]float64{single}
	}
	m, err := matrix.FromArray(batch)
	if err != nil {
		return nil, err
	}
	if raw {
		m = m.Map(func(v float64, _, _ int) float64 { return v / dataset.MaxPixel })
	}
	return m, nil
}

type score struct {
	label string
	score float64
}

func topScores(row []float64, labels []string, k int) []score {
	scores := make([]score, len(row))
	for i, v := range row {
		label := fmt.Sprint(i)
		if i < len(labels) {
			label = labels[i]
		}
		scores[i] = score{label: label, score: v}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}
	return scores
}

func evaluateCSV(model *nn.Model, path string) error {
	layers := model.Layers()
	lines, err := dataset.LoadLabeled(path, layers[0].InputShape().Size(), layers[len(layers)-1].OutputShape().Size())
	if err != nil {
		return err
	}
	x, y, err := dataset.ToMatrices(lines)
	if err != nil {
		return err
	}
	metrics, err := model.Evaluate(x, y)
	if err != nil {
		return err
	}
	fmt.Printf("Accuracy %.2f%% (loss %.4f) on %d samples\n", metrics.Accuracy*100, metrics.Loss, x.Rows())
	return nil
}
