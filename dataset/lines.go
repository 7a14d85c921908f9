// Package dataset turns labelled CSV files into the normalized inputs and
// one-hot targets a model trains on.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"neuralimg/matrix"
)

// MaxPixel is the raw intensity that maps to 1.
const MaxPixel = 255.0

type Line struct {
	Inputs  []float64
	Targets []float64
}
type Lines []Line

// ErrEmpty is returned when a conversion needs at least one line.
var ErrEmpty = errors.New("dataset: no lines")

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// GetLinesLabeled reads image rows: the first value is the class index, the
// rest are inputNum raw pixel intensities. Pixels are scaled to [0,1] and
// the label becomes a one-hot vector of outputNum entries.
func GetLinesLabeled(reader io.Reader, inputNum, outputNum int) (Lines, error) {
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	var lines Lines
	for lineNum := 1; ; lineNum++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("reading csv: %w", err)
		}
		if len(record) != inputNum+1 {
			return lines, errInvalidLine{lineNum: lineNum, splits: len(record), expected: inputNum + 1}
		}

		label, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return lines, fmt.Errorf("line %d: parsing label: %w", lineNum, err)
		}
		if label < 0 || label >= outputNum {
			return lines, fmt.Errorf("line %d: label %d outside [0,%d)", lineNum, label, outputNum)
		}
		targets := make([]float64, outputNum)
		targets[label] = 1

		inputs := make([]float64, inputNum)
		for i := range inputs {
			x, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return lines, fmt.Errorf("line %d: parsing pixel %d: %w", lineNum, i, err)
			}
			inputs[i] = math.Min(math.Max(x/MaxPixel, 0), 1)
		}
		lines = append(lines, Line{Inputs: inputs, Targets: targets})
	}
	return lines, nil
}

// GetLines reads rows of inputNum inputs followed by outputNum targets,
// taken as they are.
func GetLines(reader io.Reader, inputNum, outputNum int) (Lines, error) {
	scanner := bufio.NewScanner(reader)
	var lines Lines
	var lineNum int
	for scanner.Scan() {
		lineNum++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		splits := strings.Split(scanner.Text(), ",")
		if len(splits) != inputNum+outputNum {
			return lines, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(splits),
				expected: inputNum + outputNum,
			}
		}
		values := make([]float64, len(splits))
		for i, split := range splits {
			num, err := strconv.ParseFloat(strings.TrimSpace(split), 64)
			if err != nil {
				return lines, fmt.Errorf("line %d: parsing value %d: %w", lineNum, i, err)
			}
			values[i] = num
		}
		lines = append(lines, Line{
			Inputs:  values[:inputNum:inputNum],
			Targets: values[inputNum:],
		})
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scanning: %w", err)
	}
	return lines, nil
}

// LoadLabeled opens filename and reads it with GetLinesLabeled.
func LoadLabeled(filename string, inputNum, outputNum int) (Lines, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	defer file.Close()
	lines, err := GetLinesLabeled(file, inputNum, outputNum)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return lines, nil
}

// NormalizeLines standardizes every input feature with the given per-feature
// mean and standard deviation. Features with zero deviation are only centered.
func NormalizeLines(lines Lines, std []float64, mean []float64) Lines {
	normalizedLines := make(Lines, len(lines))
	for i, line := range lines {
		normalizedInputs := make([]float64, len(line.Inputs))
		for j, x := range line.Inputs {
			d := std[j]
			if d == 0 {
				d = 1
			}
			normalizedInputs[j] = (x - mean[j]) / d
		}
		normalizedLines[i] = Line{
			Inputs:  normalizedInputs,
			Targets: line.Targets,
		}
	}
	return normalizedLines
}

func column(lines Lines, j int) []float64 {
	col := make([]float64, len(lines))
	for i, line := range lines {
		col[i] = line.Inputs[j]
	}
	return col
}

func CalculateMean(lines Lines) []float64 {
	if len(lines) == 0 {
		return nil
	}
	mean := make([]float64, len(lines[0].Inputs))
	for j := range mean {
		mean[j] = stat.Mean(column(lines, j), nil)
	}
	return mean
}

// CalculateStdDev returns the population standard deviation of each feature.
func CalculateStdDev(lines Lines) []float64 {
	if len(lines) == 0 {
		return nil
	}
	stdDev := make([]float64, len(lines[0].Inputs))
	for j := range stdDev {
		_, variance := stat.PopMeanVariance(column(lines, j), nil)
		stdDev[j] = math.Sqrt(variance)
	}
	return stdDev
}

// ToMatrices stacks inputs and targets into batch×features matrices.
func ToMatrices(lines Lines) (*matrix.Matrix, *matrix.Matrix, error) {
	if len(lines) == 0 {
		return nil, nil, ErrEmpty
	}
	inputs := make([][]float64, len(lines))
	targets := make([][]float64, len(lines))
	for i, line := range lines {
		inputs[i] = line.Inputs
		targets[i] = line.Targets
	}
	x, err := matrix.FromArray(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("inputs: %w", err)
	}
	y, err := matrix.FromArray(targets)
	if err != nil {
		return nil, nil, fmt.Errorf("targets: %w", err)
	}
	return x, y, nil
}

// Split returns the first fraction of lines for training and the rest for
// testing. fraction is clamped to [0,1].
func Split(lines Lines, fraction float64) (train, test Lines) {
	fraction = math.Min(math.Max(fraction, 0), 1)
	n := int(math.Round(float64(len(lines)) * fraction))
	return lines[:n], lines[n:]
}
