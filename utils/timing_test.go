package utils

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"neuralimg/nn"
)

func captureOutput(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	Output, Verbose = &buf, verbose
	t.Cleanup(func() { Output, Verbose = oldOut, oldVerbose })
	return &buf
}

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestMeasureAccumulates(t *testing.T) {
	var d time.Duration
	stop := Measure(&d)
	time.Sleep(time.Millisecond)
	stop()
	first := d
	assert.GreaterOrEqual(t, first, time.Millisecond)
	Measure(&d)()
	assert.GreaterOrEqual(t, d, first)
}

func TestPrintTimingStats(t *testing.T) {
	buf := captureOutput(t, true)
	PrintTimingStats(&TimingStats{
		TotalTime:    10 * time.Second,
		TrainingTime: 5 * time.Second,
	}, 5)
	out := buf.String()
	assert.Contains(t, out, "Average time per epoch: 1s")
	assert.Contains(t, out, "Training: 5s (50.0%)")
	assert.Contains(t, out, "Saving: 0s (0.0%)")

	// zero totals must not divide by zero
	buf.Reset()
	PrintTimingStats(&TimingStats{}, 0)
	assert.Contains(t, buf.String(), "Epochs completed: 0")
}

func TestQuietOutput(t *testing.T) {
	buf := captureOutput(t, false)
	PrintTimingStats(&TimingStats{TotalTime: time.Second}, 1)
	Logf("hello %d", 1)
	PrintEpoch(nn.EpochMetrics{Epoch: 1}, 1)
	assert.Empty(t, buf.String())
}

func TestPrintEpoch(t *testing.T) {
	buf := captureOutput(t, true)
	PrintEpoch(nn.EpochMetrics{Epoch: 2, Metrics: nn.Metrics{Loss: 0.25, Accuracy: 0.875}}, 4)
	assert.Equal(t, "Epoch 2 of 4 complete: loss 0.2500, accuracy 87.50%\n", buf.String())
}
