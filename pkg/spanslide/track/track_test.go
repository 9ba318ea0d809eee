package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantize(t *testing.T) {
	type testCase struct {
		percentage float64
		step       float64
		expected   float64
	}

	testCases := map[string]testCase{
		"snap-up": {
			percentage: 0.37,
			step:       0.1,
			expected:   0.4,
		},
		"snap-down": {
			percentage: 0.32,
			step:       0.1,
			expected:   0.3,
		},
		"already-on-step": {
			percentage: 0.25,
			step:       0.05,
			expected:   0.25,
		},
		"clamp-negative": {
			percentage: -3.2,
			step:       0.01,
			expected:   0,
		},
		"clamp-above-one": {
			percentage: 1.7,
			step:       0.01,
			expected:   1,
		},
		"fine-step": {
			percentage: 0.123,
			step:       0.01,
			expected:   0.12,
		},
		"coarse-step": {
			percentage: 0.4,
			step:       1,
			expected:   0,
		},
		// 1/0.4 = 2.5, and round(2.5) = 3 would land on 1.2 without the
		// result clamp
		"step-not-dividing-one": {
			percentage: 1,
			step:       0.4,
			expected:   1,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			assert.InDelta(t, testCase.expected, Quantize(testCase.percentage, testCase.step), 1e-9)
		})
	}
}

func TestQuantizeStaysOnTrack(t *testing.T) {
	percentages := []float64{-10, -0.001, 0, 0.12345, 0.25, 0.37, 0.5, 0.77, 0.9999, 1, 1.001, 42}
	steps := []float64{0.01, 0.05, 0.1, 0.25, 0.3, 0.4, 1}

	for _, step := range steps {
		for _, percentage := range percentages {
			got := Quantize(percentage, step)

			assert.GreaterOrEqual(t, got, 0.0, "step %v percentage %v", step, percentage)
			assert.LessOrEqual(t, got, 1.0, "step %v percentage %v", step, percentage)

			// quantized value never strays more than half a step from the
			// clamped input
			clamped := clamp01(percentage)
			assert.LessOrEqual(t, math.Abs(got-clamped), step/2+1e-9, "step %v percentage %v", step, percentage)

			// quantizing twice changes nothing
			assert.InDelta(t, got, Quantize(got, step), 1e-9, "step %v percentage %v", step, percentage)
		}
	}
}

func TestQuantizePanicsOnBadStep(t *testing.T) {
	assert.Panics(t, func() { Quantize(0.5, 0) })
	assert.Panics(t, func() { Quantize(0.5, -0.1) })
}

func TestPercentage(t *testing.T) {
	type testCase struct {
		offset   float64
		width    float64
		expected float64
	}

	testCases := map[string]testCase{
		"left-of-midpoint": {
			offset:   -20,
			width:    200,
			expected: 0.4,
		},
		"right-of-midpoint": {
			offset:   50,
			width:    200,
			expected: 0.75,
		},
		"zero-offset-lands-on-midpoint": {
			offset:   0,
			width:    640,
			expected: 0.5,
		},
		"past-left-edge": {
			offset:   -300,
			width:    200,
			expected: -1,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			assert.InDelta(t, testCase.expected, Percentage(testCase.offset, testCase.width), 1e-9)
		})
	}
}

func TestPercentagePanicsOnBadWidth(t *testing.T) {
	assert.Panics(t, func() { Percentage(10, 0) })
	assert.Panics(t, func() { Percentage(10, -200) })
}

func TestMoveThumb(t *testing.T) {
	type testCase struct {
		given    Range
		upper    bool
		value    float64
		expected Range
	}

	testCases := map[string]testCase{
		"lower-moves-freely": {
			given:    Range{Lower: 0.25, Upper: 0.75},
			upper:    false,
			value:    0.5,
			expected: Range{Lower: 0.5, Upper: 0.75},
		},
		"upper-moves-freely": {
			given:    Range{Lower: 0.25, Upper: 0.75},
			upper:    true,
			value:    0.3,
			expected: Range{Lower: 0.25, Upper: 0.3},
		},
		"lower-drags-upper-along": {
			given:    Range{Lower: 0.25, Upper: 0.75},
			upper:    false,
			value:    0.9,
			expected: Range{Lower: 0.9, Upper: 0.9},
		},
		"upper-drags-lower-along": {
			given:    Range{Lower: 0.25, Upper: 0.75},
			upper:    true,
			value:    0.1,
			expected: Range{Lower: 0.1, Upper: 0.1},
		},
		"invalid-input-range-still-corrected": {
			given:    Range{Lower: 0.8, Upper: 0.2},
			upper:    true,
			value:    0.6,
			expected: Range{Lower: 0.6, Upper: 0.6},
		},
		"thumbs-may-touch": {
			given:    Range{Lower: 0.4, Upper: 0.6},
			upper:    false,
			value:    0.6,
			expected: Range{Lower: 0.6, Upper: 0.6},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			got := testCase.given.MoveThumb(testCase.upper, testCase.value)

			assert.Equal(t, testCase.expected, got)
			assert.LessOrEqual(t, got.Lower, got.Upper)
		})
	}
}

func TestResolve(t *testing.T) {
	// pointer 20px left of the track midpoint on a 200px track, quantized
	// to hundredths
	got := Resolve(Range{Lower: 0.25, Upper: 0.75}, DragSample{Offset: -20, Width: 200}, 0.01)
	assert.Equal(t, Range{Lower: 0.4, Upper: 0.75}, got)

	// a drag that carries the lower thumb past the upper one
	got = Resolve(Range{Lower: 0.25, Upper: 0.75}, DragSample{Offset: 80, Width: 200}, 0.01)
	assert.Equal(t, Range{Lower: 0.9, Upper: 0.9}, got)
}

func TestResolveIsStable(t *testing.T) {
	// holding the pointer still must not make the value creep between ticks
	r := Range{Lower: 0.25, Upper: 0.75}
	sample := DragSample{Offset: -17, Width: 640, Upper: false}

	r = Resolve(r, sample, 0.05)
	for i := 0; i < 25; i++ {
		next := Resolve(r, sample, 0.05)
		assert.Equal(t, r, next, "drifted on tick %d", i)
		r = next
	}
}
