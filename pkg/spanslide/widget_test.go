package spanslide

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/track"
)

// testWidget builds a widget with a buffered update consumer attached, so
// synchronous drags don't block on delivery
func testWidget(config WidgetConfig) (*Widget, chan RangeUpdateEvent) {
	w := NewWidget(zap.S(), config)

	ch := make(chan RangeUpdateEvent, 8)
	w.updateConsumers = append(w.updateConsumers, ch)

	return w, ch
}

func TestWidget_HandleDrag(t *testing.T) {
	type testCase struct {
		config        WidgetConfig
		givenSample   track.DragSample
		expectedRange track.Range
	}

	// debounce is zero throughout so drags apply synchronously
	testCases := map[string]testCase{
		"lower-thumb-moves": {
			config:        WidgetConfig{Step: 0.01, Lower: 0.25, Upper: 0.75},
			givenSample:   track.DragSample{Offset: -20, Width: 200, Upper: false},
			expectedRange: track.Range{Lower: 0.4, Upper: 0.75},
		},
		"upper-thumb-moves": {
			config:        WidgetConfig{Step: 0.05, Lower: 0.2, Upper: 0.6},
			givenSample:   track.DragSample{Offset: -64, Width: 640, Upper: true},
			expectedRange: track.Range{Lower: 0.2, Upper: 0.4},
		},
		"lower-drags-upper-along": {
			config:        WidgetConfig{Step: 0.01, Lower: 0.25, Upper: 0.75},
			givenSample:   track.DragSample{Offset: 80, Width: 200, Upper: false},
			expectedRange: track.Range{Lower: 0.9, Upper: 0.9},
		},
		"upper-drags-lower-along": {
			config:        WidgetConfig{Step: 0.1, Lower: 0.5, Upper: 0.9},
			givenSample:   track.DragSample{Offset: -192, Width: 640, Upper: true},
			expectedRange: track.Range{Lower: 0.2, Upper: 0.2},
		},
		"offset-past-track-end-clamps": {
			config:        WidgetConfig{Step: 0.01, Lower: 0.25, Upper: 0.75},
			givenSample:   track.DragSample{Offset: 900, Width: 200, Upper: true},
			expectedRange: track.Range{Lower: 0.25, Upper: 1.0},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {

			w, updates := testWidget(testCase.config)

			w.HandleDrag(testCase.givenSample)

			assert.Equal(t, testCase.expectedRange, w.CurrentRange())

			event := <-updates
			assert.Equal(t, RangeUpdateEvent{
				WidgetID: testCase.config.ID,
				Lower:    testCase.expectedRange.Lower,
				Upper:    testCase.expectedRange.Upper,
			}, event)
		})
	}
}

func TestWidget_SuppressesUnchangedRange(t *testing.T) {
	w, updates := testWidget(WidgetConfig{Step: 0.1, Lower: 0.2, Upper: 0.8})

	// quantizes straight back onto the current lower bound
	w.HandleDrag(track.DragSample{Offset: -60, Width: 200, Upper: false})

	assert.Equal(t, track.Range{Lower: 0.2, Upper: 0.8}, w.CurrentRange())
	assert.Empty(t, updates, "a drag that resolves to the current range should not emit an update")
}

func TestWidget_DebouncedDragKeepsOnlyLatest(t *testing.T) {
	w, updates := testWidget(WidgetConfig{Step: 0.01, Debounce: 25 * time.Millisecond, Lower: 0.25, Upper: 0.75})

	// two samples inside one debounce window, only the second should apply
	w.HandleDrag(track.DragSample{Offset: 30, Width: 200, Upper: false})
	w.HandleDrag(track.DragSample{Offset: -30, Width: 200, Upper: false})

	assert.Equal(t, track.Range{Lower: 0.25, Upper: 0.75}, w.CurrentRange(), "nothing should apply before the debounce settles")

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, track.Range{Lower: 0.35, Upper: 0.75}, w.CurrentRange())
	assert.Len(t, updates, 1, "the burst should produce a single update")
}

func TestWidget_FlushAppliesPendingDrag(t *testing.T) {
	w, updates := testWidget(WidgetConfig{Step: 0.01, Debounce: time.Second, Lower: 0.0, Upper: 1.0})

	w.HandleDrag(track.DragSample{Offset: -125, Width: 500, Upper: true})
	assert.True(t, w.Pending())

	w.Flush()

	assert.Equal(t, track.Range{Lower: 0.0, Upper: 0.25}, w.CurrentRange())
	assert.False(t, w.Pending())
	assert.Len(t, updates, 1)
}

func TestWidget_CloseDropsPendingDrag(t *testing.T) {
	w, updates := testWidget(WidgetConfig{Step: 0.01, Debounce: 25 * time.Millisecond, Lower: 0.25, Upper: 0.75})

	w.HandleDrag(track.DragSample{Offset: 80, Width: 200, Upper: false})
	w.Close()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, track.Range{Lower: 0.25, Upper: 0.75}, w.CurrentRange(), "a closed widget must not apply its pending drag")
	assert.Empty(t, updates)
}

func TestWidget_SetRange(t *testing.T) {
	type testCase struct {
		givenLower    float64
		givenUpper    float64
		expectedRange track.Range
	}

	testCases := map[string]testCase{
		"valid-range": {
			givenLower:    0.3,
			givenUpper:    0.7,
			expectedRange: track.Range{Lower: 0.3, Upper: 0.7},
		},
		"reversed-bounds-swap": {
			givenLower:    0.8,
			givenUpper:    0.2,
			expectedRange: track.Range{Lower: 0.2, Upper: 0.8},
		},
		"out-of-bounds-clamp": {
			givenLower:    -0.5,
			givenUpper:    1.5,
			expectedRange: track.Range{Lower: 0.0, Upper: 1.0},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {

			w, updates := testWidget(WidgetConfig{Step: 0.01, Lower: 0.1, Upper: 0.9})

			w.SetRange(testCase.givenLower, testCase.givenUpper)

			assert.Equal(t, testCase.expectedRange, w.CurrentRange())
			assert.Len(t, updates, 1)
		})
	}
}

func TestNewWidget_CorrectsReversedInitialRange(t *testing.T) {
	w := NewWidget(zap.S(), WidgetConfig{Step: 0.01, Lower: 0.9, Upper: 0.1})

	assert.Equal(t, track.Range{Lower: 0.1, Upper: 0.9}, w.CurrentRange())
}

func TestNewWidget_PanicsOnBadStep(t *testing.T) {
	assert.Panics(t, func() {
		NewWidget(zap.S(), WidgetConfig{Step: 0})
	})

	assert.Panics(t, func() {
		NewWidget(zap.S(), WidgetConfig{Step: -0.05})
	})
}
