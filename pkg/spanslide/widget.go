package spanslide

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/debounce"
	"github.com/ronlev/spanslide/pkg/spanslide/track"
)

const (
	defaultWidgetStep     = 0.01
	defaultWidgetDebounce = 100 * time.Millisecond
)

// WidgetConfig describes one dual-thumb slider as canonized from the config
// file (or built programmatically by a host)
type WidgetConfig struct {
	ID       int
	Name     string
	Step     float64
	Debounce time.Duration
	Lower    float64
	Upper    float64
}

// RangeUpdateEvent represents a single accepted range change for one widget
type RangeUpdateEvent struct {
	WidgetID int
	Lower    float64
	Upper    float64
}

// Widget owns the state of one dual-thumb range slider: the current range,
// the quantization step and the debouncer that throttles drag bursts. Both
// thumbs' gestures funnel through HandleDrag, making the widget the single
// writer of its range. Feeds and screens stay on the other side of channels
// and never touch the range directly.
type Widget struct {
	ID   int
	Name string

	step float64

	logger    *zap.SugaredLogger
	debouncer *debounce.Debouncer

	// guards current, and is held while notifying consumers so update
	// events leave in the same order their ranges were committed
	lock    sync.Locker
	current track.Range

	updateConsumers []chan RangeUpdateEvent
}

// NewWidget creates a widget from its config. A non-positive step is a
// programmer error and panics; config canonization is expected to have
// weeded those out of user input. A malformed initial range, on the other
// hand, is corrected rather than rejected, same as ranges are corrected
// after every drag.
func NewWidget(logger *zap.SugaredLogger, config WidgetConfig) *Widget {
	if config.Step <= 0 {
		panic(fmt.Sprintf("widget %d: step must be positive, got %v", config.ID, config.Step))
	}

	logger = logger.Named(fmt.Sprintf("widget.%d", config.ID))

	w := &Widget{
		ID:              config.ID,
		Name:            config.Name,
		step:            config.Step,
		logger:          logger,
		debouncer:       debounce.New(config.Debounce),
		lock:            &sync.Mutex{},
		updateConsumers: []chan RangeUpdateEvent{},
	}

	lower, upper := clampUnit(config.Lower), clampUnit(config.Upper)
	if lower > upper {
		logger.Warnw("Initial range is reversed, swapping bounds", "lower", lower, "upper", upper)
		lower, upper = upper, lower
	}

	w.current = track.Range{Lower: lower, Upper: upper}

	logger.Debugw("Created widget instance", "widget", w)

	return w
}

// SubscribeToRangeUpdates returns an unbuffered channel that receives
// a RangeUpdateEvent struct every time the widget's range changes
func (w *Widget) SubscribeToRangeUpdates() chan RangeUpdateEvent {
	ch := make(chan RangeUpdateEvent)
	w.updateConsumers = append(w.updateConsumers, ch)

	return ch
}

// HandleDrag submits a drag sample for this widget. The sample is resolved
// into a range once the widget's debounce interval has passed without a
// newer sample arriving; samples replaced before that are discarded, so a
// fast drag costs one update, not dozens. Resolution happens at fire time,
// against whatever the range is then, so the cross-clamp always works off
// fresh state.
func (w *Widget) HandleDrag(sample track.DragSample) {
	w.debouncer.Submit(func() {
		w.applyDrag(sample)
	})
}

// Flush applies any pending drag sample immediately. Hosts call this on
// drag release so the final position never waits out the debounce interval.
func (w *Widget) Flush() {
	w.debouncer.Flush()
}

// Pending reports whether a drag sample is waiting on the debounce timer,
// letting screens mark the widget as not-yet-settled
func (w *Widget) Pending() bool {
	return w.debouncer.Pending()
}

// CurrentRange returns the widget's current range
func (w *Widget) CurrentRange() track.Range {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.current
}

// SetRange writes the range directly, bypassing quantization. This is the
// programmatic binding path (initial values, external writers); values are
// corrected the same way a construction-time range would be.
func (w *Widget) SetRange(lower float64, upper float64) {
	lower, upper = clampUnit(lower), clampUnit(upper)
	if lower > upper {
		w.logger.Warnw("Set range is reversed, swapping bounds", "lower", lower, "upper", upper)
		lower, upper = upper, lower
	}

	w.commit(track.Range{Lower: lower, Upper: upper})
}

// Close discards any pending drag sample and stops the debounce timer, so
// no callback fires into a widget that's been dropped from the registry
func (w *Widget) Close() {
	w.debouncer.Cancel()
	w.logger.Debug("Closed widget instance")
}

func (w *Widget) String() string {
	r := w.CurrentRange()
	return fmt.Sprintf("<widget %d (%s): %.2f..%.2f step %v>", w.ID, w.Name, r.Lower, r.Upper, w.step)
}

func (w *Widget) applyDrag(sample track.DragSample) {
	w.lock.Lock()
	defer w.lock.Unlock()

	resolved := track.Resolve(w.current, sample, w.step)

	// dragging in place quantizes back to the same range, nothing to redraw
	if resolved == w.current {
		w.logger.Debugw("Drag resolved to current range, suppressing update", "sample", sample)
		return
	}

	w.current = resolved
	w.notifyConsumers(resolved)
}

func (w *Widget) commit(next track.Range) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if next == w.current {
		return
	}

	w.current = next
	w.notifyConsumers(next)
}

// callers hold w.lock
func (w *Widget) notifyConsumers(r track.Range) {
	event := RangeUpdateEvent{
		WidgetID: w.ID,
		Lower:    r.Lower,
		Upper:    r.Upper,
	}

	for _, consumer := range w.updateConsumers {
		consumer <- event
	}
}
