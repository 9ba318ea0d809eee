package spanslide

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/ronlev/spanslide/pkg/spanslide/track"
)

// The preview screen draws one row per widget: a label line with the
// widget's name and applied range, and a track line whose thumbs can be
// grabbed with the mouse. Drags go through the exact same pipeline wire
// feeds use, samples and debouncing included, so the thumbs move when the
// debounce settles rather than under the pointer. That's the behavior being
// previewed, not a rendering shortcut.
const (
	demoMarginX       = 2
	demoHeaderHeight  = 4
	demoRowHeight     = 3
	demoMinTrackWidth = 10
)

var (
	demoStyleHeader = tcell.StyleDefault.Bold(true)
	demoStyleFaint  = tcell.StyleDefault.Dim(true)
	demoStyleLabel  = tcell.StyleDefault
	demoStyleSpan   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	demoStyleThumb  = tcell.StyleDefault.Bold(true)
)

// demoScreen is the interactive terminal preview for the configured widgets
type demoScreen struct {
	spanslide *Spanslide
	logger    *zap.SugaredLogger

	screen tcell.Screen

	dragging     bool
	dragWidgetID int
	dragUpper    bool
}

// wakeEvent nudges the event loop into redrawing when something changed
// off-thread, like a debounce firing
type wakeEvent struct {
	tcell.EventTime
}

// runDemo takes over the terminal with the preview screen and blocks until
// the user quits it
func (s *Spanslide) runDemo() error {
	logger := s.logger.Named("demo")

	screen, err := tcell.NewScreen()
	if err != nil {
		logger.Errorw("Failed to create preview screen", "error", err)
		return fmt.Errorf("create preview screen: %w", err)
	}

	if err := screen.Init(); err != nil {
		logger.Errorw("Failed to initialize preview screen", "error", err)
		return fmt.Errorf("init preview screen: %w", err)
	}

	d := &demoScreen{
		spanslide:    s,
		logger:       logger,
		screen:       screen,
		dragWidgetID: -1,
	}

	return d.run()
}

func (d *demoScreen) run() error {
	defer d.screen.Fini()

	d.screen.EnableMouse()
	d.screen.Clear()

	// debounced updates land well after the mouse event that caused them,
	// so they need their own way of triggering a redraw
	updatesChannel := d.spanslide.widgets.subscribeToRangeUpdates()
	go func() {
		for {
			select {
			case <-updatesChannel:
				d.postWake()
			}
		}
	}()

	// the pending marker must also clear when a debounce fires without
	// changing anything, and no update arrives for that
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	stopTicking := make(chan bool)
	defer close(stopTicking)

	go func() {
		for {
			select {
			case <-ticker.C:
				d.postWake()
			case <-stopTicking:
				return
			}
		}
	}()

	d.logger.Debug("Preview screen running")

	for {
		d.draw()

		switch event := d.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if isQuitKey(event) {
				d.logger.Debug("Quit key pressed, leaving preview screen")
				return nil
			}
		case *tcell.EventMouse:
			d.handleMouse(event)
		case *tcell.EventResize:
			d.screen.Sync()
		}
	}
}

func (d *demoScreen) postWake() {
	event := &wakeEvent{}
	event.SetEventNow()

	// best effort, a full queue means a redraw is coming anyway
	_ = d.screen.PostEvent(event)
}

func (d *demoScreen) draw() {
	d.screen.Clear()

	screenWidth, _ := d.screen.Size()

	drawText(d.screen, demoMarginX, 1, demoStyleHeader, "spanslide preview")
	drawText(d.screen, demoMarginX, 2, demoStyleFaint, "drag thumbs with the mouse, press q to quit")

	d.spanslide.widgets.iterate(func(id int, widget *Widget) {
		d.drawWidget(widget, screenWidth)
	})

	d.screen.Show()
}

func (d *demoScreen) drawWidget(widget *Widget, screenWidth int) {
	labelY := demoHeaderHeight + widget.ID*demoRowHeight
	trackY := labelY + 1

	trackWidth := screenWidth - 2*demoMarginX
	if trackWidth < demoMinTrackWidth {
		return
	}

	r := widget.CurrentRange()

	label := widget.Name
	if widget.Pending() {
		label += " *"
	}

	drawText(d.screen, demoMarginX, labelY, demoStyleLabel, label)

	values := fmt.Sprintf("%.2f .. %.2f", r.Lower, r.Upper)
	drawText(d.screen, demoMarginX+trackWidth-len(values), labelY, demoStyleFaint, values)

	lowerX := demoMarginX + thumbCell(r.Lower, trackWidth)
	upperX := demoMarginX + thumbCell(r.Upper, trackWidth)

	for i := 0; i < trackWidth; i++ {
		x := demoMarginX + i

		switch {
		case x == lowerX || x == upperX:
			d.screen.SetContent(x, trackY, '●', nil, demoStyleThumb)
		case x > lowerX && x < upperX:
			d.screen.SetContent(x, trackY, '━', nil, demoStyleSpan)
		default:
			d.screen.SetContent(x, trackY, '─', nil, demoStyleFaint)
		}
	}
}

func (d *demoScreen) handleMouse(event *tcell.EventMouse) {
	x, y := event.Position()
	pressed := event.Buttons()&tcell.Button1 != 0

	if !pressed {
		if d.dragging {

			// drag released, commit whatever's still pending right away
			if widget, ok := d.spanslide.widgets.get(d.dragWidgetID); ok {
				widget.Flush()
			}

			d.dragging = false
			d.dragWidgetID = -1
		}

		return
	}

	if !d.dragging {
		d.beginDrag(x, y)
	}

	if d.dragging {
		d.submitDrag(x)
	}
}

// beginDrag grabs a thumb if the press landed on a widget's track line. The
// grab sticks until release; motion in between keeps steering the same
// thumb even when the pointer strays off the row.
func (d *demoScreen) beginDrag(x int, y int) {
	screenWidth, _ := d.screen.Size()

	trackWidth := screenWidth - 2*demoMarginX
	if trackWidth < demoMinTrackWidth {
		return
	}

	row := y - demoHeaderHeight
	if row < 0 || row%demoRowHeight != 1 {
		return
	}

	widget, ok := d.spanslide.widgets.get(row / demoRowHeight)
	if !ok {
		return
	}

	if x < demoMarginX || x >= demoMarginX+trackWidth {
		return
	}

	r := widget.CurrentRange()
	lowerX := demoMarginX + thumbCell(r.Lower, trackWidth)
	upperX := demoMarginX + thumbCell(r.Upper, trackWidth)

	// grab the nearest thumb. when both sit on the same cell, the side the
	// click came from picks, so collapsed thumbs can be separated both ways
	lowerDistance := abs(x - lowerX)
	upperDistance := abs(x - upperX)

	d.dragUpper = upperDistance < lowerDistance || (upperDistance == lowerDistance && x > upperX)
	d.dragWidgetID = widget.ID
	d.dragging = true

	d.logger.Debugw("Grabbed thumb", "widgetID", d.dragWidgetID, "upper", d.dragUpper)
}

func (d *demoScreen) submitDrag(x int) {
	widget, ok := d.spanslide.widgets.get(d.dragWidgetID)
	if !ok {

		// the registry was rebuilt mid-drag, let go
		d.dragging = false
		d.dragWidgetID = -1
		return
	}

	screenWidth, _ := d.screen.Size()

	trackWidth := screenWidth - 2*demoMarginX
	if trackWidth < demoMinTrackWidth {
		return
	}

	// thumb gesture space is anchored at the track's center with the value
	// displacement applied at draw time, so offsets are measured from the
	// track midpoint
	widget.HandleDrag(track.DragSample{
		Offset: float64(x-demoMarginX) + 0.5 - float64(trackWidth)/2,
		Width:  float64(trackWidth),
		Upper:  d.dragUpper,
	})
}

// thumbCell maps a value in [0,1] onto a cell of the track
func thumbCell(value float64, trackWidth int) int {
	return int(math.Round(value * float64(trackWidth-1)))
}

func drawText(screen tcell.Screen, x int, y int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		screen.SetContent(col, y, r, nil, style)
		col++
	}
}

func isQuitKey(event *tcell.EventKey) bool {
	if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyCtrlC {
		return true
	}

	return event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q')
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
