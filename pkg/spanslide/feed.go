package spanslide

import (
	"strconv"
	"strings"

	"github.com/ronlev/spanslide/pkg/spanslide/track"
)

// ThumbFeed produces drag samples from somewhere outside the process, such
// as a serial line or a UDP socket. The widget map consumes exactly one
// feed at a time, as selected by config.
type ThumbFeed interface {
	Start() error
	Stop()
	SubscribeToDragEvents() chan DragEvent
}

// DragEvent represents a single drag sample captured for one widget
type DragEvent struct {
	WidgetID int
	Sample   track.DragSample
}

// parseDragMessage converts a validated `widget|thumb|offset|width` message
// into a DragEvent. Callers validate against their own line pattern first;
// the one thing the patterns can't express is that the width must be
// positive, so that's rejected here. The mapper treats a zero width as a
// programmer error, and wire data doesn't get to trip that.
func parseDragMessage(message string, invert bool) (DragEvent, bool) {
	fields := strings.Split(message, "|")

	// the patterns guarantee the fields parse
	widgetID, _ := strconv.Atoi(fields[0])
	thumb, _ := strconv.Atoi(fields[1])
	offset, _ := strconv.Atoi(fields[2])
	width, _ := strconv.Atoi(fields[3])

	if width <= 0 {
		return DragEvent{}, false
	}

	// if directions are inverted, dragging right should move the thumb left
	if invert {
		offset = -offset
	}

	return DragEvent{
		WidgetID: widgetID,
		Sample: track.DragSample{
			Offset: float64(offset),
			Width:  float64(width),
			Upper:  thumb == 1,
		},
	}, true
}
