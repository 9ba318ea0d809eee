// Package track implements the geometry and quantization math behind a
// dual-thumb range slider. Everything in here is a pure function over plain
// values: callers own the slider state, hand us drag samples and get a new
// range back. Nothing in this package retains references to host state.
package track

import "math"

// Range is a pair of slider values in [0, 1]. A well-formed Range always
// satisfies Lower <= Upper; MoveThumb restores that invariant after every
// thumb movement, so callers never need to pre-validate their input.
type Range struct {
	Lower float64
	Upper float64
}

// DragSample is a single drag-change event as reported by a presentation
// layer. Offset is the pointer offset in layout pixels, measured in the
// dragged thumb's gesture space (anchored at the track's midpoint, not at
// the container origin), Width is the track's width in the same units, and
// Upper selects which thumb the gesture targets.
//
// Samples are ephemeral: produced once per drag tick, consumed immediately.
type DragSample struct {
	Offset float64
	Width  float64
	Upper  bool
}

// Quantize snaps a track percentage to the nearest multiple of step.
//
// The input percentage is clamped to [0, 1] first, and the result is clamped
// again after rounding - steps that don't divide 1 evenly can round the upper
// edge past 1. Ties round half away from zero (Go's math.Round).
//
// Quantize panics if step is not positive.
func Quantize(percentage float64, step float64) float64 {
	if step <= 0 {
		panic("track: step must be positive")
	}

	percentage = clamp01(percentage)

	rounder := 1 / step
	return clamp01(math.Round(percentage*rounder) / rounder)
}

// Percentage converts a pointer offset into a track percentage.
//
// Offsets are measured in the dragged thumb's gesture space, which stays
// anchored at the track's midpoint no matter where the thumb is drawn, hence
// the +0.5 term. Width must be positive: feeds sitting on an untrusted
// boundary are expected to drop zero-width samples upstream, and Percentage
// panics when they don't.
func Percentage(offset float64, width float64) float64 {
	if width <= 0 {
		panic("track: width must be positive")
	}

	return offset/width + 0.5
}

// MoveThumb returns the range with one thumb moved to value. When the moved
// thumb would cross the other one, the other thumb is dragged along rather
// than blocking the motion, so the result always satisfies Lower <= Upper -
// even if the receiver didn't.
func (r Range) MoveThumb(upper bool, value float64) Range {
	if upper {
		r.Upper = value
		if r.Upper < r.Lower {
			r.Lower = r.Upper
		}
	} else {
		r.Lower = value
		if r.Lower > r.Upper {
			r.Upper = r.Lower
		}
	}

	return r
}

// Resolve runs the full per-drag-update pipeline: sample position to
// percentage, quantize to step, move the targeted thumb with the cross-clamp
// applied. It is the one update path both thumbs are expected to go through.
func Resolve(r Range, s DragSample, step float64) Range {
	return r.MoveThumb(s.Upper, Quantize(Percentage(s.Offset, s.Width), step))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
