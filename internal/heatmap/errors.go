package heatmap

import (
	"errors"
	"fmt"
)

// ErrNoData reports an empty record set for a requested range. It is a
// caller-visible "no data" signal, not a failure.
var ErrNoData = errors.New("heatmap: no data in range")

// CorruptDataError reports an intensity blob that does not decode to exactly
// the declared matrix shape. Callers must never reshape or truncate around
// it; it indicates upstream corruption.
type CorruptDataError struct {
	Reason string
	Got    int // bytes or elements observed
	Want   int // bytes or elements required
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("heatmap: corrupt intensity data: %s (got %d, want %d)", e.Reason, e.Got, e.Want)
}

// ShapeMismatchError reports records (or frames) whose matrix shapes
// disagree. For one camera this means upstream corruption or an unhandled
// resolution change; it is surfaced to the operator, never auto-healed.
type ShapeMismatchError struct {
	CameraID     string
	WantH, WantW int
	GotH, GotW   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("heatmap: shape mismatch for camera %q: have %dx%d, record is %dx%d",
		e.CameraID, e.WantH, e.WantW, e.GotH, e.GotW)
}
