// Package video defines the segment-source boundary the pipeline consumes:
// listing unprocessed segments and opening them as decodable grayscale frame
// streams. Transport, credentials and cleanup of the underlying artifacts are
// the source implementation's concern, not the pipeline's.
package video

import (
	"context"
	"time"

	"github.com/roz-data/motion.report/internal/motion"
)

// SegmentRef identifies one video segment at the source.
type SegmentRef struct {
	CameraID string
	Key      string // source-specific locator (path, object key)
}

// SegmentInfo describes an opened segment.
type SegmentInfo struct {
	CameraID string
	Start    time.Time // wall-clock start of recording
	FPS      float64
	Width    int
	Height   int
}

// FrameReader yields a segment's frames in order. Next returns io.EOF after
// the last frame. Implementations are not safe for concurrent use.
type FrameReader interface {
	Info() SegmentInfo
	Next() (motion.Frame, error)
	Close() error
}

// Source lists and opens video segments. Implementations: FSSource over a
// clip directory tree, ScriptedSource for tests.
type Source interface {
	// ListUnprocessed returns candidate segments, oldest first. An empty
	// cameraID means all cameras.
	ListUnprocessed(ctx context.Context, cameraID string) ([]SegmentRef, error)

	// Open prepares a segment for decoding.
	Open(ctx context.Context, ref SegmentRef) (FrameReader, error)
}
