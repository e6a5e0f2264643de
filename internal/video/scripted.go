package video

import (
	"context"
	"io"
	"sync"

	"github.com/roz-data/motion.report/internal/motion"
)

// ScriptedSource is an in-memory Source for tests and replay: segments and
// their frames are loaded up front, and listing/open failures can be injected
// to exercise retry paths.
type ScriptedSource struct {
	mu       sync.Mutex
	segments map[string]*ScriptedSegment
	order    []SegmentRef

	// ListFailures injects this many transient failures before ListUnprocessed
	// succeeds.
	ListFailures int

	// OpenFailures injects transient failures per segment key.
	OpenFailures map[string]int
}

// ScriptedSegment is one preloaded segment.
type ScriptedSegment struct {
	Info   SegmentInfo
	Frames []motion.Frame

	// FailAfterFrames, when > 0, makes Next return ErrDecode once that many
	// frames have been delivered.
	FailAfterFrames int
}

// NewScriptedSource creates an empty scripted source.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		segments:     make(map[string]*ScriptedSegment),
		OpenFailures: make(map[string]int),
	}
}

// AddSegment registers a segment under the given key.
func (s *ScriptedSource) AddSegment(ref SegmentRef, seg *ScriptedSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[ref.Key] = seg
	s.order = append(s.order, ref)
}

func (s *ScriptedSource) ListUnprocessed(ctx context.Context, cameraID string) ([]SegmentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListFailures > 0 {
		s.ListFailures--
		return nil, &TransientError{Op: "list", Err: io.ErrUnexpectedEOF}
	}
	var refs []SegmentRef
	for _, ref := range s.order {
		if cameraID == "" || ref.CameraID == cameraID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (s *ScriptedSource) Open(ctx context.Context, ref SegmentRef) (FrameReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.OpenFailures[ref.Key]; n > 0 {
		s.OpenFailures[ref.Key] = n - 1
		return nil, &TransientError{Op: "open", Err: io.ErrUnexpectedEOF}
	}
	seg, ok := s.segments[ref.Key]
	if !ok {
		return nil, &TransientError{Op: "open", Err: io.ErrUnexpectedEOF}
	}
	return &scriptedReader{seg: seg}, nil
}

type scriptedReader struct {
	seg *ScriptedSegment
	idx int
}

func (r *scriptedReader) Info() SegmentInfo { return r.seg.Info }

func (r *scriptedReader) Next() (motion.Frame, error) {
	if r.seg.FailAfterFrames > 0 && r.idx == r.seg.FailAfterFrames {
		return motion.Frame{}, ErrDecode
	}
	if r.idx >= len(r.seg.Frames) {
		return motion.Frame{}, io.EOF
	}
	f := r.seg.Frames[r.idx]
	r.idx++
	return f, nil
}

func (r *scriptedReader) Close() error { return nil }
