package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roz-data/motion.report/internal/monitoring"
)

// FSSource serves segments from a directory tree laid out as
// <root>/<camera_id>/clip_*.mp4. Decoding goes through an ffmpeg subprocess
// pipe, so the module stays cgo-free; ffmpeg and ffprobe must be on PATH.
type FSSource struct {
	root string
	dec  *FFmpegDecoder
}

// NewFSSource creates a source over the given clip root directory.
func NewFSSource(root string) (*FSSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("video root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("video root %q is not a directory", root)
	}
	return &FSSource{root: root, dec: NewFFmpegDecoder()}, nil
}

// ListUnprocessed returns every clip under the root (or one camera's
// subdirectory), oldest first by filename timestamp. Clips with unparseable
// names are skipped with a log line rather than failing the listing.
func (s *FSSource) ListUnprocessed(ctx context.Context, cameraID string) ([]SegmentRef, error) {
	cameras := []string{cameraID}
	if cameraID == "" {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			return nil, &TransientError{Op: "list", Err: err}
		}
		cameras = cameras[:0]
		for _, e := range entries {
			if e.IsDir() {
				cameras = append(cameras, e.Name())
			}
		}
	}

	var refs []SegmentRef
	for _, cam := range cameras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(s.root, cam)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) && cameraID != "" {
				return nil, fmt.Errorf("unknown camera %q", cameraID)
			}
			return nil, &TransientError{Op: "list", Err: err}
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
				continue
			}
			if _, err := ParseClipStart(e.Name()); err != nil {
				monitoring.Logf("skipping clip with invalid name: %s/%s", cam, e.Name())
				continue
			}
			refs = append(refs, SegmentRef{
				CameraID: cam,
				Key:      filepath.Join(cam, e.Name()),
			})
		}
	}

	// Filename timestamps sort lexically within a camera; sort the full key
	// set for a stable cross-camera order.
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

// Open probes the clip and starts a decoding pipe for it.
func (s *FSSource) Open(ctx context.Context, ref SegmentRef) (FrameReader, error) {
	start, err := ParseClipStart(ref.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	path := filepath.Join(s.root, ref.Key)
	if _, err := os.Stat(path); err != nil {
		return nil, &TransientError{Op: "open", Err: err}
	}
	return s.dec.Open(ctx, path, ref.CameraID, start)
}
