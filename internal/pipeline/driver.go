// Package pipeline orchestrates the batch that turns recorded video segments
// into persisted per-minute motion intensity records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roz-data/motion.report/internal/heatmap"
	"github.com/roz-data/motion.report/internal/monitoring"
	"github.com/roz-data/motion.report/internal/motion"
	"github.com/roz-data/motion.report/internal/timeutil"
	"github.com/roz-data/motion.report/internal/video"
)

// ErrSpansBucket marks a segment whose frames cross a minute boundary. Such
// segments are rejected rather than truncated so a record never carries
// partial-minute data under a full-minute key.
var ErrSpansBucket = errors.New("segment spans a minute boundary")

// Store is the persistence surface the driver needs. *heatmapdb.DB satisfies
// it.
type Store interface {
	MinuteExists(cameraID string, minute time.Time) (bool, error)
	InsertMinuteIfAbsent(rec *heatmap.MinuteRecord) (bool, error)
}

// Config carries the driver's tuning. Zero values fall back to defaults in
// NewDriver.
type Config struct {
	Detector motion.DetectorParams

	// SkipEmptyMinutes drops records with no frames or zero total intensity
	// instead of persisting them.
	SkipEmptyMinutes bool

	// RetryAttempts is the number of additional tries for transient
	// collaborator failures. Decode failures are deterministic and never
	// retried.
	RetryAttempts int

	// RetryBackoff is the base of the linear backoff between retries.
	RetryBackoff time.Duration

	// MaxCameraWorkers caps how many cameras are processed concurrently.
	// Zero means one worker per camera with no cap. Within a camera,
	// segments are always sequential.
	MaxCameraWorkers int

	Clock timeutil.Clock
}

// Outcome classifies what happened to one segment.
type Outcome int

const (
	// OutcomePersisted means a new minute record was written.
	OutcomePersisted Outcome = iota
	// OutcomeSkipped means the segment was intentionally not persisted:
	// already processed, lost the insert race, or empty under the
	// skip-empty policy.
	OutcomeSkipped
	// OutcomeFailed means processing errored; the segment stays unprocessed
	// and is picked up again next run.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Processing stages, recorded in SegmentResult for reporting.
const (
	StageDiscover  = "discover"
	StageDetect    = "detect"
	StageAggregate = "aggregate"
	StagePersist   = "persist"
)

// SegmentResult is the per-segment outcome of a batch.
type SegmentResult struct {
	Ref        video.SegmentRef
	Outcome    Outcome
	Stage      string
	Minute     time.Time
	FrameCount int
	Err        error
}

// Driver runs processing batches over a video source and a store.
type Driver struct {
	source video.Source
	store  Store
	cfg    Config
}

// NewDriver creates a driver. Unset config fields get defaults.
func NewDriver(source video.Source, store Store, cfg Config) *Driver {
	if cfg.Detector == (motion.DetectorParams{}) {
		cfg.Detector = motion.DefaultParams()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Driver{source: source, store: store, cfg: cfg}
}

// ProcessBatch lists unprocessed segments, bounds the batch to maxSegments,
// and processes them with one worker goroutine per camera so each camera's
// background model stays confined to a single goroutine. One segment's
// failure never aborts the batch; the returned error covers only the listing
// stage.
func (d *Driver) ProcessBatch(ctx context.Context, maxSegments int) ([]SegmentResult, error) {
	runID := uuid.NewString()[:8]

	var refs []video.SegmentRef
	err := d.withRetry(ctx, "list segments", func() error {
		var lerr error
		refs, lerr = d.source.ListUnprocessed(ctx, "")
		return lerr
	})
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	if maxSegments > 0 && len(refs) > maxSegments {
		refs = refs[:maxSegments]
	}
	if len(refs) == 0 {
		return nil, nil
	}
	monitoring.Logf("run %s: processing %d segment(s)", runID, len(refs))

	byCamera := make(map[string][]video.SegmentRef)
	for _, ref := range refs {
		byCamera[ref.CameraID] = append(byCamera[ref.CameraID], ref)
	}

	var sem chan struct{}
	if d.cfg.MaxCameraWorkers > 0 {
		sem = make(chan struct{}, d.cfg.MaxCameraWorkers)
	}

	var (
		mu      sync.Mutex
		results []SegmentResult
		wg      sync.WaitGroup
	)
	for _, camRefs := range byCamera {
		wg.Add(1)
		go func(camRefs []video.SegmentRef) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			for _, ref := range camRefs {
				if ctx.Err() != nil {
					return
				}
				res := d.processSegment(ctx, ref)
				d.logResult(runID, res)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}(camRefs)
	}
	wg.Wait()

	// Batch-stable order for reporting.
	sort.Slice(results, func(i, j int) bool { return results[i].Ref.Key < results[j].Ref.Key })
	return results, ctx.Err()
}

func (d *Driver) logResult(runID string, res SegmentResult) {
	switch res.Outcome {
	case OutcomeFailed:
		monitoring.Logf("run %s: %s failed at %s: %v", runID, res.Ref.Key, res.Stage, res.Err)
	case OutcomeSkipped:
		monitoring.Logf("run %s: %s skipped (%s)", runID, res.Ref.Key, res.Stage)
	default:
		monitoring.Logf("run %s: %s persisted minute %s (%d frames)",
			runID, res.Ref.Key, res.Minute.Format(time.RFC3339), res.FrameCount)
	}
}

// processSegment runs one segment through detect, aggregate and persist. A
// record is only ever written whole; any failure before the insert leaves the
// store untouched.
func (d *Driver) processSegment(ctx context.Context, ref video.SegmentRef) SegmentResult {
	res := SegmentResult{Ref: ref, Stage: StageDiscover}

	var reader video.FrameReader
	err := d.withRetry(ctx, "open "+ref.Key, func() error {
		var oerr error
		reader, oerr = d.source.Open(ctx, ref)
		return oerr
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	defer reader.Close()

	info := reader.Info()
	if info.FPS <= 0 || info.Width <= 0 || info.Height <= 0 {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%w: bad segment info %dx%d@%g", video.ErrDecode, info.Width, info.Height, info.FPS)
		return res
	}

	minute := info.Start.UTC().Truncate(time.Minute)
	res.Minute = minute

	var exists bool
	err = d.withRetry(ctx, "existence check", func() error {
		var serr error
		exists, serr = d.store.MinuteExists(ref.CameraID, minute)
		return serr
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	if exists {
		res.Outcome = OutcomeSkipped
		return res
	}

	res.Stage = StageDetect
	detector, err := motion.NewDetector(info.Width, info.Height, d.cfg.Detector)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	workW, workH := detector.WorkingSize()

	res.Stage = StageAggregate
	acc, err := heatmap.NewMinuteAccumulator(ref.CameraID, minute, workW, workH)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	bucketEnd := minute.Add(time.Minute)
	frameIdx := 0
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Stage = StageDetect
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}

		// Reject before folding the frame in so a spanning segment never
		// contributes partial data.
		frameAt := info.Start.Add(time.Duration(float64(frameIdx) / info.FPS * float64(time.Second)))
		if !frameAt.Before(bucketEnd) {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("%w: frame %d at %s is past %s",
				ErrSpansBucket, frameIdx, frameAt.UTC().Format(time.RFC3339), bucketEnd.Format(time.RFC3339))
			return res
		}

		matrix, err := detector.Apply(frame)
		if err != nil {
			res.Stage = StageDetect
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		if err := acc.Add(matrix); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		frameIdx++
	}
	res.FrameCount = acc.FrameCount()

	rec, err := acc.Finalize(d.cfg.Detector.DownscaleFactor, ref.Key, d.cfg.Clock.Now())
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	res.Stage = StagePersist
	if d.cfg.SkipEmptyMinutes && (rec.FrameCount == 0 || rec.TotalIntensity == 0) {
		res.Outcome = OutcomeSkipped
		return res
	}

	var inserted bool
	err = d.withRetry(ctx, "insert "+ref.Key, func() error {
		var ierr error
		inserted, ierr = d.store.InsertMinuteIfAbsent(rec)
		return ierr
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	if !inserted {
		// Lost the insert race to a concurrent writer. Benign.
		res.Outcome = OutcomeSkipped
		return res
	}

	res.Outcome = OutcomePersisted
	return res
}

// withRetry runs fn, retrying transient failures up to RetryAttempts extra
// times with linear backoff. Non-transient errors return immediately.
func (d *Driver) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn()
		if err == nil || !video.IsTransient(err) {
			return err
		}
		if attempt >= d.cfg.RetryAttempts {
			return err
		}
		backoff := time.Duration(attempt+1) * d.cfg.RetryBackoff
		monitoring.Logf("%s: transient failure (attempt %d/%d), retrying in %s: %v",
			op, attempt+1, d.cfg.RetryAttempts, backoff, err)
		d.cfg.Clock.Sleep(backoff)
	}
}
