// Package heatmap owns the intensity data model: per-minute aggregation of
// motion matrices, the compressed blob codec, and query-time rendering of
// aggregated heatmaps.
package heatmap

import "time"

// MinuteRecord is one minute of motion intensity for one camera, the unit of
// persistence. Records are append-only: the pipeline writes them exactly once
// per (camera, minute) and the rendering path only reads them.
type MinuteRecord struct {
	ID          int64
	CameraID    string
	MinuteStart time.Time // truncated to the start of the minute, UTC
	Height      int
	Width       int

	// DownscaleFactor is the ratio applied to the source resolution before
	// detection. Recorded for traceability; decode does not need it.
	DownscaleFactor float64

	// Intensity is the compressed matrix blob: zlib-deflated, row-major,
	// little-endian float32, exactly Height*Width elements.
	Intensity []byte

	FrameCount int

	// Cached stats, derived from the matrix at aggregation time so activity
	// queries never need to decode the blob.
	TotalIntensity float64
	MaxIntensity   float64
	NonzeroPixels  int

	SourceSegment string
	ProcessedAt   time.Time
}

// AggregateResult is the outcome of summing a set of minute records over a
// time range. Ephemeral; never persisted.
type AggregateResult struct {
	CameraID string
	Height   int
	Width    int

	// Matrix is the elementwise sum of all decoded minute matrices.
	Matrix []float32

	Minutes        int
	TotalIntensity float64
	PeakIntensity  float64
	AvgIntensity   float64 // TotalIntensity / Minutes
}
