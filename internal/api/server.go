// Package api exposes the HTTP read surface over the heatmap store: rendered
// heatmaps, camera listings and per-minute activity data.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/roz-data/motion.report/internal/heatmap"
	"github.com/roz-data/motion.report/internal/heatmapdb"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db      *heatmapdb.DB
	quality int
}

// NewServer creates the API server. quality is the default JPEG quality used
// when a request does not override it.
func NewServer(db *heatmapdb.DB, quality int) *Server {
	if quality <= 0 {
		quality = heatmap.DefaultQuality
	}
	return &Server{db: db, quality: quality}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/heatmap", s.renderHeatmap)
	mux.HandleFunc("/api/cameras", s.listCameras)
	mux.HandleFunc("/api/activity", s.listActivity)
	mux.HandleFunc("/api/activity/chart", s.activityChart)
	mux.HandleFunc("/api/stats", s.showStats)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// timeFormats are accepted for start/end query parameters, tried in order.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimeParam(value string) (time.Time, error) {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

// queryRange resolves the request's time range: explicit start/end when
// given, otherwise the trailing hours window (default 24h) ending now.
func (s *Server) queryRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()

	if v := q.Get("start"); v != "" {
		start, err = parseTimeParam(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'start': %w", err)
		}
		end = time.Now().UTC()
		if v := q.Get("end"); v != "" {
			end, err = parseTimeParam(v)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid 'end': %w", err)
			}
		}
		if !start.Before(end) {
			return time.Time{}, time.Time{}, fmt.Errorf("'start' must be before 'end'")
		}
		return start, end, nil
	}

	hours := 24.0
	if v := q.Get("hours"); v != "" {
		hours, err = strconv.ParseFloat(v, 64)
		if err != nil || hours <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'hours' parameter")
		}
	}
	end = time.Now().UTC()
	start = end.Add(-time.Duration(hours * float64(time.Hour)))
	return start, end, nil
}

func (s *Server) renderHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	camera := r.URL.Query().Get("camera")
	if camera == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'camera' parameter")
		return
	}

	start, end, err := s.queryRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	quality := s.quality
	if v := r.URL.Query().Get("quality"); v != "" {
		quality, err = strconv.Atoi(v)
		if err != nil || quality < 1 || quality > 100 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'quality' parameter")
			return
		}
	}

	records, err := s.db.MinutesInRange(camera, start, end, true)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to query minutes: %v", err))
		return
	}

	result, err := heatmap.RenderAggregate(records, heatmap.RenderOptions{Quality: quality})
	if errors.Is(err, heatmap.ErrNoData) {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("No data for camera %q in range", camera))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to render heatmap: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Heatmap-Minutes", strconv.Itoa(result.Aggregate.Minutes))
	w.Header().Set("X-Heatmap-Total-Intensity", strconv.FormatFloat(result.Aggregate.TotalIntensity, 'f', -1, 64))
	w.Write(result.Image)
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cameras, err := s.db.ListCameras()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list cameras: %v", err))
		return
	}
	if cameras == nil {
		cameras = []heatmapdb.CameraStats{}
	}

	if err := json.NewEncoder(w).Encode(cameras); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write cameras")
		return
	}
}

// activityPoint is the per-minute activity row the API exposes. Blobs are
// never included; clients wanting pixels ask for the rendered heatmap.
type activityPoint struct {
	MinuteStart    time.Time `json:"minute_start"`
	FrameCount     int       `json:"frame_count"`
	TotalIntensity float64   `json:"total_intensity"`
	MaxIntensity   float64   `json:"max_intensity"`
	NonzeroPixels  int       `json:"nonzero_pixels"`
}

func (s *Server) activityRange(w http.ResponseWriter, r *http.Request) ([]activityPoint, string, bool) {
	camera := r.URL.Query().Get("camera")
	if camera == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'camera' parameter")
		return nil, "", false
	}

	start, end, err := s.queryRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}

	records, err := s.db.MinutesInRange(camera, start, end, false)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to query minutes: %v", err))
		return nil, "", false
	}

	points := make([]activityPoint, len(records))
	for i, rec := range records {
		points[i] = activityPoint{
			MinuteStart:    rec.MinuteStart,
			FrameCount:     rec.FrameCount,
			TotalIntensity: rec.TotalIntensity,
			MaxIntensity:   rec.MaxIntensity,
			NonzeroPixels:  rec.NonzeroPixels,
		}
	}
	return points, camera, true
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	points, _, ok := s.activityRange(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(points); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write activity")
		return
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := s.db.DatabaseStats()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read stats: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}
