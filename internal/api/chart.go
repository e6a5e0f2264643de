package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// activityChart renders a per-minute activity bar chart (HTML) for one
// camera. A quick operator view; the JSON endpoint carries the same data.
func (s *Server) activityChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	points, camera, ok := s.activityRange(w, r)
	if !ok {
		return
	}
	if len(points) == 0 {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("No data for camera %q in range", camera))
		return
	}

	labels := make([]string, len(points))
	values := make([]opts.BarData, len(points))
	for i, p := range points {
		labels[i] = p.MinuteStart.Format("01-02 15:04")
		values[i] = opts.BarData{Value: p.TotalIntensity}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Motion Activity",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Motion activity by minute",
			Subtitle: fmt.Sprintf("camera=%s minutes=%d", camera, len(points)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "minute"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "total intensity"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("total intensity", values)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
