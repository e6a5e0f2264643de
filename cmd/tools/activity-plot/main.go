// activity-plot renders a camera's per-minute total motion intensity as a
// time series PNG, for quick offline inspection of a heatmap database.
//
// Usage:
//
//	activity-plot -db heatmaps.db -camera cam1 -hours 24 -out activity.png
package main

import (
	"flag"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roz-data/motion.report/internal/heatmapdb"
)

func main() {
	dbPath := flag.String("db", "heatmaps.db", "Path to the heatmap database")
	camera := flag.String("camera", "", "Camera to plot (required)")
	hours := flag.Float64("hours", 24, "Trailing window in hours")
	out := flag.String("out", "activity.png", "Output PNG path")
	flag.Parse()

	if *camera == "" {
		log.Fatal("-camera is required")
	}
	if *hours <= 0 {
		log.Fatal("-hours must be positive")
	}

	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	end := time.Now().UTC()
	start := end.Add(-time.Duration(*hours * float64(time.Hour)))
	records, err := db.MinutesInRange(*camera, start, end, false)
	if err != nil {
		log.Fatalf("Failed to query minutes: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("No data for camera %q in the last %.1fh", *camera, *hours)
	}

	pts := make(plotter.XYs, 0, len(records))
	for _, rec := range records {
		pts = append(pts, plotter.XY{
			X: float64(rec.MinuteStart.Unix()),
			Y: rec.TotalIntensity,
		})
	}

	p := plot.New()
	p.Title.Text = "Motion activity: " + *camera
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Total intensity"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04"}

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("Failed to build line: %v", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(12*vg.Inch, 4*vg.Inch, *out); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s: %d minutes between %s and %s",
		*out, len(records),
		records[0].MinuteStart.Format(time.RFC3339),
		records[len(records)-1].MinuteStart.Format(time.RFC3339))
}
