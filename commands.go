package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/roz-data/motion.report/internal/heatmap"
	"github.com/roz-data/motion.report/internal/heatmapdb"
	"github.com/roz-data/motion.report/internal/motion"
	"github.com/roz-data/motion.report/internal/pipeline"
	"github.com/roz-data/motion.report/internal/video"
)

const migrationsDir = "migrations"

// newDriver wires the filesystem video source and the store into a pipeline
// driver configured from the tuning file.
func newDriver(db *heatmapdb.DB) *pipeline.Driver {
	tuning := loadTuning()

	source, err := video.NewFSSource(*videoRoot)
	if err != nil {
		log.Fatalf("Failed to open video source: %v", err)
	}

	return pipeline.NewDriver(source, db, pipeline.Config{
		Detector: motion.DetectorParams{
			DownscaleFactor:          tuning.GetDownscaleFactor(),
			BackgroundUpdateFraction: float32(tuning.GetBackgroundUpdateFraction()),
			DeltaThreshold:           uint8(tuning.GetDeltaThreshold()),
		},
		SkipEmptyMinutes: tuning.GetSkipEmptyMinutes(),
		RetryAttempts:    tuning.GetRetryAttempts(),
		RetryBackoff:     tuning.GetRetryBackoff(),
		MaxCameraWorkers: tuning.GetWorkers(),
	})
}

// runProcess runs one batch and exits. The scheduler-friendly entry point;
// serve mode runs the same batch on a ticker.
func runProcess() {
	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tuning := loadTuning()
	results, err := newDriver(db).ProcessBatch(ctx, tuning.GetMaxSegmentsPerRun())
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	var persisted, skipped, failed int
	for _, res := range results {
		switch res.Outcome {
		case pipeline.OutcomePersisted:
			persisted++
		case pipeline.OutcomeSkipped:
			skipped++
		case pipeline.OutcomeFailed:
			failed++
		}
	}
	log.Printf("Batch complete: %d persisted, %d skipped, %d failed", persisted, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	camera := fs.String("camera", "", "Camera to render (required)")
	out := fs.String("out", "heatmap.jpg", "Output JPEG path")
	hours := fs.Float64("hours", 24, "Trailing window in hours (ignored when -start is set)")
	start := fs.String("start", "", "Range start (RFC3339, '2006-01-02 15:04:05' or '2006-01-02')")
	end := fs.String("end", "", "Range end (defaults to now)")
	quality := fs.Int("quality", 0, "JPEG quality 1-100 (default from tuning config)")
	fs.Parse(args)

	if *camera == "" {
		log.Fatal("render: -camera is required")
	}

	startT, endT, err := resolveRange(*start, *end, *hours)
	if err != nil {
		log.Fatalf("render: %v", err)
	}

	tuning := loadTuning()
	q := *quality
	if q == 0 {
		q = tuning.GetJPEGQuality()
	}

	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	records, err := db.MinutesInRange(*camera, startT, endT, true)
	if err != nil {
		log.Fatalf("Failed to query minutes: %v", err)
	}

	result, err := heatmap.RenderAggregate(records, heatmap.RenderOptions{Quality: q})
	if errors.Is(err, heatmap.ErrNoData) {
		log.Fatalf("No data for camera %q between %s and %s",
			*camera, startT.Format(time.RFC3339), endT.Format(time.RFC3339))
	}
	if err != nil {
		log.Fatalf("Failed to render heatmap: %v", err)
	}

	if err := os.WriteFile(*out, result.Image, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	log.Printf("Wrote %s: %d minutes, total intensity %.2f, peak %.2f",
		*out, result.Aggregate.Minutes, result.Aggregate.TotalIntensity, result.Aggregate.PeakIntensity)
}

// renderTimeFormats are accepted for -start/-end, tried in order.
var renderTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimeArg(value string) (time.Time, error) {
	for _, layout := range renderTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

func resolveRange(start, end string, hours float64) (time.Time, time.Time, error) {
	if start == "" {
		if hours <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("-hours must be positive")
		}
		endT := time.Now().UTC()
		return endT.Add(-time.Duration(hours * float64(time.Hour))), endT, nil
	}

	startT, err := parseTimeArg(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endT := time.Now().UTC()
	if end != "" {
		endT, err = parseTimeArg(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !startT.Before(endT) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start, end)
	}
	return startT, endT, nil
}

func runStats() {
	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	stats, err := db.DatabaseStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}

	fmt.Println("=== Database ===")
	fmt.Printf("Records: %d\n", stats.Records)
	fmt.Printf("Cameras: %d\n", stats.Cameras)
	if stats.Records > 0 {
		fmt.Printf("Earliest data: %s\n", stats.EarliestData.Format(time.RFC3339))
		fmt.Printf("Latest data:   %s\n", stats.LatestData.Format(time.RFC3339))
	}

	cameras, err := db.ListCameras()
	if err != nil {
		log.Fatalf("Failed to list cameras: %v", err)
	}
	if len(cameras) > 0 {
		fmt.Println("\n=== Cameras ===")
		for _, cs := range cameras {
			fmt.Printf("%s: %d minutes, %s to %s, total intensity %.2f\n",
				cs.CameraID, cs.Minutes,
				cs.FirstMinute.Format(time.RFC3339), cs.LastMinute.Format(time.RFC3339),
				cs.TotalIntensity)
		}
	}
}

func runPrune(args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	days := fs.Int("days", 0, "Retention window in days (default from tuning config)")
	dryRun := fs.Bool("dry-run", false, "Report what would be deleted without deleting")
	fs.Parse(args)

	retention := *days
	if retention == 0 {
		retention = loadTuning().GetRetentionDays()
	}
	if retention < 1 {
		log.Fatal("prune: retention must be at least one day")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)

	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *dryRun {
		var n int
		err := db.QueryRow(
			`SELECT COUNT(*) FROM heatmap_minutes WHERE minute_start < ?`,
			cutoff.Unix()).Scan(&n)
		if err != nil {
			log.Fatalf("Failed to count prunable records: %v", err)
		}
		log.Printf("Would delete %d record(s) older than %s", n, cutoff.Format(time.RFC3339))
		return
	}

	deleted, err := db.DeleteMinutesBefore(cutoff)
	if err != nil {
		log.Fatalf("Prune failed: %v", err)
	}
	log.Printf("Deleted %d record(s) older than %s", deleted, cutoff.Format(time.RFC3339))
}

func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateHelp()
		os.Exit(1)
	}

	// Migrations manage the schema themselves, so open without the schema
	// bootstrap.
	db, err := heatmapdb.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch args[0] {
	case "up":
		log.Printf("Running migrations...")
		if err := db.MigrateUp(migrationsDir); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		version, dirty, _ := db.MigrateVersion(migrationsDir)
		log.Printf("Migrations applied; current version %d (dirty: %v)", version, dirty)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := db.MigrateDown(migrationsDir); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		version, dirty, _ := db.MigrateVersion(migrationsDir)
		log.Printf("Rolled back; current version %d (dirty: %v)", version, dirty)

	case "status":
		version, dirty, err := db.MigrateVersion(migrationsDir)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		fmt.Printf("Dirty: %v\n", dirty)
		if dirty {
			fmt.Println("A migration failed mid-execution; fix the database and run 'migrate force <version>'.")
		}

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: motion-report migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version number: %s", args[1])
		}
		if err := db.MigrateForce(migrationsDir, version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Migration version forced to %d", version)

	case "help":
		printMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", args[0])
		printMigrateHelp()
		os.Exit(1)
	}
}

func printMigrateHelp() {
	fmt.Println("Usage: motion-report migrate <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up           Apply all pending migrations")
	fmt.Println("  down         Rollback one migration")
	fmt.Println("  status       Show current migration version and dirty state")
	fmt.Println("  force <N>    Force migration version to N (recovery only)")
	fmt.Println("  help         Show this help message")
}
