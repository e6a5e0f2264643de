// motion-report turns recorded surveillance clips into per-minute motion
// intensity records and serves them back as heatmaps.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/roz-data/motion.report/internal/config"
)

var (
	dbPath     = flag.String("db", "heatmaps.db", "Path to the heatmap database")
	videoRoot  = flag.String("videos", "raw_videos", "Root directory of recorded clips")
	configPath = flag.String("config", "", "Path to a JSON tuning file (optional)")
	listen     = flag.String("listen", ":8080", "Listen address for serve mode")
)

func loadTuning() *config.TuningConfig {
	if *configPath == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}
	return cfg
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: motion-report [flags] <command> [command flags]

Commands:
  serve      Run the HTTP server with periodic batch processing
  process    Process one batch of unprocessed clips and exit
  render     Render a heatmap for a camera and time range to a file
  stats      Show database statistics and per-camera activity
  prune      Delete records older than the retention window
  migrate    Manage the database schema (up, down, status, force)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "serve":
		runServe()
	case "process":
		runProcess()
	case "render":
		runRender(args[1:])
	case "stats":
		runStats()
	case "prune":
		runPrune(args[1:])
	case "migrate":
		runMigrate(args[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}
}
