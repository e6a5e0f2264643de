package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/roz-data/motion.report/internal/api"
	"github.com/roz-data/motion.report/internal/heatmapdb"
	"github.com/roz-data/motion.report/internal/pipeline"
)

// processInterval is how often serve mode looks for new clips.
const processInterval = time.Minute

// runServe runs the HTTP server and a periodic processing loop until
// interrupted.
func runServe() {
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	db, err := heatmapdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver := newDriver(db)
	tuning := loadTuning()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// periodic batch processing
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(processInterval)
		defer ticker.Stop()

		runBatch := func() {
			results, err := driver.ProcessBatch(ctx, tuning.GetMaxSegmentsPerRun())
			if err != nil && ctx.Err() == nil {
				log.Printf("batch processing failed: %v", err)
				return
			}
			var failed int
			for _, res := range results {
				if res.Outcome == pipeline.OutcomeFailed {
					failed++
				}
			}
			if len(results) > 0 {
				log.Printf("batch: %d segment(s), %d failed", len(results), failed)
			}
		}

		runBatch()
		for {
			select {
			case <-ticker.C:
				runBatch()
			case <-ctx.Done():
				log.Print("processing loop terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (tailsql console, backup download)
		db.AttachAdminRoutes(mux)

		apiMux := api.NewServer(db, tuning.GetJPEGQuality()).ServeMux()
		mux.Handle("/api/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
