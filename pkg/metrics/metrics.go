// Package metrics provides the Prometheus registry shared by the pipeline
// packages and exports it for batch runs.
//
// Metrics are defined in the packages that own them (client, cache,
// checkpoint, extract, load) and registered through promauto on the default
// registry. A pipeline run is a short-lived batch job with no scrape endpoint,
// so the collected values are written once at exit in the node_exporter
// textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer used by the pipeline packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer written by WriteTextfile.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path. The parent directory is
// created if needed.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Catalog client (pkg/client):
//   - pokedex_requests_total{status} (Counter): catalog requests by HTTP status or "network_error"
//   - pokedex_request_duration_seconds (Histogram): catalog request latency
//   - pokedex_fetch_errors_total{class} (Counter): FetchErrors by class (network, client, server, decode)
//
// Page cache (pkg/cache):
//   - pokedex_cache_hits_total (Counter)
//   - pokedex_cache_misses_total (Counter)
//   - pokedex_cache_errors_total{operation} (Counter): get, set, delete, scan
//
// Extract (pkg/extract):
//   - pokedex_batches_extracted_total (Counter)
//   - pokedex_rows_extracted_total (Counter)
//
// Load (pkg/load):
//   - pokedex_rows_loaded_total (Counter)
//   - pokedex_malformed_records_total (Counter)
//
// Checkpoint (pkg/checkpoint):
//   - pokedex_checkpoint_offset (Gauge): last read or written checkpoint
