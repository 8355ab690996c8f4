package models

import "time"

// SyncCounters are per-series results of one ingestion run.
type SyncCounters struct {
	Series       Series `json:"series"`
	Fetched      int    `json:"fetched"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"` // duplicate timestamps
	Failed       int    `json:"failed"`  // store errors
	ChunksTotal  int    `json:"chunks_total,omitempty"`
	ChunksFailed int    `json:"chunks_failed,omitempty"`
	FetchFailed  bool   `json:"fetch_failed,omitempty"`
}

// SyncReport describes a poll or backfill run.
type SyncReport struct {
	RunID    string         `json:"run_id"`
	Kind     string         `json:"kind"` // poll | backfill
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Series   []SyncCounters `json:"series"`
}

// Inserted sums inserted points across series.
func (r SyncReport) Inserted() int {
	n := 0
	for _, c := range r.Series {
		n += c.Inserted
	}
	return n
}

// SeriesStats describes what the store holds for a series.
type SeriesStats struct {
	Series   Series     `json:"series"`
	Count    int64      `json:"count"`
	Earliest *time.Time `json:"earliest,omitempty"`
	Latest   *time.Time `json:"latest,omitempty"`
}

// FetcherStatus is the ingestion engine's public status.
type FetcherStatus struct {
	Running             bool          `json:"is_running"`
	LastFetchTime       *time.Time    `json:"last_fetch_time"`
	LastHistoricalFetch *time.Time    `json:"last_historical_fetch"`
	LastBackfillRun     string        `json:"last_backfill_run,omitempty"`
	UpdateInterval      time.Duration `json:"-"`
	UpdateIntervalSec   int64         `json:"update_interval"`
	Series              []SeriesStats `json:"database_stats"`
}
