// Package tasks runs the playlist vs. genre sample analysis with real-time progress reporting.
//
// # Core Operations
//
// The [AnalysisEngine] interface defines four operations:
//
//  1. [AnalysisEngine.Playlist] : Fetch a user's playlist by name
//     - Pages through the playlist items 50 at a time
//     - Skips removed and local tracks
//     - Flattens each track with its main artist and normalized popularity
//
//  2. [AnalysisEngine.Sample] : Sample tracks by genre through search
//     - Runs size/50 pages per genre, genre by genre within each offset
//
//  3. [AnalysisEngine.Enrich] : Join tracks with audio features and artists
//     - Batches unique ids with [batch.Fetcher] (100 features or 50 artists per call)
//     - Inner joins features, tracks and artists, then sorts by popularity
//
//  4. [AnalysisEngine.Compare] : Build both data sets and a [models.Report]
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters and a message.
// Updates use select with default to prevent blocking, so a slow reader only misses updates.
//
// # Report
//
// [NewReport] summarizes every enriched table: distributions with histograms over fixed or shared
// ranges, category counts and box statistics for the [0, 1] scaled columns.
package tasks
