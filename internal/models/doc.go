// Package models defines the data shared between the analysis pipeline, the report renderer and the
// run history.
//
// The package contains two categories of types:
//
// 1. Report data: plain structs serialized as JSON
//   - [Report] : One [Dataset] per analyzed table
//   - [Dataset] : Distributions, category counts, box statistics and top tracks
//   - [Summary], [Histogram], [Counts], [Box] : The statistics themselves
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Run] : A completed report with its serialized summary
//
// Persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
