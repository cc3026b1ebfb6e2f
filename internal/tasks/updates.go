package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FindPlaylist Phase = iota
	FetchPlaylistTracks
	SearchGenres
	FetchFeatures
	FetchArtists
	JoinTables
	BuildReport
)

func (p Phase) String() string {
	switch p {
	case FindPlaylist:
		return "find_playlist"
	case FetchPlaylistTracks:
		return "fetch_playlist_tracks"
	case SearchGenres:
		return "search_genres"
	case FetchFeatures:
		return "fetch_features"
	case FetchArtists:
		return "fetch_artists"
	case JoinTables:
		return "join_tables"
	case BuildReport:
		return "build_report"
	default:
		return ""
	}
}

func findPlaylistUpdate(user, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FindPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up playlist %q for %s...", name, user),
	}
}

func foundPlaylistUpdate(id, name string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylistTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks, ID: %s)", name, total, id),
	}
}

func playlistTracksUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylistTracks,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched %d/%d playlist items", fetched, total),
	}
}

func searchUpdate(step, total int, genre string, offset int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchGenres,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching genre %q at offset %d", step, total, genre, offset),
	}
}

func batchUpdate(phase Phase, step, total, size int) ProgressUpdate {
	what := "audio features"
	if phase == FetchArtists {
		what = "artists"
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %d %s", step, total, size, what),
	}
}

func joinUpdate(features, tracks, artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   JoinTables,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Joining %d features, %d tracks and %d artists", features, tracks, artists),
	}
}

func reportUpdate(datasets int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Building report for %d data sets", datasets),
	}
}
