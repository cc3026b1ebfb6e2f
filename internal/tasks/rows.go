package tasks

import (
	"errors"
	"fmt"

	"github.com/desertthunder/trackstats/internal/batch"
	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/table"
)

// Column order of the flattened tables.
var (
	TrackColumns   = []string{"id", "song_name", "artist_id", "artist_name", "album_name", "popularity"}
	ArtistColumns  = []string{"artist_id", "artist_genres", "artist_popularity"}
	FeatureColumns = []string{
		"id", "analysis_url", "duration_ms", "acousticness", "danceability", "energy", "instrumentalness",
		"liveness", "loudness", "valence", "speechiness", "key", "mode", "tempo", "time_signature",
	}
)

// Normalized columns appended next to their raw source.
var (
	PopularityNorm       = batch.Normalizer{Column: "popularity_norm", Source: "popularity", Scale: 100}
	ArtistPopularityNorm = batch.Normalizer{Column: "artist_popularity_norm", Source: "artist_popularity", Scale: 100}
	TempoNorm            = batch.Normalizer{Column: "tempo_norm", Source: "tempo", Offset: 24, Scale: 176}
)

var (
	errNoID      = errors.New("record has no id")
	errNoArtists = errors.New("track has no artists")
)

// TrackRow flattens a track, keeping only its first (main) artist.
func TrackRow(t services.Track) (table.Row, error) {
	if t.ID == "" {
		return nil, errNoID
	}
	if len(t.Artists) == 0 || t.Artists[0].ID == "" {
		return nil, fmt.Errorf("%w: %s", errNoArtists, t.ID)
	}

	return table.Row{
		"id":          t.ID,
		"song_name":   t.Name,
		"artist_id":   t.Artists[0].ID,
		"artist_name": t.Artists[0].Name,
		"album_name":  t.Album.Name,
		"popularity":  t.Popularity,
	}, nil
}

// ArtistRow flattens an artist.
func ArtistRow(a services.Artist) (table.Row, error) {
	if a.ID == "" {
		return nil, errNoID
	}

	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return table.Row{
		"artist_id":         a.ID,
		"artist_genres":     genres,
		"artist_popularity": a.Popularity,
	}, nil
}

// FeatureRow flattens the audio features of a track.
func FeatureRow(f services.AudioFeatures) (table.Row, error) {
	if f.ID == "" {
		return nil, errNoID
	}

	return table.Row{
		"id":               f.ID,
		"analysis_url":     f.AnalysisURL,
		"duration_ms":      f.DurationMS,
		"acousticness":     f.Acousticness,
		"danceability":     f.Danceability,
		"energy":           f.Energy,
		"instrumentalness": f.Instrumentalness,
		"liveness":         f.Liveness,
		"loudness":         f.Loudness,
		"valence":          f.Valence,
		"speechiness":      f.Speechiness,
		"key":              f.Key,
		"mode":             f.Mode,
		"tempo":            f.Tempo,
		"time_signature":   f.TimeSignature,
	}, nil
}

// fullName is the display label of a joined row: "artist -- song".
func fullName(r table.Row) (any, error) {
	artist, err := r.String("artist_name")
	if err != nil {
		return nil, err
	}
	song, err := r.String("song_name")
	if err != nil {
		return nil, err
	}
	return artist + " -- " + song, nil
}
