// package services defines the remote lookup capability used by the analysis pipeline
// and implements it for the Spotify Web API.
package services

import (
	"context"
)

// EntityKind names a batch endpoint of the Spotify Web API.
type EntityKind int

const (
	KindArtist EntityKind = iota
	KindAudioFeatures
)

func (k EntityKind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindAudioFeatures:
		return "audio_features"
	default:
		return ""
	}
}

// MaxIDs returns the most identifiers the API accepts in one call for this kind.
func (k EntityKind) MaxIDs() int {
	switch k {
	case KindAudioFeatures:
		return 100
	default:
		return 50
	}
}

// BatchLimit clamps a configured batch size to what the endpoint for kind accepts.
// Non-positive values fall back to the endpoint maximum.
func BatchLimit(kind EntityKind, configured int) int {
	if configured < 1 || configured > kind.MaxIDs() {
		return kind.MaxIDs()
	}
	return configured
}

// Service is the set of Spotify operations the analysis pipeline depends on.
//
// Batch lookups (SeveralArtists, AudioFeatures) return one record per id the API
// knows about; unknown ids are dropped rather than returned as empty records.
type Service interface {
	// FindPlaylist returns the first playlist owned by user whose name matches exactly.
	FindPlaylist(ctx context.Context, user, name string) (*SimplePlaylist, error)

	// UserPlaylists returns one page of a user's public playlists.
	UserPlaylists(ctx context.Context, user string, limit, offset int) (*Page[SimplePlaylist], error)

	// PlaylistTracks returns one page of the items in a playlist.
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*Page[PlaylistItem], error)

	// SearchTracks returns one page of tracks matching query.
	SearchTracks(ctx context.Context, query string, limit, offset int) (*Page[Track], error)

	// SeveralArtists looks up artists by id.
	SeveralArtists(ctx context.Context, ids []string) ([]Artist, error)

	// AudioFeatures looks up audio features by track id.
	AudioFeatures(ctx context.Context, ids []string) ([]AudioFeatures, error)

	// Name returns the name of the service
	Name() string
}
