// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
)

// MockService is an in-memory test double for [services.Service].
//
// Batch lookups return only the ids present in the maps, like the API dropping unknown ids.
// Paged endpoints slice the configured items by limit and offset.
type MockService struct {
	Playlists []services.SimplePlaylist
	Items     map[string][]services.PlaylistItem // Playlist ID to items
	Search    map[string][]services.Track        // Query to every matching track
	Artists   map[string]services.Artist
	Features  map[string]services.AudioFeatures
	Err       error // Returned by every call when set

	mu           sync.Mutex
	FeatureCalls [][]string
	ArtistCalls  [][]string
	SearchCalls  []SearchCall
}

// SearchCall records the arguments of one SearchTracks call.
type SearchCall struct {
	Query  string
	Limit  int
	Offset int
}

var _ services.Service = (*MockService)(nil)

func (m *MockService) Name() string { return "mock" }

func (m *MockService) FindPlaylist(ctx context.Context, user, name string) (*services.SimplePlaylist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Playlists {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q for user %s", shared.ErrPlaylistNotFound, name, user)
}

func (m *MockService) UserPlaylists(ctx context.Context, user string, limit, offset int) (*services.Page[services.SimplePlaylist], error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return Paged(m.Playlists, limit, offset), nil
}

func (m *MockService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.Page[services.PlaylistItem], error) {
	if m.Err != nil {
		return nil, m.Err
	}
	items, ok := m.Items[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	return Paged(items, limit, offset), nil
}

func (m *MockService) SearchTracks(ctx context.Context, query string, limit, offset int) (*services.Page[services.Track], error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, SearchCall{Query: query, Limit: limit, Offset: offset})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return Paged(m.Search[query], limit, offset), nil
}

func (m *MockService) SeveralArtists(ctx context.Context, ids []string) ([]services.Artist, error) {
	m.mu.Lock()
	m.ArtistCalls = append(m.ArtistCalls, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return lookup(m.Artists, ids), nil
}

func (m *MockService) AudioFeatures(ctx context.Context, ids []string) ([]services.AudioFeatures, error) {
	m.mu.Lock()
	m.FeatureCalls = append(m.FeatureCalls, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return lookup(m.Features, ids), nil
}

func lookup[T any](known map[string]T, ids []string) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := known[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Paged returns the page of items starting at offset.
func Paged[T any](items []T, limit, offset int) *services.Page[T] {
	page := &services.Page[T]{Total: len(items), Limit: limit, Offset: offset}
	if offset >= len(items) {
		page.Items = []T{}
		return page
	}

	end := min(offset+limit, len(items))
	page.Items = items[offset:end]
	if end < len(items) {
		next := fmt.Sprintf("offset=%d", end)
		page.Next = &next
	}
	return page
}

// NewTrack builds a catalog track with a single artist.
func NewTrack(id, name, artistID, artistName string, popularity int) services.Track {
	return services.Track{
		ID:         id,
		Name:       name,
		Artists:    []services.SimpleArtist{{ID: artistID, Name: artistName}},
		Album:      services.SimpleAlbum{ID: "album-" + id, Name: "Album " + name},
		Popularity: popularity,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
