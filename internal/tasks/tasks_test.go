package tasks

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/trackstats/internal/batch"
	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
	th "github.com/desertthunder/trackstats/internal/testing"
)

func features(id string, tempo float64, key, mode, timeSignature int) services.AudioFeatures {
	return services.AudioFeatures{
		ID:               id,
		AnalysisURL:      "https://api.spotify.com/v1/audio-analysis/" + id,
		DurationMS:       200000,
		Acousticness:     0.1,
		Danceability:     0.6,
		Energy:           0.7,
		Instrumentalness: 0.0,
		Liveness:         0.2,
		Loudness:         -6.5,
		Valence:          0.4,
		Speechiness:      0.05,
		Key:              key,
		Mode:             mode,
		Tempo:            tempo,
		TimeSignature:    timeSignature,
	}
}

func newMock() *th.MockService {
	t1 := th.NewTrack("t1", "One", "a1", "Alpha", 30)
	t2 := th.NewTrack("t2", "Two", "a2", "Beta", 90)
	t3 := th.NewTrack("t3", "Three", "a1", "Alpha", 60)
	local := th.NewTrack("", "Local file", "", "", 0)
	local.IsLocal = true

	return &th.MockService{
		Playlists: []services.SimplePlaylist{
			{ID: "pl0", Name: "workout"},
			{ID: "pl1", Name: "asia indie"},
		},
		Items: map[string][]services.PlaylistItem{
			"pl1": {
				{Track: &t1},
				{Track: nil},
				{Track: &t2},
				{Track: &local},
				{Track: &t3},
			},
		},
		Search: map[string][]services.Track{
			`genre:"k-indie"`:            {t1, t2},
			`genre:"vietnamese hip hop"`: {t3},
		},
		Artists: map[string]services.Artist{
			"a1": {ID: "a1", Name: "Alpha", Genres: []string{"k-indie"}, Popularity: 50},
			"a2": {ID: "a2", Name: "Beta", Popularity: 80},
		},
		Features: map[string]services.AudioFeatures{
			"t1": features("t1", 112, 5, 1, 4),
			"t2": features("t2", 200, 0, 0, 3),
			"t3": features("t3", 24, 11, 1, 4),
		},
	}
}

func ids(t *testing.T, tbl *table.Table) []string {
	t.Helper()
	out := make([]string, 0, tbl.Len())
	for _, row := range tbl.Rows {
		id, err := row.String("id")
		if err != nil {
			t.Fatalf("row without id: %v", err)
		}
		out = append(out, id)
	}
	return out
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("Service not initialized", func(t *testing.T) {
		engine := NewEngine(nil, EngineOpts{})
		if _, err := engine.Playlist(ctx, nil, "u", "p"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if _, err := engine.Compare(ctx, nil, CompareOpts{Playlist: "p"}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Interface", func(t *testing.T) {
		var _ AnalysisEngine = NewEngine(newMock(), EngineOpts{})
	})
}

func TestPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("skips items without catalog tracks", func(t *testing.T) {
		engine := NewEngine(newMock(), EngineOpts{})
		tracks, err := engine.Playlist(ctx, nil, "someone", "asia indie")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := ids(t, tracks); !reflect.DeepEqual(got, []string{"t1", "t2", "t3"}) {
			t.Errorf("expected t1, t2, t3 in playlist order, got %v", got)
		}

		want := append(append([]string(nil), TrackColumns...), "popularity_norm")
		if !reflect.DeepEqual(tracks.Columns, want) {
			t.Errorf("expected columns %v, got %v", want, tracks.Columns)
		}

		norm, _ := tracks.Rows[1].Float("popularity_norm")
		if norm != 0.9 {
			t.Errorf("expected popularity_norm 0.9, got %v", norm)
		}
	})

	t.Run("pages through long playlists", func(t *testing.T) {
		mock := newMock()
		var items []services.PlaylistItem
		for i := range 120 {
			track := th.NewTrack(string(rune('a'+i%26))+string(rune('0'+i/26)), "Song", "a1", "Alpha", i%100)
			items = append(items, services.PlaylistItem{Track: &track})
		}
		mock.Items["pl1"] = items

		tracks, err := NewEngine(mock, EngineOpts{}).Playlist(ctx, nil, "someone", "asia indie")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks.Len() != 120 {
			t.Errorf("expected 120 tracks, got %d", tracks.Len())
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := NewEngine(newMock(), EngineOpts{}).Playlist(ctx, nil, "someone", "missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("missing arguments", func(t *testing.T) {
		_, err := NewEngine(newMock(), EngineOpts{}).Playlist(ctx, nil, "", "asia indie")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("track without artists is malformed", func(t *testing.T) {
		mock := newMock()
		broken := services.Track{ID: "t9", Name: "No artist"}
		mock.Items["pl1"] = []services.PlaylistItem{{Track: &broken}}

		_, err := NewEngine(mock, EngineOpts{}).Playlist(ctx, nil, "someone", "asia indie")
		if !errors.Is(err, shared.ErrMalformedRecord) {
			t.Errorf("expected ErrMalformedRecord, got %v", err)
		}
	})
}

func TestSample(t *testing.T) {
	ctx := context.Background()

	t.Run("runs every genre per offset", func(t *testing.T) {
		mock := newMock()
		engine := NewEngine(mock, EngineOpts{})

		tracks, err := engine.Sample(ctx, nil, []string{"k-indie", "vietnamese hip hop", "k-indie"}, 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []th.SearchCall{
			{Query: `genre:"k-indie"`, Limit: 50, Offset: 0},
			{Query: `genre:"vietnamese hip hop"`, Limit: 50, Offset: 0},
			{Query: `genre:"k-indie"`, Limit: 50, Offset: 50},
			{Query: `genre:"vietnamese hip hop"`, Limit: 50, Offset: 50},
		}
		if !reflect.DeepEqual(mock.SearchCalls, want) {
			t.Errorf("expected search calls %v, got %v", want, mock.SearchCalls)
		}

		if got := ids(t, tracks); !reflect.DeepEqual(got, []string{"t1", "t2", "t3"}) {
			t.Errorf("unexpected sample %v", got)
		}
	})

	t.Run("size below one page", func(t *testing.T) {
		mock := newMock()
		tracks, err := NewEngine(mock, EngineOpts{}).Sample(ctx, nil, []string{"k-indie"}, 49)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks.Len() != 0 || len(mock.SearchCalls) != 0 {
			t.Errorf("expected no searches, got %d rows and %d calls", tracks.Len(), len(mock.SearchCalls))
		}
	})

	t.Run("validation", func(t *testing.T) {
		engine := NewEngine(newMock(), EngineOpts{})
		if _, err := engine.Sample(ctx, nil, nil, 100); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := engine.Sample(ctx, nil, []string{"k-indie"}, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("search failure", func(t *testing.T) {
		mock := newMock()
		mock.Err = shared.ErrRateLimited
		_, err := NewEngine(mock, EngineOpts{}).Sample(ctx, nil, []string{"k-indie"}, 50)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	playlist := func(t *testing.T, mock *th.MockService) *table.Table {
		t.Helper()
		tracks, err := NewEngine(mock, EngineOpts{}).Playlist(ctx, nil, "someone", "asia indie")
		if err != nil {
			t.Fatalf("failed to build playlist table: %v", err)
		}
		return tracks
	}

	t.Run("joins, derives and sorts", func(t *testing.T) {
		mock := newMock()
		engine := NewEngine(mock, EngineOpts{BatchLimit: 50})

		joined, err := engine.Enrich(ctx, nil, playlist(t, mock))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := ids(t, joined); !reflect.DeepEqual(got, []string{"t2", "t3", "t1"}) {
			t.Errorf("expected popularity order t2, t3, t1, got %v", got)
		}

		first := joined.Rows[0]
		if name, _ := first.String("full_name"); name != "Beta -- Two" {
			t.Errorf("expected full_name 'Beta -- Two', got %q", name)
		}
		if v, _ := first.Float("tempo_norm"); v != 1 {
			t.Errorf("expected tempo_norm 1, got %v", v)
		}
		if v, _ := first.Float("artist_popularity_norm"); v != 0.8 {
			t.Errorf("expected artist_popularity_norm 0.8, got %v", v)
		}
		if genres, err := first.Strings("artist_genres"); err != nil || len(genres) != 0 {
			t.Errorf("expected empty genres, got %v (%v)", genres, err)
		}

		for _, col := range []string{"analysis_url", "song_name", "artist_popularity", "popularity_norm", "full_name"} {
			if !joined.HasColumn(col) {
				t.Errorf("expected column %s in %v", col, joined.Columns)
			}
		}

		if !reflect.DeepEqual(mock.FeatureCalls, [][]string{{"t1", "t2", "t3"}}) {
			t.Errorf("unexpected feature calls %v", mock.FeatureCalls)
		}
		if !reflect.DeepEqual(mock.ArtistCalls, [][]string{{"a1", "a2"}}) {
			t.Errorf("expected deduplicated artist ids, got %v", mock.ArtistCalls)
		}
	})

	t.Run("respects batch limit", func(t *testing.T) {
		mock := newMock()
		_, err := NewEngine(mock, EngineOpts{BatchLimit: 2}).Enrich(ctx, nil, playlist(t, mock))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(mock.FeatureCalls, [][]string{{"t1", "t2"}, {"t3"}}) {
			t.Errorf("unexpected feature calls %v", mock.FeatureCalls)
		}
	})

	t.Run("missing features drop rows", func(t *testing.T) {
		mock := newMock()
		tracks := playlist(t, mock)
		delete(mock.Features, "t3")

		joined, err := NewEngine(mock, EngineOpts{}).Enrich(ctx, nil, tracks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ids(t, joined); !reflect.DeepEqual(got, []string{"t2", "t1"}) {
			t.Errorf("expected t3 to be dropped, got %v", got)
		}
	})

	t.Run("strict mode fails on missing features", func(t *testing.T) {
		mock := newMock()
		tracks := playlist(t, mock)
		delete(mock.Features, "t3")

		_, err := NewEngine(mock, EngineOpts{Strict: true}).Enrich(ctx, nil, tracks)
		if !errors.Is(err, batch.ErrIncompleteBatch) {
			t.Errorf("expected ErrIncompleteBatch, got %v", err)
		}
	})

	t.Run("lookup failure", func(t *testing.T) {
		mock := newMock()
		tracks := playlist(t, mock)
		mock.Err = shared.ErrNotAuthenticated

		joined, err := NewEngine(mock, EngineOpts{}).Enrich(ctx, nil, tracks)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if joined != nil {
			t.Error("expected no table on failure")
		}
	})

	t.Run("empty table", func(t *testing.T) {
		mock := newMock()
		joined, err := NewEngine(mock, EngineOpts{}).Enrich(ctx, nil, table.New(TrackColumns...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if joined.Len() != 0 || len(mock.FeatureCalls) != 0 || len(mock.ArtistCalls) != 0 {
			t.Errorf("expected no rows and no lookups, got %d rows", joined.Len())
		}
	})
}

func TestCompare(t *testing.T) {
	ctx := context.Background()

	t.Run("playlist and sample", func(t *testing.T) {
		engine := NewEngine(newMock(), EngineOpts{})
		progress := make(chan ProgressUpdate, 100)

		result, err := engine.Compare(ctx, progress, CompareOpts{
			User:       "someone",
			Playlist:   "asia indie",
			Genres:     []string{"k-indie", "vietnamese hip hop"},
			SampleSize: 50,
			Labels:     []string{"My Indie Playlist", "1000 Indie songs"},
			Bins:       10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		if result.Playlist.Len() != 3 || result.Sample.Len() != 3 {
			t.Errorf("expected 3 rows each, got %d and %d", result.Playlist.Len(), result.Sample.Len())
		}

		report := result.Report
		if len(report.Datasets) != 2 || report.Bins != 10 {
			t.Fatalf("unexpected report %+v", report)
		}
		if report.Datasets[0].Label != "My Indie Playlist" || report.Datasets[1].Source != models.SourceSample {
			t.Errorf("unexpected data sets %+v", report.Datasets)
		}
		if report.Source() != models.SourceCompare {
			t.Errorf("expected compare source, got %s", report.Source())
		}

		phases := map[Phase]bool{}
		for update := range progress {
			phases[update.Phase] = true
		}
		for _, p := range []Phase{FindPlaylist, FetchPlaylistTracks, SearchGenres, FetchFeatures, FetchArtists, JoinTables, BuildReport} {
			if !phases[p] {
				t.Errorf("expected a %s progress update", p)
			}
		}
	})

	t.Run("stamps the report with the engine clock", func(t *testing.T) {
		stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		engine := NewEngine(newMock(), EngineOpts{Now: func() time.Time { return stamp }})

		result, err := engine.Compare(ctx, nil, CompareOpts{Genres: []string{"k-indie"}, SampleSize: 50})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Report.CreatedAt.Equal(stamp) {
			t.Errorf("expected CreatedAt %v, got %v", stamp, result.Report.CreatedAt)
		}
	})

	t.Run("sample only with default labels", func(t *testing.T) {
		result, err := NewEngine(newMock(), EngineOpts{}).Compare(ctx, nil, CompareOpts{
			Genres:     []string{"k-indie"},
			SampleSize: 50,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Playlist != nil {
			t.Error("expected no playlist table")
		}
		if len(result.Report.Datasets) != 1 || result.Report.Datasets[0].Label != "[k-indie] sample" {
			t.Errorf("unexpected data sets %+v", result.Report.Datasets)
		}
	})

	t.Run("progress never blocks", func(t *testing.T) {
		unread := make(chan ProgressUpdate)
		_, err := NewEngine(newMock(), EngineOpts{}).Compare(ctx, unread, CompareOpts{
			User:     "someone",
			Playlist: "asia indie",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("nothing to compare", func(t *testing.T) {
		_, err := NewEngine(newMock(), EngineOpts{}).Compare(ctx, nil, CompareOpts{User: "someone"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestRows(t *testing.T) {
	t.Run("TrackRow keeps main artist", func(t *testing.T) {
		track := th.NewTrack("t1", "One", "a1", "Alpha", 30)
		track.Artists = append(track.Artists, services.SimpleArtist{ID: "a2", Name: "Feature"})

		row, err := TrackRow(track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if row["artist_id"] != "a1" || row["album_name"] != "Album One" {
			t.Errorf("unexpected row %v", row)
		}
	})

	t.Run("records without id", func(t *testing.T) {
		if _, err := TrackRow(services.Track{}); err == nil {
			t.Error("expected error for track without id")
		}
		if _, err := ArtistRow(services.Artist{}); err == nil {
			t.Error("expected error for artist without id")
		}
		if _, err := FeatureRow(services.AudioFeatures{}); err == nil {
			t.Error("expected error for features without id")
		}
	})

	t.Run("FeatureRow has every feature column", func(t *testing.T) {
		row, err := FeatureRow(features("t1", 120, 1, 1, 4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, col := range FeatureColumns {
			if _, ok := row[col]; !ok {
				t.Errorf("missing column %s", col)
			}
		}
		if len(row) != len(FeatureColumns) {
			t.Errorf("expected %d columns, got %d", len(FeatureColumns), len(row))
		}
	})

	t.Run("TempoNorm", func(t *testing.T) {
		if got := TempoNorm.Apply(112); got != 0.5 {
			t.Errorf("expected 0.5, got %v", got)
		}
	})
}
