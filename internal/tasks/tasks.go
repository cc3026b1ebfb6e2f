package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackstats/internal/batch"
	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/services"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
)

// searchLimit is the page size of every search and playlist request.
const searchLimit = 50

// CompareOpts selects the two data sets of a comparison.
type CompareOpts struct {
	User       string   // Owner of the playlist
	Playlist   string   // Playlist name, matched exactly
	Genres     []string // Genres sampled through search
	SampleSize int      // Approximate number of sampled tracks per genre
	Labels     []string // Display labels for playlist and sample, in that order
	Bins       int      // Histogram bins (default: 30)
}

// Comparison holds the enriched tables and the report built from them.
//
// Either table is nil when its source was not requested.
type Comparison struct {
	Playlist *table.Table
	Sample   *table.Table
	Report   *models.Report
}

// AnalysisEngine defines the operations of the analysis pipeline.
type AnalysisEngine interface {
	// Playlist fetches the tracks of a user's playlist into a normalized track table.
	Playlist(ctx context.Context, progress chan<- ProgressUpdate, user, name string) (*table.Table, error)

	// Sample searches size/50 pages of tracks for every genre into a normalized track table.
	Sample(ctx context.Context, progress chan<- ProgressUpdate, genres []string, size int) (*table.Table, error)

	// Enrich joins a track table with audio features and artist metadata.
	Enrich(ctx context.Context, progress chan<- ProgressUpdate, tracks *table.Table) (*table.Table, error)

	// Compare runs both sources through Enrich and builds a [models.Report].
	Compare(ctx context.Context, progress chan<- ProgressUpdate, opts CompareOpts) (*Comparison, error)
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	BatchLimit int  // Ids per lookup; clamped per endpoint
	Strict     bool // Fail when a lookup drops ids
	Logger     *log.Logger
	Now        func() time.Time // Report timestamps (default: time.Now)
}

// Engine implements [AnalysisEngine] on top of a [services.Service].
type Engine struct {
	spotify    services.Service
	batchLimit int
	strict     bool
	logger     *log.Logger
	now        func() time.Time
}

// NewEngine creates a new Engine backed by spotify.
func NewEngine(spotify services.Service, opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		spotify:    spotify,
		batchLimit: opts.BatchLimit,
		strict:     opts.Strict,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) ready() error {
	if e.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// Playlist fetches every track of the named playlist.
//
// Removed tracks, podcast episodes and local files have no catalog metadata and are skipped.
func (e *Engine) Playlist(ctx context.Context, progress chan<- ProgressUpdate, user, name string) (*table.Table, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if user == "" || name == "" {
		return nil, fmt.Errorf("%w: user and playlist name are required", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, findPlaylistUpdate(user, name))
	playlist, err := e.spotify.FindPlaylist(ctx, user, name)
	if err != nil {
		return nil, err
	}

	total := playlist.Tracks.Total
	e.sendProgress(progress, foundPlaylistUpdate(playlist.ID, playlist.Name, total))

	items, err := batch.Paginate(ctx, searchLimit, 0, func(ctx context.Context, limit, offset int) ([]services.PlaylistItem, bool, error) {
		page, err := e.spotify.PlaylistTracks(ctx, playlist.ID, limit, offset)
		if err != nil {
			return nil, false, err
		}
		e.sendProgress(progress, playlistTracksUpdate(offset+len(page.Items), max(total, page.Total)))
		return page.Items, page.HasNext(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of %q: %w", name, err)
	}

	tracks := make([]services.Track, 0, len(items))
	for i, item := range items {
		if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
			e.logger.Warn("skipping playlist item without catalog track", "playlist", name, "position", i)
			continue
		}
		tracks = append(tracks, *item.Track)
	}

	e.logger.Debug("fetched playlist", "playlist", name, "items", len(items), "tracks", len(tracks))
	return trackTable(tracks)
}

// Sample collects tracks for genres through search.
//
// There are size/50 runs; run i requests offset 50*i for every genre in turn. A size below 50 yields
// an empty table.
func (e *Engine) Sample(ctx context.Context, progress chan<- ProgressUpdate, genres []string, size int) (*table.Table, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(genres) == 0 {
		return nil, fmt.Errorf("%w: at least one genre is required", shared.ErrMissingArgument)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: sample size must not be negative, got %d", shared.ErrInvalidArgument, size)
	}

	genres = dedupe(genres)
	runs := size / searchLimit
	total := runs * len(genres)

	var tracks []services.Track
	step := 0
	for i := range runs {
		offset := searchLimit * i
		for _, genre := range genres {
			step++
			e.sendProgress(progress, searchUpdate(step, total, genre, offset))

			page, err := e.spotify.SearchTracks(ctx, genreQuery(genre), searchLimit, offset)
			if err != nil {
				return nil, fmt.Errorf("search %q at offset %d: %w", genre, offset, err)
			}
			tracks = append(tracks, page.Items...)
		}
	}

	e.logger.Debug("sampled genres", "genres", genres, "runs", runs, "tracks", len(tracks))
	return trackTable(tracks)
}

// Enrich joins tracks with the audio features of its unique track ids and the metadata of its
// unique artist ids, then sorts the result by popularity, most popular first.
func (e *Engine) Enrich(ctx context.Context, progress chan<- ProgressUpdate, tracks *table.Table) (*table.Table, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if tracks == nil {
		return nil, fmt.Errorf("%w: track table is required", shared.ErrMissingArgument)
	}

	trackIDs := tracks.Unique("id")
	artistIDs := tracks.Unique("artist_id")

	featureLimit := services.BatchLimit(services.KindAudioFeatures, e.batchLimit)
	features := &batch.Fetcher[services.AudioFeatures]{
		Limit:       featureLimit,
		Lookup:      progressLookup(e, progress, FetchFeatures, len(trackIDs), featureLimit, e.spotify.AudioFeatures),
		Extract:     FeatureRow,
		Normalizers: []batch.Normalizer{TempoNorm},
		Columns:     FeatureColumns,
		Strict:      e.strict,
		Logger:      e.logger.With("lookup", services.KindAudioFeatures),
	}
	featureTable, err := features.Fetch(ctx, trackIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio features: %w", err)
	}

	artistLimit := services.BatchLimit(services.KindArtist, e.batchLimit)
	artists := &batch.Fetcher[services.Artist]{
		Limit:       artistLimit,
		Lookup:      progressLookup(e, progress, FetchArtists, len(artistIDs), artistLimit, e.spotify.SeveralArtists),
		Extract:     ArtistRow,
		Normalizers: []batch.Normalizer{ArtistPopularityNorm},
		Columns:     ArtistColumns,
		Strict:      e.strict,
		Logger:      e.logger.With("lookup", services.KindArtist),
	}
	artistTable, err := artists.Fetch(ctx, artistIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artists: %w", err)
	}

	e.sendProgress(progress, joinUpdate(featureTable.Len(), tracks.Len(), artistTable.Len()))

	joined, err := table.Join(featureTable, tracks, "id")
	if err != nil {
		return nil, err
	}
	joined, err = table.Join(joined, artistTable, "artist_id")
	if err != nil {
		return nil, err
	}

	if err := joined.Derive("full_name", fullName); err != nil {
		return nil, err
	}
	if err := joined.SortBy("popularity", true); err != nil {
		return nil, err
	}

	e.logger.Debug("enriched tracks", "tracks", tracks.Len(), "rows", joined.Len())
	return joined, nil
}

// Compare builds both enriched tables and their report.
//
// A comparison needs a playlist (user and name) or at least one genre; either side may be omitted.
func (e *Engine) Compare(ctx context.Context, progress chan<- ProgressUpdate, opts CompareOpts) (*Comparison, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	wantPlaylist := opts.Playlist != ""
	wantSample := len(opts.Genres) > 0
	if !wantPlaylist && !wantSample {
		return nil, fmt.Errorf("%w: a playlist or at least one genre is required", shared.ErrMissingArgument)
	}

	labels := reportLabels(opts.Labels, opts.Playlist, opts.Genres)
	result := &Comparison{}
	var datasets []LabeledTable

	if wantPlaylist {
		tracks, err := e.Playlist(ctx, progress, opts.User, opts.Playlist)
		if err != nil {
			return nil, err
		}
		if result.Playlist, err = e.Enrich(ctx, progress, tracks); err != nil {
			return nil, err
		}
		datasets = append(datasets, LabeledTable{Label: labels[0], Source: models.SourcePlaylist, Table: result.Playlist})
	}

	if wantSample {
		tracks, err := e.Sample(ctx, progress, opts.Genres, opts.SampleSize)
		if err != nil {
			return nil, err
		}
		if result.Sample, err = e.Enrich(ctx, progress, tracks); err != nil {
			return nil, err
		}
		datasets = append(datasets, LabeledTable{Label: labels[1], Source: models.SourceSample, Table: result.Sample})
	}

	e.sendProgress(progress, reportUpdate(len(datasets)))
	report, err := NewReport(opts.Bins, datasets...)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	report.CreatedAt = e.now()
	result.Report = report
	return result, nil
}

// progressLookup reports each chunk before handing it to lookup.
func progressLookup[R any](e *Engine, progress chan<- ProgressUpdate, phase Phase, ids, limit int, lookup batch.Lookup[R]) batch.Lookup[R] {
	total := (ids + limit - 1) / limit
	step := 0
	return func(ctx context.Context, chunk []string) ([]R, error) {
		step++
		e.sendProgress(progress, batchUpdate(phase, step, total, len(chunk)))
		return lookup(ctx, chunk)
	}
}

func trackTable(tracks []services.Track) (*table.Table, error) {
	t := table.New(TrackColumns...)
	for i, track := range tracks {
		row, err := TrackRow(track)
		if err != nil {
			return nil, fmt.Errorf("%w: track %d: %v", shared.ErrMalformedRecord, i, err)
		}
		t.Append(row)
	}

	if err := batch.Normalize(t, PopularityNorm); err != nil {
		return nil, err
	}
	return t, nil
}

func genreQuery(genre string) string {
	return `genre:"` + genre + `"`
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// reportLabels fills missing display labels from the playlist name and genres.
func reportLabels(labels []string, playlist string, genres []string) [2]string {
	out := [2]string{playlist, fmt.Sprintf("%v sample", genres)}
	for i := 0; i < len(labels) && i < 2; i++ {
		if labels[i] != "" {
			out[i] = labels[i]
		}
	}
	return out
}
