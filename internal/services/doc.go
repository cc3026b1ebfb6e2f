// Package services wraps the Spotify Web API behind the [Service] interface.
//
// # Authentication
//
// [SpotifyService] uses the OAuth2 client-credentials grant (golang.org/x/oauth2/clientcredentials).
// Tokens are fetched lazily on the first request and refreshed by the oauth2 transport. No user
// authorization is needed because only public catalog data and public playlists are read.
//
// # Transport
//
// Requests go through a resty client layered on the oauth2 HTTP client:
//   - every request waits on a [rate.Limiter] before it is sent
//   - HTTP 429 responses are retried up to MaxRetries times, honoring Retry-After
//   - other non-2xx responses become errors wrapping [shared.ErrAPIRequest]
//
// # Batch Endpoints
//
// SeveralArtists and AudioFeatures accept at most [EntityKind.MaxIDs] ids per call.
// The API answers unknown ids with null entries; those are dropped so callers see a short result.
//
// # Error Handling
//
//   - [shared.ErrNotAuthenticated] : token request rejected or 401 from the API
//   - [shared.ErrNotFound] : 404 from the API
//   - [shared.ErrRateLimited] : 429 after all retries were spent
//   - [shared.ErrPlaylistNotFound] : FindPlaylist found no playlist with that name
//   - [shared.ErrAPIRequest] : everything else
package services
