// Package services wraps the remote APIs prism talks to: the YouTube Data API for playlists and video metadata, and
// Gemini for genre classification.
//
// # Video Host
//
// [VideoHost] is the narrow interface the playlist writer and the ingestion pipeline depend on. [YouTubeService]
// implements it with the generated google.golang.org/api/youtube/v3 client; tests point it at an httptest server through
// option.WithEndpoint.
//
// # Error Classification
//
// Every YouTube failure is converted by [Classify] into an [*APIError] carrying an [ErrorKind]. Callers branch on the
// kind rather than on status codes:
//   - [KindQuota] : quotaExceeded / dailyLimitExceeded, fatal for the run
//   - [KindTransient] : 409, 5xx and backend errors, retried with backoff
//   - [KindNotFound], [KindDuplicate], [KindPrecondition] : skipped per item
//   - [KindAuth] : 401 or a rejected refresh token, triggers reauthorization
//   - [KindInvalidSnippet] : the playlist title or description was refused
//
// [*APIError] also unwraps to the matching shared sentinel, so errors.Is(err, shared.ErrQuotaExceeded) works.
//
// # Credentials
//
// [CredentialProvider] owns the OAuth2 token cache. It reports one of four states (absent, valid, expired, reauth
// required), refreshes expired tokens, and falls back to an interactive [Authorizer] when refresh is impossible. Every
// token change is written back to the 0600 cache file.
//
// # Gemini
//
// [GeminiService] posts a prompt with a JSON response schema to models/{model}:generateContent and retries rate
// limiting (HTTP 429, RESOURCE_EXHAUSTED) three times starting at 10 seconds.
package services
