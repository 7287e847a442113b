package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrReauthRequired = fmt.Errorf("interactive re-authorization required")
	ErrTokenExpired   = fmt.Errorf("access token expired")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Remote API errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrQuotaExceeded      = fmt.Errorf("quota exhausted")
	ErrVideoUnavailable   = fmt.Errorf("video is private or unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Source errors
	ErrFetchFailed = fmt.Errorf("source fetch failed")
	ErrNoVideos    = fmt.Errorf("no videos found")

	// Storage errors
	ErrNotFound      = fmt.Errorf("record not found")
	ErrAlreadyExists = fmt.Errorf("record already exists")
	ErrLocked        = fmt.Errorf("file is locked by another process")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
