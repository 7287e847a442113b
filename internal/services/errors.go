package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/desertthunder/prism/internal/shared"
)

// ErrorKind groups remote API failures by how callers should react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindDuplicate
	KindPrecondition
	KindTransient
	KindQuota
	KindAuth
	KindInvalidSnippet
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindPrecondition:
		return "precondition"
	case KindTransient:
		return "transient"
	case KindQuota:
		return "quota"
	case KindAuth:
		return "auth"
	case KindInvalidSnippet:
		return "invalid_snippet"
	default:
		return "unknown"
	}
}

// APIError is a classified YouTube Data API failure.
type APIError struct {
	Op      string
	Status  int
	Reason  string
	Message string
	Kind    ErrorKind
	Err     error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap exposes both the underlying error and the shared sentinel matching the kind, so errors.Is works against
// either.
func (e *APIError) Unwrap() []error {
	errs := []error{e.Err}
	switch e.Kind {
	case KindQuota:
		errs = append(errs, shared.ErrQuotaExceeded)
	case KindAuth:
		errs = append(errs, shared.ErrReauthRequired)
	case KindNotFound:
		errs = append(errs, shared.ErrNotFound)
	case KindDuplicate:
		errs = append(errs, shared.ErrAlreadyExists)
	case KindTransient:
		errs = append(errs, shared.ErrServiceUnavailable)
	default:
		errs = append(errs, shared.ErrAPIRequest)
	}
	return errs
}

var (
	quotaReasons     = []string{"quotaExceeded", "dailyLimitExceeded"}
	duplicateReasons = []string{"videoAlreadyInPlaylist", "duplicate"}
	notFoundReasons  = []string{"videoNotFound", "playlistNotFound", "notFound", "playlistItemNotFound"}
	transientReasons = []string{"backendError", "serviceUnavailable", "internalError", "rateLimitExceeded"}
	authReasons      = []string{"authError", "invalid_grant", "unauthorized"}
)

// Classify converts an error from the YouTube client into an [*APIError]. Context cancellation and errors that did not
// come from the API pass through unchanged, except OAuth token failures which become [KindAuth].
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		for _, item := range gerr.Errors {
			if item.Reason != "" {
				reason = item.Reason
				break
			}
		}
		return &APIError{
			Op:      op,
			Status:  gerr.Code,
			Reason:  reason,
			Message: gerr.Message,
			Kind:    kindOf(gerr.Code, reason, gerr.Body),
			Err:     err,
		}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return &APIError{Op: op, Status: status, Reason: rerr.ErrorCode, Message: rerr.ErrorDescription, Kind: KindAuth, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func kindOf(status int, reason, body string) ErrorKind {
	has := func(reasons []string) bool { return slices.Contains(reasons, reason) }

	switch {
	case has(quotaReasons):
		return KindQuota
	case reason == "" && slices.ContainsFunc(quotaReasons, func(r string) bool { return strings.Contains(body, r) }):
		return KindQuota
	case reason == "invalidPlaylistSnippet":
		return KindInvalidSnippet
	case has(duplicateReasons):
		return KindDuplicate
	case status == http.StatusPreconditionFailed || reason == "failedPrecondition":
		return KindPrecondition
	case status == http.StatusNotFound || has(notFoundReasons):
		return KindNotFound
	case status == http.StatusUnauthorized || has(authReasons):
		return KindAuth
	case status == http.StatusConflict,
		status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout,
		has(transientReasons):
		return KindTransient
	default:
		return KindUnknown
	}
}

// KindOf returns the classification of err, or [KindUnknown] when err is not an [*APIError].
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsPlaylistGone reports whether err means the target playlist no longer exists.
func IsPlaylistGone(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Reason == "playlistNotFound"
}

// IsQuota reports whether err means the daily API quota is spent.
func IsQuota(err error) bool { return errors.Is(err, shared.ErrQuotaExceeded) }

// IsAuth reports whether err means the stored credentials are no longer usable.
func IsAuth(err error) bool { return errors.Is(err, shared.ErrReauthRequired) }
