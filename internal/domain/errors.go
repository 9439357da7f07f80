package domain

import (
	"errors"
	"net/http"
)

// Domain errors.
var (
	// ErrMissingTweet is returned when the request carries no post reference.
	ErrMissingTweet = errors.New("missing tweet parameter")

	// ErrInvalidPostReference is returned when no numeric post ID can be extracted.
	ErrInvalidPostReference = errors.New("invalid tweet reference")

	// ErrGuestToken is returned when no guest credential can be acquired.
	ErrGuestToken = errors.New("failed to obtain guest token")

	// ErrUpstream is returned when both the GraphQL and syndication lookups fail.
	ErrUpstream = errors.New("failed to fetch tweet data")

	// ErrPostNotFound is returned when upstream has no result for the post.
	ErrPostNotFound = errors.New("tweet not found or unavailable")

	// ErrNoMedia is returned when the post has no media attached.
	ErrNoMedia = errors.New("no media found in tweet")

	// ErrNoMP4Variant is returned when a video has no MP4 rendition.
	ErrNoMP4Variant = errors.New("no MP4 video variants available")

	// ErrUnsupportedMedia is returned for media kinds the resolver cannot redirect to.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrProcessing is returned for unexpected failures while resolving.
	ErrProcessing = errors.New("processing failed")
)

var kinds = []error{
	ErrMissingTweet,
	ErrInvalidPostReference,
	ErrGuestToken,
	ErrUpstream,
	ErrPostNotFound,
	ErrNoMedia,
	ErrNoMP4Variant,
	ErrUnsupportedMedia,
	ErrRateLimited,
	ErrProcessing,
}

// KindOf returns the domain error err wraps, or ErrProcessing if none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrProcessing
}

// ResolveError wraps an error with post context and the HTTP status it maps to.
type ResolveError struct {
	PostID TweetID
	Op     string
	// Status is the HTTP status to respond with. Zero means derive it from Err.
	Status  int
	Details string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.PostID != "" {
		return e.Op + " [" + e.PostID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status the error should be reported with.
func (e *ResolveError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return StatusFor(e.Err)
}

// NewResolveError creates a new ResolveError. cause, when non-nil, is kept as details.
func NewResolveError(kind error, postID TweetID, op string, cause error) *ResolveError {
	e := &ResolveError{
		PostID: postID,
		Op:     op,
		Err:    kind,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingTweet), errors.Is(err, ErrInvalidPostReference):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrNoMedia), errors.Is(err, ErrNoMP4Variant):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
