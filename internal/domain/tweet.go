package domain

import (
	"net/url"
	"strings"
)

// TweetID is the numeric identifier of a post.
type TweetID string

// String returns the string representation of the TweetID.
func (id TweetID) String() string {
	return string(id)
}

// Valid reports whether the ID is a non-empty run of ASCII digits.
func (id TweetID) Valid() bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// PostReference identifies a post and which of its attached media items to return.
type PostReference struct {
	ID         TweetID
	MediaIndex int
}

// ParseTweetID extracts the post ID from a status URL such as
// https://x.com/user/status/123?s=20 (the scheme is optional). Input that is not a status URL is
// returned unchanged and treated as an already-extracted ID.
func ParseTweetID(raw string) TweetID {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return TweetID(raw)
	}
	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if p == "status" && i+1 < len(parts) && parts[i+1] != "" {
			return TweetID(parts[i+1])
		}
	}
	return TweetID(raw)
}

// NewPostReference builds a reference from the raw tweet and index query values.
// An unparseable or negative index selects the first media item.
func NewPostReference(tweet string, index int) (PostReference, error) {
	if strings.TrimSpace(tweet) == "" {
		return PostReference{}, NewResolveError(ErrMissingTweet, "", "parse reference", nil)
	}
	id := ParseTweetID(tweet)
	if !id.Valid() {
		return PostReference{}, NewResolveError(ErrInvalidPostReference, id, "parse reference", nil)
	}
	if index < 0 {
		index = 0
	}
	return PostReference{ID: id, MediaIndex: index}, nil
}
