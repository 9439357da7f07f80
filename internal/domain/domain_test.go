package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// =============================================================================
// Tweet Tests
// =============================================================================

func TestTweetID_String(t *testing.T) {
	tests := []struct {
		name string
		id   TweetID
		want string
	}{
		{"simple ID", TweetID("123456"), "123456"},
		{"empty ID", TweetID(""), ""},
		{"long ID", TweetID("1234567890123456789"), "1234567890123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("TweetID.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTweetID_Valid(t *testing.T) {
	tests := []struct {
		id   TweetID
		want bool
	}{
		{"1629307668568633344", true},
		{"0", true},
		{"", false},
		{"12a4", false},
		{"-12", false},
		{"１２", false}, // full-width digits
	}

	for _, tt := range tests {
		if got := tt.id.Valid(); got != tt.want {
			t.Errorf("TweetID(%q).Valid() = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestParseTweetID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want TweetID
	}{
		{"bare id", "1629307668568633344", "1629307668568633344"},
		{"x.com url", "https://x.com/user/status/1629307668568633344", "1629307668568633344"},
		{"twitter.com url with query", "https://twitter.com/user/status/42?s=20&t=abc", "42"},
		{"media suffix", "https://x.com/user/status/42/photo/2", "42"},
		{"no scheme", "x.com/user/status/42", "42"},
		{"mobile host", "https://mobile.twitter.com/user/status/42", "42"},
		{"surrounding space", "  42  ", "42"},
		{"no status segment", "https://x.com/user", "https://x.com/user"},
		{"trailing status", "https://x.com/user/status/", "https://x.com/user/status/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTweetID(tt.raw); got != tt.want {
				t.Errorf("ParseTweetID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseTweetID_StatusSegmentRoundTrip(t *testing.T) {
	for _, id := range []string{"1", "20", "1700000000000000000", "999999999999999999"} {
		for _, host := range []string{"x.com", "twitter.com", "example.org"} {
			raw := fmt.Sprintf("https://%s/someone/status/%s", host, id)
			if got := ParseTweetID(raw); got != TweetID(id) {
				t.Errorf("ParseTweetID(%q) = %q, want %q", raw, got, id)
			}
		}
	}
}

func TestNewPostReference(t *testing.T) {
	tests := []struct {
		name      string
		tweet     string
		index     int
		wantID    TweetID
		wantIndex int
		wantErr   error
	}{
		{"bare id", "42", 0, "42", 0, nil},
		{"url with index", "https://x.com/u/status/42", 3, "42", 3, nil},
		{"negative index", "42", -1, "42", 0, nil},
		{"empty", "", 0, "", 0, ErrMissingTweet},
		{"whitespace", "   ", 0, "", 0, ErrMissingTweet},
		{"not numeric", "https://x.com/u/status/abc", 0, "", 0, ErrInvalidPostReference},
		{"profile url", "https://x.com/u", 0, "", 0, ErrInvalidPostReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := NewPostReference(tt.tweet, tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				var re *ResolveError
				if !errors.As(err, &re) || re.HTTPStatus() != http.StatusBadRequest {
					t.Errorf("expected 400 ResolveError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.ID != tt.wantID || ref.MediaIndex != tt.wantIndex {
				t.Errorf("ref = %+v, want id=%s index=%d", ref, tt.wantID, tt.wantIndex)
			}
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrMissingTweet, http.StatusBadRequest},
		{ErrInvalidPostReference, http.StatusBadRequest},
		{ErrUnsupportedMedia, http.StatusBadRequest},
		{ErrPostNotFound, http.StatusNotFound},
		{ErrNoMedia, http.StatusNotFound},
		{ErrNoMP4Variant, http.StatusNotFound},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUpstream, http.StatusBadGateway},
		{ErrGuestToken, http.StatusInternalServerError},
		{ErrProcessing, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
		{fmt.Errorf("%w: %q", ErrUnsupportedMedia, "poll"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("decode: %w", ErrNoMedia)
	if got := KindOf(wrapped); got != ErrNoMedia {
		t.Errorf("KindOf(wrapped) = %v, want ErrNoMedia", got)
	}
	if got := KindOf(errors.New("unexpected EOF")); got != ErrProcessing {
		t.Errorf("KindOf(unknown) = %v, want ErrProcessing", got)
	}
}

func TestResolveError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewResolveError(ErrUpstream, "42", "fetch syndication", cause)

	if err.Error() != "fetch syndication [42]: failed to fetch tweet data" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Details != "dial tcp: timeout" {
		t.Errorf("Details = %q", err.Details)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Error("ResolveError should unwrap to its kind")
	}
	if err.HTTPStatus() != http.StatusBadGateway {
		t.Errorf("HTTPStatus() = %d, want %d", err.HTTPStatus(), http.StatusBadGateway)
	}

	err.Status = http.StatusNotFound
	if err.HTTPStatus() != http.StatusNotFound {
		t.Errorf("HTTPStatus() = %d, want explicit status %d", err.HTTPStatus(), http.StatusNotFound)
	}

	noPost := NewResolveError(ErrMissingTweet, "", "parse reference", nil)
	if noPost.Error() != "parse reference: missing tweet parameter" {
		t.Errorf("Error() = %q", noPost.Error())
	}
	if noPost.Details != "" {
		t.Errorf("Details = %q, want empty", noPost.Details)
	}
}

// =============================================================================
// Media Tests
// =============================================================================

func TestMediaItem_Kinds(t *testing.T) {
	tests := []struct {
		item MediaItem
		want MediaKind
	}{
		{&Photo{}, MediaKindPhoto},
		{&Video{}, MediaKindVideo},
		{&AnimatedGIF{}, MediaKindAnimatedGIF},
	}

	for _, tt := range tests {
		if got := tt.item.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestMediaRef_RepresentativeID(t *testing.T) {
	if got := (MediaRef{ID: "1"}).RepresentativeID(); got != "1" {
		t.Errorf("RepresentativeID() = %q, want 1", got)
	}
	if got := (MediaRef{ID: "1", SourceStatusID: "2"}).RepresentativeID(); got != "2" {
		t.Errorf("RepresentativeID() = %q, want source status 2", got)
	}
}

func TestSnowflakeTime(t *testing.T) {
	got := SnowflakeTime(1629307668568633344)
	want := time.UnixMilli(1677292193916)
	if !got.Equal(want) {
		t.Errorf("SnowflakeTime() = %v, want %v", got, want)
	}

	if !SnowflakeTime(0).Equal(SnowflakeEpoch) {
		t.Errorf("SnowflakeTime(0) = %v, want epoch", SnowflakeTime(0))
	}
}
