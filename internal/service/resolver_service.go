package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xresolve/internal/domain"
	"github.com/iconidentify/xresolve/pkg/twitter"
)

// PostFetcher issues the upstream lookups for a post.
type PostFetcher interface {
	FetchGraphQL(ctx context.Context, tweetID, guestToken string) (*twitter.Response, error)
	FetchSyndication(ctx context.Context, tweetID string) (*twitter.Response, error)
}

// Source names the endpoint a resolution was served from.
type Source string

const (
	SourceGraphQL     Source = "graphql"
	SourceSyndication Source = "syndication"
)

// Resolution is a successfully resolved media URL.
type Resolution struct {
	PostID   domain.TweetID
	MediaURL string
	Item     domain.MediaItem
	Source   Source
	// NeedsFixing is advisory; it does not change MediaURL.
	NeedsFixing bool
}

// ResolverService turns a post reference into a direct media URL.
type ResolverService struct {
	tokens  twitter.TokenSource
	fetcher PostFetcher
	logger  *slog.Logger
}

// NewResolverService creates a new resolver service.
func NewResolverService(tokens twitter.TokenSource, fetcher PostFetcher, logger *slog.Logger) *ResolverService {
	return &ResolverService{
		tokens:  tokens,
		fetcher: fetcher,
		logger:  logger,
	}
}

// authFailure reports whether a GraphQL status warrants a new guest token.
func authFailure(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

// Resolve runs the lookup: GraphQL with the cached guest token, one retry
// with a refreshed token on 403/429, then a single syndication attempt if
// GraphQL still failed. Errors are *domain.ResolveError.
func (s *ResolverService) Resolve(ctx context.Context, ref domain.PostReference) (*Resolution, error) {
	id := ref.ID
	logger := s.logger.With("tweet_id", id.String())

	token, err := s.tokens.Token(ctx, false)
	if err != nil {
		return nil, domain.NewResolveError(domain.ErrGuestToken, id, "acquire guest token", err)
	}

	resp, err := s.fetcher.FetchGraphQL(ctx, id.String(), token)
	if err == nil && authFailure(resp.StatusCode) {
		logger.Info("graphql rejected guest token, refreshing", "status", resp.StatusCode)
		token, terr := s.tokens.Token(ctx, true)
		if terr != nil {
			logger.Warn("guest token refresh failed", "error", terr)
		} else {
			resp, err = s.fetcher.FetchGraphQL(ctx, id.String(), token)
		}
	}

	source := SourceGraphQL
	if err != nil || !resp.OK() {
		if err != nil {
			logger.Warn("graphql lookup failed, falling back to syndication", "error", err)
		} else {
			logger.Warn("graphql lookup failed, falling back to syndication", "status", resp.StatusCode)
		}

		source = SourceSyndication
		resp, err = s.fetcher.FetchSyndication(ctx, id.String())
		if err != nil {
			e := domain.NewResolveError(domain.ErrUpstream, id, "fetch syndication", err)
			e.Status = http.StatusBadGateway
			if errors.Is(err, context.DeadlineExceeded) {
				e.Status = http.StatusGatewayTimeout
			}
			return nil, e
		}
		if !resp.OK() {
			logger.Warn("syndication lookup failed", "status", resp.StatusCode)
			e := domain.NewResolveError(domain.ErrUpstream, id, "fetch syndication", nil)
			e.Status = resp.StatusCode
			return nil, e
		}
	}

	mediaURL, item, err := twitter.SelectMedia(resp.Body, source == SourceSyndication, ref.MediaIndex)
	if err != nil {
		return nil, domain.NewResolveError(domain.KindOf(err), id, "select media", err)
	}

	res := &Resolution{
		PostID:   id,
		MediaURL: mediaURL,
		Item:     item,
		Source:   source,
	}
	if twitter.NeedsFixing(item) {
		res.NeedsFixing = true
		logger.Warn("media falls in broken container window",
			"media_id", item.Ref().RepresentativeID(),
			"kind", item.Kind(),
		)
	}

	logger.Debug("resolved media", "source", source, "kind", item.Kind(), "index", ref.MediaIndex)
	return res, nil
}
