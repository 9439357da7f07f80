package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// bearerToken is the public web-client bearer token. It is not a secret.
const bearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

const (
	defaultTokenURL       = "https://api.x.com/1.1/guest/activate.json"
	defaultGraphQLURL     = "https://api.x.com/graphql/I9GDzyCGZL2wSoYFFrrTVw/TweetResultByRestId"
	defaultSyndicationURL = "https://cdn.syndication.twimg.com/tweet-result"
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

	maxBodySize = 8 << 20
)

// Config holds upstream endpoint settings.
type Config struct {
	TokenURL       string
	GraphQLURL     string
	SyndicationURL string
	BearerToken    string
	UserAgent      string
	// HTTPTimeout bounds every upstream round trip.
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = defaultTokenURL
	}
	if c.GraphQLURL == "" {
		c.GraphQLURL = defaultGraphQLURL
	}
	if c.SyndicationURL == "" {
		c.SyndicationURL = defaultSyndicationURL
	}
	if c.BearerToken == "" {
		c.BearerToken = bearerToken
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// setCommonHeaders applies the header set the web client sends to the API hosts.
func (c Config) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	req.Header.Set("x-twitter-client-language", "en")
	req.Header.Set("x-twitter-active-user", "yes")
	req.Header.Set("Accept-Language", "en")
}

// Response is a fully read upstream response. Status-driven decisions are left
// to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client fetches post data from the GraphQL and syndication endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Twitter client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger,
	}
}

var graphQLFeatures = map[string]bool{
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"communities_web_enable_tweet_community_results_fetch":                    true,
	"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
	"articles_preview_enabled":                                                true,
	"tweetypie_unmention_optimization_enabled":                                true,
	"responsive_web_edit_tweet_api_enabled":                                   true,
	"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"responsive_web_twitter_article_tweet_consumption_enabled":                true,
	"tweet_awards_web_tipping_enabled":                                        false,
	"creator_subscriptions_quote_tweet_preview_enabled":                       false,
	"freedom_of_speech_not_reach_fetch_enabled":                               true,
	"standardized_nudges_misinfo":                                             true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
	"rweb_video_timestamps_enabled":                                           true,
	"longform_notetweets_rich_text_read_enabled":                              true,
	"longform_notetweets_inline_media_enabled":                                true,
	"rweb_tipjar_consumption_enabled":                                         true,
	"responsive_web_graphql_exclude_directive_enabled":                        true,
	"verified_phone_label_enabled":                                            false,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"responsive_web_graphql_timeline_navigation_enabled":                      true,
	"responsive_web_enhance_cards_enabled":                                    false,
}

var graphQLFieldToggles = map[string]bool{
	"withArticleRichContentState": true,
	"withArticlePlainText":        false,
	"withGrokAnalyze":             false,
}

func (c *Client) graphQLURL(tweetID string) (string, error) {
	vars, err := json.Marshal(map[string]any{
		"tweetId":                tweetID,
		"withCommunity":          false,
		"includePromotedContent": false,
		"withVoice":              false,
	})
	if err != nil {
		return "", err
	}
	features, err := json.Marshal(graphQLFeatures)
	if err != nil {
		return "", err
	}
	toggles, err := json.Marshal(graphQLFieldToggles)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.cfg.GraphQLURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("variables", string(vars))
	q.Set("features", string(features))
	q.Set("fieldToggles", string(toggles))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchGraphQL queries TweetResultByRestId with the given guest token.
func (c *Client) FetchGraphQL(ctx context.Context, tweetID, guestToken string) (*Response, error) {
	reqURL, err := c.graphQLURL(tweetID)
	if err != nil {
		return nil, fmt.Errorf("build graphql url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.cfg.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-guest-token", guestToken)

	return c.do(req)
}

// FetchSyndication queries the public embed endpoint. No credential is needed;
// the endpoint checks a token derived from the post ID instead.
func (c *Client) FetchSyndication(ctx context.Context, tweetID string) (*Response, error) {
	u, err := url.Parse(c.cfg.SyndicationURL)
	if err != nil {
		return nil, fmt.Errorf("parse syndication url: %w", err)
	}
	q := u.Query()
	q.Set("id", tweetID)
	q.Set("token", SyndicationToken(tweetID))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("upstream response",
		"host", req.URL.Host,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
