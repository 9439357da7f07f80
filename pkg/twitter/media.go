package twitter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/iconidentify/xresolve/internal/domain"
)

// photoSizeSuffix requests the largest rendition of a photo.
const photoSizeSuffix = "?name=4096x4096"

// Media uploaded in this window was stored in a broken container upstream.
var (
	badContainerStart = time.UnixMilli(1701446400000)
	badContainerEnd   = time.UnixMilli(1702605600000)
)

type rawVariant struct {
	Bitrate     float64 `json:"bitrate"`
	ContentType string  `json:"content_type"`
	URL         string  `json:"url"`
}

type rawMedia struct {
	IDStr             string `json:"id_str"`
	SourceStatusIDStr string `json:"source_status_id_str"`
	Type              string `json:"type"`
	MediaURLHTTPS     string `json:"media_url_https"`
	VideoInfo         struct {
		Variants []rawVariant `json:"variants"`
	} `json:"video_info"`
}

type extendedEntities struct {
	Media []rawMedia `json:"media"`
}

type tweetLegacy struct {
	ExtendedEntities      *extendedEntities `json:"extended_entities"`
	RetweetedStatusResult *struct {
		Result *struct {
			Legacy *tweetLegacy `json:"legacy"`
		} `json:"result"`
	} `json:"retweeted_status_result"`
}

type tweetResult struct {
	Typename string       `json:"__typename"`
	Legacy   *tweetLegacy `json:"legacy"`
	Tweet    *struct {
		Legacy *tweetLegacy `json:"legacy"`
	} `json:"tweet"`
}

type graphQLPayload struct {
	Data struct {
		TweetResult struct {
			Result *tweetResult `json:"result"`
		} `json:"tweetResult"`
	} `json:"data"`
}

type syndicationPayload struct {
	MediaDetails []rawMedia `json:"mediaDetails"`
}

// mediaFromGraphQL returns the media collection of a GraphQL payload,
// preferring the retweeted post's media when present.
func mediaFromGraphQL(body []byte) ([]rawMedia, error) {
	var p graphQLPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode graphql payload: %w", err)
	}
	result := p.Data.TweetResult.Result
	if result == nil {
		return nil, domain.ErrPostNotFound
	}

	base := result.Legacy
	if result.Typename == "TweetWithVisibilityResults" && result.Tweet != nil {
		base = result.Tweet.Legacy
	}
	if base == nil {
		return nil, domain.ErrNoMedia
	}

	if rt := base.RetweetedStatusResult; rt != nil && rt.Result != nil && rt.Result.Legacy != nil {
		if ee := rt.Result.Legacy.ExtendedEntities; ee != nil && ee.Media != nil {
			return ee.Media, nil
		}
	}
	if base.ExtendedEntities == nil {
		return nil, nil
	}
	return base.ExtendedEntities.Media, nil
}

func mediaFromSyndication(body []byte) ([]rawMedia, error) {
	var p syndicationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode syndication payload: %w", err)
	}
	if p.MediaDetails == nil {
		return nil, domain.ErrPostNotFound
	}
	return p.MediaDetails, nil
}

func (m rawMedia) toItem() (domain.MediaItem, error) {
	ref := domain.MediaRef{ID: m.IDStr, SourceStatusID: m.SourceStatusIDStr}
	switch domain.MediaKind(m.Type) {
	case domain.MediaKindPhoto:
		return &domain.Photo{MediaRef: ref, URL: m.MediaURLHTTPS}, nil
	case domain.MediaKindVideo:
		return &domain.Video{MediaRef: ref, PreviewURL: m.MediaURLHTTPS, Variants: m.variants()}, nil
	case domain.MediaKindAnimatedGIF:
		return &domain.AnimatedGIF{MediaRef: ref, PreviewURL: m.MediaURLHTTPS, Variants: m.variants()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, m.Type)
	}
}

func (m rawMedia) variants() []domain.VideoVariant {
	out := make([]domain.VideoVariant, 0, len(m.VideoInfo.Variants))
	for _, v := range m.VideoInfo.Variants {
		out = append(out, domain.VideoVariant{
			ContentType: v.ContentType,
			Bitrate:     int(v.Bitrate),
			URL:         v.URL,
		})
	}
	return out
}

// ExtractMedia normalizes a GraphQL or syndication payload into the media
// item at index. An out-of-range index selects the first item.
func ExtractMedia(body []byte, syndication bool, index int) (domain.MediaItem, error) {
	var (
		items []rawMedia
		err   error
	)
	if syndication {
		items, err = mediaFromSyndication(body)
	} else {
		items, err = mediaFromGraphQL(body)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNoMedia
	}
	if index < 0 || index >= len(items) {
		index = 0
	}
	return items[index].toItem()
}

// MediaURL returns the URL to redirect to for a media item.
func MediaURL(item domain.MediaItem) (string, error) {
	switch m := item.(type) {
	case *domain.Photo:
		return m.URL + photoSizeSuffix, nil
	case *domain.Video:
		v, err := BestVariant(m.Variants)
		if err != nil {
			return "", err
		}
		return v.URL, nil
	case *domain.AnimatedGIF:
		v, err := BestVariant(m.Variants)
		if err != nil {
			return "", err
		}
		return v.URL, nil
	default:
		return "", fmt.Errorf("%w: %T", domain.ErrUnsupportedMedia, item)
	}
}

// BestVariant picks the MP4 rendition with the highest bitrate. On a tie the
// first one wins.
func BestVariant(variants []domain.VideoVariant) (domain.VideoVariant, error) {
	var (
		best  domain.VideoVariant
		found bool
	)
	for _, v := range variants {
		if v.ContentType != domain.ContentTypeMP4 {
			continue
		}
		if !found || v.Bitrate > best.Bitrate {
			best = v
			found = true
		}
	}
	if !found {
		return domain.VideoVariant{}, domain.ErrNoMP4Variant
	}
	return best, nil
}

// SelectMedia resolves a payload to a direct media URL.
func SelectMedia(body []byte, syndication bool, index int) (string, domain.MediaItem, error) {
	item, err := ExtractMedia(body, syndication, index)
	if err != nil {
		return "", nil, err
	}
	u, err := MediaURL(item)
	if err != nil {
		return "", item, err
	}
	return u, item, nil
}

// NeedsFixing reports whether the media was created inside the window in
// which upstream produced broken containers.
func NeedsFixing(item domain.MediaItem) bool {
	id := item.Ref().RepresentativeID()
	if id == "" {
		return false
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return false
	}
	ts := domain.SnowflakeTime(n)
	return ts.After(badContainerStart) && ts.Before(badContainerEnd)
}
