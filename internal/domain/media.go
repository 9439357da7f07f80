package domain

import "time"

// MediaKind is the upstream type tag of an attached media item.
type MediaKind string

const (
	MediaKindPhoto       MediaKind = "photo"
	MediaKindVideo       MediaKind = "video"
	MediaKindAnimatedGIF MediaKind = "animated_gif"
)

// ContentTypeMP4 is the only variant container the resolver redirects to.
const ContentTypeMP4 = "video/mp4"

// MediaItem is one media attachment of a post. The concrete type is one of
// *Photo, *Video or *AnimatedGIF.
type MediaItem interface {
	Kind() MediaKind
	Ref() MediaRef
	isMediaItem()
}

// MediaRef carries the identifiers shared by every media kind.
type MediaRef struct {
	ID string
	// SourceStatusID is set when the media was attached to another post first.
	SourceStatusID string
}

// RepresentativeID is the snowflake used to date the media item.
func (r MediaRef) RepresentativeID() string {
	if r.SourceStatusID != "" {
		return r.SourceStatusID
	}
	return r.ID
}

// Photo is a still image.
type Photo struct {
	MediaRef
	URL string
}

// VideoVariant is one encoded rendition of a video asset.
type VideoVariant struct {
	ContentType string
	Bitrate     int
	URL         string
}

// Video is a video attachment with its renditions.
type Video struct {
	MediaRef
	PreviewURL string
	Variants   []VideoVariant
}

// AnimatedGIF is served by upstream as a looping MP4 video.
type AnimatedGIF struct {
	MediaRef
	PreviewURL string
	Variants   []VideoVariant
}

func (*Photo) Kind() MediaKind       { return MediaKindPhoto }
func (*Video) Kind() MediaKind       { return MediaKindVideo }
func (*AnimatedGIF) Kind() MediaKind { return MediaKindAnimatedGIF }

func (p *Photo) Ref() MediaRef       { return p.MediaRef }
func (v *Video) Ref() MediaRef       { return v.MediaRef }
func (g *AnimatedGIF) Ref() MediaRef { return g.MediaRef }

func (*Photo) isMediaItem()       {}
func (*Video) isMediaItem()       {}
func (*AnimatedGIF) isMediaItem() {}

// SnowflakeEpoch is the custom epoch of upstream snowflake IDs.
var SnowflakeEpoch = time.UnixMilli(1288834974657)

// SnowflakeTime returns the creation time encoded in the high bits of a
// snowflake ID.
func SnowflakeTime(id uint64) time.Time {
	return SnowflakeEpoch.Add(time.Duration(id>>22) * time.Millisecond)
}
