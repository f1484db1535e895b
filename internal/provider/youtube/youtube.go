// Package youtube implements the YouTube-specific provider client: uploads
// playlist derivation, playlist/video batch fetch, and the decode step that
// narrows the API's response shape into provider.DecodedItem.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/token"
)

// ShortsThresholdSeconds is the Shorts filter boundary: videos at or under
// this duration are excluded from ingestion.
const ShortsThresholdSeconds = 180

// MaxPlaylistItems is N in "fetch up to N=10 most recent playlist items".
const MaxPlaylistItems = 10

// videoBatchChunkSize bounds a single video-details request.
const videoBatchChunkSize = 50

// WaveSize is the outbound-connection budget for concurrent playlist
// fetches in pollBatch.
const WaveSize = 6

// Client wraps the YouTube Data API v3 service for one user's access token.
type Client struct {
	svc *youtube.Service
}

// NewClient builds a Client authorized with accessToken.
func NewClient(ctx context.Context, accessToken string) (*Client, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := youtube.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, provider.NewError(provider.KindInternal, fmt.Errorf("youtube: new service: %w", err))
	}
	return &Client{svc: svc}, nil
}

// UploadsPlaylistID derives a channel's uploads playlist id without an API
// call: YouTube channel ids begin with "UC"; the uploads playlist id is the
// same id with that prefix replaced by "UU".
func UploadsPlaylistID(channelID string) string {
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:]
	}
	return channelID
}

// PlaylistItem is a single entry from the uploads playlist, before the
// per-video detail merge.
type PlaylistItem struct {
	VideoID      string
	Title        string
	Description  string
	ThumbnailURL string
	PublishedAt  string // ISO-8601, as returned by the API
	ChannelID    string
	ChannelTitle string
	PrivacyStatus string
}

// VideoDetail is the per-video detail merged onto a PlaylistItem.
type VideoDetail struct {
	DurationSeconds *int64
	FullDescription string
}

// ListPlaylistItems fetches up to MaxPlaylistItems most recent items from
// playlistID.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	call := c.svc.PlaylistItems.List([]string{"snippet", "status"}).
		PlaylistId(playlistID).
		MaxResults(MaxPlaylistItems).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}

	items := make([]PlaylistItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Snippet == nil || it.Snippet.ResourceId == nil {
			continue
		}
		var thumb string
		if it.Snippet.Thumbnails != nil && it.Snippet.Thumbnails.High != nil {
			thumb = it.Snippet.Thumbnails.High.Url
		}
		var privacy string
		if it.Status != nil {
			privacy = it.Status.PrivacyStatus
		}
		items = append(items, PlaylistItem{
			VideoID:       it.Snippet.ResourceId.VideoId,
			Title:         it.Snippet.Title,
			Description:   it.Snippet.Description,
			ThumbnailURL:  thumb,
			PublishedAt:   it.Snippet.PublishedAt,
			ChannelID:     it.Snippet.ChannelId,
			ChannelTitle:  it.Snippet.ChannelTitle,
			PrivacyStatus: privacy,
		})
	}
	return items, nil
}

// discoverBatchSize bounds a single subscriptions.list/search.list page.
const discoverBatchSize = 50

// ListMySubscriptions lists the channels the authenticated user is
// subscribed to on YouTube itself, for discover.available.
func (c *Client) ListMySubscriptions(ctx context.Context, limit int) ([]provider.DiscoverItem, error) {
	call := c.svc.Subscriptions.List([]string{"snippet"}).
		Mine(true).MaxResults(int64(minInt(limit, discoverBatchSize))).Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}

	items := make([]provider.DiscoverItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Snippet == nil || it.Snippet.ResourceId == nil {
			continue
		}
		channelID := it.Snippet.ResourceId.ChannelId
		var thumb string
		if it.Snippet.Thumbnails != nil && it.Snippet.Thumbnails.High != nil {
			thumb = it.Snippet.Thumbnails.High.Url
		}
		items = append(items, provider.DiscoverItem{
			ProviderChannelID: channelID,
			Name:              it.Snippet.Title,
			ImageURL:          thumb,
			Description:       it.Snippet.Description,
			ExternalURL:       "https://www.youtube.com/channel/" + channelID,
		})
	}
	return items, nil
}

// SearchChannels searches YouTube's public channel directory, for
// discover.search.
func (c *Client) SearchChannels(ctx context.Context, query string, limit int) ([]provider.DiscoverItem, error) {
	call := c.svc.Search.List([]string{"snippet"}).
		Q(query).Type("channel").MaxResults(int64(minInt(limit, discoverBatchSize))).Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}

	items := make([]provider.DiscoverItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Id == nil || it.Snippet == nil || it.Id.ChannelId == "" {
			continue
		}
		channelID := it.Id.ChannelId
		var thumb string
		if it.Snippet.Thumbnails != nil && it.Snippet.Thumbnails.High != nil {
			thumb = it.Snippet.Thumbnails.High.Url
		}
		items = append(items, provider.DiscoverItem{
			ProviderChannelID: channelID,
			Name:              it.Snippet.Title,
			ImageURL:          thumb,
			Description:       it.Snippet.Description,
			ExternalURL:       "https://www.youtube.com/channel/" + channelID,
		})
	}
	return items, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BatchVideoDetails fetches duration and full description for videoIDs,
// chunked at videoBatchChunkSize ids per request. A video missing from the
// response (deleted/private) is simply absent from the result map; callers
// treat an absent entry as "unknown duration" per the Shorts fail-safe.
func (c *Client) BatchVideoDetails(ctx context.Context, videoIDs []string) (map[string]VideoDetail, error) {
	out := make(map[string]VideoDetail, len(videoIDs))

	for start := 0; start < len(videoIDs); start += videoBatchChunkSize {
		end := start + videoBatchChunkSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		chunk := videoIDs[start:end]

		resp, err := c.svc.Videos.List([]string{"contentDetails", "snippet"}).
			Id(chunk...).Context(ctx).Do()
		if err != nil {
			return nil, classifyAPIError(err)
		}

		for _, v := range resp.Items {
			detail := VideoDetail{}
			if v.Snippet != nil {
				detail.FullDescription = v.Snippet.Description
			}
			if v.ContentDetails != nil {
				if secs, ok := parseISO8601Duration(v.ContentDetails.Duration); ok {
					detail.DurationSeconds = &secs
				}
			}
			out[v.Id] = detail
		}
	}
	return out, nil
}

// Decode narrows a merged playlist item + video detail into DecodedItem.
// publishedAt must already have been parsed; malformed dates are rejected
// by the caller before Decode is invoked.
func Decode(item PlaylistItem, detail VideoDetail, publishedAtMillis int64) provider.DecodedItem {
	desc := detail.FullDescription
	if desc == "" {
		desc = item.Description
	}
	published := publishedAtMillis
	thumb := item.ThumbnailURL

	d := provider.DecodedItem{
		ContentType:       model.ContentTypeVideo,
		ProviderID:        item.VideoID,
		CanonicalURL:      fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.VideoID),
		Title:             item.Title,
		ThumbnailURL:      &thumb,
		Duration:          detail.DurationSeconds,
		PublishedAt:       &published,
		Summary:           &desc,
		CreatorProviderID: item.ChannelID,
		CreatorName:       item.ChannelTitle,
	}
	return d
}

// IsShort reports whether a video's duration places it under the Shorts
// filter. Unknown duration (nil) is never a Short (fail-safe).
func IsShort(durationSeconds *int64) bool {
	return durationSeconds != nil && *durationSeconds <= ShortsThresholdSeconds
}

func classifyAPIError(err error) error {
	var gErr *googleapi.Error
	if ge, ok := err.(*googleapi.Error); ok {
		gErr = ge
	}
	if gErr == nil {
		return provider.NewError(provider.KindTransient, err)
	}
	switch gErr.Code {
	case http.StatusUnauthorized:
		return provider.NewError(provider.KindTokenExpired, err)
	case http.StatusForbidden:
		return provider.NewError(provider.KindAccessRevoked, err)
	case http.StatusTooManyRequests:
		return provider.NewError(provider.KindRateLimited, err)
	default:
		if gErr.Code >= 500 {
			return provider.NewError(provider.KindTransient, err)
		}
		return provider.NewError(provider.KindInternal, err)
	}
}

// parseISO8601Duration parses YouTube's ISO-8601 duration format (e.g.
// "PT4M13S") into whole seconds.
func parseISO8601Duration(s string) (int64, bool) {
	if !strings.HasPrefix(s, "PT") {
		return 0, false
	}
	rest := s[2:]
	var total int64
	var num int64
	hasDigits := false
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int64(r-'0')
			hasDigits = true
		case r == 'H':
			total += num * 3600
			num = 0
		case r == 'M':
			total += num * 60
			num = 0
		case r == 'S':
			total += num
			num = 0
		default:
			return 0, false
		}
	}
	return total, hasDigits
}

// ParsePublishedAt parses an RFC3339/ISO-8601 timestamp into epoch millis.
func ParsePublishedAt(s string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// TokenExchanger implements token.Refresher against Google's OAuth2 token
// endpoint using a registered app's client credentials.
type TokenExchanger struct {
	ClientID     string
	ClientSecret string
}

// Refresh exchanges refreshToken for a new access token via Google's
// refresh_token grant. Failures are returned as *token.ClassifiableError so
// the token service never parses a Google response body itself.
func (e *TokenExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	cfg := &oauth2.Config{
		ClientID:     e.ClientID,
		ClientSecret: e.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		kind := token.KindTransient
		if rErr, ok := err.(*oauth2.RetrieveError); ok {
			switch rErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				kind = token.KindRefreshInvalid
			case http.StatusForbidden:
				kind = token.KindAccessRevoked
			case http.StatusTooManyRequests:
				kind = token.KindRateLimited
			}
		}
		return nil, &token.ClassifiableError{Kind: kind, Err: err}
	}
	return tok, nil
}
