// Package initialfetch implements Initial Fetch: the single welcome-item
// ingestion that runs once, synchronously, right after a subscription is
// added, so the next scheduled poll sees a pre-seeded watermark instead of
// re-ingesting an entire backlog.
package initialfetch

import (
	"context"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider/spotify"
	"github.com/ejohane/zine-sub/internal/provider/youtube"
	"github.com/ejohane/zine-sub/internal/state"
)

// episodeLookback bounds how many recent episodes Run fetches when picking
// the newest playable one for a podcast show.
const episodeLookback = 10

// youtubeClient is the subset of *youtube.Client Run needs.
type youtubeClient interface {
	ListPlaylistItems(ctx context.Context, playlistID string) ([]youtube.PlaylistItem, error)
	BatchVideoDetails(ctx context.Context, videoIDs []string) (map[string]youtube.VideoDetail, error)
}

// spotifyClient is the subset of *spotify.Client Run needs.
type spotifyClient interface {
	BatchShowDetails(ctx context.Context, showIDs []string) (map[string]spotify.Show, error)
	ListEpisodes(ctx context.Context, showID string, limit int) ([]spotify.Episode, error)
}

// Runner performs the Initial Fetch for a freshly added subscription.
type Runner struct {
	ingest        *ingest.Core
	subscriptions *state.SubscriptionRepo
	clock         clock.Clock
}

// New builds a Runner.
func New(ingestCore *ingest.Core, subscriptions *state.SubscriptionRepo, c clock.Clock) *Runner {
	if c == nil {
		c = clock.System{}
	}
	return &Runner{ingest: ingestCore, subscriptions: subscriptions, clock: c}
}

// RunYouTube implements §4.4 step 1 for a video channel subscription.
// Fetch and ingest errors are swallowed here: lastPolledAt still advances
// and the subscription stays ACTIVE whether or not the welcome item lands.
// Only a failure to update the subscription row is returned.
func (r *Runner) RunYouTube(ctx context.Context, sub *model.Subscription, userID string, client youtubeClient) error {
	now := r.clock.NowMillis()

	playlistID := youtube.UploadsPlaylistID(sub.ProviderChannelID)
	items, err := client.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	videoIDs := make([]string, 0, len(items))
	for _, it := range items {
		videoIDs = append(videoIDs, it.VideoID)
	}
	details, err := client.BatchVideoDetails(ctx, videoIDs)
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	var chosen *youtube.PlaylistItem
	var chosenDetail youtube.VideoDetail
	var chosenPublishedAt int64
	for i := range items {
		it := items[i]
		if it.PrivacyStatus != "" && it.PrivacyStatus != "public" {
			continue
		}
		publishedAt, ok := youtube.ParsePublishedAt(it.PublishedAt)
		if !ok || publishedAt > now {
			continue
		}
		detail := details[it.VideoID]
		if youtube.IsShort(detail.DurationSeconds) {
			continue
		}
		chosen = &it
		chosenDetail = detail
		chosenPublishedAt = publishedAt
		break
	}

	if chosen == nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	decoded := youtube.Decode(*chosen, chosenDetail, chosenPublishedAt)
	res, err := r.ingest.IngestItem(userID, sub.ID, model.ProviderYouTube, decoded)
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}
	if !res.Created {
		return r.advanceLastPolledOnly(sub.ID, now)
	}
	return r.subscriptions.UpdateAfterPoll(sub.ID, now, &chosenPublishedAt, nil)
}

// RunSpotify implements §4.4 step 2 for a podcast show subscription.
func (r *Runner) RunSpotify(ctx context.Context, sub *model.Subscription, userID string, client spotifyClient) error {
	now := r.clock.NowMillis()

	shows, err := client.BatchShowDetails(ctx, []string{sub.ProviderChannelID})
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}
	show, ok := shows[sub.ProviderChannelID]
	if !ok {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	episodes, err := client.ListEpisodes(ctx, sub.ProviderChannelID, episodeLookback)
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	var newest *spotify.Episode
	var newestPublishedAt int64
	for i := range episodes {
		ep := episodes[i]
		if !ep.IsPlayable {
			continue
		}
		publishedAt, ok := spotify.NormalizeReleaseDate(ep.ReleaseDate)
		if !ok || publishedAt > now {
			continue
		}
		if newest == nil || publishedAt > newestPublishedAt {
			newest = &ep
			newestPublishedAt = publishedAt
		}
	}

	if newest == nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	decoded := spotify.Decode(*newest, newestPublishedAt)
	res, err := r.ingest.IngestItem(userID, sub.ID, model.ProviderSpotify, decoded)
	if err != nil {
		return r.advanceLastPolledOnly(sub.ID, now)
	}
	if !res.Created {
		return r.advanceLastPolledOnly(sub.ID, now)
	}

	total := int64(show.TotalEpisodes)
	return r.subscriptions.UpdateAfterPoll(sub.ID, now, &newestPublishedAt, &total)
}

func (r *Runner) advanceLastPolledOnly(subID string, now int64) error {
	return r.subscriptions.UpdateAfterPoll(subID, now, nil, nil)
}
