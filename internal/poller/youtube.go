// Package poller implements the Provider Pollers: the per-provider
// pollSingle/pollBatch contracts the scheduler dispatches into, each
// isolating individual subscription failures from the rest of the run.
package poller

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider/youtube"
	"github.com/ejohane/zine-sub/internal/state"
)

// SubscriptionResult is one subscription's outcome within a poll run.
type SubscriptionResult struct {
	SubscriptionID string
	NewItems       int
	Err            error
}

// youtubeClient is the subset of *youtube.Client the poller needs; narrowed
// to an interface so tests can supply a fake instead of hitting the real API.
type youtubeClient interface {
	ListPlaylistItems(ctx context.Context, playlistID string) ([]youtube.PlaylistItem, error)
	BatchVideoDetails(ctx context.Context, videoIDs []string) (map[string]youtube.VideoDetail, error)
}

// YouTubePoller implements PP-Y: pollSingle/pollBatch for video channels.
type YouTubePoller struct {
	ingest        *ingest.Core
	subscriptions *state.SubscriptionRepo
	clock         clock.Clock
}

// NewYouTubePoller builds a YouTubePoller.
func NewYouTubePoller(ingestCore *ingest.Core, subscriptions *state.SubscriptionRepo, c clock.Clock) *YouTubePoller {
	if c == nil {
		c = clock.System{}
	}
	return &YouTubePoller{ingest: ingestCore, subscriptions: subscriptions, clock: c}
}

// mergedYTItem pairs a fetched playlist item with its (possibly absent)
// video detail and parsed publish date.
type mergedYTItem struct {
	item        youtube.PlaylistItem
	detail      youtube.VideoDetail
	publishedAt int64
	hasDate     bool
}

// PollSingle implements pollSingle(sub, client, userId) per §4.2.
func (p *YouTubePoller) PollSingle(ctx context.Context, sub *model.Subscription, userID string, client youtubeClient) SubscriptionResult {
	playlistID := youtube.UploadsPlaylistID(sub.ProviderChannelID)

	items, err := client.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		p.advanceLastPolledOnly(sub.ID)
		return SubscriptionResult{SubscriptionID: sub.ID, Err: err}
	}

	videoIDs := make([]string, 0, len(items))
	for _, it := range items {
		videoIDs = append(videoIDs, it.VideoID)
	}
	details, err := client.BatchVideoDetails(ctx, videoIDs)
	if err != nil {
		p.advanceLastPolledOnly(sub.ID)
		return SubscriptionResult{SubscriptionID: sub.ID, Err: err}
	}

	newItems, err := p.ingestAndWatermark(userID, sub, items, details)
	return SubscriptionResult{SubscriptionID: sub.ID, NewItems: newItems, Err: err}
}

// PollBatch implements pollBatch(subs, client, userId) per §4.2: waves of at
// most youtube.WaveSize concurrent playlist fetches, then one aggregated
// video-details batch across every subscription's videos.
func (p *YouTubePoller) PollBatch(ctx context.Context, subs []*model.Subscription, userID string, client youtubeClient) []SubscriptionResult {
	results := make([]SubscriptionResult, len(subs))
	playlistItems := make([][]youtube.PlaylistItem, len(subs))
	fetchErrs := make([]error, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(youtube.WaveSize)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			playlistID := youtube.UploadsPlaylistID(sub.ProviderChannelID)
			items, err := client.ListPlaylistItems(gctx, playlistID)
			if err != nil {
				fetchErrs[i] = err
				return nil // isolate: a failed playlist fetch never aborts the wave
			}
			playlistItems[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var allVideoIDs []string
	for _, items := range playlistItems {
		for _, it := range items {
			allVideoIDs = append(allVideoIDs, it.VideoID)
		}
	}

	var details map[string]youtube.VideoDetail
	var detailsErr error
	if len(allVideoIDs) > 0 {
		details, detailsErr = client.BatchVideoDetails(ctx, allVideoIDs)
	}

	for i, sub := range subs {
		if fetchErrs[i] != nil {
			p.advanceLastPolledOnly(sub.ID)
			results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: fetchErrs[i]}
			continue
		}
		if detailsErr != nil {
			p.advanceLastPolledOnly(sub.ID)
			results[i] = SubscriptionResult{SubscriptionID: sub.ID, Err: detailsErr}
			continue
		}
		newItems, err := p.ingestAndWatermark(userID, sub, playlistItems[i], details)
		results[i] = SubscriptionResult{SubscriptionID: sub.ID, NewItems: newItems, Err: err}
	}
	return results
}

// ingestAndWatermark runs steps 4-8 of §4.2 shared by PollSingle and
// PollBatch once playlist items and their merged video details are in hand.
// The watermark only ever advances to the newest publishedAt among items
// actually ingested this run (Created==true), never merely fetched — a
// re-seen or failed item must not move lastPublishedAt forward.
func (p *YouTubePoller) ingestAndWatermark(userID string, sub *model.Subscription, items []youtube.PlaylistItem, details map[string]youtube.VideoDetail) (int, error) {
	now := p.clock.NowMillis()

	merged := make([]mergedYTItem, 0, len(items))
	for _, it := range items {
		detail := details[it.VideoID]
		if youtube.IsShort(detail.DurationSeconds) {
			continue
		}
		publishedAt, ok := youtube.ParsePublishedAt(it.PublishedAt)
		merged = append(merged, mergedYTItem{item: it, detail: detail, publishedAt: publishedAt, hasDate: ok})
	}

	var surviving []mergedYTItem
	if sub.LastPolledAt == nil || *sub.LastPolledAt == 0 {
		var newest *mergedYTItem
		for i := range merged {
			m := &merged[i]
			if !m.hasDate {
				continue
			}
			if newest == nil || m.publishedAt > newest.publishedAt {
				newest = m
			}
		}
		if newest != nil {
			surviving = []mergedYTItem{*newest}
		}
	} else {
		for _, m := range merged {
			if m.hasDate && m.publishedAt > *sub.LastPolledAt {
				surviving = append(surviving, m)
			}
		}
	}

	newItems := 0
	var newestIngestedAt int64
	var hasNewestIngested bool
	var firstErr error
	for _, m := range surviving {
		decoded := youtube.Decode(m.item, m.detail, m.publishedAt)
		res, err := p.ingest.IngestItem(userID, sub.ID, model.ProviderYouTube, decoded)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Created {
			newItems++
			if !hasNewestIngested || m.publishedAt > newestIngestedAt {
				newestIngestedAt = m.publishedAt
				hasNewestIngested = true
			}
		}
	}

	var newestPtr *int64
	if hasNewestIngested {
		newestPtr = &newestIngestedAt
	}
	if err := p.subscriptions.UpdateAfterPoll(sub.ID, now, newestPtr, nil); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}

	return newItems, firstErr
}

func (p *YouTubePoller) advanceLastPolledOnly(subID string) {
	_ = p.subscriptions.UpdateAfterPoll(subID, p.clock.NowMillis(), nil, nil)
}
