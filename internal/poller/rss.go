package poller

import (
	"context"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider/rss"
	"github.com/ejohane/zine-sub/internal/state"
)

// rssClient is the subset of *rss.Client the poller needs.
type rssClient interface {
	FetchFeed(ctx context.Context, feedURL string) (*rss.Feed, error)
}

// RSSPoller implements pollSingle for generic feeds: no batch endpoint
// exists for RSS, so there is no pollBatch counterpart (SPEC_FULL.md
// §4.0's "RSS subscriptions use pollSingle only").
type RSSPoller struct {
	ingest        *ingest.Core
	subscriptions *state.SubscriptionRepo
	clock         clock.Clock
}

// NewRSSPoller builds an RSSPoller.
func NewRSSPoller(ingestCore *ingest.Core, subscriptions *state.SubscriptionRepo, c clock.Clock) *RSSPoller {
	if c == nil {
		c = clock.System{}
	}
	return &RSSPoller{ingest: ingestCore, subscriptions: subscriptions, clock: c}
}

// PollSingle fetches sub's feed (ProviderChannelID holds the feed URL for
// RSS subscriptions), applies the same lastPolledAt-gated welcome-vs-delta
// selection PP-Y uses, and ingests surviving items. lastPublishedAt only
// advances to the newest publishedAt among items actually ingested, never
// merely fetched.
func (p *RSSPoller) PollSingle(ctx context.Context, sub *model.Subscription, userID string, client rssClient) SubscriptionResult {
	now := p.clock.NowMillis()

	feed, err := client.FetchFeed(ctx, sub.ProviderChannelID)
	if err != nil {
		p.advanceLastPolledOnly(sub.ID)
		return SubscriptionResult{SubscriptionID: sub.ID, Err: err}
	}

	type datedItem struct {
		item        rss.Item
		publishedAt int64
	}

	var dated []datedItem
	for _, it := range feed.Items {
		decoded, ok := rss.Decode(it, sub.ProviderChannelID, feed.Title)
		if !ok || decoded.PublishedAt == nil {
			continue
		}
		dated = append(dated, datedItem{item: it, publishedAt: *decoded.PublishedAt})
	}

	var surviving []datedItem
	if sub.LastPolledAt == nil || *sub.LastPolledAt == 0 {
		var newest *datedItem
		for i := range dated {
			d := &dated[i]
			if newest == nil || d.publishedAt > newest.publishedAt {
				newest = d
			}
		}
		if newest != nil {
			surviving = []datedItem{*newest}
		}
	} else {
		for _, d := range dated {
			if d.publishedAt > *sub.LastPolledAt {
				surviving = append(surviving, d)
			}
		}
	}

	newItems := 0
	var newestIngestedAt int64
	var hasNewestIngested bool
	var firstErr error
	for _, d := range surviving {
		decoded, ok := rss.Decode(d.item, sub.ProviderChannelID, feed.Title)
		if !ok {
			continue
		}
		res, err := p.ingest.IngestItem(userID, sub.ID, model.ProviderRSS, decoded)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Created {
			newItems++
			if !hasNewestIngested || d.publishedAt > newestIngestedAt {
				newestIngestedAt = d.publishedAt
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

	return SubscriptionResult{SubscriptionID: sub.ID, NewItems: newItems, Err: firstErr}
}

func (p *RSSPoller) advanceLastPolledOnly(subID string) {
	_ = p.subscriptions.UpdateAfterPoll(subID, p.clock.NowMillis(), nil, nil)
}
