// Package ops implements the Operations Router: the per-user authenticated
// surface (list/add/remove/pause/resume/syncNow/syncAll/discover) that sits
// in front of the scheduler-driven poll pipeline. Business logic lives
// here, not in whatever transport wires these methods up, mirroring how
// this codebase's teacher keeps handlers thin and services fat.
package ops

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/ingest"
	"github.com/ejohane/zine-sub/internal/initialfetch"
	"github.com/ejohane/zine-sub/internal/kv"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/poller"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/provider/rss"
	"github.com/ejohane/zine-sub/internal/provider/spotify"
	"github.com/ejohane/zine-sub/internal/provider/youtube"
	"github.com/ejohane/zine-sub/internal/ratelimit"
	"github.com/ejohane/zine-sub/internal/state"
	"github.com/ejohane/zine-sub/internal/token"
)

// defaultListLimit and maxListLimit bound subscriptions.list per spec.md §6.
const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxSearchLimit   = 20

	manualSyncTTL = 5 * time.Minute
	syncAllTTL    = 2 * time.Minute

	youtubeSyncAllCap = 20
	spotifySyncAllCap = 30
)

func manualSyncKey(subscriptionID string) string { return "manual-sync:" + subscriptionID }
func syncAllKey(userID string) string             { return "sync-all:" + userID }

// Router implements the nine operations of spec.md §4.9/§6.
type Router struct {
	subscriptions     *state.SubscriptionRepo
	subscriptionItems *state.SubscriptionItemRepo
	userItems         *state.UserItemRepo
	connections       *state.ProviderConnectionRepo
	creators          *state.CreatorRepo
	ingest            *ingest.Core
	initialFetch      *initialfetch.Runner
	youtubePoller     *poller.YouTubePoller
	spotifyPoller     *poller.SpotifyPoller
	rssPoller         *poller.RSSPoller
	tokens            *token.Service
	rateLimiter       *ratelimit.Limiter
	kv                kv.Store
	ids               *clock.IDGenerator
	clock             clock.Clock
}

// New builds a Router.
func New(
	subscriptions *state.SubscriptionRepo,
	subscriptionItems *state.SubscriptionItemRepo,
	userItems *state.UserItemRepo,
	connections *state.ProviderConnectionRepo,
	creators *state.CreatorRepo,
	ingestCore *ingest.Core,
	initialFetch *initialfetch.Runner,
	youtubePoller *poller.YouTubePoller,
	spotifyPoller *poller.SpotifyPoller,
	rssPoller *poller.RSSPoller,
	tokens *token.Service,
	rateLimiter *ratelimit.Limiter,
	store kv.Store,
	ids *clock.IDGenerator,
	c clock.Clock,
) *Router {
	if c == nil {
		c = clock.System{}
	}
	return &Router{
		subscriptions: subscriptions, subscriptionItems: subscriptionItems, userItems: userItems,
		connections: connections, creators: creators, ingest: ingestCore, initialFetch: initialFetch,
		youtubePoller: youtubePoller, spotifyPoller: spotifyPoller, rssPoller: rssPoller,
		tokens: tokens, rateLimiter: rateLimiter, kv: store, ids: ids, clock: c,
	}
}

// SubscriptionView is the display shape of one subscription, joined to its
// Creator for name/imageUrl/description/externalUrl.
type SubscriptionView struct {
	ID                  string
	Provider            model.Provider
	ProviderChannelID   string
	CreatorID           *string
	Name                string
	ImageURL            string
	Description         string
	ExternalURL         string
	TotalItems          *int64
	LastPublishedAt     *int64
	LastPolledAt        *int64
	PollIntervalSeconds int64
	Status              model.SubscriptionStatus
	DisconnectedAt      *int64
	DisconnectedReason  *string
	CreatedAt           int64
	UpdatedAt           int64
}

func (r *Router) toView(sub *model.Subscription) SubscriptionView {
	v := SubscriptionView{
		ID: sub.ID, Provider: sub.Provider, ProviderChannelID: sub.ProviderChannelID,
		CreatorID: sub.CreatorID, TotalItems: sub.TotalItems, LastPublishedAt: sub.LastPublishedAt,
		LastPolledAt: sub.LastPolledAt, PollIntervalSeconds: sub.PollIntervalSeconds,
		Status: sub.Status, DisconnectedAt: sub.DisconnectedAt, DisconnectedReason: sub.DisconnectedReason,
		CreatedAt: sub.CreatedAt, UpdatedAt: sub.UpdatedAt,
	}
	if sub.CreatorID != nil {
		if creator, err := r.creators.GetByID(*sub.CreatorID); err == nil {
			v.Name = creator.Name
			if creator.ImageURL != nil {
				v.ImageURL = *creator.ImageURL
			}
			if creator.Description != nil {
				v.Description = *creator.Description
			}
			if creator.ExternalURL != nil {
				v.ExternalURL = *creator.ExternalURL
			}
		}
	}
	return v
}

// ListRequest holds subscriptions.list parameters.
type ListRequest struct {
	Provider *model.Provider
	Status   *model.SubscriptionStatus
	Limit    int
	Cursor   string
}

// ListResponse is subscriptions.list's result.
type ListResponse struct {
	Items      []SubscriptionView
	NextCursor string
	HasMore    bool
}

// List implements subscriptions.list: cursor is the last row's id,
// time-ordered (the underlying query orders by id, which is ULID-derived
// and therefore time-ordered), joined to Creator for display fields.
func (r *Router) List(userID string, req ListRequest) (*ListResponse, *ServiceError) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		return nil, badRequest("limit must be <= 100")
	}

	subs, err := r.subscriptions.ListByUser(userID, req.Provider, req.Status, req.Cursor, limit+1)
	if err != nil {
		return nil, internalErr("list subscriptions", err)
	}

	hasMore := len(subs) > limit
	if hasMore {
		subs = subs[:limit]
	}

	items := make([]SubscriptionView, 0, len(subs))
	var nextCursor string
	for i := range subs {
		items = append(items, r.toView(&subs[i]))
		nextCursor = subs[i].ID
	}
	if !hasMore {
		nextCursor = ""
	}

	return &ListResponse{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// AddRequest holds subscriptions.add parameters.
type AddRequest struct {
	Provider          model.Provider
	ProviderChannelID string
	Name              *string
	ImageURL          *string
}

// AddResponse is subscriptions.add's result.
type AddResponse struct {
	SubscriptionID string
	Name           string
	ImageURL       string
}

// Add implements subscriptions.add: requires an ACTIVE connection (except
// for RSS, which has none), upserts the subscription (reactivating any
// prior UNSUBSCRIBED row so the id is stable across add→remove→add), then
// awaits Initial Fetch before returning.
func (r *Router) Add(ctx context.Context, userID string, req AddRequest) (*AddResponse, *ServiceError) {
	if strings.TrimSpace(req.ProviderChannelID) == "" {
		return nil, badRequest("providerChannelId is required")
	}

	if req.Provider != model.ProviderRSS {
		conn, err := r.connections.GetByUserProvider(userID, req.Provider)
		if err != nil || conn.Status != model.ConnectionStatusActive {
			return nil, preconditionFailed("no active connection for " + string(req.Provider))
		}
	}

	now := r.clock.NowMillis()
	key := model.SubscriptionKey{UserID: userID, Provider: req.Provider, ProviderChannelID: req.ProviderChannelID}
	sub, err := r.subscriptions.GetByKey(key)
	switch {
	case err == nil && sub.Status == model.SubscriptionStatusUnsubscribed:
		if err := r.subscriptions.Reactivate(sub.ID, now); err != nil {
			return nil, internalErr("reactivate subscription", err)
		}
	case err == nil:
		// Already subscribed; return the existing row idempotently.
	case errors.Is(err, state.ErrNotFound):
		sub = &model.Subscription{
			ID: r.ids.New(), UserID: userID, Provider: req.Provider, ProviderChannelID: req.ProviderChannelID,
			PollIntervalSeconds: defaultPollIntervalSeconds, Status: model.SubscriptionStatusActive,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := r.subscriptions.Insert(*sub); err != nil {
			return nil, internalErr("create subscription", err)
		}
	default:
		return nil, internalErr("load subscription", err)
	}

	name := req.ProviderChannelID
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name = *req.Name
	}
	if sub.CreatorID == nil {
		creatorID, err := r.ingest.ResolveCreator(req.Provider, req.ProviderChannelID, name, req.ImageURL)
		if err == nil {
			_ = r.subscriptions.SetCreatorID(sub.ID, creatorID, r.clock.NowMillis())
			sub.CreatorID = &creatorID
		}
	}

	reloaded, err := r.subscriptions.GetByID(sub.ID)
	if err != nil {
		return nil, internalErr("reload subscription", err)
	}
	r.runInitialFetch(ctx, userID, reloaded)

	var imageURL string
	if req.ImageURL != nil {
		imageURL = *req.ImageURL
	}
	return &AddResponse{SubscriptionID: sub.ID, Name: name, ImageURL: imageURL}, nil
}

// defaultPollIntervalSeconds is the starting cadence for a new subscription
// before the Adaptive Interval controller has enough history to retier it.
const defaultPollIntervalSeconds = 3600

// runInitialFetch drives Initial Fetch synchronously. Any failure here
// (token unavailable, provider error) is swallowed: the subscription was
// already created successfully, and the next scheduler tick will retry.
func (r *Router) runInitialFetch(ctx context.Context, userID string, sub *model.Subscription) {
	switch sub.Provider {
	case model.ProviderYouTube:
		accessToken, err := r.tokens.GetValidToken(ctx, userID, model.ProviderYouTube)
		if err != nil {
			return
		}
		client, err := youtube.NewClient(ctx, accessToken)
		if err != nil {
			return
		}
		_ = r.initialFetch.RunYouTube(ctx, sub, userID, client)
	case model.ProviderSpotify:
		accessToken, err := r.tokens.GetValidToken(ctx, userID, model.ProviderSpotify)
		if err != nil {
			return
		}
		client := spotify.NewClient(accessToken)
		_ = r.initialFetch.RunSpotify(ctx, sub, userID, client)
	case model.ProviderRSS:
		client := rss.NewClient()
		r.rssPoller.PollSingle(ctx, sub, userID, client)
	}
}

// RemoveRequest holds subscriptions.remove parameters.
type RemoveRequest struct {
	SubscriptionID string
}

// Remove implements subscriptions.remove: ownership check, UNSUBSCRIBED
// transition, SubscriptionItem hard-delete, INBOX-only UserItem
// hard-delete, ProviderItemsSeen preserved so re-add never re-ingests.
func (r *Router) Remove(userID string, req RemoveRequest) *ServiceError {
	sub, serr := r.ownedSubscription(userID, req.SubscriptionID)
	if serr != nil {
		return serr
	}
	if sub.Status == model.SubscriptionStatusUnsubscribed {
		return nil
	}

	now := r.clock.NowMillis()
	if err := r.subscriptions.SetStatus(sub.ID, model.SubscriptionStatusUnsubscribed, &now, nil, now); err != nil {
		return internalErr("unsubscribe", err)
	}
	// DeleteInboxBySubscription joins through subscription_items to find
	// which items came from this subscription, so it must run before that
	// table's own rows are purged.
	if err := r.userItems.DeleteInboxBySubscription(sub.ID); err != nil {
		return internalErr("delete inbox user items", err)
	}
	if err := r.subscriptionItems.DeleteBySubscription(sub.ID); err != nil {
		return internalErr("delete subscription items", err)
	}
	return nil
}

// Pause implements subscriptions.pause: ACTIVE -> PAUSED.
func (r *Router) Pause(userID, subscriptionID string) *ServiceError {
	sub, serr := r.ownedSubscription(userID, subscriptionID)
	if serr != nil {
		return serr
	}
	switch sub.Status {
	case model.SubscriptionStatusPaused:
		return nil
	case model.SubscriptionStatusActive:
		now := r.clock.NowMillis()
		if err := r.subscriptions.SetStatus(sub.ID, model.SubscriptionStatusPaused, nil, nil, now); err != nil {
			return internalErr("pause subscription", err)
		}
		return nil
	default:
		return badRequest("cannot pause a subscription with status " + string(sub.Status))
	}
}

// Resume implements subscriptions.resume: PAUSED -> ACTIVE, with a
// connection recheck (preconditionFailed if the provider connection is no
// longer ACTIVE).
func (r *Router) Resume(userID, subscriptionID string) *ServiceError {
	sub, serr := r.ownedSubscription(userID, subscriptionID)
	if serr != nil {
		return serr
	}
	if sub.Status == model.SubscriptionStatusActive {
		return nil
	}
	if sub.Status != model.SubscriptionStatusPaused {
		return badRequest("cannot resume a subscription with status " + string(sub.Status))
	}

	if sub.Provider != model.ProviderRSS {
		conn, err := r.connections.GetByUserProvider(userID, sub.Provider)
		if err != nil || conn.Status != model.ConnectionStatusActive {
			return preconditionFailed("no active connection for " + string(sub.Provider))
		}
	}

	now := r.clock.NowMillis()
	if err := r.subscriptions.SetStatus(sub.ID, model.SubscriptionStatusActive, nil, nil, now); err != nil {
		return internalErr("resume subscription", err)
	}
	return nil
}

// ownedSubscription loads a subscription and verifies it belongs to userID,
// returning NOT_FOUND rather than leaking whether the id exists under a
// different owner.
func (r *Router) ownedSubscription(userID, subscriptionID string) (*model.Subscription, *ServiceError) {
	sub, err := r.subscriptions.GetByID(subscriptionID)
	if err != nil || sub.UserID != userID {
		return nil, notFound("subscription not found")
	}
	return sub, nil
}

// SyncNowResponse is subscriptions.syncNow's result.
type SyncNowResponse struct {
	ItemsFound int
}

// SyncNow implements subscriptions.syncNow: per-sub rate limit of 1 per 5
// minutes via KV, requiring ACTIVE status and an ACTIVE connection.
func (r *Router) SyncNow(ctx context.Context, userID, subscriptionID string) (*SyncNowResponse, *ServiceError) {
	sub, serr := r.ownedSubscription(userID, subscriptionID)
	if serr != nil {
		return nil, serr
	}
	if sub.Status != model.SubscriptionStatusActive {
		return nil, preconditionFailed("subscription is not active")
	}

	if _, ok := r.kv.TryLock(manualSyncKey(sub.ID), manualSyncTTL); !ok {
		return nil, tooManyRequests("sync already requested in the last 5 minutes")
	}

	if sub.Provider != model.ProviderRSS {
		if !r.rateLimiter.Allow(sub.Provider, userID) {
			return nil, tooManyRequests("outbound rate limit reached")
		}
	}

	result := r.syncOne(ctx, userID, sub)
	if result.Err != nil {
		return nil, internalErr("sync subscription", result.Err)
	}
	return &SyncNowResponse{ItemsFound: result.NewItems}, nil
}

func (r *Router) syncOne(ctx context.Context, userID string, sub *model.Subscription) poller.SubscriptionResult {
	switch sub.Provider {
	case model.ProviderYouTube:
		accessToken, err := r.tokens.GetValidToken(ctx, userID, model.ProviderYouTube)
		if err != nil {
			return poller.SubscriptionResult{SubscriptionID: sub.ID, Err: err}
		}
		client, err := youtube.NewClient(ctx, accessToken)
		if err != nil {
			return poller.SubscriptionResult{SubscriptionID: sub.ID, Err: err}
		}
		return r.youtubePoller.PollSingle(ctx, sub, userID, client)
	case model.ProviderSpotify:
		accessToken, err := r.tokens.GetValidToken(ctx, userID, model.ProviderSpotify)
		if err != nil {
			return poller.SubscriptionResult{SubscriptionID: sub.ID, Err: err}
		}
		client := spotify.NewClient(accessToken)
		return r.spotifyPoller.PollSingle(ctx, sub, userID, client)
	case model.ProviderRSS:
		client := rss.NewClient()
		return r.rssPoller.PollSingle(ctx, sub, userID, client)
	default:
		return poller.SubscriptionResult{SubscriptionID: sub.ID}
	}
}

// SyncAllResponse is subscriptions.syncAll's result.
type SyncAllResponse struct {
	Success       bool
	Synced        int
	ItemsFound    int
	Errors        []string
	HasMoreToSync bool
	Remaining     int
}

// SyncAll implements subscriptions.syncAll: per-user rate limit of 1 per 2
// minutes, grouped by provider and sorted oldest-lastPolledAt-first (null
// first), capped at 20 YouTube / 30 Spotify subscriptions per invocation.
func (r *Router) SyncAll(ctx context.Context, userID string) (*SyncAllResponse, *ServiceError) {
	if _, ok := r.kv.TryLock(syncAllKey(userID), syncAllTTL); !ok {
		return nil, tooManyRequests("sync-all already requested in the last 2 minutes")
	}

	active := model.SubscriptionStatusActive
	subs, err := r.subscriptions.ListByUser(userID, nil, &active, "", 1000)
	if err != nil {
		return nil, internalErr("list subscriptions", err)
	}

	byProvider := map[model.Provider][]*model.Subscription{}
	for i := range subs {
		s := &subs[i]
		byProvider[s.Provider] = append(byProvider[s.Provider], s)
	}
	for _, group := range byProvider {
		sortByLastPolledAtAsc(group)
	}

	total := len(subs)
	resp := &SyncAllResponse{Success: true}
	processed := 0

	if yt := byProvider[model.ProviderYouTube]; len(yt) > 0 {
		capped := yt
		if len(capped) > youtubeSyncAllCap {
			capped = capped[:youtubeSyncAllCap]
		}
		processed += len(capped)
		r.syncProviderBatch(ctx, userID, model.ProviderYouTube, capped, resp)
	}
	if sp := byProvider[model.ProviderSpotify]; len(sp) > 0 {
		capped := sp
		if len(capped) > spotifySyncAllCap {
			capped = capped[:spotifySyncAllCap]
		}
		processed += len(capped)
		r.syncProviderBatch(ctx, userID, model.ProviderSpotify, capped, resp)
	}
	if rssSubs := byProvider[model.ProviderRSS]; len(rssSubs) > 0 {
		processed += len(rssSubs)
		client := rss.NewClient()
		for _, sub := range rssSubs {
			result := r.rssPoller.PollSingle(ctx, sub, userID, client)
			r.accumulate(resp, result)
		}
	}

	resp.Remaining = total - processed
	resp.HasMoreToSync = resp.Remaining > 0
	return resp, nil
}

func (r *Router) syncProviderBatch(ctx context.Context, userID string, p model.Provider, subs []*model.Subscription, resp *SyncAllResponse) {
	accessToken, err := r.tokens.GetValidToken(ctx, userID, p)
	if err != nil {
		resp.Errors = append(resp.Errors, string(p)+": "+err.Error())
		return
	}

	var results []poller.SubscriptionResult
	switch p {
	case model.ProviderYouTube:
		client, err := youtube.NewClient(ctx, accessToken)
		if err != nil {
			resp.Errors = append(resp.Errors, string(p)+": "+err.Error())
			return
		}
		results = r.youtubePoller.PollBatch(ctx, subs, userID, client)
	case model.ProviderSpotify:
		client := spotify.NewClient(accessToken)
		results = r.spotifyPoller.PollBatch(ctx, subs, userID, client)
	}
	for _, result := range results {
		r.accumulate(resp, result)
	}
}

func (r *Router) accumulate(resp *SyncAllResponse, result poller.SubscriptionResult) {
	if result.Err != nil {
		resp.Errors = append(resp.Errors, result.Err.Error())
		return
	}
	resp.Synced++
	resp.ItemsFound += result.NewItems
}

func sortByLastPolledAtAsc(subs []*model.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i].LastPolledAt, subs[j].LastPolledAt
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return *a < *b
	})
}

// DiscoverItemView is one remote channel/show surfaced by a provider's own
// subscriptions listing or search endpoint, joined against local state.
type DiscoverItemView struct {
	ProviderChannelID string
	Name              string
	ImageURL          string
	Description       string
	ExternalURL       string
	IsSubscribed      bool
}

// DiscoverResponse is discover.available/discover.search's result.
type DiscoverResponse struct {
	Items              []DiscoverItemView
	ConnectionRequired bool
}

// DiscoverAvailable implements subscriptions.discover.available: lists the
// user's own remote subscriptions/saved shows for provider, marking each
// with isSubscribed from local non-UNSUBSCRIBED subscriptions.
func (r *Router) DiscoverAvailable(ctx context.Context, userID string, p model.Provider) (*DiscoverResponse, *ServiceError) {
	if p == model.ProviderRSS {
		return nil, badRequest("rss does not support discovery")
	}

	accessToken, ok := r.validToken(ctx, userID, p)
	if !ok {
		return &DiscoverResponse{ConnectionRequired: true}, nil
	}

	var remote []provider.DiscoverItem
	var err error
	switch p {
	case model.ProviderYouTube:
		client, cerr := youtube.NewClient(ctx, accessToken)
		if cerr != nil {
			return nil, internalErr("build youtube client", cerr)
		}
		remote, err = client.ListMySubscriptions(ctx, maxSearchLimit)
	case model.ProviderSpotify:
		client := spotify.NewClient(accessToken)
		remote, err = client.ListSavedShows(ctx, maxSearchLimit)
	}
	if err != nil {
		return nil, internalErr("list remote subscriptions", err)
	}

	return r.joinLocal(userID, p, remote), nil
}

// DiscoverSearchRequest holds discover.search parameters.
type DiscoverSearchRequest struct {
	Provider model.Provider
	Query    string
	Limit    int
}

// DiscoverSearch implements subscriptions.discover.search.
func (r *Router) DiscoverSearch(ctx context.Context, userID string, req DiscoverSearchRequest) (*DiscoverResponse, *ServiceError) {
	if req.Provider == model.ProviderRSS {
		return nil, badRequest("rss does not support discovery")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, badRequest("query is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	accessToken, ok := r.validToken(ctx, userID, req.Provider)
	if !ok {
		return &DiscoverResponse{ConnectionRequired: true}, nil
	}

	var remote []provider.DiscoverItem
	var err error
	switch req.Provider {
	case model.ProviderYouTube:
		client, cerr := youtube.NewClient(ctx, accessToken)
		if cerr != nil {
			return nil, internalErr("build youtube client", cerr)
		}
		remote, err = client.SearchChannels(ctx, req.Query, limit)
	case model.ProviderSpotify:
		client := spotify.NewClient(accessToken)
		remote, err = client.SearchShows(ctx, req.Query, limit)
	}
	if err != nil {
		return nil, internalErr("search provider", err)
	}

	return r.joinLocal(userID, req.Provider, remote), nil
}

func (r *Router) validToken(ctx context.Context, userID string, p model.Provider) (string, bool) {
	conn, err := r.connections.GetByUserProvider(userID, p)
	if err != nil || conn.Status != model.ConnectionStatusActive {
		return "", false
	}
	accessToken, err := r.tokens.GetValidToken(ctx, userID, p)
	if err != nil {
		return "", false
	}
	return accessToken, true
}

func (r *Router) joinLocal(userID string, p model.Provider, remote []provider.DiscoverItem) *DiscoverResponse {
	subscribed := map[string]bool{}
	if subs, err := r.subscriptions.ListByUser(userID, &p, nil, "", 1000); err == nil {
		for _, s := range subs {
			if s.Status != model.SubscriptionStatusUnsubscribed {
				subscribed[s.ProviderChannelID] = true
			}
		}
	}

	items := make([]DiscoverItemView, 0, len(remote))
	for _, it := range remote {
		items = append(items, DiscoverItemView{
			ProviderChannelID: it.ProviderChannelID, Name: it.Name, ImageURL: it.ImageURL,
			Description: it.Description, ExternalURL: it.ExternalURL,
			IsSubscribed: subscribed[it.ProviderChannelID],
		})
	}
	return &DiscoverResponse{Items: items}
}
