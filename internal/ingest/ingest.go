// Package ingest implements the Ingestion Core: the single path by which a
// decoded provider item becomes a canonical Item, a linked Creator, and a
// per-user UserItem, gated by the cross-resubscribe idempotency check.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/maypok86/otter"

	"github.com/ejohane/zine-sub/internal/clock"
	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/state"
)

// creatorCacheSize bounds the in-process creator-id cache: one poll run
// touches at most a few hundred distinct creators, so this comfortably
// covers a busy deployment's whole working set.
const creatorCacheSize = 10_000

// Result reports what ingestItem actually did, so callers can track
// per-run success counts without re-deriving them from error values.
type Result struct {
	Created    bool
	ItemID     string
	UserItemID string
	Skipped    string // "already_seen" | "user_item_exists" | ""
}

// Core wires together the repos the ingestion path touches.
type Core struct {
	seen          *state.ProviderItemsSeenRepo
	items         *state.ItemRepo
	creators      *state.CreatorRepo
	userItems     *state.UserItemRepo
	subItems      *state.SubscriptionItemRepo
	dlq           *state.DeadLetterQueueRepo
	ids           *clock.IDGenerator
	clock         clock.Clock
	creatorCache  otter.Cache[string, string]
}

// New creates a Core over the given repos.
func New(
	seen *state.ProviderItemsSeenRepo,
	items *state.ItemRepo,
	creators *state.CreatorRepo,
	userItems *state.UserItemRepo,
	subItems *state.SubscriptionItemRepo,
	dlq *state.DeadLetterQueueRepo,
	ids *clock.IDGenerator,
	c clock.Clock,
) *Core {
	if c == nil {
		c = clock.System{}
	}
	creatorCache, err := otter.MustBuilder[string, string](creatorCacheSize).
		Cost(func(_ string, _ string) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("ingest: failed to create creator cache: " + err.Error())
	}
	return &Core{seen: seen, items: items, creators: creators, userItems: userItems,
		subItems: subItems, dlq: dlq, ids: ids, clock: c, creatorCache: creatorCache}
}

// DeriveCreatorID computes the synthetic id used for providers that lack a
// native creator id (RSS/WEB): the first 32 hex chars of SHA-256 of
// "{provider}:{lowercase(trim(name))}".
func DeriveCreatorID(p model.Provider, name string) string {
	key := fmt.Sprintf("%s:%s", p, strings.ToLower(strings.TrimSpace(name)))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

// IngestItem runs the idempotency-gate/upsert/find-or-create/insert sequence
// for a single decoded item, scoped to one user and the subscription that
// surfaced it.
func (c *Core) IngestItem(userID, subscriptionID string, p model.Provider, item provider.DecodedItem) (Result, error) {
	now := c.clock.NowMillis()

	sourceID := subscriptionID
	if err := c.seen.Insert(model.ProviderItemsSeen{
		ID: c.ids.New(), UserID: userID, Provider: p, ProviderItemID: item.ProviderID,
		SourceID: &sourceID, FirstSeenAt: now,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return Result{Skipped: "already_seen"}, nil
		}
		return Result{}, provider.NewError(provider.KindInternal, fmt.Errorf("ingest: record seen: %w", err))
	}

	itemID, err := c.upsertItem(userID, subscriptionID, p, item, now)
	if err != nil {
		c.writeDLQ(subscriptionID, userID, p, item, err)
		return Result{}, err
	}

	userItemID := c.ids.New()
	if err := c.userItems.Insert(model.UserItem{
		ID: userItemID, UserID: userID, ItemID: itemID, State: model.UserItemStateInbox,
		IngestedAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return Result{Skipped: "user_item_exists"}, nil
		}
		wrapped := provider.NewError(provider.KindInternal, fmt.Errorf("ingest: insert user_item: %w", err))
		c.writeDLQ(subscriptionID, userID, p, item, wrapped)
		return Result{}, wrapped
	}

	if err := c.subItems.Insert(model.SubscriptionItem{
		ID: c.ids.New(), SubscriptionID: subscriptionID, ItemID: itemID,
		ProviderItemID: item.ProviderID, PublishedAt: item.PublishedAt, FetchedAt: now,
	}); err != nil && !errors.Is(err, state.ErrConflict) {
		wrapped := provider.NewError(provider.KindInternal, fmt.Errorf("ingest: insert subscription_item: %w", err))
		c.writeDLQ(subscriptionID, userID, p, item, wrapped)
		return Result{}, wrapped
	}

	return Result{Created: true, ItemID: itemID, UserItemID: userItemID}, nil
}

// upsertItem resolves the canonical Item row, finding-or-creating its
// Creator, and returns the item's id.
func (c *Core) upsertItem(userID, subscriptionID string, p model.Provider, item provider.DecodedItem, now int64) (string, error) {
	existing, err := c.items.GetByKey(model.ItemKey{Provider: p, ProviderID: item.ProviderID})
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: lookup item: %w", err))
	}

	var creatorID *string
	if item.CreatorProviderID != "" || item.CreatorName != "" {
		id, err := c.findOrCreateCreator(p, item, now)
		if err != nil {
			return "", err
		}
		creatorID = &id
	}

	newID := c.ids.New()
	if err := c.items.Insert(model.Item{
		ID: newID, ContentType: item.ContentType, Provider: p, ProviderID: item.ProviderID,
		CanonicalURL: item.CanonicalURL, Title: item.Title, ThumbnailURL: item.ThumbnailURL,
		CreatorID: creatorID, Duration: item.Duration, PublishedAt: item.PublishedAt,
		Summary: item.Summary, RawMetadata: item.RawMetadata, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			existing, err := c.items.GetByKey(model.ItemKey{Provider: p, ProviderID: item.ProviderID})
			if err != nil {
				return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: reload item after conflict: %w", err))
			}
			return existing.ID, nil
		}
		return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: insert item: %w", err))
	}
	return newID, nil
}

func (c *Core) findOrCreateCreator(p model.Provider, item provider.DecodedItem, now int64) (string, error) {
	creatorProviderID := item.CreatorProviderID
	if creatorProviderID == "" {
		creatorProviderID = DeriveCreatorID(p, item.CreatorName)
	}
	cacheKey := creatorCacheKey(p, creatorProviderID)
	if id, ok := c.creatorCache.Get(cacheKey); ok {
		return id, nil
	}

	existing, err := c.creators.GetByKey(model.CreatorKey{Provider: p, ProviderCreatorID: creatorProviderID})
	if err == nil {
		if err := c.creators.UpdateNameAndFillNulls(model.Creator{
			ID: existing.ID, Name: item.CreatorName, ImageURL: item.CreatorImageURL,
			Handle: item.CreatorHandle, ExternalURL: item.CreatorExternalURL, UpdatedAt: now,
		}); err != nil {
			return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: update creator: %w", err))
		}
		c.creatorCache.Set(cacheKey, existing.ID)
		return existing.ID, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: lookup creator: %w", err))
	}

	newID := c.ids.New()
	normalized := strings.ToLower(strings.TrimSpace(item.CreatorName))
	if err := c.creators.Insert(model.Creator{
		ID: newID, Provider: p, ProviderCreatorID: creatorProviderID, Name: item.CreatorName,
		NormalizedName: normalized, ImageURL: item.CreatorImageURL, Handle: item.CreatorHandle,
		ExternalURL: item.CreatorExternalURL, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			existing, err := c.creators.GetByKey(model.CreatorKey{Provider: p, ProviderCreatorID: creatorProviderID})
			if err != nil {
				return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: reload creator after conflict: %w", err))
			}
			c.creatorCache.Set(cacheKey, existing.ID)
			return existing.ID, nil
		}
		return "", provider.NewError(provider.KindInternal, fmt.Errorf("ingest: insert creator: %w", err))
	}
	c.creatorCache.Set(cacheKey, newID)
	return newID, nil
}

func creatorCacheKey(p model.Provider, creatorProviderID string) string {
	return string(p) + ":" + creatorProviderID
}

// ResolveCreator finds or creates the Creator row for a provider channel
// directly, without an ingested item. Used by the operations router to seed
// display fields (name/imageUrl) at subscribe time, ahead of the first
// ingestion pass.
func (c *Core) ResolveCreator(p model.Provider, providerChannelID, name string, imageURL *string) (string, error) {
	now := c.clock.NowMillis()
	return c.findOrCreateCreator(p, provider.DecodedItem{
		CreatorProviderID: providerChannelID,
		CreatorName:       name,
		CreatorImageURL:   imageURL,
	}, now)
}

// writeDLQ records a failed item. The ProviderItemsSeen row planted before
// this call remains, preventing retry storms; the DLQ is the recovery path.
func (c *Core) writeDLQ(subscriptionID, userID string, p model.Provider, item provider.DecodedItem, cause error) {
	rawData := item.ProviderID
	if item.RawMetadata != nil {
		rawData = *item.RawMetadata
	}
	subID := subscriptionID
	errType := "internal"
	var pe *provider.Error
	if errors.As(cause, &pe) {
		errType = fmt.Sprintf("kind_%d", pe.Kind)
	}
	_ = c.dlq.Insert(model.DeadLetterQueue{
		ID: c.ids.New(), SubscriptionID: &subID, UserID: userID, Provider: p, ProviderID: item.ProviderID,
		RawData: rawData, ErrorMessage: cause.Error(), ErrorType: &errType,
		Status: model.DLQStatusPending, CreatedAt: c.clock.NowMillis(),
	})
}
