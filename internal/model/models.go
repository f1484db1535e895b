// Package model defines the domain structs shared across the persistence
// and service layers.
package model

// ContentType enumerates the kinds of canonical content an Item can be.
type ContentType string

const (
	ContentTypeVideo   ContentType = "VIDEO"
	ContentTypePodcast ContentType = "PODCAST"
	ContentTypeArticle ContentType = "ARTICLE"
	ContentTypePost    ContentType = "POST"
)

// UserItemState enumerates a user's relationship state with an Item.
type UserItemState string

const (
	UserItemStateInbox     UserItemState = "INBOX"
	UserItemStateBookmarked UserItemState = "BOOKMARKED"
	UserItemStateArchived  UserItemState = "ARCHIVED"
)

// SubscriptionStatus enumerates the lifecycle of a Subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive       SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused       SubscriptionStatus = "PAUSED"
	SubscriptionStatusDisconnected SubscriptionStatus = "DISCONNECTED"
	SubscriptionStatusUnsubscribed SubscriptionStatus = "UNSUBSCRIBED"
)

// ConnectionStatus enumerates the lifecycle of a ProviderConnection.
type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "ACTIVE"
	ConnectionStatusExpired ConnectionStatus = "EXPIRED"
	ConnectionStatusRevoked ConnectionStatus = "REVOKED"
)

// NotificationType enumerates the kinds of user-facing notices HM emits.
type NotificationType string

const (
	NotificationTypeConnectionExpired NotificationType = "connection_expired"
	NotificationTypeConnectionRevoked NotificationType = "connection_revoked"
	NotificationTypePollFailures      NotificationType = "poll_failures"
	NotificationTypeQuotaWarning      NotificationType = "quota_warning"
)

// DLQStatus enumerates the lifecycle of a DeadLetterQueue row.
type DLQStatus string

const (
	DLQStatusPending   DLQStatus = "pending"
	DLQStatusRetrying  DLQStatus = "retrying"
	DLQStatusResolved  DLQStatus = "resolved"
	DLQStatusAbandoned DLQStatus = "abandoned"
)

// Provider enumerates the content sources PC speaks to.
type Provider string

const (
	ProviderYouTube Provider = "youtube"
	ProviderSpotify Provider = "spotify"
	ProviderRSS     Provider = "rss"
)

// Creator is the canonical attribution record for content, one row per
// (Provider, ProviderCreatorID).
type Creator struct {
	ID                string  `json:"id"`
	Provider          Provider `json:"provider"`
	ProviderCreatorID string  `json:"providerCreatorId"`
	Name              string  `json:"name"`
	NormalizedName    string  `json:"normalizedName"`
	ImageURL          *string `json:"imageUrl,omitempty"`
	Handle            *string `json:"handle,omitempty"`
	ExternalURL       *string `json:"externalUrl,omitempty"`
	Description       *string `json:"description,omitempty"`
	CreatedAt         int64   `json:"createdAt"`
	UpdatedAt         int64   `json:"updatedAt"`
}

// Item is canonical provider-sourced content, shared across users, one row
// per (Provider, ProviderID).
type Item struct {
	ID           string      `json:"id"`
	ContentType  ContentType `json:"contentType"`
	Provider     Provider    `json:"provider"`
	ProviderID   string      `json:"providerId"`
	CanonicalURL string      `json:"canonicalUrl"`
	Title        string      `json:"title"`
	ThumbnailURL *string     `json:"thumbnailUrl,omitempty"`
	CreatorID    *string     `json:"creatorId,omitempty"`
	Duration     *int64      `json:"duration,omitempty"`
	PublishedAt  *int64      `json:"publishedAt,omitempty"`
	Summary      *string     `json:"summary,omitempty"`
	RawMetadata  *string     `json:"rawMetadata,omitempty"`
	CreatedAt    int64       `json:"createdAt"`
	UpdatedAt    int64       `json:"updatedAt"`
}

// UserItem is a user's relationship with a canonical Item.
type UserItem struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	ItemID           string        `json:"itemId"`
	State            UserItemState `json:"state"`
	IngestedAt       int64         `json:"ingestedAt"`
	BookmarkedAt     *int64        `json:"bookmarkedAt,omitempty"`
	ArchivedAt       *int64        `json:"archivedAt,omitempty"`
	LastOpenedAt     *int64        `json:"lastOpenedAt,omitempty"`
	ProgressPosition *int64        `json:"progressPosition,omitempty"`
	ProgressDuration *int64        `json:"progressDuration,omitempty"`
	IsFinished       bool          `json:"isFinished"`
	FinishedAt       *int64        `json:"finishedAt,omitempty"`
	CreatedAt        int64         `json:"createdAt"`
	UpdatedAt        int64         `json:"updatedAt"`
}

// Subscription is a user's poll target for a single provider channel/show.
type Subscription struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"userId"`
	Provider            Provider            `json:"provider"`
	ProviderChannelID   string              `json:"providerChannelId"`
	CreatorID           *string             `json:"creatorId,omitempty"`
	TotalItems          *int64              `json:"totalItems,omitempty"`
	LastPublishedAt     *int64              `json:"lastPublishedAt,omitempty"`
	LastPolledAt        *int64              `json:"lastPolledAt,omitempty"`
	PollIntervalSeconds int64               `json:"pollIntervalSeconds"`
	Status              SubscriptionStatus  `json:"status"`
	DisconnectedAt      *int64              `json:"disconnectedAt,omitempty"`
	DisconnectedReason  *string             `json:"disconnectedReason,omitempty"`
	CreatedAt           int64               `json:"createdAt"`
	UpdatedAt           int64               `json:"updatedAt"`
}

// SubscriptionItem is pure tracking for delta/dedup, purged on unsubscribe.
type SubscriptionItem struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscriptionId"`
	ItemID         string `json:"itemId"`
	ProviderItemID string `json:"providerItemId"`
	PublishedAt    *int64 `json:"publishedAt,omitempty"`
	FetchedAt      int64  `json:"fetchedAt"`
}

// ProviderItemsSeen is the idempotency gate: a present row suppresses
// re-ingestion even across re-subscribe. Never purged by unsubscribe.
type ProviderItemsSeen struct {
	ID             string   `json:"id"`
	UserID         string   `json:"userId"`
	Provider       Provider `json:"provider"`
	ProviderItemID string   `json:"providerItemId"`
	SourceID       *string  `json:"sourceId,omitempty"`
	FirstSeenAt    int64    `json:"firstSeenAt"`
}

// ProviderConnection holds a user's OAuth connection to a provider. Tokens
// are opaque ciphertext at the persistence boundary; only the token service
// decrypts them.
type ProviderConnection struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Provider        Provider         `json:"provider"`
	ProviderUserID  *string          `json:"providerUserId,omitempty"`
	AccessToken     string           `json:"accessToken"`
	RefreshToken    string           `json:"refreshToken"`
	TokenExpiresAt  int64            `json:"tokenExpiresAt"`
	Scopes          *string          `json:"scopes,omitempty"`
	Status          ConnectionStatus `json:"status"`
	ConnectedAt     int64            `json:"connectedAt"`
	LastRefreshedAt *int64           `json:"lastRefreshedAt,omitempty"`
}

// UserNotification is a user-visible notice; active instances are
// deduplicated per (UserID, Type, Provider).
type UserNotification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	Type       NotificationType `json:"type"`
	Provider   *Provider        `json:"provider,omitempty"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Data       *string          `json:"data,omitempty"`
	ReadAt     *int64           `json:"readAt,omitempty"`
	ResolvedAt *int64           `json:"resolvedAt,omitempty"`
	CreatedAt  int64            `json:"createdAt"`
}

// DeadLetterQueue records items that failed to transform/ingest after all
// inline retries.
type DeadLetterQueue struct {
	ID             string    `json:"id"`
	SubscriptionID *string   `json:"subscriptionId,omitempty"`
	UserID         string    `json:"userId"`
	Provider       Provider  `json:"provider"`
	ProviderID     string    `json:"providerId"`
	RawData        string    `json:"rawData"`
	ErrorMessage   string    `json:"errorMessage"`
	ErrorType      *string   `json:"errorType,omitempty"`
	ErrorStack     *string   `json:"errorStack,omitempty"`
	RetryCount     int       `json:"retryCount"`
	LastRetryAt    *int64    `json:"lastRetryAt,omitempty"`
	Status         DLQStatus `json:"status"`
	CreatedAt      int64     `json:"createdAt"`
}

// SubscriptionKey is the composite uniqueness key for Subscription:
// (userId, provider, providerChannelId).
type SubscriptionKey struct {
	UserID            string
	Provider          Provider
	ProviderChannelID string
}

// ItemKey is the composite uniqueness key for Item: (provider, providerId).
type ItemKey struct {
	Provider   Provider
	ProviderID string
}

// CreatorKey is the composite uniqueness key for Creator:
// (provider, providerCreatorId).
type CreatorKey struct {
	Provider          Provider
	ProviderCreatorID string
}

// UserItemKey is the composite uniqueness key for UserItem: (userId, itemId).
type UserItemKey struct {
	UserID string
	ItemID string
}

// ProviderItemsSeenKey is the composite uniqueness key for ProviderItemsSeen:
// (userId, provider, providerItemId).
type ProviderItemsSeenKey struct {
	UserID         string
	Provider       Provider
	ProviderItemID string
}

// NotificationKey identifies the active-notification dedup slot:
// (userId, type, provider).
type NotificationKey struct {
	UserID   string
	Type     NotificationType
	Provider *Provider
}
