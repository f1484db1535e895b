// Package provider defines the shared provider-client contract: the decoded
// item shape every poller produces, and the error taxonomy pollers use to
// decide whether a failure is retryable, delegated to the health monitor, or
// dropped as a validation failure.
package provider

import (
	"errors"

	"github.com/ejohane/zine-sub/internal/model"
)

// DecodedItem is a provider response narrowed into the shape the ingestion
// core needs, independent of which provider produced it.
type DecodedItem struct {
	ContentType       model.ContentType
	ProviderID        string
	CanonicalURL      string
	Title             string
	ThumbnailURL      *string
	Duration          *int64
	PublishedAt       *int64
	Summary           *string
	RawMetadata       *string
	CreatorProviderID string
	CreatorName       string
	CreatorImageURL   *string
	CreatorHandle     *string
	CreatorExternalURL *string
}

// DiscoverItem is a remote channel/show surfaced by a provider's own
// subscriptions listing or search endpoint, before joining against local
// subscription state to compute isSubscribed.
type DiscoverItem struct {
	ProviderChannelID string
	Name              string
	ImageURL          string
	Description       string
	ExternalURL       string
}

// ErrorKind classifies a provider-facing failure per the taxonomy: kinds,
// not concrete types, so pollers branch on recovery behavior rather than on
// a specific provider SDK's error type.
type ErrorKind int

const (
	// KindTransient covers network errors, 5xx, and bare 429s without a
	// rate-limiter decision already made. Recovery: let the next tick retry.
	KindTransient ErrorKind = iota
	// KindTokenExpired is a 401 on the access token. Recovery: one refresh
	// attempt via the token service, then retry the call once.
	KindTokenExpired
	// KindRefreshInvalid means the provider rejected the refresh token
	// itself (invalid_grant / refresh_token_revoked). Recovery: the health
	// monitor marks the connection EXPIRED.
	KindRefreshInvalid
	// KindAccessRevoked is a 403 with revoke semantics. Recovery: the
	// health monitor marks the connection REVOKED.
	KindAccessRevoked
	// KindRateLimited is an explicit 429 with retry-after, or a local
	// rate-limiter decision. Recovery: skip the group this tick, not an error.
	KindRateLimited
	// KindValidation covers malformed items: missing required fields,
	// unparseable dates. Recovery: drop the item, bump a skip metric.
	KindValidation
	// KindContentUnavailable covers a show/channel missing from a batch
	// response. Recovery: the subscription is disconnected, not an error.
	KindContentUnavailable
	// KindInternal is everything else: DB errors beyond the idempotency
	// gate's expected unique-constraint hit.
	KindInternal
)

// Error wraps a provider-facing failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider Error.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Classify extracts the ErrorKind from err if it (or something it wraps) is
// a *Error, defaulting to KindInternal otherwise.
func Classify(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
