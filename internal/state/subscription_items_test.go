package state

import (
	"errors"
	"testing"

	"github.com/ejohane/zine-sub/internal/model"
)

func TestSubscriptionItemRepoInsertAndCount(t *testing.T) {
	db := openTestDB(t)
	seedItem(t, db, "it_1", "vid1")
	seedItem(t, db, "it_2", "vid2")

	subs := NewSubscriptionRepo(db)
	if err := subs.Insert(model.Subscription{ID: "sub_1", UserID: "u1", Provider: model.ProviderYouTube,
		ProviderChannelID: "UC1", PollIntervalSeconds: 3600, Status: model.SubscriptionStatusActive,
		CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	r := NewSubscriptionItemRepo(db)
	if err := r.Insert(model.SubscriptionItem{ID: "si_1", SubscriptionID: "sub_1", ItemID: "it_1",
		ProviderItemID: "vid1", FetchedAt: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(model.SubscriptionItem{ID: "si_2", SubscriptionID: "sub_1", ItemID: "it_2",
		ProviderItemID: "vid2", FetchedAt: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := r.CountBySubscription("sub_1")
	if err != nil {
		t.Fatalf("CountBySubscription: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestSubscriptionItemRepoInsertConflict(t *testing.T) {
	db := openTestDB(t)
	seedItem(t, db, "it_1", "vid1")
	subs := NewSubscriptionRepo(db)
	if err := subs.Insert(model.Subscription{ID: "sub_1", UserID: "u1", Provider: model.ProviderYouTube,
		ProviderChannelID: "UC1", PollIntervalSeconds: 3600, Status: model.SubscriptionStatusActive,
		CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	r := NewSubscriptionItemRepo(db)
	si := model.SubscriptionItem{ID: "si_1", SubscriptionID: "sub_1", ItemID: "it_1", ProviderItemID: "vid1", FetchedAt: 1}
	if err := r.Insert(si); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	si.ID = "si_2"
	if err := r.Insert(si); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}
