package state

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/ejohane/zine-sub/internal/model"
)

func seedItem(t *testing.T, db *sql.DB, id, providerID string) {
	t.Helper()
	items := NewItemRepo(db)
	if err := items.Insert(model.Item{
		ID: id, ContentType: model.ContentTypeVideo, Provider: model.ProviderYouTube,
		ProviderID: providerID, CanonicalURL: "u", Title: "t", CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestUserItemRepoInsertAndGet(t *testing.T) {
	db := openTestDB(t)
	seedItem(t, db, "it_1", "vid1")
	r := NewUserItemRepo(db)

	ui := model.UserItem{ID: "ui_1", UserID: "u1", ItemID: "it_1", State: model.UserItemStateInbox,
		IngestedAt: 100, CreatedAt: 100, UpdatedAt: 100}
	if err := r.Insert(ui); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := r.GetByKey(model.UserItemKey{UserID: "u1", ItemID: "it_1"})
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.State != model.UserItemStateInbox {
		t.Fatalf("State = %v", got.State)
	}
}

func TestUserItemRepoInsertConflict(t *testing.T) {
	db := openTestDB(t)
	seedItem(t, db, "it_1", "vid1")
	r := NewUserItemRepo(db)

	ui := model.UserItem{ID: "ui_1", UserID: "u1", ItemID: "it_1", State: model.UserItemStateInbox,
		IngestedAt: 100, CreatedAt: 100, UpdatedAt: 100}
	if err := r.Insert(ui); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ui.ID = "ui_2"
	if err := r.Insert(ui); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUserItemRepoDeleteInboxBySubscriptionPreservesBookmarked(t *testing.T) {
	db := openTestDB(t)
	seedItem(t, db, "it_1", "vid1")
	seedItem(t, db, "it_2", "vid2")

	subs := NewSubscriptionRepo(db)
	if err := subs.Insert(model.Subscription{ID: "sub_1", UserID: "u1", Provider: model.ProviderYouTube,
		ProviderChannelID: "UC1", PollIntervalSeconds: 3600, Status: model.SubscriptionStatusActive,
		CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	subItems := NewSubscriptionItemRepo(db)
	if err := subItems.Insert(model.SubscriptionItem{ID: "si_1", SubscriptionID: "sub_1", ItemID: "it_1",
		ProviderItemID: "vid1", FetchedAt: 1}); err != nil {
		t.Fatalf("insert subscription_item: %v", err)
	}
	if err := subItems.Insert(model.SubscriptionItem{ID: "si_2", SubscriptionID: "sub_1", ItemID: "it_2",
		ProviderItemID: "vid2", FetchedAt: 1}); err != nil {
		t.Fatalf("insert subscription_item: %v", err)
	}

	userItems := NewUserItemRepo(db)
	if err := userItems.Insert(model.UserItem{ID: "ui_1", UserID: "u1", ItemID: "it_1",
		State: model.UserItemStateInbox, IngestedAt: 1, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("insert user_item inbox: %v", err)
	}
	if err := userItems.Insert(model.UserItem{ID: "ui_2", UserID: "u1", ItemID: "it_2",
		State: model.UserItemStateBookmarked, IngestedAt: 1, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("insert user_item bookmarked: %v", err)
	}

	if err := userItems.DeleteInboxBySubscription("sub_1"); err != nil {
		t.Fatalf("DeleteInboxBySubscription: %v", err)
	}

	if _, err := userItems.GetByKey(model.UserItemKey{UserID: "u1", ItemID: "it_1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inbox item should be deleted, err = %v", err)
	}
	if _, err := userItems.GetByKey(model.UserItemKey{UserID: "u1", ItemID: "it_2"}); err != nil {
		t.Fatalf("bookmarked item should survive: %v", err)
	}
}
