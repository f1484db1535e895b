package state

import (
	"errors"
	"testing"

	"github.com/ejohane/zine-sub/internal/model"
)

func TestUserNotificationRepoInsertDedupsActiveSlot(t *testing.T) {
	db := openTestDB(t)
	r := NewUserNotificationRepo(db)

	provider := model.ProviderYouTube
	n := model.UserNotification{ID: "n_1", UserID: "u1", Type: model.NotificationTypeConnectionExpired,
		Provider: &provider, Title: "t", Message: "m", CreatedAt: 1}
	if err := r.Insert(n); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n.ID = "n_2"
	if err := r.Insert(n); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate active notification: err = %v, want ErrConflict", err)
	}
}

func TestUserNotificationRepoResolveFreesSlot(t *testing.T) {
	db := openTestDB(t)
	r := NewUserNotificationRepo(db)

	provider := model.ProviderYouTube
	key := model.NotificationKey{UserID: "u1", Type: model.NotificationTypeConnectionExpired, Provider: &provider}

	n := model.UserNotification{ID: "n_1", UserID: "u1", Type: model.NotificationTypeConnectionExpired,
		Provider: &provider, Title: "t", Message: "m", CreatedAt: 1}
	if err := r.Insert(n); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := r.Resolve(key, 50); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	n.ID = "n_2"
	n.CreatedAt = 60
	if err := r.Insert(n); err != nil {
		t.Fatalf("Insert after resolve: %v", err)
	}

	active, err := r.GetActiveByKey(key)
	if err != nil {
		t.Fatalf("GetActiveByKey: %v", err)
	}
	if active.ID != "n_2" {
		t.Fatalf("active.ID = %q, want n_2", active.ID)
	}
}

func TestUserNotificationRepoGetActiveByKeyNotFound(t *testing.T) {
	db := openTestDB(t)
	r := NewUserNotificationRepo(db)

	_, err := r.GetActiveByKey(model.NotificationKey{UserID: "u1", Type: model.NotificationTypeQuotaWarning})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserNotificationRepoMarkRead(t *testing.T) {
	db := openTestDB(t)
	r := NewUserNotificationRepo(db)

	n := model.UserNotification{ID: "n_1", UserID: "u1", Type: model.NotificationTypeQuotaWarning,
		Title: "t", Message: "m", CreatedAt: 1}
	if err := r.Insert(n); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.MarkRead("n_1", 10); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	list, err := r.ListByUser("u1", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].ReadAt == nil || *list[0].ReadAt != 10 {
		t.Fatalf("list = %+v", list)
	}
}
