package kv

import (
	"testing"
	"time"
)

func TestMemStoreTryLock(t *testing.T) {
	s := NewMemStore()

	release, ok := s.TryLock("cron:poll-subscriptions:lock", time.Minute)
	if !ok {
		t.Fatal("expected first lock acquisition to succeed")
	}

	if _, ok := s.TryLock("cron:poll-subscriptions:lock", time.Minute); ok {
		t.Fatal("expected second lock acquisition to fail while held")
	}

	release()

	if _, ok := s.TryLock("cron:poll-subscriptions:lock", time.Minute); !ok {
		t.Fatal("expected lock acquisition to succeed after release")
	}
}

func TestMemStoreTryLockExpires(t *testing.T) {
	s := NewMemStore()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }

	if _, ok := s.TryLock("k", time.Second); !ok {
		t.Fatal("expected initial lock to succeed")
	}

	fakeNow = fakeNow.Add(2 * time.Second)

	if _, ok := s.TryLock("k", time.Second); !ok {
		t.Fatal("expected lock to be acquirable again after TTL expiry")
	}
}

func TestMemStoreIncr(t *testing.T) {
	s := NewMemStore()
	key := "poll:failures:sub1"

	for want := int64(1); want <= 3; want++ {
		got := s.Incr(key, 24*time.Hour)
		if got != want {
			t.Fatalf("Incr() = %d, want %d", got, want)
		}
	}

	s.Reset(key)
	if got := s.Incr(key, 24*time.Hour); got != 1 {
		t.Fatalf("Incr() after Reset = %d, want 1", got)
	}
}

func TestMemStoreIncrExpiresWindow(t *testing.T) {
	s := NewMemStore()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }
	key := "poll:failures:sub1"

	if got := s.Incr(key, time.Hour); got != 1 {
		t.Fatalf("Incr() = %d, want 1", got)
	}
	fakeNow = fakeNow.Add(2 * time.Hour)
	if got := s.Incr(key, time.Hour); got != 1 {
		t.Fatalf("Incr() after window expiry = %d, want 1 (counter should reset)", got)
	}
}

func TestMemStoreGetSetDel(t *testing.T) {
	s := NewMemStore()

	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected Get on missing key to report not-ok")
	}

	s.Set("show:abc", "cached-value", time.Minute)
	v, ok := s.Get("show:abc")
	if !ok || v != "cached-value" {
		t.Fatalf("Get() = %v, %v; want cached-value, true", v, ok)
	}

	s.Del("show:abc")
	if _, ok := s.Get("show:abc"); ok {
		t.Fatal("expected Get after Del to report not-ok")
	}
}

func TestMemStoreSetExpires(t *testing.T) {
	s := NewMemStore()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }

	s.Set("k", "v", time.Minute)
	fakeNow = fakeNow.Add(2 * time.Minute)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected expired entry to be absent")
	}
}
