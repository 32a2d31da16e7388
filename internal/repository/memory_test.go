package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func TestMemoryViewStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryViewStore()

	view := domain.NewTicketView("sid-1", "42", domain.SessionUser{EmpID: "E-1", Role: domain.RoleAdmin})
	view.Loaded(&domain.Ticket{ID: "42", Status: domain.TicketStatusOpen}, time.Now())
	view.ResolveRemark = "draft"
	if err := store.Save(ctx, view, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1", "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.ViewStateLoaded || got.Ticket.Status != domain.TicketStatusOpen || got.ResolveRemark != "draft" {
		t.Errorf("view = %+v", got)
	}

	// Mutating the returned copy must not leak into the store.
	got.Ticket.Status = domain.TicketStatusResolved
	again, _ := store.Get(ctx, "sid-1", "42")
	if again.Ticket.Status != domain.TicketStatusOpen {
		t.Errorf("stored status changed to %q", again.Ticket.Status)
	}

	if _, err := store.Get(ctx, "sid-2", "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other session err = %v", err)
	}
	if err := store.Delete(ctx, "sid-1", "42"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "sid-1", "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}

func TestMemoryViewStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryViewStore().(*memoryViewStore)
	now := time.Now()
	store.now = func() time.Time { return now }

	view := domain.NewTicketView("sid", "1", domain.SessionUser{})
	if err := store.Save(ctx, view, time.Minute); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "sid", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired view err = %v", err)
	}
}

func TestMemoryViewStoreLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryViewStore().(*memoryViewStore)
	now := time.Now()
	store.now = func() time.Time { return now }

	first, ok, _ := store.Lock(ctx, "sid", "1", time.Minute)
	if !ok || first == "" {
		t.Fatal("first lock should succeed")
	}
	if _, ok, _ := store.Lock(ctx, "sid", "1", time.Minute); ok {
		t.Fatal("second lock should fail while held")
	}
	if _, ok, _ := store.Lock(ctx, "sid", "2", time.Minute); !ok {
		t.Fatal("lock on another ticket should succeed")
	}
	if err := store.Unlock(ctx, "sid", "1", first); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lock(ctx, "sid", "1", time.Minute); !ok {
		t.Fatal("lock after unlock should succeed")
	}
}

func TestMemoryViewStoreUnlockKeepsNewerHolder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryViewStore().(*memoryViewStore)
	now := time.Now()
	store.now = func() time.Time { return now }

	stale, _, _ := store.Lock(ctx, "sid", "1", time.Minute)
	now = now.Add(2 * time.Minute)
	current, ok, _ := store.Lock(ctx, "sid", "1", time.Minute)
	if !ok {
		t.Fatal("expired lock should be taken over")
	}

	// The first holder finishing late must not release the takeover.
	if err := store.Unlock(ctx, "sid", "1", stale); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lock(ctx, "sid", "1", time.Minute); ok {
		t.Fatal("stale token released the current lock")
	}
	if err := store.Unlock(ctx, "sid", "1", current); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lock(ctx, "sid", "1", time.Minute); !ok {
		t.Fatal("lock after the current holder released should succeed")
	}
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	session := &domain.Session{
		ID:        "sid",
		User:      domain.SessionUser{EmpID: "E-1", Role: domain.RoleEmployee},
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "sid")
	if err != nil || got.User.EmpID != "E-1" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if err := store.Delete(ctx, "sid"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "sid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}

	expired := &domain.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}
	if err := store.Save(ctx, expired); err == nil {
		t.Error("saving an expired session should fail")
	}
}

func TestMemoryActionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryActionRepository(3)
	for i := 0; i < 5; i++ {
		ticketID := "A"
		if i%2 == 1 {
			ticketID = "B"
		}
		err := repo.Create(ctx, &domain.TicketAction{ID: fmt.Sprint(i), TicketID: ticketID, Action: domain.ActionResolve})
		if err != nil {
			t.Fatal(err)
		}
	}

	// Capacity 3 keeps entries 2, 3, 4; newest first.
	got, err := repo.ListByTicket(ctx, "A", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "4" || got[1].ID != "2" {
		t.Errorf("ListByTicket(A) = %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	limited, _ := repo.ListByTicket(ctx, "A", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d entries", len(limited))
	}
	none, _ := repo.ListByTicket(ctx, "C", 10)
	if none == nil || len(none) != 0 {
		t.Errorf("unknown ticket = %#v", none)
	}
}
