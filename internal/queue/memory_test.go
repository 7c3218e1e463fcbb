package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestItem(priority Priority, scheduledFor time.Time) *Item {
	return &Item{
		ID:           uuid.New(),
		UserID:       "user-1",
		Payload:      []byte(`{"title":"hi"}`),
		ScheduledFor: scheduledFor,
		Priority:     priority,
		MaxRetries:   3,
		Status:       StatusPending,
		CreatedAt:    baseTime,
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	item := newTestItem(PriorityNormal, baseTime)
	if err := s.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != item.ID || got.UserID != item.UserID || got.Status != StatusPending {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// Mutating the returned copy must not touch the stored item.
	got.Status = StatusSent
	again, _ := s.Get(ctx, item.ID)
	if again.Status != StatusPending {
		t.Error("store returned an aliased item")
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), newTestItem(PriorityNormal, baseTime))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListDueOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	low := newTestItem(PriorityLow, baseTime)
	urgent := newTestItem(PriorityUrgent, baseTime)
	normalEarly := newTestItem(PriorityNormal, baseTime.Add(-time.Hour))
	normalLate := newTestItem(PriorityNormal, baseTime.Add(-time.Minute))
	future := newTestItem(PriorityUrgent, baseTime.Add(time.Hour))
	sent := newTestItem(PriorityUrgent, baseTime)
	sent.Status = StatusSent

	for _, item := range []*Item{low, urgent, normalEarly, normalLate, future, sent} {
		if err := s.Create(ctx, item); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	due, err := s.ListDue(ctx, baseTime, 0)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}

	wantOrder := []uuid.UUID{urgent.ID, normalEarly.ID, normalLate.ID, low.ID}
	if len(due) != len(wantOrder) {
		t.Fatalf("expected %d due items, got %d", len(wantOrder), len(due))
	}
	for i, want := range wantOrder {
		if due[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, due[i].ID)
		}
	}

	capped, err := s.ListDue(ctx, baseTime, 2)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(capped) != 2 || capped[0].ID != urgent.ID {
		t.Errorf("expected capped list led by urgent item, got %d items", len(capped))
	}
}

func TestMemoryStore_ListPendingByUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	second := newTestItem(PriorityNormal, baseTime.Add(2*time.Hour))
	first := newTestItem(PriorityNormal, baseTime.Add(time.Hour))
	other := newTestItem(PriorityNormal, baseTime)
	other.UserID = "user-2"
	done := newTestItem(PriorityNormal, baseTime)
	done.Status = StatusSent

	for _, item := range []*Item{second, first, other, done} {
		_ = s.Create(ctx, item)
	}

	got, err := s.ListPendingByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPendingByUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Error("pending items not ordered by scheduled time")
	}
}

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	item := newTestItem(PriorityNormal, baseTime)
	_ = s.Create(ctx, item)

	claimed, err := s.Claim(ctx, item.ID, baseTime)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", claimed.Status)
	}
	if claimed.LastAttempt == nil || !claimed.LastAttempt.Equal(baseTime) {
		t.Error("claim did not record the attempt time")
	}

	if _, err := s.Claim(ctx, item.ID, baseTime); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("expected ErrNotClaimable on double claim, got %v", err)
	}
	if _, err := s.Claim(ctx, uuid.New(), baseTime); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CountAndPurge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	pending := newTestItem(PriorityNormal, baseTime)
	sent := newTestItem(PriorityNormal, baseTime)
	sent.Status = StatusSent
	failed := newTestItem(PriorityNormal, baseTime)
	failed.Status = StatusFailed
	cancelled := newTestItem(PriorityNormal, baseTime)
	cancelled.Status = StatusCancelled

	for _, item := range []*Item{pending, sent, failed, cancelled} {
		_ = s.Create(ctx, item)
	}

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	for _, status := range []Status{StatusPending, StatusSent, StatusFailed, StatusCancelled} {
		if counts[status] != 1 {
			t.Errorf("expected 1 %s item, got %d", status, counts[status])
		}
	}

	removed, err := s.PurgeTerminal(ctx)
	if err != nil {
		t.Fatalf("PurgeTerminal failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 purged, got %d", removed)
	}
	if _, err := s.Get(ctx, pending.ID); err != nil {
		t.Error("purge removed a pending item")
	}
	if _, err := s.Get(ctx, sent.ID); !errors.Is(err, ErrNotFound) {
		t.Error("purge left a sent item behind")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	item := newTestItem(PriorityNormal, baseTime)
	_ = s.Create(ctx, item)

	if err := s.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
