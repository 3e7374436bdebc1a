package localcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cache", "fuel.db"))
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntry(odometer float64) fuel.Entry {
	now := time.Date(2025, 12, 29, 10, 30, 0, 123456789, time.UTC)
	return fuel.Entry{
		ID:         uuid.New(),
		Date:       now.Add(-time.Duration(odometer) * time.Minute),
		Odometer:   odometer,
		FuelAmount: 35,
		FuelPrice:  1.6,
		Station:    "Shell",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func sameEntry(a, b fuel.Entry) bool {
	return a.ID == b.ID &&
		a.Date.Equal(b.Date) &&
		a.Odometer == b.Odometer &&
		a.FuelAmount == b.FuelAmount &&
		a.FuelPrice == b.FuelPrice &&
		a.Station == b.Station &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func TestStore_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, second := testEntry(10000), testEntry(10500)
	second.Station = ""
	for _, e := range []fuel.Entry{first, second} {
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("UpsertEntry: %v", err)
		}
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !sameEntry(entries[0], first) {
		t.Errorf("Expected %+v, got %+v", first, entries[0])
	}
	if !sameEntry(entries[1], second) {
		t.Errorf("Expected %+v, got %+v", second, entries[1])
	}
}

func TestStore_UpsertKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, second := testEntry(10000), testEntry(10500)
	_ = s.UpsertEntry(ctx, first)
	_ = s.UpsertEntry(ctx, second)

	first.FuelPrice = 1.75
	if err := s.UpsertEntry(ctx, first); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != first.ID {
		t.Fatalf("Expected updated entry to keep its position, got %+v", entries)
	}
	if entries[0].FuelPrice != 1.75 {
		t.Errorf("Expected price 1.75, got %v", entries[0].FuelPrice)
	}
}

func TestStore_DeleteEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := testEntry(10000)
	_ = s.UpsertEntry(ctx, e)
	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if err := s.DeleteEntry(ctx, uuid.New()); err != nil {
		t.Errorf("Expected deleting a missing entry to succeed, got %v", err)
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", entries)
	}
}

func TestStore_ReplaceEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.UpsertEntry(ctx, testEntry(9000))

	replacement := []fuel.Entry{testEntry(11000), testEntry(10000)}
	if err := s.ReplaceEntries(ctx, replacement); err != nil {
		t.Fatalf("ReplaceEntries: %v", err)
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for i := range replacement {
		if entries[i].ID != replacement[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, replacement[i].ID, entries[i].ID)
		}
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fuel.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e := testEntry(10000)
	if err := s.UpsertEntry(ctx, e); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	_ = s.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 1 || !sameEntry(entries[0], e) {
		t.Errorf("Expected cached entry to survive reopen, got %+v", entries)
	}
}
