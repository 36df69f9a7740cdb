package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/meterly/antifraud/internal/testutil"
)

func TestPostgresStoreRecordOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	ev := Event{
		ID:        "evt_pg_1",
		AccountID: "acc_pg_1",
		Type:      TypeSignupFinalized,
		Payload:   json.RawMessage(`{"decision":"allow"}`),
		CreatedAt: time.Now().UTC(),
	}

	created, err := store.RecordOnce(ctx, ev)
	if err != nil {
		t.Fatalf("RecordOnce: %v", err)
	}
	if !created {
		t.Fatal("First record should create")
	}

	dup := ev
	dup.ID = "evt_pg_2"
	created, err = store.RecordOnce(ctx, dup)
	if err != nil {
		t.Fatalf("RecordOnce duplicate: %v", err)
	}
	if created {
		t.Error("Duplicate (account, type) must not create")
	}

	got, err := store.Get(ctx, "acc_pg_1", TypeSignupFinalized)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "evt_pg_1" {
		t.Errorf("Original event should survive, got %s", got.ID)
	}
	if string(got.Payload) == "" {
		t.Error("Payload should round-trip")
	}
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)

	_, err := store.Get(context.Background(), "acc_missing", TypeSignupFinalized)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
