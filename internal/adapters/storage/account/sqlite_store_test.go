package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	accountstore "coursebook/internal/adapters/storage/account"
	"coursebook/internal/adapters/storage/storagetest"
	"coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
)

// TestSQLiteStore_RoundTrip tests saving, lookups and lockout persistence.
func TestSQLiteStore_RoundTrip(t *testing.T) {
	db := storagetest.OpenMemory(t)
	store := accountstore.NewSQLiteStore(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	a := account.Account{ID: "a1", Email: "Admin@Kurse.Example", PasswordHash: "hash", Role: account.RoleAdmin, CreatedAt: now}
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	got, err := store.GetByEmail(ctx, "admin@kurse.example")
	if err != nil || got.ID != "a1" || !got.LockedUntil.IsZero() {
		t.Fatalf("GetByEmail() = %+v, %v", got, err)
	}

	for i := 0; i < account.MaxFailedLogins; i++ {
		got.RecordFailedLogin(now)
	}
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save(locked) = %v", err)
	}
	locked, _ := store.GetByID(ctx, "a1")
	if !locked.IsLocked(now) || locked.FailedLogins != account.MaxFailedLogins {
		t.Errorf("lockout not persisted: %+v", locked)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count() = %d", n)
	}
	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, apperr.ErrAccountNotFound) {
		t.Errorf("GetByID(nope) = %v", err)
	}
}
