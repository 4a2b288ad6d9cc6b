package registration_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	registrationstore "coursebook/internal/adapters/storage/registration"
	"coursebook/internal/adapters/storage/storagetest"
	"coursebook/internal/domain/registration"
)

// TestSQLiteStore_SaveAndList tests the failed-lesson JSON column survives storage.
func TestSQLiteStore_SaveAndList(t *testing.T) {
	db := storagetest.OpenMemory(t)
	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	storagetest.SeedLesson(t, db, "c1", "l1", 2, at)
	store := registrationstore.NewSQLiteStore(db)
	ctx := context.Background()

	want := registration.CourseRegistration{
		ID:            "r1",
		CourseID:      "c1",
		CustomerID:    "u1",
		Kind:          registration.KindEnroll,
		Succeeded:     2,
		Failed:        1,
		FailedLessons: []registration.LessonFailure{{LessonID: "l3", Reason: "lesson.full"}},
		CreatedAt:     at,
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	empty := registration.CourseRegistration{ID: "r2", CourseID: "c1", CustomerID: "u1", Kind: registration.KindUnenroll, CreatedAt: at.Add(time.Hour)}
	if err := store.Save(ctx, empty); err != nil {
		t.Fatalf("Save(empty) = %v", err)
	}

	got, err := store.ListByCustomer(ctx, "u1")
	if err != nil || len(got) != 2 {
		t.Fatalf("ListByCustomer() = %d, %v", len(got), err)
	}
	if diff := cmp.Diff(want, got[1]); diff != "" {
		t.Errorf("registration mismatch (-want +got):\n%s", diff)
	}
	if byCourse, _ := store.ListByCourse(ctx, "c1"); len(byCourse) != 2 {
		t.Errorf("ListByCourse() = %d", len(byCourse))
	}
}
