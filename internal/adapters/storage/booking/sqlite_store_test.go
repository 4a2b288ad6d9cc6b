package booking_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingstore "coursebook/internal/adapters/storage/booking"
	"coursebook/internal/adapters/storage/storagetest"
	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/booking"
)

var (
	now        = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	lessonTime = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
)

func newBooking(id, lessonID, customerID, email string, created time.Time) booking.Booking {
	return booking.Booking{
		ID:            id,
		LessonID:      lessonID,
		CustomerID:    customerID,
		CustomerEmail: email,
		CustomerName:  "Name " + id,
		CreatedAt:     created,
	}
}

// counterMatches asserts current_bookings equals the number of confirmed rows.
func counterMatches(t *testing.T, db *sql.DB, lessonID string) int {
	t.Helper()
	var counter, confirmed, capacity int
	if err := db.QueryRow("SELECT current_bookings, max_capacity FROM lesson WHERE id = ?", lessonID).Scan(&counter, &capacity); err != nil {
		t.Fatalf("read lesson: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM booking WHERE lesson_id = ? AND booking_status = 'confirmed'", lessonID).Scan(&confirmed); err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if counter != confirmed {
		t.Errorf("current_bookings = %d, confirmed rows = %d", counter, confirmed)
	}
	if counter > capacity {
		t.Errorf("current_bookings %d exceeds capacity %d", counter, capacity)
	}
	return counter
}

// TestReserve_CapacityOne covers the single-seat example: first booking wins, second is LessonFull.
func TestReserve_CapacityOne(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 1, lessonTime)
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	storagetest.SeedCustomer(t, db, "u2", "Berta", "berta@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	after, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now))
	if err != nil {
		t.Fatalf("first Reserve() = %v", err)
	}
	if after.CurrentBookings != 1 {
		t.Errorf("counter after first booking = %d, want 1", after.CurrentBookings)
	}

	_, err = store.Reserve(ctx, newBooking("b2", "l1", "u2", "berta@kurse.example", now))
	if !errors.Is(err, apperr.ErrLessonFull) {
		t.Errorf("second Reserve() = %v, want ErrLessonFull", err)
	}
	if n := counterMatches(t, db, "l1"); n != 1 {
		t.Errorf("counter = %d, want 1", n)
	}
}

// TestReserve_Errors tests the failure diagnoses and that failures leave the counter untouched.
func TestReserve_Errors(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 5, lessonTime)
	storagetest.SeedLesson(t, db, "c1", "l2", 5, lessonTime.AddDate(0, 0, 7))
	storagetest.Exec(t, db, "UPDATE lesson SET status = 'cancelled' WHERE id = 'l2'")
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}

	tests := []struct {
		name    string
		booking booking.Booking
		want    error
	}{
		{"unknown lesson", newBooking("b2", "nope", "u1", "anna@kurse.example", now), apperr.ErrLessonNotFound},
		{"inactive lesson", newBooking("b3", "l2", "u1", "anna@kurse.example", now), apperr.ErrLessonInactive},
		{"duplicate email", newBooking("b4", "l1", "u1", "anna@kurse.example", now), apperr.ErrDuplicateBooking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Reserve(ctx, tt.booking)
			if !errors.Is(err, tt.want) {
				t.Errorf("Reserve() = %v, want %v", err, tt.want)
			}
		})
	}
	if n := counterMatches(t, db, "l1"); n != 1 {
		t.Errorf("counter after rejected bookings = %d, want 1", n)
	}
}

// TestRelease tests cancellation accounting, idempotence and waitlist promotion.
func TestRelease(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 1, lessonTime)
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	storagetest.SeedCustomer(t, db, "u2", "Berta", "berta@kurse.example")
	storagetest.SeedCustomer(t, db, "u3", "Clara", "clara@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}
	if err := store.AddToWaitlist(ctx, newBooking("w2", "l1", "u2", "berta@kurse.example", now.Add(time.Minute))); err != nil {
		t.Fatalf("AddToWaitlist(w2) = %v", err)
	}
	if err := store.AddToWaitlist(ctx, newBooking("w3", "l1", "u3", "clara@kurse.example", now.Add(2*time.Minute))); err != nil {
		t.Fatalf("AddToWaitlist(w3) = %v", err)
	}

	res, err := store.Release(ctx, "b1", now)
	if err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if res.AlreadyCancelled || res.Booking.Status != booking.StatusCancelled {
		t.Errorf("Release() result = %+v", res)
	}
	if res.Promoted == nil || res.Promoted.ID != "w2" {
		t.Fatalf("Promoted = %+v, want w2 (oldest waitlisted)", res.Promoted)
	}
	if n := counterMatches(t, db, "l1"); n != 1 {
		t.Errorf("counter after promotion = %d, want 1", n)
	}

	again, err := store.Release(ctx, "b1", now)
	if err != nil || !again.AlreadyCancelled {
		t.Errorf("second Release() = %+v, %v; want AlreadyCancelled", again, err)
	}
	if n := counterMatches(t, db, "l1"); n != 1 {
		t.Errorf("counter after no-op release = %d, want 1", n)
	}

	// A waitlisted booking holds no seat; cancelling it leaves the counter alone.
	res, err = store.Release(ctx, "w3", now)
	if err != nil || res.Promoted != nil {
		t.Errorf("Release(waitlist) = %+v, %v", res, err)
	}
	if n := counterMatches(t, db, "l1"); n != 1 {
		t.Errorf("counter after waitlist cancel = %d, want 1", n)
	}

	if _, err := store.Release(ctx, "missing", now); !errors.Is(err, apperr.ErrBookingNotFound) {
		t.Errorf("Release(missing) = %v, want ErrBookingNotFound", err)
	}

	// Rebooking after cancellation is allowed.
	if _, err := store.Release(ctx, "w2", now); err != nil {
		t.Fatalf("Release(w2) = %v", err)
	}
	if _, err := store.Reserve(ctx, newBooking("b5", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Errorf("rebook after cancel = %v", err)
	}
	counterMatches(t, db, "l1")
}

// TestRelease_FloorsCounter verifies a drifted counter never goes negative.
func TestRelease_FloorsCounter(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 3, lessonTime)
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}
	storagetest.Exec(t, db, "UPDATE lesson SET current_bookings = 0 WHERE id = 'l1'")
	if _, err := store.Release(ctx, "b1", now); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	var counter int
	db.QueryRow("SELECT current_bookings FROM lesson WHERE id = 'l1'").Scan(&counter)
	if counter != 0 {
		t.Errorf("counter = %d, want 0", counter)
	}
}

// TestReserve_SequenceKeepsCounterConsistent runs a mixed create/cancel sequence.
func TestReserve_SequenceKeepsCounterConsistent(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 4, lessonTime)
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("u%d", i)
		storagetest.SeedCustomer(t, db, id, "Kunde "+id, id+"@kurse.example")
	}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("u%d", i)
		_, err := store.Reserve(ctx, newBooking("b"+id, "l1", id, id+"@kurse.example", now))
		if err != nil && !errors.Is(err, apperr.ErrLessonFull) {
			t.Fatalf("Reserve(%s) = %v", id, err)
		}
		if i%3 == 2 {
			if _, err := store.Release(ctx, "bu"+fmt.Sprint(i-1), now); err != nil && !errors.Is(err, apperr.ErrBookingNotFound) {
				t.Fatalf("Release() = %v", err)
			}
		}
		counterMatches(t, db, "l1")
	}
}

// TestReserve_ConcurrentLastSeat races many customers for one free seat.
func TestReserve_ConcurrentLastSeat(t *testing.T) {
	db := storagetest.OpenFile(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 2, lessonTime)
	const racers = 10
	for i := 0; i < racers; i++ {
		id := fmt.Sprintf("u%d", i)
		storagetest.SeedCustomer(t, db, id, "Kunde "+id, id+"@kurse.example")
	}
	storagetest.SeedCustomer(t, db, "first", "Erste", "first@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, newBooking("b0", "l1", "first", "first@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, full int
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			_, err := store.Reserve(ctx, newBooking("b"+id, "l1", id, id+"@kurse.example", now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrLessonFull):
				full++
			default:
				t.Errorf("Reserve(%s) = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || full != racers-1 {
		t.Errorf("successes = %d, full = %d; want 1 and %d", ok, full, racers-1)
	}
	if n := counterMatches(t, db, "l1"); n != 2 {
		t.Errorf("counter = %d, want 2", n)
	}
}

// TestCancelAllForCourse tests the course cascade.
func TestCancelAllForCourse(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 3, lessonTime)
	storagetest.SeedLesson(t, db, "c1", "l2", 3, lessonTime.AddDate(0, 0, 7))
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	storagetest.SeedCustomer(t, db, "u2", "Berta", "berta@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	for _, b := range []booking.Booking{
		newBooking("b1", "l1", "u1", "anna@kurse.example", now),
		newBooking("b2", "l2", "u1", "anna@kurse.example", now),
		newBooking("b3", "l2", "u2", "berta@kurse.example", now),
	} {
		if _, err := store.Reserve(ctx, b); err != nil {
			t.Fatalf("Reserve(%s) = %v", b.ID, err)
		}
	}

	cancelled, err := bookingstore.CancelAllForCourse(ctx, db, "c1", now)
	if err != nil {
		t.Fatalf("CancelAllForCourse() = %v", err)
	}
	if len(cancelled) != 3 {
		t.Errorf("cancelled %d bookings, want 3", len(cancelled))
	}
	for _, b := range cancelled {
		if b.Status != booking.StatusCancelled {
			t.Errorf("booking %s status = %s", b.ID, b.Status)
		}
	}
	counterMatches(t, db, "l1")
	counterMatches(t, db, "l2")

	active, err := store.ListActiveByCourseAndCustomer(ctx, "c1", "u1")
	if err != nil || len(active) != 0 {
		t.Errorf("active after cascade = %v, %v", active, err)
	}
}

// TestPromoteWaitlist tests filling seats freed by a capacity raise.
func TestPromoteWaitlist(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 1, lessonTime)
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	storagetest.SeedCustomer(t, db, "u2", "Berta", "berta@kurse.example")
	storagetest.SeedCustomer(t, db, "u3", "Clara", "clara@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}
	if err := store.AddToWaitlist(ctx, newBooking("w1", "l1", "u2", "berta@kurse.example", now)); err != nil {
		t.Fatalf("AddToWaitlist(w1) = %v", err)
	}
	if err := store.AddToWaitlist(ctx, newBooking("w2", "l1", "u3", "clara@kurse.example", now.Add(time.Minute))); err != nil {
		t.Fatalf("AddToWaitlist(w2) = %v", err)
	}

	promoted, err := bookingstore.PromoteWaitlist(ctx, db, "l1", now)
	if err != nil || len(promoted) != 0 {
		t.Fatalf("PromoteWaitlist(full lesson) = %v, %v; want none", promoted, err)
	}

	storagetest.Exec(t, db, "UPDATE lesson SET max_capacity = 2 WHERE id = 'l1'")
	promoted, err = bookingstore.PromoteWaitlist(ctx, db, "l1", now)
	if err != nil {
		t.Fatalf("PromoteWaitlist() = %v", err)
	}
	if len(promoted) != 1 || promoted[0].ID != "w1" || promoted[0].Status != booking.StatusConfirmed {
		t.Fatalf("promoted = %+v, want only w1 confirmed", promoted)
	}
	if n := counterMatches(t, db, "l1"); n != 2 {
		t.Errorf("counter = %d, want 2", n)
	}
	w2, _ := store.GetByID(ctx, "w2")
	if w2.Status != booking.StatusWaitlist {
		t.Errorf("w2 status = %s, want waitlist", w2.Status)
	}
}

// TestFindActiveAndCount tests lookup helpers.
func TestFindActiveAndCount(t *testing.T) {
	db := storagetest.OpenMemory(t)
	storagetest.SeedLesson(t, db, "c1", "l1", 3, lessonTime)
	storagetest.SeedCustomer(t, db, "u1", "Anna", "anna@kurse.example")
	store := bookingstore.NewSQLiteStore(db)
	ctx := context.Background()

	if _, found, err := store.FindActive(ctx, "l1", "anna@kurse.example"); err != nil || found {
		t.Fatalf("FindActive before booking = %v, %v", found, err)
	}
	if _, err := store.Reserve(ctx, newBooking("b1", "l1", "u1", "anna@kurse.example", now)); err != nil {
		t.Fatalf("Reserve() = %v", err)
	}
	got, found, err := store.FindActive(ctx, "l1", "anna@kurse.example")
	if err != nil || !found || got.ID != "b1" {
		t.Errorf("FindActive = %+v, %v, %v", got, found, err)
	}
	if n, err := store.CountConfirmed(ctx, "l1"); err != nil || n != 1 {
		t.Errorf("CountConfirmed = %d, %v", n, err)
	}
	list, err := store.ListByCustomer(ctx, "u1")
	if err != nil || len(list) != 1 || !list[0].CreatedAt.Equal(now) {
		t.Errorf("ListByCustomer = %+v, %v", list, err)
	}
}
