package orchestrators

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	accountstore "coursebook/internal/adapters/storage/account"
	auditstore "coursebook/internal/adapters/storage/audit"
	bookingstore "coursebook/internal/adapters/storage/booking"
	coursestore "coursebook/internal/adapters/storage/course"
	customerstore "coursebook/internal/adapters/storage/customer"
	lessonstore "coursebook/internal/adapters/storage/lesson"
	outboxstore "coursebook/internal/adapters/storage/outbox"
	registrationstore "coursebook/internal/adapters/storage/registration"
	"coursebook/internal/adapters/storage/storagetest"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/outbox"
)

// harness wires the command layer to a migrated in-memory database.
type harness struct {
	t             *testing.T
	db            *sql.DB
	courses       *coursestore.SQLiteStore
	lessons       *lessonstore.SQLiteStore
	customers     *customerstore.SQLiteStore
	bookings      *bookingstore.SQLiteStore
	outbox        *outboxstore.SQLiteStore
	audit         *auditstore.SQLiteStore
	registrations *registrationstore.SQLiteStore
	accounts      *accountstore.SQLiteStore
	now           time.Time
	seq           int
}

var staff = audit.Actor{ID: "acct-staff", Email: "team@example.org", Role: "staff"}

// fixedNow is a Monday morning before the sample courses start.
var fixedNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storagetest.OpenMemory(t)
	return &harness{
		t:             t,
		db:            db,
		courses:       coursestore.NewSQLiteStore(db),
		lessons:       lessonstore.NewSQLiteStore(db),
		customers:     customerstore.NewSQLiteStore(db),
		bookings:      bookingstore.NewSQLiteStore(db),
		outbox:        outboxstore.NewSQLiteStore(db),
		audit:         auditstore.NewSQLiteStore(db),
		registrations: registrationstore.NewSQLiteStore(db),
		accounts:      accountstore.NewSQLiteStore(db),
		now:           fixedNow,
	}
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) nextID() string {
	h.seq++
	return fmt.Sprintf("id-%03d", h.seq)
}

func (h *harness) courseDeps() CreateCourseDeps {
	return CreateCourseDeps{Courses: h.courses, Audit: h.audit, Location: time.UTC, Now: h.clock, GenerateID: h.nextID}
}

func (h *harness) updateDeps() UpdateCourseDeps {
	return UpdateCourseDeps{Courses: h.courses, Lessons: h.lessons, Outbox: h.outbox, Audit: h.audit, Location: time.UTC, Now: h.clock, GenerateID: h.nextID}
}

func (h *harness) bookingDeps() BookingDeps {
	return BookingDeps{
		Courses:    h.courses,
		Lessons:    h.lessons,
		Customers:  h.customers,
		Bookings:   h.bookings,
		Outbox:     h.outbox,
		Audit:      h.audit,
		Location:   time.UTC,
		Now:        h.clock,
		GenerateID: h.nextID,
	}
}

func (h *harness) enrollmentDeps() EnrollmentDeps {
	return EnrollmentDeps{BookingDeps: h.bookingDeps(), Registrations: h.registrations}
}

// babyCourse returns fields for a three-lesson Monday course starting 2024-01-03.
func babyCourse(title, start string, capacity int) CourseFields {
	return CourseFields{
		Title:          title,
		Description:    "Spielen und bewegen",
		StartDate:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		LessonCount:    3,
		DayOfWeek:      1,
		StartTime:      start,
		LessonDuration: 60,
		MaxCapacity:    capacity,
		Price:          4500,
	}
}

func (h *harness) createCourse(f CourseFields) CourseResult {
	h.t.Helper()
	res, err := ExecuteCreateCourse(context.Background(), CreateCourseInput{Actor: staff, CourseFields: f}, h.courseDeps())
	if err != nil {
		h.t.Fatalf("ExecuteCreateCourse(%s) = %v", f.Title, err)
	}
	return res
}

func (h *harness) book(lessonID, name, email string) (BookingResult, error) {
	return ExecuteCreateBooking(context.Background(), CreateBookingInput{
		Actor:    staff,
		LessonID: lessonID,
		Customer: CustomerFields{Name: name, Email: email},
	}, h.bookingDeps())
}

func (h *harness) queued(template string) []outbox.Entry {
	h.t.Helper()
	entries, err := h.outbox.ListByStatus(context.Background(), outbox.StatusPending, 100)
	if err != nil {
		h.t.Fatalf("ListByStatus() = %v", err)
	}
	var out []outbox.Entry
	for _, e := range entries {
		p, _ := e.EmailPayload()
		if p.Template == template {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) counter(lessonID string) int {
	h.t.Helper()
	l, err := h.lessons.GetByID(context.Background(), lessonID)
	if err != nil {
		h.t.Fatalf("GetByID(%s) = %v", lessonID, err)
	}
	return l.CurrentBookings
}
