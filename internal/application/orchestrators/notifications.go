package orchestrators

import (
	"fmt"
	"strings"
	"time"

	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
	"coursebook/internal/domain/outbox"
)

const lessonTimeLayout = "Mon 02 Jan 2006, 15:04"

func lessonWhen(l lesson.Lesson, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return l.DateTime.In(loc).Format(lessonTimeLayout)
}

func bookingConfirmedEmail(b booking.Booking, l lesson.Lesson, loc *time.Location) outbox.EmailPayload {
	return outbox.EmailPayload{
		Template: outbox.TemplateBookingConfirmed,
		To:       b.CustomerEmail,
		Name:     b.CustomerName,
		Subject:  "Booking confirmed: " + l.Title,
		Body: fmt.Sprintf("Hello %s,\n\nyour seat in **%s** on %s is confirmed.\n\nBooking reference: `%s`",
			b.CustomerName, l.Title, lessonWhen(l, loc), b.ID),
	}
}

func waitlistEmail(b booking.Booking, l lesson.Lesson, loc *time.Location) outbox.EmailPayload {
	return outbox.EmailPayload{
		Template: outbox.TemplateBookingWaitlisted,
		To:       b.CustomerEmail,
		Name:     b.CustomerName,
		Subject:  "Waitlist: " + l.Title,
		Body: fmt.Sprintf("Hello %s,\n\n**%s** on %s is fully booked. You are on the waitlist and will get an email if a seat frees up.",
			b.CustomerName, l.Title, lessonWhen(l, loc)),
	}
}

func bookingCancelledEmail(b booking.Booking, l lesson.Lesson, loc *time.Location) outbox.EmailPayload {
	return outbox.EmailPayload{
		Template: outbox.TemplateBookingCancelled,
		To:       b.CustomerEmail,
		Name:     b.CustomerName,
		Subject:  "Booking cancelled: " + l.Title,
		Body: fmt.Sprintf("Hello %s,\n\nyour booking for **%s** on %s has been cancelled.",
			b.CustomerName, l.Title, lessonWhen(l, loc)),
	}
}

func waitlistPromotedEmail(b booking.Booking, l lesson.Lesson, loc *time.Location) outbox.EmailPayload {
	return outbox.EmailPayload{
		Template: outbox.TemplateWaitlistPromoted,
		To:       b.CustomerEmail,
		Name:     b.CustomerName,
		Subject:  "A seat is free: " + l.Title,
		Body: fmt.Sprintf("Hello %s,\n\na seat opened up in **%s** on %s and your waitlist booking is now confirmed.",
			b.CustomerName, l.Title, lessonWhen(l, loc)),
	}
}

func courseCancelledEmail(c course.Course, name, email string, lessons []lesson.Lesson, loc *time.Location) outbox.EmailPayload {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\nthe course **%s** has been cancelled. These bookings are void:\n\n", name, c.Title)
	for _, l := range lessons {
		fmt.Fprintf(&sb, "- %s (%s)\n", l.Title, lessonWhen(l, loc))
	}
	return outbox.EmailPayload{
		Template: outbox.TemplateCourseCancelled,
		To:       email,
		Name:     name,
		Subject:  "Course cancelled: " + c.Title,
		Body:     sb.String(),
	}
}

func enrollmentSummaryEmail(c course.Course, name, email string, booked []lesson.Lesson, failed int, loc *time.Location) outbox.EmailPayload {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\nyou are enrolled in **%s**. Your lessons:\n\n", name, c.Title)
	for _, l := range booked {
		fmt.Fprintf(&sb, "- %s (%s)\n", l.Title, lessonWhen(l, loc))
	}
	if failed > 0 {
		fmt.Fprintf(&sb, "\n%d lesson(s) could not be booked.\n", failed)
	}
	return outbox.EmailPayload{
		Template: outbox.TemplateEnrollmentSummary,
		To:       email,
		Name:     name,
		Subject:  "Enrollment: " + c.Title,
		Body:     sb.String(),
	}
}
