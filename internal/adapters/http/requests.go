package web

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"coursebook/internal/application/orchestrators"
	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/course"
)

// paramError names the request field that could not be parsed.
type paramError struct {
	param string
}

func (e *paramError) Error() string { return "invalid parameter " + e.param }

func formInt(f url.Values, key string) (int, error) {
	v := strings.TrimSpace(f.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{param: key}
	}
	return n, nil
}

func formBool(f url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(f.Get(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// parseDate reads a YYYY-MM-DD date as midnight UTC; empty yields the zero time.
func parseDate(v, param string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(course.DateLayout, v)
	if err != nil {
		return time.Time{}, &paramError{param: param}
	}
	return t, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginRequest) bindForm(f url.Values) error {
	req.Email = f.Get("email")
	req.Password = f.Get("password")
	return nil
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (req *passwordRequest) bindForm(f url.Values) error {
	req.CurrentPassword = f.Get("current_password")
	req.NewPassword = f.Get("new_password")
	return nil
}

type customerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	ChildName        string `json:"child_name"`
	ChildBirthDate   string `json:"child_birth_date"`
	EmergencyContact string `json:"emergency_contact"`
	Notes            string `json:"notes"`
}

func (req *customerRequest) bindForm(f url.Values) error {
	req.Name = f.Get("name")
	req.Email = f.Get("email")
	req.Phone = f.Get("phone")
	req.ChildName = f.Get("child_name")
	req.ChildBirthDate = f.Get("child_birth_date")
	req.EmergencyContact = f.Get("emergency_contact")
	req.Notes = f.Get("notes")
	return nil
}

func (req customerRequest) fields() (orchestrators.CustomerFields, error) {
	born, err := parseDate(req.ChildBirthDate, "child_birth_date")
	if err != nil {
		return orchestrators.CustomerFields{}, err
	}
	return orchestrators.CustomerFields{
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		ChildName:        strings.TrimSpace(req.ChildName),
		ChildBirthDate:   born,
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
		Notes:            req.Notes,
	}, nil
}

type signUpRequest struct {
	customerRequest
	Password string `json:"password"`
}

func (req *signUpRequest) bindForm(f url.Values) error {
	req.Password = f.Get("password")
	return req.customerRequest.bindForm(f)
}

type accountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (req *accountRequest) bindForm(f url.Values) error {
	req.Email = f.Get("email")
	req.Password = f.Get("password")
	req.Role = f.Get("role")
	return nil
}

type courseRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	StartDate      string `json:"start_date"`
	LessonCount    int    `json:"lesson_count"`
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	LessonDuration int    `json:"lesson_duration"`
	MaxCapacity    int    `json:"max_capacity"`
	Price          int64  `json:"price"` // cents
	Status         string `json:"status"`
}

func (req *courseRequest) bindForm(f url.Values) error {
	req.Title = f.Get("title")
	req.Description = f.Get("description")
	req.StartDate = f.Get("start_date")
	req.StartTime = f.Get("start_time")
	req.Status = f.Get("status")
	var err error
	if req.LessonCount, err = formInt(f, "lesson_count"); err != nil {
		return err
	}
	if req.DayOfWeek, err = formInt(f, "day_of_week"); err != nil {
		return err
	}
	if req.LessonDuration, err = formInt(f, "lesson_duration"); err != nil {
		return err
	}
	if req.MaxCapacity, err = formInt(f, "max_capacity"); err != nil {
		return err
	}
	price, err := formInt(f, "price")
	if err != nil {
		return err
	}
	req.Price = int64(price)
	return nil
}

func (req courseRequest) fields() (orchestrators.CourseFields, error) {
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return orchestrators.CourseFields{}, err
	}
	duration := req.LessonDuration
	if duration == 0 {
		duration = course.DefaultDurationMn
	}
	return orchestrators.CourseFields{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		StartDate:      start,
		LessonCount:    req.LessonCount,
		DayOfWeek:      req.DayOfWeek,
		StartTime:      strings.TrimSpace(req.StartTime),
		LessonDuration: duration,
		MaxCapacity:    req.MaxCapacity,
		Price:          req.Price,
		Status:         req.Status,
	}, nil
}

// conflictRequest describes a weekly window to test against active courses.
type conflictRequest struct {
	CourseID       string `json:"course_id"` // excluded from the result
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	LessonDuration int    `json:"lesson_duration"`
}

func (req *conflictRequest) bindForm(f url.Values) error {
	req.CourseID = f.Get("course_id")
	req.StartTime = f.Get("start_time")
	var err error
	if req.DayOfWeek, err = formInt(f, "day_of_week"); err != nil {
		return err
	}
	req.LessonDuration, err = formInt(f, "lesson_duration")
	return err
}

func (req conflictRequest) candidate() (course.Course, error) {
	c := course.Course{
		ID:             req.CourseID,
		DayOfWeek:      req.DayOfWeek,
		StartTime:      strings.TrimSpace(req.StartTime),
		LessonDuration: req.LessonDuration,
		Status:         course.StatusActive,
	}
	if c.LessonDuration == 0 {
		c.LessonDuration = course.DefaultDurationMn
	}
	if c.DayOfWeek < 1 || c.DayOfWeek > 7 {
		return course.Course{}, apperr.Validation("course.invalid_day_of_week", course.ErrInvalidDayOfWeek.Error())
	}
	if _, err := time.Parse(course.TimeLayout, c.StartTime); err != nil {
		return course.Course{}, apperr.Validation("course.invalid_start_time", course.ErrInvalidStartTime.Error())
	}
	return c, nil
}

type bookingRequest struct {
	LessonID   string `json:"lesson_id"`
	CustomerID string `json:"customer_id"`
	customerRequest
	Waitlist bool `json:"waitlist"`
}

func (req *bookingRequest) bindForm(f url.Values) error {
	req.LessonID = f.Get("lesson_id")
	req.CustomerID = f.Get("customer_id")
	req.Waitlist = formBool(f, "waitlist")
	return req.customerRequest.bindForm(f)
}

type enrollRequest struct {
	CustomerID string `json:"customer_id"`
	customerRequest
}

func (req *enrollRequest) bindForm(f url.Values) error {
	req.CustomerID = f.Get("customer_id")
	return req.customerRequest.bindForm(f)
}

// emptyRequest accepts a body without fields, such as a form carrying only
// its CSRF token and redirect target.
type emptyRequest struct{}

func (*emptyRequest) bindForm(url.Values) error { return nil }
