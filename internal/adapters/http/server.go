package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"coursebook/internal/adapters/http/middleware"
	"coursebook/internal/adapters/http/perf"
	accountstore "coursebook/internal/adapters/storage/account"
	auditstore "coursebook/internal/adapters/storage/audit"
	bookingstore "coursebook/internal/adapters/storage/booking"
	coursestore "coursebook/internal/adapters/storage/course"
	customerstore "coursebook/internal/adapters/storage/customer"
	lessonstore "coursebook/internal/adapters/storage/lesson"
	outboxstore "coursebook/internal/adapters/storage/outbox"
	registrationstore "coursebook/internal/adapters/storage/registration"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/domain/account"
	"coursebook/internal/i18n"
)

// Stores holds all storage dependencies.
type Stores struct {
	Accounts      accountstore.Store
	Audit         auditstore.Store
	Bookings      bookingstore.Store
	Courses       coursestore.Store
	Customers     customerstore.Store
	Lessons       lessonstore.Store
	Outbox        outboxstore.Store
	Registrations registrationstore.Store
}

// Config carries the HTTP-facing settings.
type Config struct {
	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	SessionTTL     time.Duration
	RateLimit      float64 // requests per second per client IP
	RateBurst      int
	SlowRequest    time.Duration
	Location       *time.Location // lesson times in emails and exports
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Stores  Stores
	Outbox  *orchestrators.OutboxProcessor // nil disables manual retry
	Catalog *i18n.Catalog
	Perf    *perf.Collector
}

// Server serves the JSON API. All state lives on the struct.
type Server struct {
	stores   Stores
	outbox   *orchestrators.OutboxProcessor
	catalog  *i18n.Catalog
	perf     *perf.Collector
	sessions *middleware.SessionStore
	limiter  *middleware.RateLimiter
	cfg      Config
	now      func() time.Time
	newID    func() string
	started  time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithIDs replaces UUID generation.
func WithIDs(newID func() string) Option {
	return func(s *Server) { s.newID = newID }
}

// NewServer wires the handlers to their dependencies.
// PRE: deps.Stores are all set; deps.Catalog is loaded
// POST: Returns a Server whose Handler is ready to serve
func NewServer(deps Deps, cfg Config, opts ...Option) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if deps.Perf == nil {
		deps.Perf = perf.NewCollector(perf.DefaultRingSize)
	}
	s := &Server{
		stores:   deps.Stores,
		outbox:   deps.Outbox,
		catalog:  deps.Catalog,
		perf:     deps.Perf,
		sessions: middleware.NewSessionStore(cfg.SessionTTL),
		limiter:  middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions.SetClock(s.now)
	s.started = s.now()
	return s
}

// Handler returns the middleware-wrapped router.
// Timing sits directly on the mux so it sees the matched route pattern.
func (s *Server) Handler() http.Handler {
	return middleware.Chain(s.routes(),
		middleware.SecurityHeaders,
		middleware.CSRF(middleware.CSRFConfig{
			Key:            s.cfg.CSRFKey,
			Secure:         s.cfg.SecureCookies,
			TrustedOrigins: s.cfg.TrustedOrigins,
			Deny:           s.deny,
		}),
		middleware.Auth(s.sessions),
		middleware.RateLimit(s.limiter, s.deny),
		middleware.Tracing,
		middleware.Timing(s.perf, s.cfg.SlowRequest),
	)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := middleware.RequireAuth(s.deny)
	staff := middleware.RequireRole(s.deny, account.RoleAdmin, account.RoleStaff)
	admin := middleware.RequireRole(s.deny, account.RoleAdmin)
	customerOnly := middleware.RequireRole(s.deny, account.RoleCustomer)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/csrf", s.handleCSRFToken)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /api/auth/password", authed(http.HandlerFunc(s.handleChangePassword)))

	mux.HandleFunc("GET /api/courses", s.handleListCourses)
	mux.HandleFunc("GET /api/courses/{id}", s.handleGetCourse)
	mux.HandleFunc("POST /api/courses/{id}/enroll", s.handleEnroll)
	mux.Handle("POST /api/courses/{id}/unenroll", authed(http.HandlerFunc(s.handleUnenroll)))

	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.Handle("POST /api/bookings/{id}/cancel", authed(http.HandlerFunc(s.handleCancelBooking)))
	mux.Handle("GET /api/me/bookings", customerOnly(http.HandlerFunc(s.handleMyBookings)))

	mux.HandleFunc("POST /ajax", s.handleAjax)

	mux.Handle("GET /api/admin/dashboard", staff(http.HandlerFunc(s.handleDashboard)))

	mux.Handle("GET /api/admin/courses", staff(http.HandlerFunc(s.handleAdminListCourses)))
	mux.Handle("POST /api/admin/courses", staff(http.HandlerFunc(s.handleCreateCourse)))
	mux.Handle("POST /api/admin/courses/check-conflicts", staff(http.HandlerFunc(s.handleCheckConflicts)))
	mux.Handle("PUT /api/admin/courses/{id}", staff(http.HandlerFunc(s.handleUpdateCourse)))
	mux.Handle("POST /api/admin/courses/{id}", staff(http.HandlerFunc(s.handleUpdateCourse)))
	mux.Handle("POST /api/admin/courses/{id}/cancel", staff(http.HandlerFunc(s.handleCancelCourse)))
	mux.Handle("DELETE /api/admin/courses/{id}", staff(http.HandlerFunc(s.handleDeleteCourse)))
	mux.Handle("POST /api/admin/courses/{id}/delete", staff(http.HandlerFunc(s.handleDeleteCourse)))
	mux.Handle("GET /api/admin/courses/{id}/bookings.csv", staff(http.HandlerFunc(s.handleExportCourseBookings)))
	mux.Handle("GET /api/admin/lessons/{id}/bookings", staff(http.HandlerFunc(s.handleLessonBookings)))

	mux.Handle("GET /api/admin/customers", staff(http.HandlerFunc(s.handleListCustomers)))
	mux.Handle("POST /api/admin/customers", staff(http.HandlerFunc(s.handleCreateCustomer)))
	mux.Handle("GET /api/admin/customers/{id}", staff(http.HandlerFunc(s.handleGetCustomer)))
	mux.Handle("PUT /api/admin/customers/{id}", staff(http.HandlerFunc(s.handleUpdateCustomer)))
	mux.Handle("POST /api/admin/customers/{id}", staff(http.HandlerFunc(s.handleUpdateCustomer)))
	mux.Handle("DELETE /api/admin/customers/{id}", staff(http.HandlerFunc(s.handleDeleteCustomer)))
	mux.Handle("POST /api/admin/customers/{id}/delete", staff(http.HandlerFunc(s.handleDeleteCustomer)))
	mux.Handle("GET /api/admin/customers/{id}/bookings", staff(http.HandlerFunc(s.handleCustomerBookings)))

	mux.Handle("POST /api/admin/accounts", admin(http.HandlerFunc(s.handleCreateAccount)))
	mux.Handle("GET /api/admin/audit", admin(http.HandlerFunc(s.handleAdminAuditTrail)))
	mux.Handle("GET /api/admin/outbox", admin(http.HandlerFunc(s.handleAdminOutbox)))
	mux.Handle("POST /api/admin/outbox/{id}/retry", admin(http.HandlerFunc(s.handleAdminOutboxRetry)))
	mux.Handle("POST /api/admin/outbox/{id}/abandon", admin(http.HandlerFunc(s.handleAdminOutboxAbandon)))
	mux.Handle("GET /api/admin/perf", admin(http.HandlerFunc(s.handlePerf)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.deny(w, r, http.StatusNotFound, "request.not_found")
	})
	return mux
}

// Sweep drops expired sessions and idle rate-limit buckets.
// POST: Returns the number of sessions and limiter entries removed
func (s *Server) Sweep(now time.Time) (sessions, visitors int) {
	return s.sessions.Sweep(), s.limiter.Sweep(now)
}
