package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"coursebook/internal/adapters/http/middleware"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
)

type sessionView struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CustomerID string    `json:"customer_id,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *Server) viewSession(sess middleware.Session) sessionView {
	return sessionView{
		AccountID:  sess.AccountID,
		Email:      sess.Email,
		Role:       sess.Role,
		CustomerID: sess.CustomerID,
		ExpiresAt:  sess.CreatedAt.Add(s.sessions.TTL()),
	}
}

// handleHealth answers GET /healthz with a database round trip.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.stores.Accounts.Count(r.Context()); err != nil {
		slog.Error("health_check_failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, envelope{Error: &errorBody{Code: "database.error", Message: "database unavailable"}})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"status":   "ok",
		"uptime_s": int(s.now().Sub(s.started).Seconds()),
	}})
}

// handleCSRFToken hands out the token form posts must carry.
// The token is also set in the X-CSRF-Token response header.
func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set("X-CSRF-Token", token)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{
		"token":      token,
		"field_name": "gorilla.csrf.Token",
	}})
}

// handleLogin handles POST /api/auth/login
// PRE: email and password in the body
// POST: Session cookie set on success
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.LoginDeps{
		Accounts: s.stores.Accounts,
		Audit:    s.stores.Audit,
		Now:      s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sess := middleware.Session{AccountID: res.AccountID, Email: res.Email, Role: res.Role}
	if res.Role == account.RoleCustomer {
		c, err := s.stores.Customers.GetByAccountID(r.Context(), res.AccountID)
		switch {
		case err == nil:
			sess.CustomerID = c.ID
		case !errors.Is(err, apperr.ErrCustomerNotFound):
			s.fail(w, r, err)
			return
		}
	}
	view, err := s.startSession(w, r, sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, view, noticeOf("notice.logged_in"))
}

// startSession replaces any session the request carries with a new one.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, sess middleware.Session) (sessionView, error) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	sess.CreatedAt = s.now()
	token, err := s.sessions.Create(sess)
	if err != nil {
		return sessionView{}, err
	}
	middleware.SetSessionCookie(w, token, s.sessions.TTL(), s.cfg.SecureCookies)
	return s.viewSession(sess), nil
}

// handleLogout handles POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w, s.cfg.SecureCookies)
	s.ok(w, r, http.StatusOK, nil, noticeOf("notice.logged_out"))
}

// handleSignUp handles POST /api/auth/signup: a customer account plus its
// customer record, logged in right away.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := orchestrators.ExecuteSignUp(r.Context(), orchestrators.SignUpInput{
		Password:       req.Password,
		CustomerFields: fields,
	}, s.accountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.startSession(w, r, middleware.Session{
		AccountID:  res.Account.ID,
		Email:      res.Account.Email,
		Role:       res.Account.Role,
		CustomerID: res.Customer.ID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusCreated, view, noticeOf("notice.account_created"))
}

// handleMe handles GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	s.ok(w, r, http.StatusOK, s.viewSession(sess), notice{})
}

// handleChangePassword handles POST /api/auth/password
// POST: Every other session of the account is ended; the caller gets a fresh one
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		Actor:           actorOf(r),
		AccountID:       sess.AccountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, s.accountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if n := s.sessions.DeleteAccount(sess.AccountID); n > 1 {
		slog.Info("auth_event", "event", "sessions_revoked", "account_id", sess.AccountID, "count", n-1)
	}
	view, err := s.startSession(w, r, sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, view, noticeOf("notice.password_changed"))
}

// handleCreateAccount handles POST /api/admin/accounts (admin only).
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	acct, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Actor:    actorOf(r),
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, s.accountDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusCreated, map[string]any{
		"id":         acct.ID,
		"email":      acct.Email,
		"role":       acct.Role,
		"created_at": acct.CreatedAt,
	}, noticeOf("notice.account_created"))
}
