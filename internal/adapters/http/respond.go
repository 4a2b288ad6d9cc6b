package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"coursebook/internal/adapters/http/middleware"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/application/projections"
	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Notice  string     `json:"notice,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// notice is a localized success message key with its format arguments.
type notice struct {
	key  string
	args []any
}

func noticeOf(key string, args ...any) notice {
	return notice{key: key, args: args}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_write_failed", "error", err)
	}
}

// ok answers a successful request. Browser form posts are redirected back
// with ?success=<key>; everything else gets the JSON envelope.
func (s *Server) ok(w http.ResponseWriter, r *http.Request, status int, data any, n notice) {
	if isFormPost(r) {
		s.redirectBack(w, r, "success", n.key)
		return
	}
	env := envelope{Success: true, Data: data}
	if n.key != "" {
		env.Notice = s.catalog.Translate(s.catalog.Resolve(r), n.key, n.args...)
	}
	writeJSON(w, status, env)
}

// fail answers with the classified error. Unclassified errors are logged
// and surfaced as database.error without their cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var pe *paramError
	if errors.As(err, &pe) {
		s.badRequest(w, r, pe.param)
		return
	}
	kind := apperr.KindOf(err)
	key := apperr.KeyOf(err)
	if kind == apperr.KindDatabase {
		slog.Error("internal_error", "method", r.Method, "path", r.URL.Path, "error", err)
		key = "database.error"
	}
	if isFormPost(r) {
		s.redirectBack(w, r, "error", key)
		return
	}

	tag := s.catalog.Resolve(r)
	body := &errorBody{Code: key, Message: s.catalog.Translate(tag, key)}
	var conflict *orchestrators.ConflictError
	if errors.As(err, &conflict) {
		titles := make([]string, len(conflict.Conflicts))
		views := make([]projections.CourseSummary, len(conflict.Conflicts))
		for i, c := range conflict.Conflicts {
			titles[i] = fmt.Sprintf("%s (%s)", c.Title, c.StartTime)
			views[i] = projections.SummarizeCourse(c, nil, s.now())
		}
		body.Message = s.catalog.Translate(tag, key, strings.Join(titles, ", "))
		body.Details = map[string]any{"conflicts": views}
	}
	writeJSON(w, apperr.HTTPStatus(kind), envelope{Error: body})
}

// deny is the middleware.DenyFunc of the server: a localized error without a cause.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, status int, code string) {
	if isFormPost(r) && status != http.StatusTooManyRequests {
		s.redirectBack(w, r, "error", code)
		return
	}
	writeJSON(w, status, envelope{Error: &errorBody{
		Code:    code,
		Message: s.catalog.Translate(s.catalog.Resolve(r), code),
	}})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, param string) {
	if isFormPost(r) {
		s.redirectBack(w, r, "error", "request.invalid_param")
		return
	}
	writeJSON(w, http.StatusBadRequest, envelope{Error: &errorBody{
		Code:    "request.invalid_param",
		Message: s.catalog.Translate(s.catalog.Resolve(r), "request.invalid_param", param),
		Details: map[string]string{"param": param},
	}})
}

// isFormPost reports whether r is a classic browser form submission.
func isFormPost(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/x-www-form-urlencoded" && mt != "multipart/form-data" {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

// redirectBack sends a 303 to the form's redirect_to (same-site paths only),
// else the Referer, else "/", with param=key added to the query.
func (s *Server) redirectBack(w http.ResponseWriter, r *http.Request, param, key string) {
	target := localPath(r.PostFormValue("redirect_to"))
	if target == "" {
		if ref, err := url.Parse(r.Referer()); err == nil && (ref.Host == "" || ref.Host == r.Host) {
			target = localPath(ref.RequestURI())
		}
	}
	if target == "" {
		target = "/"
	}
	u, _ := url.Parse(target)
	q := u.Query()
	q.Del("success")
	q.Del("error")
	q.Set(param, key)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// localPath returns p when it is an absolute path on this site.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return p
}

// formBinder is implemented by request types that also accept form posts.
type formBinder interface {
	bindForm(f url.Values) error
}

var errInvalidBody = apperr.Validation("request.invalid_body", "request body could not be decoded")

// bind decodes a JSON body strictly, or a form body through bindForm.
// An empty JSON body leaves v untouched.
func bind(r *http.Request, v formBinder) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return apperr.Wrap(errInvalidBody, err)
		}
		return v.bindForm(r.PostForm)
	default:
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return apperr.Wrap(errInvalidBody, err)
		}
		return nil
	}
}

// actorOf returns the audit actor of the request; guests have an empty ID.
func actorOf(r *http.Request) audit.Actor {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		return audit.Actor{Role: "guest"}
	}
	return audit.Actor{ID: sess.AccountID, Email: sess.Email, Role: sess.Role}
}
