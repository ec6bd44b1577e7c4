package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kwitansi/internal/apiclient"
	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/ports"
)

// view is what every page template receives. Data holds the page specific
// model.
type view struct {
	Title string
	Nav   string
	User  *core.User
	Data  any
}

func (s *Server) page(r *http.Request, title, nav string, data any) view {
	var user *core.User
	if sess, ok := sessionFromContext(r.Context()); ok {
		u := sess.User
		user = &u
	}
	return view{Title: title, Nav: nav, User: user, Data: data}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends a full page navigation. HTMX requests get HX-Redirect so
// the browser leaves the partial flow.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// parseYearMonth extracts year and month from query parameters.
// Returns the current year/month as defaults if not provided or invalid.
func parseYearMonth(q url.Values, now time.Time) (int, time.Month) {
	year, month := now.Year(), now.Month()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			year = y
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = time.Month(m)
		}
	}
	return year, month
}

// parsePageState reads page, limit and search. Out of range values fall
// back to the defaults.
func parsePageState(q url.Values) core.PageState {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return core.NewPageState(page, limit, sanitizeInput(q.Get("search")))
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// receiptURL links to a receipt page, carrying the share token when the
// request came in with one.
func receiptURL(path, token string) string {
	if token == "" {
		return path
	}
	return path + "?token=" + url.QueryEscape(token)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// backendError handles failures that end the request: unauthorized goes
// back to the login page, missing records render the not found page and
// anything else an error page.
func (s *Server) backendError(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, ports.ErrUnauthorized):
		s.expireSession(w, r)
		redirect(w, r, loginURL(r))
	case errors.Is(err, ports.ErrNotFound):
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "", nil))
	default:
		s.structured.LogError(ctx, "Backend request failed", err, component, op,
			applog.NewFields().WithRequestID(requestID(r)))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.render(w, r, status, "error_page", s.page(r, "Terjadi kesalahan", "", errorView{
			Message: "Gagal memuat data dari server. Silakan coba lagi.",
		}))
	}
}

// listError logs a failed list or chart fetch. The caller renders an empty
// state unless false is returned, in which case the response is done.
func (s *Server) listError(w http.ResponseWriter, r *http.Request, err error, component, op string, fields applog.LogFields) bool {
	if errors.Is(err, ports.ErrUnauthorized) {
		s.expireSession(w, r)
		redirect(w, r, loginURL(r))
		return false
	}
	if fields == nil {
		fields = applog.NewFields()
	}
	s.structured.LogError(r.Context(), "Backend request failed", err, component, op,
		fields.WithRequestID(requestID(r)))
	return true
}

// backendMessage is the text shown on a form when the backend refused a
// write. Validation messages from the remote API are passed through.
func backendMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Status < 500 {
		return apiErr.Message
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return "Data belum lengkap. Periksa kembali isian formulir."
	}
	return "Gagal menyimpan data. Silakan coba lagi."
}

type errorView struct {
	Message string
}
