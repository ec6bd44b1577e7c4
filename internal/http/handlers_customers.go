package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/ports"
)

type listView[T any] struct {
	Page      core.Page[T]
	State     core.PageState
	Path      string // list endpoint the pager links to
	Failed    bool
	SizeOpts  []int
	HasSearch bool
}

func (v listView[T]) PageURL(page int) string {
	return v.Path + "?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(v.State.PageSize) + searchParam(v.State.Query)
}

func (v listView[T]) PrevURL() string { return v.PageURL(v.State.Prev().Page) }
func (v listView[T]) NextURL() string { return v.PageURL(v.State.Next(v.Page.LastPage).Page) }
func (v listView[T]) LastURL() string { return v.PageURL(v.State.Last(v.Page.LastPage).Page) }

func (v listView[T]) RangeStart() int { return v.Page.RangeStart(v.State.PageSize) }
func (v listView[T]) RangeEnd() int   { return v.Page.RangeEnd(v.State.PageSize) }

func searchParam(q string) string {
	if q == "" {
		return ""
	}
	return "&search=" + url.QueryEscape(q)
}

type customerFormView struct {
	Customer core.Customer
	Errors   map[string]string
}

type customerLookupView struct {
	Customer core.Customer
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	v, ok := s.customerList(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "customers_page", s.page(r, "Daftar Pelanggan", "customers", v))
}

// handleCustomersTable serves the table partial used by search-as-you-type
// and the pager.
func (s *Server) handleCustomersTable(w http.ResponseWriter, r *http.Request) {
	v, ok := s.customerList(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "customers_table", v)
}

// customerList fetches one page. A page past the end is fetched again at
// the last page the backend reported.
func (s *Server) customerList(w http.ResponseWriter, r *http.Request) (listView[core.Customer], bool) {
	state := parsePageState(r.URL.Query())
	v := listView[core.Customer]{
		State:     state,
		Path:      "/ui/customers/table",
		SizeOpts:  core.PageSizeOptions,
		HasSearch: state.Query != "",
		Page:      core.Page[core.Customer]{Data: []core.Customer{}, Page: 1, LastPage: 1},
	}
	page, err := s.fetchCustomers(r.Context(), state)
	if err != nil {
		if !s.listError(w, r, err, applog.ComponentCustomer, applog.OpList,
			applog.NewFields().WithPage(state.Page, state.PageSize, state.Query)) {
			return v, false
		}
		v.Failed = true
		return v, true
	}
	v.Page = page
	v.State = v.State.Clamp(page.LastPage)
	return v, true
}

func (s *Server) fetchCustomers(ctx context.Context, state core.PageState) (core.Page[core.Customer], error) {
	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	p := ports.ListParams{Page: state.Page, Limit: state.PageSize, Search: state.Query}
	page, err := s.backend.ListCustomers(ctx, p)
	if err != nil {
		return page, err
	}
	if page.LastPage >= 1 && state.Page > page.LastPage {
		p.Page = page.LastPage
		return s.backend.ListCustomers(ctx, p)
	}
	return page, nil
}

func (s *Server) handleNewCustomer(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "customer_form_page", s.page(r, "Tambah Pelanggan Baru", "customers", customerFormView{}))
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	c := ParseCustomerForm(r.PostForm)
	form := customerFormView{Customer: c}
	if err := c.Validate(); err != nil {
		form.Errors = customerErrors(err)
		s.render(w, r, http.StatusUnprocessableEntity, "customer_form_page", s.page(r, "Tambah Pelanggan Baru", "customers", form))
		return
	}

	created, err := s.backend.CreateCustomer(r.Context(), c)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrConflict):
			form.Errors = map[string]string{"email": "Email sudah terdaftar"}
			s.render(w, r, http.StatusConflict, "customer_form_page", s.page(r, "Tambah Pelanggan Baru", "customers", form))
		case errors.Is(err, ports.ErrUnauthorized):
			s.backendError(w, r, err, applog.ComponentCustomer, applog.OpCreate)
		default:
			s.structured.LogError(r.Context(), "Failed to create customer", err, applog.ComponentCustomer, applog.OpCreate,
				applog.NewFields().WithCustomer(0, c.Email))
			form.Errors = map[string]string{"form": backendMessage(err)}
			s.render(w, r, http.StatusBadGateway, "customer_form_page", s.page(r, "Tambah Pelanggan Baru", "customers", form))
		}
		return
	}

	s.appMetrics.customersCreated.Add(1)
	s.customerCache.Set(customerCacheKey(created.Email), created)
	s.structured.LogCustomerCreated(r.Context(), created.ID, created.Email)
	redirect(w, r, "/customers/"+strconv.FormatInt(created.ID, 10))
}

func (s *Server) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "customers", nil))
		return
	}
	c, err := s.backend.GetCustomer(r.Context(), id)
	if err != nil {
		s.backendError(w, r, err, applog.ComponentCustomer, applog.OpRead)
		return
	}
	s.render(w, r, http.StatusOK, "customer_detail_page", s.page(r, "Detail Pelanggan", "customers", c))
}

// handleCustomerLookup autofills the receipt form from an email. Short
// emails, misses and failures answer 204 so htmx leaves the form alone.
func (s *Server) handleCustomerLookup(w http.ResponseWriter, r *http.Request) {
	email := sanitizeInput(r.URL.Query().Get("customerEmail"))
	if len(email) < core.MinEmailLookup {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	c, ok := s.lookupCustomer(r.Context(), email)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.render(w, r, http.StatusOK, "customer_lookup", customerLookupView{Customer: c})
}

func (s *Server) lookupCustomer(ctx context.Context, email string) (core.Customer, bool) {
	key := customerCacheKey(email)
	if c, ok := s.customerCache.Get(key); ok {
		return c, true
	}
	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	c, err := s.backend.FindCustomerByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WithComponent(applog.ComponentCustomer).WarnContext(ctx, "Customer lookup failed",
				applog.FieldCustomerEmail, email, applog.FieldError, err)
		}
		return core.Customer{}, false
	}
	s.customerCache.Set(key, c)
	return c, true
}

func customerCacheKey(email string) string {
	return "email:" + strings.ToLower(strings.TrimSpace(email))
}

func customerErrors(err error) map[string]string {
	switch {
	case errors.Is(err, core.ErrInvalidEmail):
		return map[string]string{"email": "Email tidak valid"}
	case errors.Is(err, core.ErrEmptyName):
		return map[string]string{"name": "Nama wajib diisi"}
	case errors.Is(err, core.ErrEmptyPhone):
		return map[string]string{"phone": "Telepon wajib diisi"}
	case errors.Is(err, core.ErrEmptyAddress):
		return map[string]string{"address": "Alamat wajib diisi"}
	}
	return map[string]string{"form": err.Error()}
}
