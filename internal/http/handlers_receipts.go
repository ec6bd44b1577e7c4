package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"kwitansi/internal/auth"
	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/ports"
)

type receiptFormView struct {
	Draft  core.ReceiptDraft
	ID     int64
	Token  string
	Errors error
	Notice string
}

// Editing reports whether the form updates an existing receipt.
func (v receiptFormView) Editing() bool { return v.ID > 0 }

// Action is where the form posts to.
func (v receiptFormView) Action() string {
	if v.Editing() {
		return receiptURL("/receipts/edit/"+strconv.FormatInt(v.ID, 10), v.Token)
	}
	return "/receipts"
}

// ItemsURL is the endpoint recomputing the item rows.
func (v receiptFormView) ItemsURL() string {
	return receiptURL("/ui/receipts/items", v.Token)
}

func (v receiptFormView) PaidURL() string {
	return receiptURL("/receipts/"+strconv.FormatInt(v.ID, 10)+"/paid", v.Token)
}

type receiptDetailView struct {
	Receipt core.Receipt
	Token   string
}

func (v receiptDetailView) EditURL() string {
	return receiptURL("/receipts/edit/"+strconv.FormatInt(v.Receipt.ID, 10), v.Token)
}

func (v receiptDetailView) PaidURL() string {
	return receiptURL("/receipts/"+strconv.FormatInt(v.Receipt.ID, 10)+"/paid", v.Token)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	v, ok := s.receiptList(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "receipts_page", s.page(r, "Daftar Kwitansi", "receipts", v))
}

func (s *Server) handleReceiptsTable(w http.ResponseWriter, r *http.Request) {
	v, ok := s.receiptList(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "receipts_table", v)
}

// receiptList fetches one page. The search box value is kept for the form
// but only forwarded once it is longer than three characters.
func (s *Server) receiptList(w http.ResponseWriter, r *http.Request) (listView[core.Receipt], bool) {
	state := parsePageState(r.URL.Query())
	v := listView[core.Receipt]{
		State:     state,
		Path:      "/ui/receipts/table",
		SizeOpts:  core.PageSizeOptions,
		HasSearch: core.ReceiptSearchTerm(state.Query) != "",
		Page:      core.Page[core.Receipt]{Data: []core.Receipt{}, Page: 1, LastPage: 1},
	}
	page, err := s.fetchReceipts(r.Context(), state)
	if err != nil {
		if !s.listError(w, r, err, applog.ComponentReceipt, applog.OpList,
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

func (s *Server) fetchReceipts(ctx context.Context, state core.PageState) (core.Page[core.Receipt], error) {
	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	p := ports.ListParams{Page: state.Page, Limit: state.PageSize, Search: core.ReceiptSearchTerm(state.Query)}
	page, err := s.backend.ListReceipts(ctx, p)
	if err != nil {
		return page, err
	}
	if page.LastPage >= 1 && state.Page > page.LastPage {
		p.Page = page.LastPage
		return s.backend.ListReceipts(ctx, p)
	}
	return page, nil
}

func (s *Server) handleReceiptDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "receipts", nil))
		return
	}
	rc, err := s.backend.GetReceipt(r.Context(), id)
	if err != nil {
		s.backendError(w, r, err, applog.ComponentReceipt, applog.OpRead)
		return
	}
	s.render(w, r, http.StatusOK, "receipt_detail_page", s.page(r, "Detail Nota", "receipts", receiptDetailView{
		Receipt: rc,
		Token:   auth.FromContext(r.Context()).Capability,
	}))
}

func (s *Server) handleNewReceipt(w http.ResponseWriter, r *http.Request) {
	form := receiptFormView{Draft: core.NewDraft(s.now())}
	s.render(w, r, http.StatusOK, "receipt_form_page", s.page(r, "Buat Nota Baru", "receipts", form))
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	d := ParseReceiptDraft(r.PostForm)
	form := receiptFormView{Draft: d}
	if !s.validDraft(w, r, &form) {
		return
	}

	rc, err := s.backend.CreateReceipt(r.Context(), form.Draft)
	if err != nil {
		s.draftSaveError(w, r, err, form, applog.OpCreate)
		return
	}

	s.appMetrics.receiptsCreated.Add(1)
	s.invalidateReceiptCaches(rc.Customer.Email)
	s.structured.LogReceiptSaved(r.Context(), applog.OpCreate, rc.ID, rc.ReceiptNumber, int64(rc.TotalAmount), rc.IsPaid)
	redirect(w, r, "/receipts")
}

func (s *Server) handleEditReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "receipts", nil))
		return
	}
	rc, err := s.backend.GetReceipt(r.Context(), id)
	if err != nil {
		s.backendError(w, r, err, applog.ComponentReceipt, applog.OpRead)
		return
	}
	token := auth.FromContext(r.Context()).Capability
	if !rc.Editable() {
		redirect(w, r, receiptURL("/receipts/"+strconv.FormatInt(id, 10), token))
		return
	}
	form := receiptFormView{Draft: core.DraftFromReceipt(rc), ID: id, Token: token}
	s.render(w, r, http.StatusOK, "receipt_form_page", s.page(r, "Ubah Nota", "receipts", form))
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "receipts", nil))
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	token := auth.FromContext(r.Context()).Capability
	form := receiptFormView{Draft: ParseReceiptDraft(r.PostForm), ID: id, Token: token}
	if !s.validDraft(w, r, &form) {
		return
	}

	rc, err := s.backend.UpdateReceipt(r.Context(), id, form.Draft)
	if err != nil {
		s.draftSaveError(w, r, err, form, applog.OpUpdate)
		return
	}

	s.appMetrics.receiptsUpdated.Add(1)
	s.invalidateReceiptCaches(rc.Customer.Email)
	s.structured.LogReceiptSaved(r.Context(), applog.OpUpdate, rc.ID, rc.ReceiptNumber, int64(rc.TotalAmount), rc.IsPaid)
	redirect(w, r, "/receipts")
}

// handleMarkPaid sends the partial {isPaid:true} update and shows the
// receipt.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render(w, r, http.StatusNotFound, "not_found_page", s.page(r, "Tidak ditemukan", "receipts", nil))
		return
	}
	rc, err := s.backend.MarkReceiptPaid(r.Context(), id)
	if err != nil {
		s.backendError(w, r, err, applog.ComponentReceipt, applog.OpMarkPaid)
		return
	}

	s.appMetrics.receiptsPaid.Add(1)
	s.invalidateReceiptCaches("")
	s.structured.LogReceiptSaved(r.Context(), applog.OpMarkPaid, rc.ID, rc.ReceiptNumber, int64(rc.TotalAmount), rc.IsPaid)
	redirect(w, r, receiptURL("/receipts/"+strconv.FormatInt(id, 10), auth.FromContext(r.Context()).Capability))
}

// handleReceiptItems re-renders the item rows and totals after a row was
// added, removed or edited.
func (s *Server) handleReceiptItems(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	d := ParseReceiptDraft(r.PostForm)
	ParseItemAction(r.PostForm).Apply(&d)
	s.render(w, r, http.StatusOK, "receipt_items", receiptFormView{
		Draft: d,
		Token: auth.FromContext(r.Context()).Capability,
	})
}

// validDraft prepares the draft and re-renders the form with messages when
// it is incomplete.
func (s *Server) validDraft(w http.ResponseWriter, r *http.Request, form *receiptFormView) bool {
	form.Draft.Prepare()
	if err := form.Draft.Validate(); err != nil {
		form.Errors = err
		s.render(w, r, http.StatusUnprocessableEntity, "receipt_form_page", s.page(r, formTitle(*form), "receipts", *form))
		return false
	}
	return true
}

func (s *Server) draftSaveError(w http.ResponseWriter, r *http.Request, err error, form receiptFormView, op string) {
	var verrs core.ValidationErrors
	switch {
	case errors.Is(err, ports.ErrUnauthorized), errors.Is(err, ports.ErrNotFound):
		s.backendError(w, r, err, applog.ComponentReceipt, op)
		return
	case errors.As(err, &verrs):
		form.Errors = verrs
		s.render(w, r, http.StatusUnprocessableEntity, "receipt_form_page", s.page(r, formTitle(form), "receipts", form))
		return
	}
	s.structured.LogError(r.Context(), "Failed to save receipt", err, applog.ComponentReceipt, op,
		applog.NewFields().WithReceipt(form.ID, "", int64(form.Draft.TotalAmount), form.Draft.IsPaid))
	form.Notice = backendMessage(err)
	s.render(w, r, http.StatusBadGateway, "receipt_form_page", s.page(r, formTitle(form), "receipts", form))
}

func formTitle(form receiptFormView) string {
	if form.Editing() {
		return "Ubah Nota"
	}
	return "Buat Nota Baru"
}
