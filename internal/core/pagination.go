package core

import "strings"

// PageSizeOptions are the page sizes offered by list views.
var PageSizeOptions = []int{1, 5, 10, 20, 50, 100}

const DefaultPageSize = 10

// MinReceiptSearch is the length a receipt search must exceed to be sent.
const MinReceiptSearch = 3

// Page is one page of a paginated collection as returned by the backend.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// NewPage builds a page for a total count, computing the last page.
func NewPage[T any](data []T, total, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Total: total, Page: page, LastPage: LastPage(total, limit)}
}

// LastPage is the number of pages needed for total rows, at least 1.
func LastPage(total, limit int) int {
	if limit < 1 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// PageState is the page, size and search query of a list view.
type PageState struct {
	Page     int
	PageSize int
	Query    string
}

// NewPageState returns a normalized state.
func NewPageState(page, size int, query string) PageState {
	return PageState{Page: page, PageSize: size, Query: query}.Normalize()
}

// Normalize clamps the page to at least 1 and replaces unknown sizes with
// the default.
func (s PageState) Normalize() PageState {
	if s.Page < 1 {
		s.Page = 1
	}
	if !validPageSize(s.PageSize) {
		s.PageSize = DefaultPageSize
	}
	s.Query = strings.TrimSpace(s.Query)
	return s
}

// WithPageSize changes the size and goes back to the first page.
func (s PageState) WithPageSize(size int) PageState {
	s.PageSize = size
	s.Page = 1
	return s.Normalize()
}

// WithQuery changes the query and goes back to the first page.
func (s PageState) WithQuery(q string) PageState {
	s.Query = q
	s.Page = 1
	return s.Normalize()
}

// Next moves forward unless already on lastPage.
func (s PageState) Next(lastPage int) PageState {
	if s.Page < lastPage {
		s.Page++
	}
	return s.Clamp(lastPage)
}

// Prev moves back unless already on the first page.
func (s PageState) Prev() PageState {
	if s.Page > 1 {
		s.Page--
	}
	return s
}

// Last jumps to lastPage.
func (s PageState) Last(lastPage int) PageState {
	s.Page = lastPage
	return s.Clamp(lastPage)
}

// Clamp keeps the page within [1, lastPage].
func (s PageState) Clamp(lastPage int) PageState {
	if lastPage < 1 {
		lastPage = 1
	}
	if s.Page > lastPage {
		s.Page = lastPage
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// Offset is the zero based row index of the first row of the page.
func (s PageState) Offset() int {
	return (s.Page - 1) * s.PageSize
}

// ReceiptSearchTerm returns q when it is long enough to search receipts,
// otherwise "".
func ReceiptSearchTerm(q string) string {
	q = strings.TrimSpace(q)
	if len([]rune(q)) > MinReceiptSearch {
		return q
	}
	return ""
}

// RangeStart is the 1-based index of the first row shown.
func (p Page[T]) RangeStart(pageSize int) int {
	if p.Total == 0 {
		return 0
	}
	return (p.Page-1)*pageSize + 1
}

// RangeEnd is the 1-based index of the last row shown.
func (p Page[T]) RangeEnd(pageSize int) int {
	end := p.Page * pageSize
	if end > p.Total {
		end = p.Total
	}
	return end
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Page[T]) HasNext() bool { return p.Page < p.LastPage }

func validPageSize(n int) bool {
	for _, opt := range PageSizeOptions {
		if opt == n {
			return true
		}
	}
	return false
}
