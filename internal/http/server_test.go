package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwitansi/internal/auth"
	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/memory"
	"kwitansi/internal/middleware/ratelimit"
	"kwitansi/internal/ports"
	"kwitansi/internal/session"
)

const (
	testUser     = "admin"
	testPassword = "rahasia123"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{
		Level:     slog.LevelError,
		Component: applog.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(auth.NewIssuer("test-secret", time.Hour))
	require.NoError(t, store.Seed(context.Background(), testUser, testPassword))

	base := []Option{
		WithLogger(quietLogger()),
		WithRateLimit(ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Minute, EntryTTL: time.Minute}),
	}
	srv := NewServer(":0", store, session.NewMemoryStore(time.Hour), append(base, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	require.NotNil(t, srv.templates, "templates must parse")
	return srv, store
}

type request struct {
	method string
	path   string
	form   url.Values
	cookie *http.Cookie
	htmx   bool
}

func do(t *testing.T, srv *Server, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	if req.htmx {
		r.Header.Set("HX-Request", "true")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)
	return rr
}

func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: url.Values{
		"username": {testUser},
		"password": {testPassword},
	}})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// backendContext is an authenticated context for poking at the store.
func backendContext(t *testing.T, store *memory.Store) context.Context {
	t.Helper()
	sess, err := store.Login(context.Background(), testUser, testPassword)
	require.NoError(t, err)
	return auth.WithCredentials(context.Background(), auth.Credentials{Bearer: sess.Token})
}

func findReceipt(t *testing.T, store *memory.Store, email string) core.Receipt {
	t.Helper()
	page, err := store.ListReceipts(backendContext(t, store), ports.ListParams{Page: 1, Limit: 50, Search: email})
	require.NoError(t, err)
	require.NotEmpty(t, page.Data, "no receipt for %s", email)
	return page.Data[0]
}

func receiptForm(email string) url.Values {
	return url.Values{
		"customerEmail":     {email},
		"customerName":      {"Dewi Lestari"},
		"customerPhone":     {"081311112222"},
		"customerAddress":   {"Jl. Asia Afrika 8, Bandung"},
		"orderDetails":      {"Spanduk promosi"},
		"date":              {time.Now().Format(core.DateLayout)},
		"items.0.name":      {"Spanduk 3x1"},
		"items.0.unitPrice": {"150.000"},
		"items.0.quantity":  {"2"},
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	rr = do(t, srv, request{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, rr.Code)
	var ready map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ready))
	assert.Equal(t, "ready", ready["status"])

	rr = do(t, srv, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `receipts_saved_total{operation="create"} 0`)
	assert.Contains(t, rr.Body.String(), "cache_hits_total")
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, request{method: http.MethodGet, path: "/login"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, request{method: http.MethodGet, path: "/static/app.js"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "show-notification")
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("page", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/login?next=/receipts"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Masuk")
		assert.Contains(t, rr.Body.String(), `value="/receipts"`)
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: url.Values{"username": {"admin"}}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Username dan password wajib diisi.")
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: url.Values{
			"username": {testUser},
			"password": {"salah"},
		}})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Username atau password salah.")
	})

	t.Run("success honours next", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: url.Values{
			"username": {testUser},
			"password": {testPassword},
			"next":     {"/receipts"},
		}})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/receipts", rr.Header().Get("Location"))
	})

	t.Run("offsite next is dropped", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: url.Values{
			"username": {testUser},
			"password": {testPassword},
			"next":     {"//evil.example"},
		}})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
	})

	t.Run("logged in users skip the form", func(t *testing.T) {
		cookie := login(t, srv)
		rr := do(t, srv, request{method: http.MethodGet, path: "/login", cookie: cookie})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
	})
}

func TestLogoutDropsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodPost, path: "/logout", cookie: cookie})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = do(t, srv, request{method: http.MethodGet, path: "/receipts", cookie: cookie})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestRequireLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, request{method: http.MethodGet, path: "/receipts?page=2"})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/receipts?page=2"), rr.Header().Get("Location"))

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/receipts/table", htmx: true})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("HX-Redirect"))

	rr = do(t, srv, request{method: http.MethodGet, path: "/receipts", cookie: &http.Cookie{Name: session.CookieName, Value: "stale"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "stale cookie should be cleared")
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodGet, path: "/", cookie: cookie})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dashboard")
	assert.Contains(t, rr.Body.String(), `hx-get="/ui/dashboard?`)

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/dashboard", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Pembayaran Harian")
	assert.Contains(t, body, "Transaksi Bulanan")
	assert.Contains(t, body, "Total Transaksi")

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/dashboard/daily?year=2021&month=2&week=2", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<option value="2" selected>`)
	assert.Contains(t, rr.Body.String(), "Rp 0")

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/dashboard/monthly?year=2021&month=2", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Total Transaksi: <strong>0</strong>")
}

func TestReceiptsList(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodGet, path: "/receipts", cookie: cookie})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Daftar Kwitansi")
	assert.Contains(t, body, "Budi Santoso")
	assert.Contains(t, body, "Siti Rahma")
	assert.Contains(t, body, "LUNAS")
	assert.Contains(t, body, "Menampilkan 1 hingga 3 dari 3 hasil")

	t.Run("short search is not forwarded", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/ui/receipts/table?search=sit", cookie: cookie, htmx: true})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "dari 3 hasil")
	})

	t.Run("search narrows", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/ui/receipts/table?search=siti", cookie: cookie, htmx: true})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Siti Rahma")
		assert.NotContains(t, rr.Body.String(), "Budi Santoso")
		assert.Contains(t, rr.Body.String(), "dari 1 hasil")
	})

	t.Run("page past the end is clamped", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/ui/receipts/table?page=9", cookie: cookie, htmx: true})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Halaman 1 dari 1")
	})
}

func TestCustomers(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodGet, path: "/customers", cookie: cookie})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "CV Maju Jaya")

	t.Run("validation", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/customers", cookie: cookie, form: url.Values{
			"name":    {"Andi"},
			"email":   {"a@b"},
			"phone":   {"0811"},
			"address": {"Jl. Kenanga"},
		}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Email tidak valid")
	})

	t.Run("duplicate email", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/customers", cookie: cookie, form: url.Values{
			"name":    {"Budi Lain"},
			"email":   {"budi@example.com"},
			"phone":   {"0811"},
			"address": {"Jl. Kenanga"},
		}})
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "Email sudah terdaftar")
	})

	t.Run("create and show", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/customers", cookie: cookie, form: url.Values{
			"name":    {"Andi Wijaya"},
			"email":   {"andi@example.com"},
			"phone":   {"081377778888"},
			"address": {"Jl. Kenanga 3, Malang"},
		}})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		loc := rr.Header().Get("Location")
		assert.True(t, strings.HasPrefix(loc, "/customers/"), loc)

		rr = do(t, srv, request{method: http.MethodGet, path: loc, cookie: cookie})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Andi Wijaya")
	})

	t.Run("unknown customer", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/customers/9999", cookie: cookie})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCustomerLookup(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodGet, path: "/ui/customers/lookup?customerEmail=bud", cookie: cookie, htmx: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/customers/lookup?customerEmail=nobody@example.com", cookie: cookie, htmx: true})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/customers/lookup?customerEmail=budi@example.com", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="Budi Santoso"`)
	assert.Contains(t, rr.Body.String(), `hx-swap-oob="true"`)

	// second lookup is served from the cache
	rr = do(t, srv, request{method: http.MethodGet, path: "/ui/customers/lookup?customerEmail=BUDI@example.com", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), srv.customerCache.Stats().Hits)
}

func TestCreateReceipt(t *testing.T) {
	srv, store := newTestServer(t)
	cookie := login(t, srv)

	rr := do(t, srv, request{method: http.MethodGet, path: "/receipts/new", cookie: cookie})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Buat Nota Baru")
	assert.Contains(t, rr.Body.String(), `name="items.0.name"`)

	t.Run("incomplete draft", func(t *testing.T) {
		form := receiptForm("dewi@example.com")
		form.Del("orderDetails")
		form.Set("items.0.name", "")
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts", cookie: cookie, form: form})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Detail pesanan wajib diisi")
		assert.Contains(t, rr.Body.String(), "Nama item wajib diisi")
	})

	t.Run("saved", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts", cookie: cookie, form: receiptForm("dewi@example.com")})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/receipts", rr.Header().Get("Location"))

		rc := findReceipt(t, store, "dewi@example.com")
		assert.Equal(t, core.Money(300000), rc.TotalAmount)
		assert.False(t, rc.IsPaid)
		assert.Equal(t, int64(1), srv.appMetrics.receiptsCreated.Load())
	})

	t.Run("htmx submit redirects through the header", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts", cookie: cookie, htmx: true, form: receiptForm("eka@example.com")})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "/receipts", rr.Header().Get("HX-Redirect"))
	})
}

func TestCreateReceiptRejectsOversizedAmounts(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	t.Run("price too long", func(t *testing.T) {
		form := receiptForm("fajar@example.com")
		form.Set("items.0.unitPrice", "99999999999999999999")
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts", cookie: cookie, form: form})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Harga terlalu besar")
	})

	t.Run("row total overflows", func(t *testing.T) {
		form := receiptForm("fajar@example.com")
		form.Set("items.0.unitPrice", "922337203685477580")
		form.Set("items.0.quantity", "100")
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts", cookie: cookie, form: form})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Total item terlalu besar")
		assert.NotContains(t, rr.Body.String(), "Rp -")
	})
	assert.Zero(t, srv.appMetrics.receiptsCreated.Load())
}

func TestListSearchFiresOnEveryKeystroke(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	for _, path := range []string{"/customers", "/receipts"} {
		rr := do(t, srv, request{method: http.MethodGet, path: path, cookie: cookie})
		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, `hx-trigger="input changed, search"`, path)
		assert.NotContains(t, body, "delay:", path)
	}
}

func TestReceiptItemsPartial(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := login(t, srv)

	form := receiptForm("dewi@example.com")
	form.Set("action", "add")
	rr := do(t, srv, request{method: http.MethodPost, path: "/ui/receipts/items", cookie: cookie, htmx: true, form: form})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `name="items.1.name"`)
	assert.Contains(t, body, "Rp 300.000")

	form = receiptForm("dewi@example.com")
	form.Set("isPaid", "on")
	rr = do(t, srv, request{method: http.MethodPost, path: "/ui/receipts/items", cookie: cookie, htmx: true, form: form})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Biaya yang Sudah Dibayarkan</dt><dd>Rp 300.000")

	form.Set("action", "remove")
	form.Set("index", "0")
	rr = do(t, srv, request{method: http.MethodPost, path: "/ui/receipts/items", cookie: cookie, htmx: true, form: form})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `name="items.0.name"`)
	assert.Contains(t, rr.Body.String(), "Total Biaya</dt><dd>Rp 0")
}

func TestEditAndMarkPaid(t *testing.T) {
	srv, store := newTestServer(t)
	cookie := login(t, srv)
	siti := findReceipt(t, store, "siti@example.com")
	budi := findReceipt(t, store, "budi@example.com")
	sitiPath := "/receipts/" + itoa(siti.ID)

	t.Run("paid receipts are not editable", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/receipts/edit/" + itoa(budi.ID), cookie: cookie})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/receipts/"+itoa(budi.ID), rr.Header().Get("Location"))
	})

	t.Run("edit form", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/receipts/edit/" + itoa(siti.ID), cookie: cookie})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Ubah Nota")
		assert.Contains(t, rr.Body.String(), "Simpan Perubahan")
		assert.Contains(t, rr.Body.String(), `value="Undangan hardcover"`)
	})

	t.Run("update", func(t *testing.T) {
		form := receiptForm("siti@example.com")
		form.Set("customerName", "Siti Rahma")
		rr := do(t, srv, request{method: http.MethodPost, path: "/receipts/edit/" + itoa(siti.ID), cookie: cookie, form: form})
		require.Equal(t, http.StatusSeeOther, rr.Code)

		rc, err := store.GetReceipt(backendContext(t, store), siti.ID)
		require.NoError(t, err)
		assert.Equal(t, "Spanduk promosi", rc.OrderDetails)
		assert.Equal(t, core.Money(300000), rc.TotalAmount)
	})

	t.Run("mark paid", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: sitiPath + "/paid", cookie: cookie})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, sitiPath, rr.Header().Get("Location"))

		rr = do(t, srv, request{method: http.MethodGet, path: sitiPath, cookie: cookie})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Detail Nota")
		assert.Contains(t, rr.Body.String(), "Total Sudah Dibayarkan</dt><dd>Rp 300.000")
		assert.NotContains(t, rr.Body.String(), "Tandai Lunas")
	})
}

func TestCapabilityToken(t *testing.T) {
	srv, store := newTestServer(t)
	rc := findReceipt(t, store, "admin@majujaya.co.id")
	path := "/receipts/" + itoa(rc.ID)

	rr := do(t, srv, request{method: http.MethodGet, path: path + "?token=" + url.QueryEscape(rc.Token)})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, rc.ReceiptNumber)
	assert.Contains(t, body, "BELUM LUNAS")
	assert.Contains(t, body, "/receipts/edit/"+itoa(rc.ID)+"?token=")

	rr = do(t, srv, request{method: http.MethodGet, path: "/receipts/edit/" + itoa(rc.ID) + "?token=" + url.QueryEscape(rc.Token)})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ubah Nota")

	t.Run("wrong token", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: path + "?token=nope"})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/login"))
	})

	t.Run("token does not open the list", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodGet, path: "/receipts?token=" + url.QueryEscape(rc.Token)})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
	})

	t.Run("mark paid with token", func(t *testing.T) {
		rr := do(t, srv, request{method: http.MethodPost, path: path + "/paid?token=" + url.QueryEscape(rc.Token)})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, path+"?token="+url.QueryEscape(rc.Token), rr.Header().Get("Location"))

		got, err := store.GetReceipt(backendContext(t, store), rc.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
	})
}

func TestRateLimitedWrites(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimit(ratelimit.Config{
		RequestsPerSecond: 0.001,
		Burst:             1,
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	}))
	form := url.Values{"username": {testUser}, "password": {"salah"}}

	rr := do(t, srv, request{method: http.MethodPost, path: "/login", form: form})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, request{method: http.MethodPost, path: "/login", form: form, htmx: true})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "show-notification")

	// reads are not limited
	rr = do(t, srv, request{method: http.MethodGet, path: "/login"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, request{method: http.MethodGet, path: "/does-not-exist"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, request{method: http.MethodDelete, path: "/receipts"})
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
