package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]map[string]interface{} {
	t.Helper()
	var triggers map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	return triggers
}

func TestHTMXResponse_Defaults(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("Unexpected HX-Trigger header: %s", w.Header().Get("HX-Trigger"))
	}
	if w.Body.Len() != 0 {
		t.Errorf("Unexpected body: %q", w.Body.String())
	}
}

func TestHTMXResponse_Notify(t *testing.T) {
	tests := []struct {
		kind     NotificationType
		duration float64
	}{
		{NotificationError, 5000},
		{NotificationWarning, 4000},
		{NotificationSuccess, 3000},
		{NotificationInfo, 3000},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHTMXResponse().
				Status(http.StatusTooManyRequests).
				Notify(tt.kind, "Terlalu banyak permintaan").
				Write(w)

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("Status code = %d, want %d", w.Code, http.StatusTooManyRequests)
			}
			n, ok := decodeTriggers(t, w)["show-notification"]
			if !ok {
				t.Fatal("Missing show-notification trigger")
			}
			if n["type"] != string(tt.kind) {
				t.Errorf("type = %v, want %s", n["type"], tt.kind)
			}
			if n["message"] != "Terlalu banyak permintaan" {
				t.Errorf("message = %v", n["message"])
			}
			if n["duration"] != tt.duration {
				t.Errorf("duration = %v, want %v", n["duration"], tt.duration)
			}
		})
	}
}

func TestHTMXResponse_MultipleTriggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Trigger("receipt:saved", map[string]int64{"id": 7}).
		Notify(NotificationInfo, "Tersimpan").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"receipt:saved":{"id":7}`) {
		t.Errorf("Missing receipt:saved trigger: %s", trigger)
	}
	if !strings.Contains(trigger, `"show-notification"`) {
		t.Errorf("Missing show-notification trigger: %s", trigger)
	}
}

func TestHTMXResponse_NavigationHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Redirect("/receipts").
		Retarget("#notifications").
		Header("X-Custom", "value").
		Status(http.StatusCreated).
		Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/receipts" {
		t.Errorf("HX-Redirect = %q, want /receipts", got)
	}
	if got := w.Header().Get("HX-Retarget"); got != "#notifications" {
		t.Errorf("HX-Retarget = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponse
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Format permintaan tidak valid"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="alert alert-error" role="alert">Format permintaan tidak valid</div>`,
		},
		{
			name:       "bad gateway",
			builder:    ErrorResponse(http.StatusBadGateway, "Gagal"),
			wantStatus: http.StatusBadGateway,
			wantBody:   `<div class="alert alert-error" role="alert">Gagal</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if n := decodeTriggers(t, w)["show-notification"]; n["type"] != "error" {
				t.Errorf("expected error toast, got %v", n)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusBadRequest, `<script>alert("x")</script>`).Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("Message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("Expected escaped script tag: %s", body)
	}
}
