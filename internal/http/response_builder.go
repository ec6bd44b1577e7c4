package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// notificationEvent is the HX-Trigger event app.js listens for.
const notificationEvent = "show-notification"

// notificationDuration is how long a toast stays up, in milliseconds.
func notificationDuration(t NotificationType) int {
	switch t {
	case NotificationError:
		return 5000
	case NotificationWarning:
		return 4000
	}
	return 3000
}

// HTMXResponse collects the HX-* headers, status and body of a response
// that is not rendered from a template.
type HTMXResponse struct {
	status  int
	events  map[string]any
	headers http.Header
	body    string
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{status: http.StatusOK, headers: http.Header{}}
}

func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

// Trigger fires a client event with detail payload.
func (b *HTMXResponse) Trigger(event string, detail any) *HTMXResponse {
	if b.events == nil {
		b.events = map[string]any{}
	}
	b.events[event] = detail
	return b
}

// Notify shows a toast with the default duration for its type.
func (b *HTMXResponse) Notify(t NotificationType, message string) *HTMXResponse {
	return b.Trigger(notificationEvent, map[string]any{
		"type":     string(t),
		"message":  message,
		"duration": notificationDuration(t),
	})
}

// Redirect makes htmx navigate the whole page to target.
func (b *HTMXResponse) Redirect(target string) *HTMXResponse {
	return b.Header("HX-Redirect", target)
}

// Retarget swaps the response into selector instead of the requesting
// element's target.
func (b *HTMXResponse) Retarget(selector string) *HTMXResponse {
	return b.Header("HX-Retarget", selector)
}

func (b *HTMXResponse) Header(name, value string) *HTMXResponse {
	b.headers.Set(name, value)
	return b
}

// Alert sets an escaped alert box as the body.
func (b *HTMXResponse) Alert(message string) *HTMXResponse {
	b.headers.Set("Content-Type", "text/html; charset=utf-8")
	b.body = `<div class="alert alert-error" role="alert">` + template.HTMLEscapeString(message) + `</div>`
	return b
}

func (b *HTMXResponse) Write(w http.ResponseWriter) {
	for name, values := range b.headers {
		w.Header()[name] = values
	}
	if len(b.events) > 0 {
		if payload, err := json.Marshal(b.events); err == nil {
			w.Header().Set("HX-Trigger", string(payload))
		}
	}
	w.WriteHeader(b.status)
	if b.body != "" {
		_, _ = w.Write([]byte(b.body))
	}
}

// ErrorResponse is an alert with status code. Failed htmx requests also get
// a toast, since htmx does not swap error responses by default.
func ErrorResponse(code int, message string) *HTMXResponse {
	return NewHTMXResponse().Status(code).Alert(message).Notify(NotificationError, message)
}

func BadRequestError(message string) *HTMXResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}
