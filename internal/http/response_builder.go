package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
)

// HTMXResponseBuilder assembles a reply to an htmx request. UI side effects
// travel as events in the HX-Trigger header; failures also carry a small
// error fragment for the hx-target.
type HTMXResponseBuilder struct {
	status int
	events map[string]any
	errMsg string
	allow  string
}

// NewHTMXResponse starts a 200 reply with no events.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{status: http.StatusOK, events: map[string]any{}}
}

func (b *HTMXResponseBuilder) event(name string, detail any) *HTMXResponseBuilder {
	b.events[name] = detail
	return b
}

// TriggerStateChanged reloads every partial listening for state:changed.
func (b *HTMXResponseBuilder) TriggerStateChanged() *HTMXResponseBuilder {
	return b.event("state:changed", struct{}{})
}

// TriggerFormReset clears the entry forms after a successful add.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.event("form:reset", struct{}{})
}

// TriggerHistoryLoaded carries the loaded date so the page can show the
// "Viewing" badge and close the history modal.
func (b *HTMXResponseBuilder) TriggerHistoryLoaded(dateKey string) *HTMXResponseBuilder {
	return b.event("history:loaded", map[string]string{"date": dateKey})
}

// toast is the detail of a show-notification event, read by app.js.
type toast struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Duration int    `json:"duration"`
}

func (b *HTMXResponseBuilder) notify(kind, message string, ms int) *HTMXResponseBuilder {
	return b.event("show-notification", toast{Type: kind, Message: message, Duration: ms})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.notify("success", message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.notify("error", message, 5000)
}

// TriggerWarningNotification stays up longer; used when the remote store
// could not be reached but local state was kept.
func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.notify("warning", message, 6000)
}

// Write sends headers, status and, for failures, the escaped error fragment.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	if b.allow != "" {
		h.Set("Allow", b.allow)
	}
	if len(b.events) > 0 {
		if data, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(data))
		}
	}
	if b.errMsg == "" {
		w.WriteHeader(b.status)
		return
	}
	h.Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(b.status)
	_, _ = fmt.Fprintf(w, `<div class="error">%s</div>`, template.HTMLEscapeString(b.errMsg))
}

// ErrorResponse is a failure reply rendering message as an error fragment.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	b := NewHTMXResponse()
	b.status = status
	b.errMsg = message
	return b
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// BadGatewayError reports a remote history store failure.
func BadGatewayError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError is an empty 405 listing the accepted methods.
func MethodNotAllowedError(allowed string) *HTMXResponseBuilder {
	b := NewHTMXResponse()
	b.status = http.StatusMethodNotAllowed
	b.allow = allowed
	return b
}
