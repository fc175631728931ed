package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("HX-Trigger header not set")
	}
	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v (%s)", err, raw)
	}
	return events
}

func TestAddFlowEvents(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerStateChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Added 50.00 TK for Hotel").
		Write(w)

	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("got %d %q, want empty 200", w.Code, w.Body.String())
	}
	events := decodeTriggers(t, w)
	for _, name := range []string{"state:changed", "form:reset", "show-notification"} {
		if _, ok := events[name]; !ok {
			t.Errorf("missing %s in %v", name, events)
		}
	}

	var note toast
	if err := json.Unmarshal(events["show-notification"], &note); err != nil {
		t.Fatal(err)
	}
	if note.Type != "success" || note.Message != "Added 50.00 TK for Hotel" || note.Duration != 3000 {
		t.Errorf("notification = %+v", note)
	}
}

func TestHistoryLoadedCarriesDate(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().TriggerHistoryLoaded("2025-03-01").Write(w)

	var detail struct{ Date string }
	if err := json.Unmarshal(decodeTriggers(t, w)["history:loaded"], &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Date != "2025-03-01" {
		t.Errorf("date = %q", detail.Date)
	}
}

func TestNotificationKinds(t *testing.T) {
	tests := []struct {
		name     string
		build    func(*HTMXResponseBuilder) *HTMXResponseBuilder
		wantType string
		wantMs   int
	}{
		{"success", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerSuccessNotification("ok") }, "success", 3000},
		{"error", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerErrorNotification("no") }, "error", 5000},
		{"warning", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerWarningNotification("hm") }, "warning", 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build(NewHTMXResponse()).Write(w)

			var note toast
			if err := json.Unmarshal(decodeTriggers(t, w)["show-notification"], &note); err != nil {
				t.Fatal(err)
			}
			if note.Type != tt.wantType || note.Duration != tt.wantMs {
				t.Errorf("got %+v, want type %s for %dms", note, tt.wantType, tt.wantMs)
			}
		})
	}
}

func TestErrorFragments(t *testing.T) {
	tests := []struct {
		builder    *HTMXResponseBuilder
		wantStatus int
	}{
		{BadRequestError("Invalid request format"), http.StatusBadRequest},
		{UnprocessableEntityError("Invalid history date."), http.StatusUnprocessableEntity},
		{NotFoundError("No transactions for Hotel"), http.StatusNotFound},
		{InternalServerError("Could not generate the invoice"), http.StatusInternalServerError},
		{BadGatewayError("Remote down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.builder.Write(w)

		if w.Code != tt.wantStatus {
			t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("content type = %q", ct)
		}
		want := `<div class="error">` + tt.builder.errMsg + `</div>`
		if w.Body.String() != want {
			t.Errorf("body = %q, want %q", w.Body.String(), want)
		}
	}
}

func TestErrorFragmentEscapesNames(t *testing.T) {
	w := httptest.NewRecorder()
	UnprocessableEntityError(`<img src=x onerror="alert(1)"> already exists`).Write(w)

	want := `<div class="error">&lt;img src=x onerror=&#34;alert(1)&#34;&gt; already exists</div>`
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
}

func TestMethodNotAllowedListsMethods(t *testing.T) {
	w := httptest.NewRecorder()
	RequireDeleteOrPOST(httptest.NewRequest(http.MethodGet, "/history/delete", nil)).Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "DELETE, POST" {
		t.Errorf("Allow = %q", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}
