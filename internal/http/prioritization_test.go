package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doPrioritization(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestPrioritizationGetReturnsDefaultWhenUnset(t *testing.T) {
	mux, _ := newTestMux("")

	w := doPrioritization(t, mux, http.MethodGet, "/v1/conversations/conv-1/prioritization", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp prioritizationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.IsDefault {
		t.Error("is_default = false, want true")
	}
	if resp.MinimumNotifyPrice != 1.0 {
		t.Errorf("minimum_notify_price = %v, want system default 1.0", resp.MinimumNotifyPrice)
	}
	if !resp.IsEnabled {
		t.Error("is_enabled = false, want true by default")
	}
}

func TestPrioritizationPutThenGet(t *testing.T) {
	mux, _ := newTestMux("")

	w := doPrioritization(t, mux, http.MethodPut, "/v1/conversations/conv-1/prioritization",
		`{"minimum_notify_price":3.5,"custom_value_prompt":"only billing matters","is_enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	w = doPrioritization(t, mux, http.MethodGet, "/v1/conversations/conv-1/prioritization", "")
	var resp prioritizationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsDefault {
		t.Error("is_default = true after put, want false")
	}
	if resp.MinimumNotifyPrice != 3.5 {
		t.Errorf("minimum_notify_price = %v, want 3.5", resp.MinimumNotifyPrice)
	}
	if resp.CustomValuePrompt != "only billing matters" {
		t.Errorf("custom_value_prompt = %q", resp.CustomValuePrompt)
	}
}

func TestPrioritizationPutDefaultsEnabled(t *testing.T) {
	mux, _ := newTestMux("")

	w := doPrioritization(t, mux, http.MethodPut, "/v1/conversations/conv-1/prioritization",
		`{"minimum_notify_price":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200", w.Code)
	}

	var resp prioritizationResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.IsEnabled {
		t.Error("is_enabled = false, want true when omitted")
	}
}

func TestPrioritizationNegativePriceAccepted(t *testing.T) {
	mux, _ := newTestMux("")

	w := doPrioritization(t, mux, http.MethodPut, "/v1/conversations/conv-1/prioritization",
		`{"minimum_notify_price":-1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200 (negative threshold is always-allow)", w.Code)
	}
}

func TestPrioritizationDelete(t *testing.T) {
	mux, _ := newTestMux("")

	w := doPrioritization(t, mux, http.MethodDelete, "/v1/conversations/conv-1/prioritization", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete of unset config = %d, want 404", w.Code)
	}

	doPrioritization(t, mux, http.MethodPut, "/v1/conversations/conv-1/prioritization", `{"minimum_notify_price":2}`)

	w = doPrioritization(t, mux, http.MethodDelete, "/v1/conversations/conv-1/prioritization", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	w = doPrioritization(t, mux, http.MethodGet, "/v1/conversations/conv-1/prioritization", "")
	var resp prioritizationResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.IsDefault {
		t.Error("is_default = false after delete, want true")
	}
}
