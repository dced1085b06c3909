package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{
		RulesPath:  "testdata/rules.yaml",
		LookupPath: "testdata/lookup.yaml",
		LookupTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestProcessEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/invoices/process", map[string]any{
		"invoice": map[string]any{
			"invoice_number": "INV-001",
			"total_amount":   100.0,
			"country":        "CN",
			"supplier":       map[string]any{"name": "Acme"},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp ProcessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}

	if resp.RunID == "" {
		t.Error("missing run_id")
	}
	if resp.Document.Supplier == nil || resp.Document.Supplier.TaxNo != "91000000000000000X" {
		t.Errorf("completion did not fill tax number: %+v", resp.Document.Supplier)
	}
	if resp.Document.Currency != "CNY" {
		t.Errorf("currency = %q, want CNY", resp.Document.Currency)
	}
	if resp.Validation == nil || !resp.Validation.Valid {
		t.Errorf("validation = %+v, want valid", resp.Validation)
	}
	if len(resp.ExecutionLog) != 2 {
		t.Errorf("got %d log entries, want 2", len(resp.ExecutionLog))
	}
}

func TestValidateEndpointReportsErrors(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/invoices/validate", map[string]any{
		"invoice": map[string]any{
			"invoice_number": "INV-002",
			"total_amount":   0.0,
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["valid"] != false {
		t.Errorf("valid = %v, want false", body["valid"])
	}
}

func TestCompleteEndpointRejectsMissingInvoice(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/invoices/complete", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCheckExpressionEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/expressions/validate", map[string]string{
		"expression": "invoice.total_amount > 0.0",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp CheckExpressionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Valid {
		t.Errorf("valid expression rejected: %s", resp.Error)
	}

	rec = postJSON(t, s, "/api/v1/expressions/validate", map[string]string{
		"expression": "invoice.total_amount >",
	})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Valid {
		t.Error("invalid expression accepted")
	}
	if resp.Error == "" {
		t.Error("missing compile error detail")
	}
}

func TestListAndReloadRules(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp RulesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(listResp.Completion) != 2 || len(listResp.Validation) != 1 {
		t.Errorf("rules = %d completion, %d validation", len(listResp.Completion), len(listResp.Validation))
	}

	rec = postJSON(t, s, "/api/v1/rules/reload", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
}
