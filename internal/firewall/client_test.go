package firewall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	c := NewClientWithURL("token", "prj_test", baseURL, false)
	c.SetRetryPolicy(3, time.Millisecond, 4*time.Millisecond)
	return c
}

func TestListRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.URL.Query().Get("projectId") != "prj_test" {
			t.Errorf("Missing projectId in query: %s", r.URL.RawQuery)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("Unexpected Authorization header: %s", auth)
		}
		fmt.Fprintln(w, `{"rules":[{"id":"rule_1","name":"Managed IP Allowlist","active":true,"action":"deny","conditions":[{"type":"ip_address","op":"not_in","value":["10.0.0.1"]}]}]}`)
	}))
	defer server.Close()

	rules, err := newTestClient(server.URL).ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}
	if rules[0].ID != "rule_1" || rules[0].Name != "Managed IP Allowlist" {
		t.Errorf("Unexpected rule: %+v", rules[0])
	}
	if addrs := rules[0].Addresses(); len(addrs) != 1 || addrs[0] != "10.0.0.1" {
		t.Errorf("Unexpected addresses: %v", rules[0].Addresses())
	}
}

func TestInsertRule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Action != "rules.insert" {
			t.Errorf("Expected action rules.insert, got %s", req.Action)
		}
		if req.Value == nil || req.Value.Name != "My Rule" {
			t.Errorf("Unexpected value: %+v", req.Value)
		}
		fmt.Fprintln(w, `{"id":"rule_new"}`)
	}))
	defer server.Close()

	value := NewRuleValue(ModeDeny, "My Rule", []string{"10.0.0.1"}, "", true)
	id, err := newTestClient(server.URL).InsertRule(context.Background(), value)
	if err != nil {
		t.Fatalf("InsertRule failed: %v", err)
	}
	if id != "rule_new" {
		t.Errorf("Expected id rule_new, got %s", id)
	}
}

func TestRemoveRuleRetriesServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"error":{"message":"internal error"}}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, `{}`)
	}))
	defer server.Close()

	err := newTestClient(server.URL).RemoveRule(context.Background(), "rule_1")
	if err != nil {
		t.Fatalf("RemoveRule should succeed after retries, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"permission denied"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdateRule(context.Background(), "rule_1", RuleValue{Name: "x"})
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != KindClient || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("Unexpected classification: %+v", apiErr)
	}
	if apiErr.Message != "permission denied" {
		t.Errorf("Expected upstream detail, got %q", apiErr.Message)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Client error must not be retried, got %d attempts", calls)
	}
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"too many requests"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := newTestClient(server.URL).RemoveRule(context.Background(), "rule_1")
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != KindRateLimited {
		t.Errorf("Expected rate limited kind, got %v", apiErr.Kind)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestNetworkErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := newTestClient(server.URL)
	_, err := c.ListRules(context.Background())
	if err == nil {
		t.Fatal("Expected error for refused connection")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != KindNetwork {
		t.Errorf("Expected network kind, got %v", apiErr.Kind)
	}
}
