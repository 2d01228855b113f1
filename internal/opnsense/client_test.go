package opnsense

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grimm.is/opnwatch/internal/logging"
)

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{WithLogger(logging.Discard()), WithName("test")}, opts...)
	return NewClient(url, "key", "secret", opts...)
}

func TestClient_BasicAuthAndPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/routes/gateway/status" {
			t.Errorf("expected path /api/routes/gateway/status, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("expected basic auth key/secret, got %q/%q (ok=%v)", user, pass, ok)
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			t.Errorf("expected no Content-Type on GET, got %q", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"name": "WAN_GW", "status": "none", "status_translated": "Online", "delay": "12.3 ms", "loss": "0.0 %"},
			},
			"status": "ok",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL + "/")
	status, err := client.GatewayStatus(context.Background())
	if err != nil {
		t.Fatalf("GatewayStatus failed: %v", err)
	}
	if len(status.Items) != 1 {
		t.Fatalf("expected 1 gateway, got %d", len(status.Items))
	}
	gw := status.Items[0]
	if gw.Name != "WAN_GW" || gw.StatusTranslated != "Online" || gw.Delay != "12.3 ms" {
		t.Errorf("unexpected gateway: %+v", gw)
	}
}

func TestClient_MissingItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).GatewayStatus(context.Background())
	if err != nil {
		t.Fatalf("GatewayStatus failed: %v", err)
	}
	if status.Items != nil {
		t.Errorf("expected nil items, got %v", status.Items)
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":401,"message":"Authentication Failed"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GatewayStatus(context.Background())
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "Authentication Failed") {
		t.Errorf("expected body in error, got %q", apiErr.Body)
	}
}

func TestClient_FindAliasUUID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firewall/alias/searchItem" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"rows":[
			{"uuid":"aaa","name":"Other"},
			{"uuid":"bbb","name":"Bloqueio_Sites"}
		],"rowCount":2}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	uuid, err := client.FindAliasUUID(context.Background(), "Bloqueio_Sites")
	if err != nil {
		t.Fatalf("FindAliasUUID failed: %v", err)
	}
	if uuid != "bbb" {
		t.Errorf("expected uuid bbb, got %s", uuid)
	}

	_, err = client.FindAliasUUID(context.Background(), "Missing")
	if !errors.Is(err, ErrAliasNotFound) {
		t.Errorf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestClient_SetAliasContent(t *testing.T) {
	var gotBody map[string]map[string]string
	result := "saved"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firewall/alias/setItem/bbb" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = nil
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]string{"result": result})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.SetAliasContent(context.Background(), "bbb", []string{"facebook.com", "youtube.com"}); err != nil {
		t.Fatalf("SetAliasContent failed: %v", err)
	}
	if got := gotBody["alias"]["content"]; got != "facebook.com\nyoutube.com" {
		t.Errorf("unexpected content payload %q", got)
	}

	result = "failed"
	err := client.SetAliasContent(context.Background(), "bbb", []string{"x"})
	if !errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("expected ErrUnexpectedResult, got %v", err)
	}
}

func TestClient_ApplyAliases(t *testing.T) {
	status := "ok\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firewall/alias/reconfigure" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.ApplyAliases(context.Background()); err != nil {
		t.Fatalf("ApplyAliases failed: %v", err)
	}

	status = "error"
	if err := client.ApplyAliases(context.Background()); !errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("expected ErrUnexpectedResult, got %v", err)
	}
}

func TestClient_AliasContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alias":{"content":{
			"youtube.com":{"value":"youtube.com","selected":1},
			"facebook.com":{"value":"facebook.com","selected":"1"},
			"":{"value":"","selected":0}
		}}}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL).AliasContent(context.Background(), "bbb")
	if err != nil {
		t.Fatalf("AliasContent failed: %v", err)
	}
	if strings.Join(content, ",") != "facebook.com,youtube.com" {
		t.Errorf("unexpected content %v", content)
	}
}

func TestClient_Failover(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	hits := 0
	alt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"items":[]}`))
	}))
	defer alt.Close()

	client := newTestClient(deadURL, WithAlternativeURL(alt.URL), WithTimeout(2*time.Second))
	status, err := client.GatewayStatus(context.Background())
	if err != nil {
		t.Fatalf("expected failover to succeed, got %v", err)
	}
	if hits != 1 {
		t.Errorf("expected 1 request on alternative, got %d", hits)
	}
	if status.Items == nil || len(status.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %#v", status.Items)
	}
}

func TestClient_NoFailoverOnAPIError(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	hits := 0
	alt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer alt.Close()

	client := newTestClient(primary.URL, WithAlternativeURL(alt.URL))
	if _, err := client.GatewayStatus(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if hits != 0 {
		t.Errorf("alternative should not be used for HTTP errors, got %d hits", hits)
	}
}

func TestClient_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"device":"dev.cpu.0.temperature","type":"cpu","temperature":"45.0"},{"device":"acpi","type":"zone","temperature":51}]`))
	}))
	defer server.Close()

	var endpoints []string
	client := newTestClient(server.URL, WithObserver(func(endpoint string, err error, _ time.Duration) {
		if err != nil {
			t.Errorf("unexpected observed error: %v", err)
		}
		endpoints = append(endpoints, endpoint)
	}))

	temps, err := client.Temperatures(context.Background())
	if err != nil {
		t.Fatalf("Temperatures failed: %v", err)
	}
	if len(temps) != 2 || temps[0].Temperature != "45.0" || temps[1].Temperature != "51" {
		t.Errorf("unexpected temperatures: %+v", temps)
	}
	if len(endpoints) != 1 || endpoints[0] != endpointTemperature {
		t.Errorf("unexpected observed endpoints: %v", endpoints)
	}
}

func TestClient_Traffic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"interfaces":{"wan":{"name":"wan","bytes received":"1073741824","bytes transmitted":2147483648}},"time":1}`))
	}))
	defer server.Close()

	traffic, err := newTestClient(server.URL).Traffic(context.Background())
	if err != nil {
		t.Fatalf("Traffic failed: %v", err)
	}
	wan, ok := traffic["wan"]
	if !ok {
		t.Fatal("expected wan interface")
	}
	if wan.BytesReceived != "1073741824" || wan.BytesTransmitted != "2147483648" {
		t.Errorf("unexpected counters: %+v", wan)
	}
}
