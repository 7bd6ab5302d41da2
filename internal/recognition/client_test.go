package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"scanstream/internal/prepare"
)

const testPayload = prepare.Payload("data:image/png;base64,iVBORw0KGgo=")

func newFakeService(t *testing.T, scan http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc(identificationsPath, scan).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc(anonymousUserPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("anonymous") != "true" {
			http.Error(w, `{"errors":["anonymous flag missing"]}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(User{ID: "U1", APIKey: "anon-key"})
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "app-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestScanSendsImageAndFilter(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "app-key" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.URL.Query().Get("filter"); got != "method=2d&type=qr_code" {
			t.Errorf("unexpected filter %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["image"] != testPayload.String() {
			t.Errorf("image not forwarded")
		}
		_ = json.NewEncoder(w).Encode(ResultList{{
			Results: []Entity{{Product: &Resource{ID: "P1", Name: "Soap"}}},
			Meta:    Meta{Type: "qr_code", Value: "ABC123"},
		}})
	})

	res, err := client.Scan(context.Background(), testPayload, ScanOptions{Filter: "method=2d&type=qr_code"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !res.Found() || res.FirstValue() != "ABC123" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScanEmptyListIsNotFound(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	res, err := client.Scan(context.Background(), testPayload, ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Found() {
		t.Fatalf("empty list reported as found")
	}
}

func TestScanInsufficientDetail(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"errors":["The image provided is lacking sufficient detail."]}`))
	})

	_, err := client.Scan(context.Background(), testPayload, ScanOptions{})
	if !IsInsufficientDetail(err) {
		t.Fatalf("expected insufficient detail, got %v", err)
	}
}

func TestScanOtherErrorsSurface(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Scan(context.Background(), testPayload, ScanOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 API error, got %v", err)
	}
	if IsInsufficientDetail(err) {
		t.Fatalf("plain failure classified as insufficient detail")
	}
}

func TestIdentifyBuildsValueFilter(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("identify must GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("filter"); got != "type=qr_code&value=https://x.test/a" {
			t.Errorf("unexpected filter %q", got)
		}
		_ = json.NewEncoder(w).Encode(MetaOnly("2d", "qr_code", "https://x.test/a"))
	})

	res, err := client.Identify(context.Background(), "qr_code", "https://x.test/a")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if res.FirstValue() != "https://x.test/a" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCreateAnonymousUser(t *testing.T) {
	client, _ := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {})

	user, err := client.CreateAnonymousUser(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.APIKey != "anon-key" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(ClientOptions{BaseURL: "https://api.test"}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient(ClientOptions{BaseURL: "not a url", APIKey: "k"}); err == nil {
		t.Fatalf("expected error for relative base URL")
	}
}
