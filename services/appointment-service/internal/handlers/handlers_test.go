package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paventhan183/dr-appointment/libs/auth"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/events"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingStore struct {
	storage.Store
}

func (failingStore) List(context.Context) ([]model.Appointment, error) {
	return nil, errors.New("disk on fire")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, issuer *auth.Issuer) (*httptest.Server, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	store := storage.NewFileRepository(filepath.Join(t.TempDir(), "appointments.json"))
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Store:  store,
		Events: pub,
		Logger: testLogger(),
		Issuer: issuer,
	}))
	t.Cleanup(srv.Close)
	return srv, pub
}

func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

const janeDoe = `{"name":"Jane Doe","date":"2024-06-01","time":"10:00","services":[{"description":"Cleaning","cost":50}]}`

func TestAppointmentLifecycle(t *testing.T) {
	srv, pub := newTestServer(t, nil)

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/appointments", janeDoe, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	created := decode[map[string]any](t, raw)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected id in body, got %s", raw)
	}
	if created["name"] != "Jane Doe" {
		t.Fatalf("expected name Jane Doe, got %v", created["name"])
	}
	if flag, ok := created["billupdateflag"].(bool); !ok || flag {
		t.Fatalf("expected billupdateflag false, got %v", created["billupdateflag"])
	}

	resp, raw = do(t, http.MethodGet, srv.URL+"/api/appointments/by-date?date=2024-06-01", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	day := decode[[]model.Appointment](t, raw)
	if len(day) != 1 || day[0].ID != id {
		t.Fatalf("expected the created record, got %s", raw)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/appointments/"+id, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, raw = do(t, http.MethodGet, srv.URL+"/api/appointments/by-date?date=2024-06-01", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}

	got := pub.types()
	if len(got) != 2 || got[0] != events.TypeCreated || got[1] != events.TypeDeleted {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestUpdateAndList(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, raw := do(t, http.MethodPost, srv.URL+"/api/appointments", janeDoe, nil)
	created := decode[model.Appointment](t, raw)
	do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"name":"Ravi","date":"2024-06-02","time":"09:00","services":[]}`, nil)

	// A fetched record sent back with read-only fields is accepted.
	body := `{"id":"` + created.ID + `","_id":"x","__v":0,"createdAt":"2024-01-01T00:00:00Z","time":"11:30","billupdateflag":true}`
	resp, raw := do(t, http.MethodPut, srv.URL+"/api/appointments/"+created.ID, body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	updated := decode[model.Appointment](t, raw)
	if updated.Time != "11:30" || !updated.BillUpdateFlag || updated.Name != "Jane Doe" || updated.ID != created.ID {
		t.Fatalf("unexpected update result %+v", updated)
	}

	_, raw = do(t, http.MethodGet, srv.URL+"/api/appointments", "", nil)
	list := decode[[]model.Appointment](t, raw)
	if len(list) != 2 || list[0].Name != "Ravi" {
		t.Fatalf("expected newest first, got %s", raw)
	}

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/appointments/nope", `{"name":"x"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", resp.StatusCode)
	}
	_, raw = do(t, http.MethodGet, srv.URL+"/api/appointments", "", nil)
	if n := len(decode[[]model.Appointment](t, raw)); n != 2 {
		t.Fatalf("update of unknown id must not create, have %d", n)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/appointments", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	_, raw = do(t, http.MethodGet, srv.URL+"/api/appointments", "", nil)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty list after delete all, got %s", raw)
	}
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{"bad date query", http.MethodGet, "/api/appointments/by-date?date=13-2024-01", "", http.StatusBadRequest, "date must be in YYYY-MM-DD format"},
		{"missing name", http.MethodPost, "/api/appointments", `{"date":"2024-06-01","time":"10:00"}`, http.StatusBadRequest, "name is required"},
		{"missing cost", http.MethodPost, "/api/appointments", `{"name":"a","date":"2024-06-01","time":"10:00","services":[{"description":"x"}]}`, http.StatusBadRequest, "services[0].cost is required"},
		{"unknown field", http.MethodPost, "/api/appointments", `{"name":"a","date":"2024-06-01","time":"10:00","color":"red"}`, http.StatusBadRequest, `unknown field "color"`},
		{"invalid json", http.MethodPost, "/api/appointments", `{"name":`, http.StatusBadRequest, "invalid json body"},
		{"delete unknown", http.MethodDelete, "/api/appointments/123", "", http.StatusNotFound, "appointment not found"},
		{"keepwake empty", http.MethodGet, "/api/keepwake", "", http.StatusNotFound, "appointment not found"},
	}
	for _, tc := range cases {
		resp, raw := do(t, tc.method, srv.URL+tc.path, tc.body, nil)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.status, resp.StatusCode, raw)
		}
		body := decode[map[string]string](t, raw)
		if body["message"] != tc.msg {
			t.Fatalf("%s: expected message %q, got %q", tc.name, tc.msg, body["message"])
		}
	}
}

func TestBillDetails(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"name":"Asha","phone":"9000000001","date":"2024-05-01","time":"10:00","services":[{"description":"Consultation","cost":300}]}`, nil)
	do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"name":"Asha","phone":"9000000001","date":"2024-05-20","time":"10:00","services":[{"description":"Filling","cost":800}]}`, nil)

	resp, raw := do(t, http.MethodGet, srv.URL+"/api/bill-details/9000000001", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	bill := decode[billDetailsResponse](t, raw)
	if bill.PatientName != "Asha" || bill.BillDate != "2024-05-20" || len(bill.Services) != 1 || bill.Services[0].Cost != 800 {
		t.Fatalf("unexpected bill %+v", bill)
	}

	_, raw = do(t, http.MethodGet, srv.URL+"/api/bill-details/9000000001?date=2024-05-01", "", nil)
	if bill := decode[billDetailsResponse](t, raw); bill.BillDate != "2024-05-01" {
		t.Fatalf("expected date filtered bill, got %+v", bill)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/bill-details/0000", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"name":"Ravi","phone":"+919000000002","date":"2024-05-02","time":"09:00","services":[]}`, nil)
	resp, raw = do(t, http.MethodGet, srv.URL+"/api/bill-details/%2B919000000002", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for escaped phone, got %d: %s", resp.StatusCode, raw)
	}
	if bill := decode[billDetailsResponse](t, raw); bill.PatientName != "Ravi" {
		t.Fatalf("expected Ravi, got %+v", bill)
	}
}

func TestEscapedIDIsDecoded(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, raw := do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"name":"Asha","date":"2024-05-01","time":"10:00","services":[]}`, nil)
	created := decode[model.Appointment](t, raw)
	escaped := "%" + fmt.Sprintf("%X", created.ID[0]) + created.ID[1:]

	resp, raw := do(t, http.MethodPut, srv.URL+"/api/appointments/"+escaped, `{"time":"12:00"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	resp, raw = do(t, http.MethodDelete, srv.URL+"/api/appointments/"+escaped, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.StatusCode, raw)
	}
}

func TestPathParamRejectsBadEscape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/bill-details/x", nil)
	req.URL.RawPath = "/api/bill-details/%zz"
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("phone", "%zz")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	if _, ok := pathParam(rec, req, "phone"); ok {
		t.Fatal("expected decode failure")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec.Body.Bytes())["message"]; got != "invalid phone in path" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := NewRouter(RouterConfig{Store: failingStore{}, Logger: testLogger()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func april3rd() time.Time {
	return time.Date(2024, time.April, 3, 12, 0, 0, 0, time.Local)
}

func testIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	issuer.SetClock(april3rd)
	return issuer
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t, testIssuer(t))

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/auth/login", `{"username":"admin","password":"0304"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if tok := decode[loginResponse](t, raw).Token; tok == "" {
		t.Fatal("expected token")
	}

	for _, body := range []string{
		`{"username":"admin","password":"0403"}`,
		`{"username":"root","password":"0304"}`,
		`{"username":"admin","password":""}`,
	} {
		resp, _ := do(t, http.MethodPost, srv.URL+"/api/auth/login", body, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", body, resp.StatusCode)
		}
	}
}

func TestAuthGate(t *testing.T) {
	issuer := testIssuer(t)
	srv, _ := newTestServer(t, issuer)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/appointments", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/appointments", "", http.Header{"Authorization": {"Bearer garbage"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for invalid token, got %d", resp.StatusCode)
	}

	other, _ := auth.NewIssuer("other-secret", time.Hour)
	other.SetClock(april3rd)
	forged, _ := other.Sign("1", "admin")
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/appointments", "", http.Header{"Authorization": {"Bearer " + forged}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for token signed with another key, got %d", resp.StatusCode)
	}

	token, err := issuer.Login("admin", "0304")
	if err != nil {
		t.Fatal(err)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/appointments", "", http.Header{"Authorization": {"Bearer " + token}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	for _, path := range []string{"/api/keepwake", "/api/bill-details/123"} {
		resp, _ := do(t, http.MethodGet, srv.URL+path, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected public 404 on empty store, got %d", path, resp.StatusCode)
		}
	}
}

func TestPublicRoute(t *testing.T) {
	cases := map[string]bool{
		"/api/auth/login":       true,
		"/api/keepwake":         true,
		"/api/bill-details/555": true,
		"/api/appointments":     false,
		"/api/appointments/1":   false,
		"/api/auth/login/extra": false,
		"/healthz":              true,
	}
	for path, want := range cases {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if got := publicRoute(r); got != want {
			t.Fatalf("%s: expected %v, got %v", path, want, got)
		}
	}
}
