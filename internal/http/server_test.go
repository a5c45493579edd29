package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finviz/internal/core"
	"finviz/internal/events"
	"finviz/internal/services"
	"finviz/internal/storage/memory"
	"finviz/internal/views"
)

type testEnv struct {
	srv   *Server
	store *memory.Store
	bus   *events.Bus
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	bus := events.NewBus()
	dash := views.NewDashboard(views.ListerFunc(store.ListByDateDesc), views.Options{})
	svc := services.NewTransactionService(store, dash, bus)
	t.Cleanup(bus.Close)
	return &testEnv{srv: NewServer(svc, dash, bus, opts), store: store, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), `transactions_mutations_total{op="create"} 0`) {
		t.Errorf("metrics body missing mutation counter: %s", rr.Body.String())
	}
}

func TestCreateThenList(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/transactions", `{"amount":"20","description":" Lunch ","date":"2024-03-09"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), TriggerTransactionsChanged) {
		t.Errorf("missing HX-Trigger: %q", rr.Header().Get("HX-Trigger"))
	}
	created := decodeBody[transactionResponse](t, rr)
	if created.ID == "" || created.Amount != "20" || created.Description != "Lunch" || created.Date != "2024-03-09" {
		t.Fatalf("unexpected created body %+v", created)
	}
	if !strings.Contains(rr.Body.String(), `"amount":20`) {
		t.Errorf("amount must be a JSON number: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/transactions", `{"amount":5.5,"description":"Coffee","date":"2024-03-10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("second create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	list := decodeBody[[]transactionResponse](t, rr)
	if len(list) != 2 || list[0].Description != "Coffee" || list[1].ID != created.ID {
		t.Fatalf("list not newest first: %+v", list)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/transactions", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
		wantMsg   string
	}{
		{"negative amount", `{"amount":-5,"description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount must be a positive number"},
		{"missing amount", `{"description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount is required"},
		{"overflowing amount string", `{"amount":"1e400","description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount must be a positive number"},
		{"overflowing amount number", `{"amount":1e400,"description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount must be a positive number"},
		{"huge exponent", `{"amount":"1e50000000","description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount must be a positive number"},
		{"comma decimal", `{"amount":"12,34","description":"x","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "amount", "Amount must be a positive number"},
		{"zero date", `{"amount":1,"description":"x","date":"0001-01-01"}`, http.StatusUnprocessableEntity, "date", "Please enter a valid date"},
		{"blank description", `{"amount":1,"description":"   ","date":"2024-01-01"}`, http.StatusUnprocessableEntity, "description", "Description is required"},
		{"bad date", `{"amount":1,"description":"x","date":"yesterday"}`, http.StatusUnprocessableEntity, "date", "Please enter a valid date"},
		{"unknown field", `{"amount":1,"description":"x","date":"2024-01-01","category":"food"}`, http.StatusBadRequest, "", ""},
		{"trailing data", `{"amount":1,"description":"x","date":"2024-01-01"} {}`, http.StatusBadRequest, "", ""},
		{"wrong type", `{"amount":true,"description":"x","date":"2024-01-01"}`, http.StatusBadRequest, "", ""},
		{"description not a string", `{"amount":1,"description":5,"date":"2024-01-01"}`, http.StatusBadRequest, "", ""},
		{"not json", `amount=1`, http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/transactions", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantField != "" {
				body := decodeBody[errorBody](t, rr)
				if body.Fields[tt.wantField] != tt.wantMsg {
					t.Errorf("fields=%v want %s=%q", body.Fields, tt.wantField, tt.wantMsg)
				}
			}
		})
	}

	if env.store.Len() != 0 {
		t.Errorf("invalid input must not reach the store, got %d records", env.store.Len())
	}
}

func TestCreateAcceptsLongDescription(t *testing.T) {
	env := newTestEnv(t, Options{})
	desc := strings.Repeat("a", 1000)
	rr := env.do(t, http.MethodPost, "/transactions", `{"amount":1,"date":"2024-01-01","description":"`+desc+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%.200s", rr.Code, rr.Body.String())
	}
	if got := decodeBody[transactionResponse](t, rr); got.Description != desc {
		t.Errorf("description truncated to %d bytes", len(got.Description))
	}
}

func TestCreateBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, Options{})
	body := `{"amount":1,"date":"2024-01-01","description":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rr := env.do(t, http.MethodPost, "/transactions", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := decodeBody[transactionResponse](t,
		env.do(t, http.MethodPost, "/transactions", `{"amount":100,"description":"Rent","date":"2024-01-05"}`))

	rr := env.do(t, http.MethodGet, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/transactions/"+created.ID, `{"description":"Rent (Jan)"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[transactionResponse](t, rr)
	if updated.Description != "Rent (Jan)" || updated.Amount != "100" || updated.Date != "2024-01-05" || updated.ID != created.ID {
		t.Fatalf("update did not merge: %+v", updated)
	}

	rr = env.do(t, http.MethodPut, "/transactions/"+created.ID, `{"amount":"0"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid patch status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/transactions/missing", `{"description":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status=%d", rr.Code)
	}
	if body := decodeBody[errorBody](t, rr); body.Error != "transaction not found" {
		t.Errorf("error = %q", body.Error)
	}

	rr = env.do(t, http.MethodDelete, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"success":true}` {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("second delete status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestMonthlyChart(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, body := range []string{
		`{"amount":100,"description":"a","date":"2024-01-05"}`,
		`{"amount":50,"description":"b","date":"2024-01-20"}`,
		`{"amount":75,"description":"c","date":"2024-02-01"}`,
	} {
		if rr := env.do(t, http.MethodPost, "/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/transactions/monthly", "")
	chart := decodeBody[chartResponse](t, rr)
	if len(chart.Buckets) != 2 || chart.Buckets[0].Label != "Jan 2024" || chart.Buckets[0].Total != "150" {
		t.Fatalf("chronological chart = %+v", chart)
	}

	rr = env.do(t, http.MethodGet, "/transactions/monthly?order=label", "")
	chart = decodeBody[chartResponse](t, rr)
	if chart.Buckets[0].Label != "Feb 2024" || chart.Buckets[0].Total != "75" || chart.Buckets[1].Total != "150" {
		t.Fatalf("label chart = %+v", chart)
	}

	rr = env.do(t, http.MethodGet, "/transactions/monthly?order=sideways", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad order status=%d", rr.Code)
	}

	env.do(t, http.MethodPost, "/transactions", `{"amount":25,"description":"d","date":"2024-02-11"}`)
	chart = decodeBody[chartResponse](t, env.do(t, http.MethodGet, "/transactions/monthly", ""))
	if chart.Buckets[1].Total != "100" {
		t.Fatalf("chart not refreshed after mutation: %+v", chart)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})
	body := `{"amount":1,"description":"x","date":"2024-01-01"}`

	if rr := env.do(t, http.MethodPost, "/transactions", body); rr.Code != http.StatusCreated {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/transactions", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second status=%d retry-after=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := env.do(t, http.MethodGet, "/transactions", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{CORSAllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodPatch, "/transactions", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, Options{})
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	post, _ := http.NewRequest(http.MethodPost, ts.URL+"/transactions",
		strings.NewReader(`{"amount":1,"description":"x","date":"2024-01-01"}`))
	post.Header.Set("Content-Type", "application/json")
	postResp, err := ts.Client().Do(post)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	postResp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "event: invalidate" {
			if !sc.Scan() || !strings.HasPrefix(sc.Text(), "data: ") || !strings.Contains(sc.Text(), `"op":"create"`) {
				t.Fatalf("unexpected data line %q", sc.Text())
			}
			return
		}
	}
	t.Fatalf("stream ended without invalidate event: %v", sc.Err())
}

type failingAPI struct{}

func (failingAPI) Create(context.Context, core.NewTransaction) (core.Transaction, error) {
	return core.Transaction{}, core.WrapStorage("insert", errors.New("disk full"))
}
func (failingAPI) Get(context.Context, string) (core.Transaction, error) {
	return core.Transaction{}, core.ErrNotFound
}
func (failingAPI) Update(context.Context, string, core.Patch) (core.UpdateResult, error) {
	return core.NotFoundResult(), nil
}
func (failingAPI) Delete(context.Context, string) error {
	return core.WrapStorage("delete", errors.New("disk full"))
}
func (failingAPI) Ping(context.Context) error { return errors.New("down") }

func TestStorageFailuresAreOpaque(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	dash := views.NewDashboard(views.ListerFunc(func(context.Context) ([]core.Transaction, error) {
		return nil, errors.New("down")
	}), views.Options{})
	env := &testEnv{srv: NewServer(failingAPI{}, dash, bus, Options{}), bus: bus}

	rr := env.do(t, http.MethodPost, "/transactions", `{"amount":1,"description":"x","date":"2024-01-01"}`)
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "disk full") {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodDelete, "/transactions/x", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/transactions", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("list status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status=%d", rr.Code)
	}
}
