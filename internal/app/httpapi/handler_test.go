package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/OneWorld-Network/ledger_layer/internal/app"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/presale"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage/memory"
	"github.com/OneWorld-Network/ledger_layer/internal/config"
)

func newTestHandler(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()

	cfg := config.Default()
	cfg.Economy.TotalSupply = 1_000_000
	cfg.Economy.InitialAirdrop = 1000
	cfg.Economy.TaskRewards = map[string]int64{"join_channel": 50}
	cfg.Admin.Tokens = []string{"secret-token"}

	store := memory.New()
	if _, err := store.EnsureTreasury(context.Background(), cfg.Economy.TotalSupply); err != nil {
		t.Fatalf("ensure treasury: %v", err)
	}

	application, err := app.New(cfg, app.Stores{
		Accounts: store,
		Ledger:   store,
		Orders:   store,
		Claims:   store,
		Rewards:  store,
	}, nil, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return NewHandler(application, cfg, nil), store
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

var adminHeaders = map[string]string{"Authorization": "Bearer secret-token"}

func TestEnsureUserEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7,"username":"alice"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/7/balance", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var balance struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != 1000 {
		t.Fatalf("expected airdropped balance 1000, got %d", balance.Balance)
	}
}

func TestEnsureUserRejectsUnknownFields(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7,"bogus":true}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestBalanceUnknownUser(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/users/99/balance", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/users/notanumber/balance", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSupplyEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)

	rec := doJSON(t, handler, http.MethodGet, "/supply", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var supply struct {
		Total       int64 `json:"total"`
		Circulating int64 `json:"circulating"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &supply); err != nil {
		t.Fatalf("decode supply: %v", err)
	}
	if supply.Total != 1_000_000 || supply.Circulating != 1000 {
		t.Fatalf("unexpected supply %+v", supply)
	}
}

func TestDepositEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":8}`, nil)

	ref := "0x" + strings.Repeat("ab", 32)
	rec := doJSON(t, handler, http.MethodPost, "/users/7/deposits", `{"tx_hash":"`+ref+`"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	// Another user claiming the same hash conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/users/8/deposits", `{"tx_hash":"`+ref+`"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/7/deposits", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var claims []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &claims); err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claims))
	}
}

func TestGameResultInsufficientBalance(t *testing.T) {
	handler, _ := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)

	rec := doJSON(t, handler, http.MethodPost, "/users/7/games/result", `{"game":"dice","wager":100000}`, nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body)
	}
}

func TestTaskClaimEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)

	rec := doJSON(t, handler, http.MethodPost, "/users/7/tasks/join_channel/claim", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, handler, http.MethodPost, "/users/7/tasks/join_channel/claim", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat claim, got %d", rec.Code)
	}
}

func TestAdminAuthGate(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/admin/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/admin/orders", "", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/admin/orders", "", adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// Denied attempts land in the audit trail.
	rec = doJSON(t, handler, http.MethodGet, "/admin/audit", "", adminHeaders)
	var events []auditEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	var denied int
	for _, ev := range events {
		if ev.Action == "auth_denied" {
			denied++
		}
	}
	if denied != 2 {
		t.Fatalf("expected 2 auth_denied events, got %d", denied)
	}
}

func TestAdminDisabledWithoutTokens(t *testing.T) {
	cfg := config.Default()
	store := memory.New()
	if _, err := store.EnsureTreasury(context.Background(), cfg.Economy.TotalSupply); err != nil {
		t.Fatalf("ensure treasury: %v", err)
	}
	application, err := app.New(cfg, app.Stores{Accounts: store, Ledger: store, Orders: store, Claims: store, Rewards: store}, nil, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler := NewHandler(application, cfg, nil)

	rec := doJSON(t, handler, http.MethodGet, "/admin/orders", "", adminHeaders)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with empty allow-list, got %d", rec.Code)
	}
}

func TestAdminReleaseOrderAndAudit(t *testing.T) {
	handler, _ := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)

	rec := doJSON(t, handler, http.MethodPost, "/users/7/orders", `{"amount":500}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var order presale.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/admin/orders/"+order.ID+"/release", "", adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, handler, http.MethodPost, "/admin/orders/"+order.ID+"/release", "", adminHeaders)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on re-release, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/admin/audit", "", adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var events []auditEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected audit events for admin calls, got %d", len(events))
	}
	var released bool
	for _, ev := range events {
		if ev.Action == "order_release" && ev.Target == order.ID && ev.Status == http.StatusOK && ev.Detail != "" {
			released = true
		}
	}
	if !released {
		t.Fatalf("expected an order_release event for %s, got %+v", order.ID, events)
	}
}

func TestAdminAdjust(t *testing.T) {
	handler, store := newTestHandler(t)
	doJSON(t, handler, http.MethodPost, "/users", `{"user_id":7}`, nil)

	rec := doJSON(t, handler, http.MethodPost, "/admin/adjust", `{"user_id":7,"amount":-400,"note":"support"}`, adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	balance, _ := store.Balance(context.Background(), 7)
	if balance != 600 {
		t.Fatalf("expected balance 600, got %d", balance)
	}
}
