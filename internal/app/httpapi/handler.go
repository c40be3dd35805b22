// Package httpapi exposes the REST boundary consumed by chat adapters and
// operators.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/OneWorld-Network/ledger_layer/internal/app"
	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/account"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/internal/config"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	economy config.EconomyConfig
	admin   *adminGate
}

// NewHandler returns a mux exposing the REST API.
func NewHandler(application *app.Application, cfg *config.Config, log *logger.Logger) http.Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	file, err := openAuditFile(cfg.Admin.AuditFile)
	if err != nil {
		log.WithError(err).Warn("audit file unavailable, keeping audit trail in memory only")
	}
	h := &handler{
		app:     application,
		economy: cfg.Economy,
		admin:   newAdminGate(cfg.Admin.Tokens, newAuditTrail(0, file)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/users", h.users)
	mux.HandleFunc("/users/", h.userResources)
	mux.HandleFunc("/supply", h.supply)
	mux.HandleFunc("/admin/", h.admin.wrap(h.adminResources))
	mux.HandleFunc("/healthz", h.healthz)
	return mux
}

func (h *handler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			UserID   int64  `json:"user_id"`
			Username string `json:"username"`
			Language string `json:"language"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		acct, created, err := h.app.Accounts.Ensure(r.Context(), payload.UserID, account.ProfileHints{
			Username: payload.Username,
			Language: payload.Language,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, acct)

	case http.MethodGet:
		accts, err := h.app.Accounts.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, accts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed user id %q", parts[0]))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		acct, err := h.app.Accounts.Get(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
		return
	}

	switch parts[1] {
	case "balance":
		h.userBalance(w, r, userID)
	case "ledger":
		h.userLedger(w, r, userID)
	case "referral":
		h.userReferral(w, r, userID)
	case "deposits":
		h.userDeposits(w, r, userID)
	case "orders":
		h.userOrders(w, r, userID)
	case "tasks":
		h.userTasks(w, r, userID, parts[2:])
	case "games":
		h.userGames(w, r, userID, parts[2:])
	case "storage":
		h.userStorage(w, r, userID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) userBalance(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, err := h.app.Ledger.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": userID, "balance": balance})
}

func (h *handler) userLedger(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.app.Ledger.History(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) userReferral(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	referrer, err := h.app.Accounts.ClaimReferral(r.Context(), userID, strings.TrimSpace(payload.Code))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"referred_by": referrer.UserID,
	})
}

func (h *handler) userDeposits(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			TxHash string `json:"tx_hash"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		claim, err := h.app.Deposits.Submit(r.Context(), userID, payload.TxHash)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, claim)

	case http.MethodGet:
		claims, err := h.app.Deposits.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claims)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userOrders(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Amount int64 `json:"amount"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := h.app.Presale.Book(r.Context(), userID, payload.Amount, h.economy.PresaleUnitCost)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)

	case http.MethodGet:
		orders, err := h.app.Presale.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userTasks(w http.ResponseWriter, r *http.Request, userID int64, rest []string) {
	switch {
	case len(rest) == 0:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		claims, err := h.app.Rewards.ListTaskClaims(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claims)

	case len(rest) == 2 && rest[1] == "claim":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		claim, err := h.app.Rewards.ClaimTask(r.Context(), userID, rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, claim)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) userGames(w http.ResponseWriter, r *http.Request, userID int64, rest []string) {
	if len(rest) != 1 || rest[0] != "result" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var payload struct {
		Game   string `json:"game"`
		Wager  int64  `json:"wager"`
		Payout int64  `json:"payout"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Wager <= 0 && payload.Payout <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("wager or payout required"))
		return
	}

	if payload.Wager > 0 {
		if err := h.app.Rewards.PlaceWager(r.Context(), userID, payload.Game, payload.Wager); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if payload.Payout > 0 {
		if err := h.app.Rewards.AwardGame(r.Context(), userID, payload.Game, payload.Payout); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	balance, err := h.app.Ledger.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": userID, "balance": balance})
}

func (h *handler) userStorage(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Units int64 `json:"units"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		st, err := h.app.Rewards.BuyStorage(r.Context(), userID, payload.Units)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)

	case http.MethodGet:
		st, err := h.app.Rewards.GetStorage(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) supply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	supply, err := h.app.Ledger.Supply(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"total":       supply.Total,
		"treasury":    supply.Treasury,
		"circulating": supply.Circulating,
	})
}

func (h *handler) adminResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "orders":
		h.adminOrders(w, r, parts[1:])
	case "deposits":
		h.adminDeposits(w, r)
	case "adjust":
		h.adminAdjust(w, r)
	case "audit":
		h.adminAudit(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminOrders(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		orders, err := h.app.Presale.List(r.Context(), -1)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)

	case len(rest) == 2 && rest[1] == "release":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		order, err := h.app.Presale.Release(r.Context(), rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		auditDetail(w, "credited %d to user %d", order.Amount, order.UserID)
		writeJSON(w, http.StatusOK, order)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, err := h.app.Deposits.List(r.Context(), -1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *handler) adminAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		UserID int64  `json:"user_id"`
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.app.Ledger.Adjust(r.Context(), payload.UserID, payload.Amount, payload.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	auditDetail(w, "user %d adjusted by %+d (%s), balance %d", payload.UserID, payload.Amount, payload.Note, balance)
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": payload.UserID, "balance": balance})
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.admin.trail.recent(limit))
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps the storage error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, storage.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, storage.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}
