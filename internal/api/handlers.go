// Package api exposes the detection and subscription services over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/finboard/backend/internal/auth"
	"github.com/finboard/backend/internal/model"
	"github.com/finboard/backend/internal/service"
	"github.com/finboard/backend/internal/store"
)

// maxUploadBytes caps statement uploads at 20 MB.
const maxUploadBytes = 20 << 20

// Handler routes API requests to the import and subscription services.
type Handler struct {
	imports       *service.ImportService
	subscriptions *service.SubscriptionService
	log           zerolog.Logger
}

func NewHandler(imports *service.ImportService, subscriptions *service.SubscriptionService, log zerolog.Logger) *Handler {
	return &Handler{imports: imports, subscriptions: subscriptions, log: log}
}

// Routes returns the API mux. Authentication middleware is applied by the
// caller; every handler expects the user id in the request context.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /v1/statements", h.ImportStatement)
	mux.HandleFunc("GET /v1/statements", h.ListStatements)
	mux.HandleFunc("GET /v1/transactions", h.ListTransactions)
	mux.HandleFunc("POST /v1/detect", h.RunDetection)
	mux.HandleFunc("GET /v1/subscriptions", h.ListSubscriptions)
	mux.HandleFunc("GET /v1/subscriptions/review", h.ReviewQueue)
	mux.HandleFunc("GET /v1/subscriptions/summary", h.Summary)
	mux.HandleFunc("POST /v1/subscriptions/manual", h.AddManual)
	mux.HandleFunc("POST /v1/subscriptions/vendor", h.AddFromVendor)
	mux.HandleFunc("POST /v1/subscriptions/{id}/confirm", h.Confirm)
	mux.HandleFunc("POST /v1/subscriptions/{id}/hide", h.Hide)
	mux.HandleFunc("POST /v1/subscriptions/{id}/restore", h.Restore)
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", h.Delete)
	return mux
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("[api] failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ImportStatement handles POST /v1/statements. The PDF arrives as the
// multipart field "file".
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	statement, txs, err := h.imports.ImportStatement(r.Context(), userID, header.Filename, data)
	if err != nil {
		h.log.Warn().Err(err).Str("userId", userID).Msg("[api] statement import failed")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"statement":    statement,
		"transactions": txs,
	})
}

// ListStatements handles GET /v1/statements.
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	statements, err := h.imports.ListStatements(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] list statements failed")
		h.writeError(w, http.StatusInternalServerError, "failed to list statements")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"statements": statements})
}

// ListTransactions handles GET /v1/transactions with optional startDate,
// endDate (RFC 3339 date), pageSize and pageToken query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var startDate, endDate *time.Time
	for name, dst := range map[string]**time.Time{"startDate": &startDate, "endDate": &endDate} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, raw))
				return
			}
			*dst = &t
		}
	}

	pageSize := int32(100)
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid pageSize")
			return
		}
		pageSize = int32(n)
	}

	txs, nextPageToken, err := h.subscriptions.ListTransactions(r.Context(), userID, startDate, endDate, pageSize, q.Get("pageToken"))
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] list transactions failed")
		h.writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions":  txs,
		"nextPageToken": nextPageToken,
	})
}

// RunDetection handles POST /v1/detect.
func (h *Handler) RunDetection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	groups, err := h.subscriptions.DetectRecurring(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] detection failed")
		h.writeError(w, http.StatusInternalServerError, "detection failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// ListSubscriptions handles GET /v1/subscriptions.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	groups, err := h.subscriptions.ListSubscriptions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] list subscriptions failed")
		h.writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"subscriptions": groups})
}

// ReviewQueue handles GET /v1/subscriptions/review.
func (h *Handler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	groups, err := h.subscriptions.UnconfirmedGroups(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] review queue failed")
		h.writeError(w, http.StatusInternalServerError, "failed to build review queue")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// Summary handles GET /v1/subscriptions/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summary, err := h.subscriptions.Summary(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("userId", userID).Msg("[api] summary failed")
		h.writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// Confirm handles POST /v1/subscriptions/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.subscriptions.ConfirmSubscription)
}

// Hide handles POST /v1/subscriptions/{id}/hide.
func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.subscriptions.HideSubscription)
}

// Restore handles POST /v1/subscriptions/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.subscriptions.RestoreSubscription)
}

// Delete handles DELETE /v1/subscriptions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.subscriptions.DeleteSubscription)
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, id string) error) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing subscription id")
		return
	}

	if err := op(r.Context(), userID, id); err != nil {
		h.log.Warn().Err(err).Str("userId", userID).Str("id", id).Msg("[api] subscription override failed")
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "subscription update failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type manualRequest struct {
	TransactionID string          `json:"transactionId"`
	Frequency     model.Frequency `json:"frequency"`
}

// AddManual handles POST /v1/subscriptions/manual.
func (h *Handler) AddManual(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionID == "" {
		h.writeError(w, http.StatusBadRequest, "transactionId is required")
		return
	}

	row, err := h.subscriptions.MarkTransactionRecurring(r.Context(), userID, req.TransactionID, req.Frequency)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, row)
}

type vendorRequest struct {
	Vendor         string   `json:"vendor"`
	TransactionIDs []string `json:"transactionIds"`
}

// AddFromVendor handles POST /v1/subscriptions/vendor.
func (h *Handler) AddFromVendor(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.subscriptions.AddSubscriptionFromVendor(r.Context(), userID, req.Vendor, req.TransactionIDs)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, row)
}
