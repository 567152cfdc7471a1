package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tracepayload/internal/assembler"
	"tracepayload/internal/config"
	"tracepayload/internal/models"
	"tracepayload/internal/output"
	"tracepayload/internal/query"
	"tracepayload/internal/service"
)

// maxBodyBytes bounds the JSON bodies accepted by the API.
const maxBodyBytes = 1 << 20

// Downloader assembles the payload of one transaction.
type Downloader interface {
	Download(ctx context.Context, key models.CorrelationKey) (*service.Result, error)
}

// Authorizer checks API passwords.
type Authorizer interface {
	Authorize(password string) bool
}

// ExportLister reads the export history.
type ExportLister interface {
	ListExports(ctx context.Context, transactionID string, limit int) ([]models.ExportRecord, error)
}

// Handler holds the server dependencies
type Handler struct {
	cfg     *config.Config
	service Downloader
	gate    Authorizer
	exports ExportLister
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a new handler. exports may be nil when no history store is configured.
func NewHandler(cfg *config.Config, svc Downloader, gate Authorizer, exports ExportLister, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		service: svc,
		gate:    gate,
		exports: exports,
		logger:  logger.With().Str("component", "http").Logger(),
		now:     time.Now,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/authorize", h.HandleAuthorize)
		r.Post("/download", h.HandleDownload)
		r.Get("/exports", h.HandleListExports)
	})
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)
}

type authorizeRequest struct {
	Password string `json:"password"`
}

type authorizeResponse struct {
	IsValid bool `json:"isValid"`
}

type downloadRequest struct {
	TransactionID   string `json:"transactionId"`
	TransactionDate string `json:"transactionDate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleAuthorize checks a password against the configured secret
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	valid := h.gate != nil && h.gate.Authorize(req.Password)
	if !valid {
		h.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Rejected authorization attempt")
	}
	writeJSON(w, http.StatusOK, authorizeResponse{IsValid: valid})
}

// HandleDownload assembles and returns the payload of one transaction
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key, err := query.ParseKey(req.TransactionID, req.TransactionDate, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Download(r.Context(), key)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("transaction_id", key.TransactionID).Msg("Download failed")
			writeError(w, status, "Failed to retrieve transaction traces")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", output.FileName(key.TransactionID, false)))
	w.Header().Set("X-Export-Id", res.ExportID)
	w.Header().Set("X-Assembly-Diagnostics", strconv.Itoa(len(res.Diagnostics)))
	w.WriteHeader(http.StatusOK)
	if err := output.WriteJSON(w, res.Payload, false); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write payload")
	}
}

// HandleListExports returns the export history, optionally for one transaction
func (h *Handler) HandleListExports(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeError(w, http.StatusNotFound, "Export history is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	records, err := h.exports.ListExports(r.Context(), r.URL.Query().Get("transaction_id"), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list exports")
		writeError(w, http.StatusInternalServerError, "Failed to list exports")
		return
	}
	if records == nil {
		records = []models.ExportRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exports": records,
		"count":   len(records),
	})
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady returns readiness status
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.cfg != nil && h.cfg.AppInsights.ApplicationID == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "appinsights.application_id is not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assembler.ErrOutOfOrderPairing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
