// Package handler is the HTTP transport for the receipt domain. It delegates
// to the service without embedding business logic.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"listou/internal/platform/metrics"
	"listou/internal/platform/middleware"
	"listou/internal/receipt/importer"
	"listou/internal/receipt/models"
	"listou/internal/receipt/service"
	dErrors "listou/pkg/domain-errors"
)

// Service is the receipt operations interface consumed by this handler.
type Service interface {
	StartImport(ctx context.Context, ownerID uuid.UUID, key string) (importer.Run, error)
	ConfirmImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error)
	PendingImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error)
	DiscardImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, []models.LineItem, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// Handler handles receipt endpoints.
type Handler struct {
	logger     *slog.Logger
	receipts   Service
	metrics    *metrics.Metrics
	signingKey []byte
}

// New creates a receipt Handler.
func New(receipts Service, logger *slog.Logger, m *metrics.Metrics, signingKey []byte) *Handler {
	return &Handler{
		logger:     logger,
		receipts:   receipts,
		metrics:    m,
		signingKey: signingKey,
	}
}

// Register mounts the receipt routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	receiptRouter := chi.NewRouter()
	receiptRouter.Use(middleware.Recovery(h.logger))
	receiptRouter.Use(middleware.RequestID)
	receiptRouter.Use(middleware.Logger(h.logger))
	receiptRouter.Use(middleware.Latency(h.metrics))
	// The fetch stage can legitimately take tens of seconds; the ceiling here
	// is the caller-side bound the provider timeout sits under.
	receiptRouter.Use(middleware.Timeout(60 * time.Second))
	receiptRouter.Use(middleware.RequireAuth(h.signingKey, h.logger))

	receiptRouter.Post("/receipts/imports", h.handleStartImport)
	receiptRouter.Get("/receipts/imports/{importID}", h.handlePendingImport)
	receiptRouter.Post("/receipts/imports/{importID}/confirm", h.handleConfirmImport)
	receiptRouter.Delete("/receipts/imports/{importID}", h.handleDiscardImport)
	receiptRouter.Get("/receipts", h.handleListReceipts)
	receiptRouter.Get("/receipts/{receiptID}", h.handleGetReceipt)
	receiptRouter.Delete("/receipts/{receiptID}", h.handleDeleteReceipt)

	r.Mount("/", receiptRouter)
}

func (h *Handler) handleStartImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	if ownerID == uuid.Nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.AccessKey = strings.TrimSpace(req.AccessKey)
	req.ScannedText = strings.TrimSpace(req.ScannedText)

	key, err := service.ResolveKey(req.AccessKey, req.ScannedText)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := h.receipts.StartImport(ctx, ownerID, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(run))
}

func (h *Handler) handlePendingImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	importID, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid import id"))
		return
	}

	run, err := h.receipts.PendingImport(ctx, ownerID, importID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(run))
}

func (h *Handler) handleConfirmImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	importID, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid import id"))
		return
	}

	run, err := h.receipts.ConfirmImport(ctx, ownerID, importID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toImportResponse(run))
}

func (h *Handler) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	importID, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid import id"))
		return
	}

	if _, err := h.receipts.DiscardImport(ctx, ownerID, importID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)

	receipts, err := h.receipts.List(ctx, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	receiptID, err := uuid.Parse(chi.URLParam(r, "receiptID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid receipt id"))
		return
	}

	receipt, items, err := h.receipts.Get(ctx, ownerID, receiptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptResponse{Receipt: receipt, Items: items})
}

func (h *Handler) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetOwnerID(ctx)
	receiptID, err := uuid.Parse(chi.URLParam(r, "receiptID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid receipt id"))
		return
	}

	if err := h.receipts.Delete(ctx, ownerID, receiptID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// failureOf digs a pipeline failure out of a wrapped error chain.
func failureOf(err error) *importer.Failure {
	var f *importer.Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}
