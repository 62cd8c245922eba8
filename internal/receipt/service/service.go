// Package service exposes the receipt domain to transport: the import
// pipeline plus owner-scoped reads and deletion. It translates store and
// pipeline errors into coded domain errors and emits the audit trail.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"listou/internal/audit"
	"listou/internal/nfce/accesskey"
	"listou/internal/receipt/importer"
	"listou/internal/receipt/metrics"
	"listou/internal/receipt/models"
	"listou/internal/receipt/store"
	dErrors "listou/pkg/domain-errors"
)

// Service wires the importer, store, and audit publisher.
type Service struct {
	importer *importer.Importer
	store    store.Store
	audit    audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(imp *importer.Importer, st store.Store, pub audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		importer: imp,
		store:    st,
		audit:    pub,
		metrics:  m,
		logger:   logger,
	}
}

// ResolveKey derives the access key from whichever input the caller supplied:
// a typed key or decoded QR text. Returns a coded error when neither yields a
// candidate; checksum validation happens inside the pipeline.
func ResolveKey(accessKey, scannedText string) (string, error) {
	if key := accesskey.Normalize(accessKey); key != "" {
		return key, nil
	}
	if scannedText != "" {
		if key := accesskey.ExtractFromScannedText(scannedText); key != "" {
			return key, nil
		}
		return "", dErrors.New(dErrors.CodeBadRequest, "no access key found in scanned text")
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "access_key or scanned_text is required")
}

// StartImport runs the pipeline up to the confirmation pause.
func (s *Service) StartImport(ctx context.Context, ownerID uuid.UUID, key string) (importer.Run, error) {
	run, err := s.importer.Start(ctx, ownerID, key)
	if err != nil {
		s.audit.Emit(ctx, audit.Event{
			OwnerID:   ownerID,
			Action:    audit.ActionImportFailed,
			AccessKey: key,
			Detail:    err.Error(),
			Occurred:  time.Now(),
		})
		return run, translateFailure(err)
	}
	return run, nil
}

// ConfirmImport persists a parked run.
func (s *Service) ConfirmImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error) {
	run, err := s.importer.Confirm(ctx, ownerID, importID)
	if err != nil {
		if errors.Is(err, importer.ErrSessionNotFound) {
			return run, dErrors.New(dErrors.CodeNotFound, "pending import not found or expired")
		}
		s.audit.Emit(ctx, audit.Event{
			OwnerID:   ownerID,
			Action:    audit.ActionImportFailed,
			AccessKey: run.AccessKey,
			Detail:    err.Error(),
			Occurred:  time.Now(),
		})
		return run, translateFailure(err)
	}
	s.audit.Emit(ctx, audit.Event{
		OwnerID:   ownerID,
		Action:    audit.ActionImportCompleted,
		AccessKey: run.AccessKey,
		ReceiptID: run.ReceiptID,
		Occurred:  time.Now(),
	})
	return run, nil
}

// PendingImport returns a parked run while it awaits confirmation.
func (s *Service) PendingImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error) {
	run, err := s.importer.Pending(ctx, ownerID, importID)
	if err != nil {
		if errors.Is(err, importer.ErrSessionNotFound) {
			return run, dErrors.New(dErrors.CodeNotFound, "pending import not found or expired")
		}
		return run, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending import")
	}
	return run, nil
}

// DiscardImport cancels a parked run. No store calls happen.
func (s *Service) DiscardImport(ctx context.Context, ownerID, importID uuid.UUID) (importer.Run, error) {
	run, err := s.importer.Discard(ctx, ownerID, importID)
	if err != nil {
		if errors.Is(err, importer.ErrSessionNotFound) {
			return run, dErrors.New(dErrors.CodeNotFound, "pending import not found or expired")
		}
		return run, dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard import")
	}
	s.audit.Emit(ctx, audit.Event{
		OwnerID:   ownerID,
		Action:    audit.ActionImportDiscarded,
		AccessKey: run.AccessKey,
		Occurred:  time.Now(),
	})
	return run, nil
}

// List returns the owner's receipts, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error) {
	receipts, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
	}
	return receipts, nil
}

// Get returns one receipt with its line items.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, []models.LineItem, error) {
	receipt, items, err := s.store.GetByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "receipt not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return receipt, items, nil
}

// Delete removes a receipt and its items, children first.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.DeleteReceipt(ctx, ownerID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "receipt not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete receipt")
	}
	s.metrics.RecordReceiptDeleted()
	s.audit.Emit(ctx, audit.Event{
		OwnerID:   ownerID,
		Action:    audit.ActionReceiptDeleted,
		ReceiptID: id,
		Occurred:  time.Now(),
	})
	return nil
}

// translateFailure maps pipeline failures to coded errors for transport.
func translateFailure(err error) error {
	switch importer.KindOf(err) {
	case importer.FailValidation:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid access key")
	case importer.FailDuplicate:
		return dErrors.Wrap(err, dErrors.CodeConflict, "receipt already imported")
	case importer.FailNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, "receipt not found for this access key")
	case importer.FailProvider:
		return dErrors.Wrap(err, dErrors.CodeUpstream, "receipt lookup failed")
	case importer.FailTransform:
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "receipt data could not be processed")
	case importer.FailPersistence:
		return dErrors.Wrap(err, dErrors.CodeInternal, "receipt could not be saved")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "import failed")
	}
}
