// Package store persists the receipt aggregate. Headers and line items live
// in separate tables; the (owner_id, access_key) pair is unique so concurrent
// imports of the same key cannot both land.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"listou/internal/receipt/models"
)

// Sentinel errors for store facts. Services translate these into domain errors.
var (
	ErrNotFound  = errors.New("receipt not found")
	ErrDuplicate = errors.New("receipt already imported for this owner")
)

// Store is the persistence boundary for receipts, scoped by owner throughout.
type Store interface {
	// Exists is the duplicate-guard lookup. Advisory only: the uniqueness
	// constraint is the real guard against check-then-act races.
	Exists(ctx context.Context, ownerID uuid.UUID, accessKey string) (bool, error)

	// SaveReceipt inserts the header row and returns its id.
	SaveReceipt(ctx context.Context, receipt *models.Receipt) (uuid.UUID, error)

	// SaveLineItems bulk-inserts children referencing receiptID.
	SaveLineItems(ctx context.Context, receiptID uuid.UUID, items []models.LineItem) error

	// ListByOwner returns the owner's receipts, newest first, without items.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error)

	// GetByID returns one receipt with its items, or ErrNotFound when the id
	// does not exist under this owner.
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, []models.LineItem, error)

	// DeleteReceipt removes items then the header, an explicit two-step.
	DeleteReceipt(ctx context.Context, ownerID, id uuid.UUID) error
}

// AtomicSaver is implemented by stores that can write header and items in one
// transaction. The importer prefers it over the two-step path, which can leave
// a header without its items when the second insert fails.
type AtomicSaver interface {
	SaveWithItems(ctx context.Context, receipt *models.Receipt, items []models.LineItem) (uuid.UUID, error)
}
