package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"listou/internal/receipt/models"
)

// InMemoryStore keeps receipts in maps for tests and demo mode. Write
// isolation is a single mutex; good enough for its purposes.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[uuid.UUID]models.Receipt
	items    map[uuid.UUID][]models.LineItem
	byKey    map[string]uuid.UUID // ownerID/accessKey -> receipt id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		receipts: make(map[uuid.UUID]models.Receipt),
		items:    make(map[uuid.UUID][]models.LineItem),
		byKey:    make(map[string]uuid.UUID),
	}
}

func ownerKey(ownerID uuid.UUID, accessKey string) string {
	return ownerID.String() + "/" + accessKey
}

func (s *InMemoryStore) Exists(_ context.Context, ownerID uuid.UUID, accessKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[ownerKey(ownerID, accessKey)]
	return ok, nil
}

func (s *InMemoryStore) SaveReceipt(_ context.Context, receipt *models.Receipt) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveReceiptLocked(receipt)
}

func (s *InMemoryStore) saveReceiptLocked(receipt *models.Receipt) (uuid.UUID, error) {
	key := ownerKey(receipt.OwnerID, receipt.AccessKey)
	if _, ok := s.byKey[key]; ok {
		return uuid.Nil, ErrDuplicate
	}
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	s.receipts[receipt.ID] = *receipt
	s.byKey[key] = receipt.ID
	return receipt.ID, nil
}

func (s *InMemoryStore) SaveLineItems(_ context.Context, receiptID uuid.UUID, items []models.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[receiptID]; !ok {
		return ErrNotFound
	}
	copied := make([]models.LineItem, len(items))
	copy(copied, items)
	for i := range copied {
		copied[i].ReceiptID = receiptID
	}
	s.items[receiptID] = copied
	return nil
}

// SaveWithItems writes header and items under one lock, mirroring the
// transactional path of the SQL store.
func (s *InMemoryStore) SaveWithItems(_ context.Context, receipt *models.Receipt, items []models.LineItem) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.saveReceiptLocked(receipt)
	if err != nil {
		return uuid.Nil, err
	}
	copied := make([]models.LineItem, len(items))
	copy(copied, items)
	for i := range copied {
		copied[i].ReceiptID = id
	}
	s.items[id] = copied
	return id, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Receipt
	for _, r := range s.receipts {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, ownerID, id uuid.UUID) (*models.Receipt, []models.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[id]
	if !ok || r.OwnerID != ownerID {
		return nil, nil, ErrNotFound
	}
	items := append([]models.LineItem{}, s.items[id]...)
	return &r, items, nil
}

func (s *InMemoryStore) DeleteReceipt(_ context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok || r.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.items, id)
	delete(s.receipts, id)
	delete(s.byKey, ownerKey(r.OwnerID, r.AccessKey))
	return nil
}
