// Package audit records import outcomes for traceability. Events flow through
// a Publisher; the in-memory recorder serves tests and single-instance
// deployments, the Kafka publisher fans events out to downstream consumers.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions emitted by the receipt domain.
const (
	ActionImportCompleted = "receipt.import_completed"
	ActionImportFailed    = "receipt.import_failed"
	ActionImportDiscarded = "receipt.import_discarded"
	ActionReceiptDeleted  = "receipt.deleted"
)

// Event is one audit record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Action    string    `json:"action"`
	AccessKey string    `json:"access_key,omitempty"`
	ReceiptID uuid.UUID `json:"receipt_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Occurred  time.Time `json:"occurred"`
}

// Publisher emits audit events. Emit must not block request handling on
// downstream availability; implementations drop or buffer instead.
type Publisher interface {
	Emit(ctx context.Context, event Event)
	Close()
}

// Recorder is the in-memory publisher. It keeps events per owner for
// inspection; Close is a no-op.
type Recorder struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]Event
}

func NewRecorder() *Recorder {
	return &Recorder{events: make(map[uuid.UUID][]Event)}
}

func (r *Recorder) Emit(_ context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.OwnerID] = append(r.events[event.OwnerID], event)
}

func (r *Recorder) Close() {}

// ListByOwner returns a copy of the owner's events in emission order.
func (r *Recorder) ListByOwner(ownerID uuid.UUID) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event{}, r.events[ownerID]...)
}
