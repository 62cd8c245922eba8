// Package importer sequences the NFC-e import pipeline: offline key
// validation, duplicate guard, one external fetch, transformation, an explicit
// confirmation pause, and persistence. The run state is an immutable value
// threaded through pure transitions so each stage is testable in isolation.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"listou/internal/nfce/accesskey"
	"listou/internal/receipt/metrics"
	"listou/internal/receipt/models"
	"listou/internal/receipt/provider"
	"listou/internal/receipt/store"
	"listou/internal/receipt/transform"
)

// Run is one import attempt. Values are copied, never mutated in place.
type Run struct {
	ID        uuid.UUID         `json:"id"`
	OwnerID   uuid.UUID         `json:"owner_id"`
	AccessKey string            `json:"access_key"`
	State     State             `json:"state"`
	Progress  string            `json:"progress"`
	Receipt   *models.Receipt   `json:"receipt,omitempty"`
	Items     []models.LineItem `json:"items,omitempty"`
	ReceiptID uuid.UUID         `json:"receipt_id,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// advance returns a copy of r moved to the next state.
func (r Run) advance(to State, now time.Time) Run {
	r.State = to
	r.Progress = progress[to]
	r.UpdatedAt = now
	return r
}

// failed returns a copy of r in the Failed state plus the typed failure. The
// stage recorded is the one that was running when the error occurred.
func (r Run) failed(stage State, kind Kind, err error, now time.Time) (Run, *Failure) {
	f := &Failure{Stage: stage, Kind: kind, Err: err}
	r.State = StateFailed
	r.Progress = f.Error()
	r.UpdatedAt = now
	return r, f
}

// Importer orchestrates pipeline runs. Stages execute strictly sequentially
// within a run; independent runs may execute concurrently.
type Importer struct {
	provider provider.Client
	store    store.Store
	sessions SessionStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time

	// fetches collapses concurrent aggregator calls for the same owner and
	// key. The uniqueness constraint still guards the insert; this only saves
	// duplicate network cost.
	fetches singleflight.Group
}

// Option configures an Importer.
type Option func(*Importer)

// WithClock injects a clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(i *Importer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// New constructs an Importer.
func New(p provider.Client, st store.Store, sessions SessionStore, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Importer {
	imp := &Importer{
		provider: p,
		store:    st,
		sessions: sessions,
		logger:   logger,
		metrics:  m,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Start runs the pipeline from Idle through Transforming. On success the run
// parks in AwaitingConfirmation with nothing persisted; the caller must
// Confirm or Discard. On failure the returned error is a *Failure naming the
// stage, and the run records the failed state.
func (i *Importer) Start(ctx context.Context, ownerID uuid.UUID, key string) (Run, error) {
	now := i.clock()
	run := Run{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		AccessKey: key,
		State:     StateIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
	i.metrics.RecordImportStarted()

	run = run.advance(StateValidatingKey, i.clock())
	if err := accesskey.Validate(key); err != nil {
		return i.fail(ctx, run, StateValidatingKey, FailValidation, err)
	}

	run = run.advance(StateCheckingDuplicate, i.clock())
	exists, err := i.store.Exists(ctx, ownerID, key)
	if err != nil {
		return i.fail(ctx, run, StateCheckingDuplicate, FailPersistence, err)
	}
	if exists {
		return i.fail(ctx, run, StateCheckingDuplicate, FailDuplicate,
			errors.New("receipt already imported for this owner"))
	}

	run = run.advance(StateFetchingRemote, i.clock())
	results, err := i.fetch(ctx, ownerID, key)
	if err != nil {
		return i.fail(ctx, run, StateFetchingRemote, FailProvider, err)
	}
	if len(results) == 0 {
		return i.fail(ctx, run, StateFetchingRemote, FailNotFound,
			errors.New("no receipt found for this access key"))
	}
	raw := results[0]
	if raw.AccessKey == "" {
		raw.AccessKey = key
	}

	run = run.advance(StateTransforming, i.clock())
	receipt, items, err := transform.Receipt(raw, ownerID, i.clock())
	if err != nil {
		return i.fail(ctx, run, StateTransforming, FailTransform, err)
	}

	run = run.advance(StateAwaitingConfirmation, i.clock())
	run.Receipt = &receipt
	run.Items = items
	if err := i.sessions.Put(ctx, run); err != nil {
		return i.fail(ctx, run, StateAwaitingConfirmation, FailPersistence, err)
	}

	i.logger.InfoContext(ctx, "import awaiting confirmation",
		"import_id", run.ID, "owner_id", ownerID, "line_items", len(items))
	return run, nil
}

// fetch issues the single aggregator call, collapsing concurrent identical
// requests and recording latency.
func (i *Importer) fetch(ctx context.Context, ownerID uuid.UUID, key string) ([]models.RawReceipt, error) {
	start := i.clock()
	v, err, _ := i.fetches.Do(ownerID.String()+"/"+key, func() (any, error) {
		return i.provider.Fetch(ctx, key)
	})
	i.metrics.ObserveProviderLatency(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return v.([]models.RawReceipt), nil
}

// Confirm moves a parked run through Persisting. The header and its items are
// written atomically when the store supports it; otherwise the two-step write
// runs and a failed item insert surfaces as a persistence failure with the
// header retained.
func (i *Importer) Confirm(ctx context.Context, ownerID, importID uuid.UUID) (Run, error) {
	run, err := i.lookup(ctx, ownerID, importID)
	if err != nil {
		return Run{}, err
	}

	run = run.advance(StatePersisting, i.clock())
	receiptID, err := i.persist(ctx, run)
	if err != nil {
		kind := FailPersistence
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the check-then-act race; the constraint caught it.
			kind = FailDuplicate
		}
		// The session stays around so the caller can inspect the failure, but
		// a retry is a fresh run.
		_ = i.sessions.Delete(ctx, importID)
		return i.fail(ctx, run, StatePersisting, kind, err)
	}
	_ = i.sessions.Delete(ctx, importID)

	run = run.advance(StateDone, i.clock())
	run.ReceiptID = receiptID
	if run.Receipt != nil {
		run.Receipt.ID = receiptID
	}
	i.metrics.RecordImportCompleted(time.Since(run.StartedAt).Seconds())
	i.logger.InfoContext(ctx, "import completed",
		"import_id", run.ID, "owner_id", ownerID, "receipt_id", receiptID)
	return run, nil
}

func (i *Importer) persist(ctx context.Context, run Run) (uuid.UUID, error) {
	if saver, ok := i.store.(store.AtomicSaver); ok {
		return saver.SaveWithItems(ctx, run.Receipt, run.Items)
	}
	id, err := i.store.SaveReceipt(ctx, run.Receipt)
	if err != nil {
		return uuid.Nil, err
	}
	if err := i.store.SaveLineItems(ctx, id, run.Items); err != nil {
		// Known gap: the header row remains without its items. Surfaced as a
		// distinct failure, never swallowed.
		return uuid.Nil, err
	}
	return id, nil
}

// Discard cancels a parked run. Terminal, zero store side effects.
func (i *Importer) Discard(ctx context.Context, ownerID, importID uuid.UUID) (Run, error) {
	run, err := i.lookup(ctx, ownerID, importID)
	if err != nil {
		return Run{}, err
	}
	if err := i.sessions.Delete(ctx, importID); err != nil {
		return Run{}, err
	}
	run = run.advance(StateCancelled, i.clock())
	i.metrics.RecordImportCancelled()
	i.logger.InfoContext(ctx, "import discarded", "import_id", run.ID, "owner_id", ownerID)
	return run, nil
}

// Pending returns a parked run for inspection.
func (i *Importer) Pending(ctx context.Context, ownerID, importID uuid.UUID) (Run, error) {
	return i.lookup(ctx, ownerID, importID)
}

// lookup fetches a parked run, hiding other owners' sessions.
func (i *Importer) lookup(ctx context.Context, ownerID, importID uuid.UUID) (Run, error) {
	run, err := i.sessions.Get(ctx, importID)
	if err != nil {
		return Run{}, err
	}
	if run.OwnerID != ownerID || run.State != StateAwaitingConfirmation {
		return Run{}, ErrSessionNotFound
	}
	return run, nil
}

func (i *Importer) fail(ctx context.Context, run Run, stage State, kind Kind, err error) (Run, error) {
	failedRun, failure := run.failed(stage, kind, err, i.clock())
	i.metrics.RecordImportFailed(string(stage))
	i.logger.WarnContext(ctx, "import failed",
		"import_id", run.ID, "owner_id", run.OwnerID,
		"stage", string(stage), "kind", string(kind), "error", err)
	return failedRun, failure
}
