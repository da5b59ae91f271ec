package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout/helpers"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// StoreStatus is the state of one store within a checkout run.
type StoreStatus string

const (
	StatusPending StoreStatus = "pending"
	StatusSuccess StoreStatus = "success"
	StatusFailed  StoreStatus = "failed"
)

// StoreProgress is the outcome of one store's checkout request.
type StoreProgress struct {
	StoreID   int64       `json:"store_id"`
	StoreName string      `json:"store_name,omitempty"`
	Total     string      `json:"total"`
	Status    StoreStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	Attempts  int         `json:"attempts"`
	// Retryable is set on failed stores whose error was transient.
	Retryable bool `json:"retryable,omitempty"`

	idempotencyKey string
}

// Progress is the per-store state of the latest checkout for one session.
type Progress struct {
	Namespace  cart.Namespace  `json:"namespace"`
	Stores     []StoreProgress `json:"stores"`
	Running    bool            `json:"running"`
	Complete   bool            `json:"complete"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// AllSucceeded reports whether every store reached success.
func (p Progress) AllSucceeded() bool {
	if len(p.Stores) == 0 {
		return false
	}
	for _, store := range p.Stores {
		if store.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Counts returns how many stores sit in each status.
func (p Progress) Counts() map[StoreStatus]int {
	counts := map[StoreStatus]int{StatusPending: 0, StatusSuccess: 0, StatusFailed: 0}
	for _, store := range p.Stores {
		counts[store.Status]++
	}
	return counts
}

func (p Progress) clone() Progress {
	out := p
	out.Stores = append([]StoreProgress(nil), p.Stores...)
	if p.FinishedAt != nil {
		finished := *p.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// Tracker keeps checkout progress per session subject. Progress of an
// incomplete run survives until the next run or an explicit Discard so a
// retry can reuse its idempotency keys.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Progress
	now     func() time.Time
	newKey  func() string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*Progress),
		now:     time.Now,
		newKey:  func() string { return uuid.NewString() },
	}
}

// Begin starts a run for subject over the stores of view. A previous
// incomplete run for the same namespace carries over each store's status and
// idempotency key; anything else starts from scratch. A run already in
// flight for subject is a conflict.
func (t *Tracker) Begin(subject string, ns cart.Namespace, view *types.RemoteCart) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.entries[subject]
	if prev != nil && prev.Running {
		return Progress{}, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}

	carried := map[int64]StoreProgress{}
	if prev != nil && !prev.Complete && prev.Namespace == ns {
		for _, store := range prev.Stores {
			carried[store.StoreID] = store
		}
	}

	totals := helpers.TotalsByStore(view)
	next := &Progress{
		Namespace: ns,
		Stores:    make([]StoreProgress, 0, len(totals)),
		Running:   true,
		StartedAt: t.now().UTC(),
	}
	for _, store := range totals {
		entry := StoreProgress{
			StoreID:   store.StoreID,
			StoreName: store.StoreName,
			Total:     store.Total.StringFixed(2),
			Status:    StatusPending,
		}
		if old, ok := carried[store.StoreID]; ok {
			entry.idempotencyKey = old.idempotencyKey
			entry.Attempts = old.Attempts
			if old.Status == StatusSuccess {
				entry.Status = StatusSuccess
				entry.Message = old.Message
			}
		}
		if entry.idempotencyKey == "" {
			entry.idempotencyKey = t.newKey()
		}
		next.Stores = append(next.Stores, entry)
	}

	t.entries[subject] = next
	return next.clone(), nil
}

// Attempt records that a request for storeID is about to be sent and
// returns the idempotency key to send with it.
func (t *Tracker) Attempt(subject string, storeID int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	store := t.find(subject, storeID)
	if store == nil {
		return ""
	}
	store.Status = StatusPending
	store.Message = ""
	store.Retryable = false
	store.Attempts++
	return store.idempotencyKey
}

// Mark sets the outcome of storeID.
func (t *Tracker) Mark(subject string, storeID int64, status StoreStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if store := t.find(subject, storeID); store != nil {
		store.Status = status
		store.Message = message
	}
}

// Fail marks storeID failed with message. retryable tells the UI whether
// sending the same request again can succeed.
func (t *Tracker) Fail(subject string, storeID int64, message string, retryable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if store := t.find(subject, storeID); store != nil {
		store.Status = StatusFailed
		store.Message = message
		store.Retryable = retryable
	}
}

// Finish closes the run for subject and returns its final state.
func (t *Tracker) Finish(subject string) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[subject]
	if entry == nil {
		return Progress{}
	}
	finished := t.now().UTC()
	entry.Running = false
	entry.FinishedAt = &finished
	entry.Complete = entry.AllSucceeded()
	return entry.clone()
}

// Get returns the latest progress for subject.
func (t *Tracker) Get(subject string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[subject]
	if entry == nil {
		return Progress{}, false
	}
	return entry.clone(), true
}

// Discard drops the progress for subject unless a run is in flight.
func (t *Tracker) Discard(subject string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[subject]
	if entry == nil {
		return nil
	}
	if entry.Running {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	delete(t.entries, subject)
	return nil
}

func (t *Tracker) find(subject string, storeID int64) *StoreProgress {
	entry := t.entries[subject]
	if entry == nil {
		return nil
	}
	for i := range entry.Stores {
		if entry.Stores[i].StoreID == storeID {
			return &entry.Stores[i]
		}
	}
	return nil
}
