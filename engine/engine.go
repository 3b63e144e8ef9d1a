// Package engine implements the quantity reconciliation and allocation core:
// the production line ledger, the daily production state machine, the QC
// adjustment step, the bundle packer and the FIFO dispatch allocator. The
// engine is storage- and transport-agnostic; it talks to persistence through
// the narrow Store contract and receives the clock, caller identity and audit
// sink from the surrounding system.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// maxConflictRetries bounds how often a whole operation is retried after an
// optimistic version conflict before the conflict is surfaced to the caller.
const maxConflictRetries = 3

// BundleFilter selects packing bundles for the allocator. Results are always
// ordered by created_at ascending, then id ascending, so the FIFO walk is
// deterministic for bundles created in the same instant.
type BundleFilter struct {
	ProductionLineID int
	ShapeCode        string
	BarMark          string
	// MatchEmptyMark widens the mark match to every bundle whose production
	// line mark normalizes to the empty sentinel (blank, null or dash), for
	// the fallback grouping of inconsistently tagged lines.
	MatchEmptyMark bool
	Stage          string
}

// Store is the persistence contract the engine operates through. Transact
// runs fn against a transactional view of the store; every Save must fail
// with models.ErrConcurrencyConflict when the record's version changed since
// it was read.
type Store interface {
	Transact(ctx context.Context, fn func(tx Store) error) error

	GetProductionLine(ctx context.Context, id int) (*models.ProductionLine, error)
	SaveProductionLine(ctx context.Context, line *models.ProductionLine) error

	GetDailyRecord(ctx context.Context, id int) (*models.DailyProductionRecord, error)
	ActiveDailyRecord(ctx context.Context, lineID int) (*models.DailyProductionRecord, error)
	CreateDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error
	SaveDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error

	ListBundles(ctx context.Context, filter BundleFilter) ([]*models.PackingBundle, error)
	CreateBundles(ctx context.Context, bundles []*models.PackingBundle) error
	SaveBundle(ctx context.Context, bundle *models.PackingBundle) error

	CreateQCCheck(ctx context.Context, rec *models.QCCheckRecord) error

	CreateDispatch(ctx context.Context, rec *models.DispatchRecord) error
	DispatchByIdempotencyKey(ctx context.Context, key string) (*models.DispatchRecord, error)
}

// Clock supplies the current time so operations are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AuditEvent is emitted after every successful engine operation.
type AuditEvent struct {
	Context          string    `json:"context"`
	Action           string    `json:"action"`
	ProductionLineID int       `json:"production_line_id,omitempty"`
	Quantity         int       `json:"quantity,omitempty"`
	UserName         string    `json:"user_name"`
	Timestamp        time.Time `json:"timestamp"`
}

// Auditor receives audit events. Implementations must not block; a failed
// emit never fails the business operation.
type Auditor interface {
	Emit(event AuditEvent)
}

// Engine wires the reconciliation core to its collaborators.
type Engine struct {
	store Store
	clock Clock
	audit Auditor
	node  *snowflake.Node
}

// New builds an Engine. audit may be nil to disable the sink.
func New(store Store, clock Clock, audit Auditor) (*Engine, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	return &Engine{store: store, clock: clock, audit: audit, node: node}, nil
}

// withRetry runs fn in a storage transaction, retrying the whole operation
// from scratch on optimistic version conflicts. Business rule errors are
// surfaced on the first occurrence.
func (e *Engine) withRetry(ctx context.Context, fn func(tx Store) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = e.store.Transact(ctx, fn)
		if !errors.Is(err, models.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

func (e *Engine) emit(event AuditEvent) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(event)
}

// nextSerial mints a unique traceability serial.
func (e *Engine) nextSerial() string {
	return e.node.Generate().String()
}
