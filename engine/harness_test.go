package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// memStore is an in-memory Store with optimistic versioning, used to exercise
// the engine without a database. Transact runs against a deep copy and commits
// it on success, so a failed operation leaves no partial state behind.
type memStore struct {
	mu         sync.Mutex
	nextID     int
	lines      map[int]*models.ProductionLine
	records    map[int]*models.DailyProductionRecord
	bundles    map[int]*models.PackingBundle
	checks     []*models.QCCheckRecord
	dispatches []*models.DispatchRecord

	// conflictsToInject makes the next N SaveProductionLine calls fail with
	// ErrConcurrencyConflict, to exercise the retry path.
	conflictsToInject int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  0,
		lines:   make(map[int]*models.ProductionLine),
		records: make(map[int]*models.DailyProductionRecord),
		bundles: make(map[int]*models.PackingBundle),
	}
}

func (s *memStore) newID() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	for id, l := range s.lines {
		c.lines[id] = copyLine(l)
	}
	for id, r := range s.records {
		c.records[id] = copyRecord(r)
	}
	for id, b := range s.bundles {
		c.bundles[id] = copyBundle(b)
	}
	c.checks = append(c.checks, s.checks...)
	c.dispatches = append(c.dispatches, s.dispatches...)
	return c
}

func (s *memStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scratch := s.clone()
	scratch.conflictsToInject = s.conflictsToInject
	if err := fn(scratch); err != nil {
		s.conflictsToInject = scratch.conflictsToInject
		return err
	}
	s.conflictsToInject = scratch.conflictsToInject
	s.nextID = scratch.nextID
	s.lines = scratch.lines
	s.records = scratch.records
	s.bundles = scratch.bundles
	s.checks = scratch.checks
	s.dispatches = scratch.dispatches
	return nil
}

func (s *memStore) GetProductionLine(ctx context.Context, id int) (*models.ProductionLine, error) {
	line, ok := s.lines[id]
	if !ok {
		return nil, errNotFound("production line", id)
	}
	return copyLine(line), nil
}

func (s *memStore) SaveProductionLine(ctx context.Context, line *models.ProductionLine) error {
	if s.conflictsToInject > 0 {
		s.conflictsToInject--
		return models.ErrConcurrencyConflict
	}
	current, ok := s.lines[line.ID]
	if !ok {
		return errNotFound("production line", line.ID)
	}
	if current.Version != line.Version {
		return models.ErrConcurrencyConflict
	}
	saved := copyLine(line)
	saved.Version++
	s.lines[line.ID] = saved
	line.Version = saved.Version
	return nil
}

func (s *memStore) GetDailyRecord(ctx context.Context, id int) (*models.DailyProductionRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, errNotFound("daily production record", id)
	}
	return copyRecord(rec), nil
}

func (s *memStore) ActiveDailyRecord(ctx context.Context, lineID int) (*models.DailyProductionRecord, error) {
	var active *models.DailyProductionRecord
	for _, rec := range s.records {
		if rec.ProductionLineID != lineID || rec.Terminal() {
			continue
		}
		if active == nil || rec.ID > active.ID {
			active = rec
		}
	}
	if active == nil {
		return nil, nil
	}
	return copyRecord(active), nil
}

func (s *memStore) CreateDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error {
	rec.ID = s.newID()
	rec.Version = 1
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (s *memStore) SaveDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error {
	current, ok := s.records[rec.ID]
	if !ok {
		return errNotFound("daily production record", rec.ID)
	}
	if current.Version != rec.Version {
		return models.ErrConcurrencyConflict
	}
	for i := range rec.Logs {
		if rec.Logs[i].ID == 0 {
			rec.Logs[i].ID = s.newID()
			rec.Logs[i].DailyRecordID = rec.ID
		}
	}
	for i := range rec.Downtime {
		if rec.Downtime[i].ID == 0 {
			rec.Downtime[i].ID = s.newID()
			rec.Downtime[i].DailyRecordID = rec.ID
		}
	}
	saved := copyRecord(rec)
	saved.Version++
	s.records[rec.ID] = saved
	rec.Version = saved.Version
	return nil
}

func (s *memStore) ListBundles(ctx context.Context, filter BundleFilter) ([]*models.PackingBundle, error) {
	var out []*models.PackingBundle
	for _, b := range s.bundles {
		if filter.Stage != "" && b.Stage != filter.Stage {
			continue
		}
		if filter.ProductionLineID != 0 && b.ProductionLineID != filter.ProductionLineID {
			continue
		}
		if filter.ShapeCode != "" || filter.MatchEmptyMark {
			line, ok := s.lines[b.ProductionLineID]
			if !ok {
				continue
			}
			if strings.ToUpper(strings.TrimSpace(line.ShapeCode)) != filter.ShapeCode {
				continue
			}
			raw := ""
			if line.BarMark != nil {
				raw = *line.BarMark
			}
			if filter.MatchEmptyMark {
				if NormalizeMark(raw) != emptyMarkSentinel {
					continue
				}
			} else if raw != filter.BarMark {
				// Exact matching is on the stored mark; normalization only
				// widens the empty-mark fallback.
				continue
			}
		}
		out = append(out, copyBundle(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) CreateBundles(ctx context.Context, bundles []*models.PackingBundle) error {
	for _, b := range bundles {
		b.ID = s.newID()
		s.bundles[b.ID] = copyBundle(b)
	}
	return nil
}

func (s *memStore) SaveBundle(ctx context.Context, bundle *models.PackingBundle) error {
	current, ok := s.bundles[bundle.ID]
	if !ok {
		return errNotFound("packing bundle", bundle.ID)
	}
	if current.Version != bundle.Version {
		return models.ErrConcurrencyConflict
	}
	saved := copyBundle(bundle)
	saved.Version++
	s.bundles[bundle.ID] = saved
	bundle.Version = saved.Version
	return nil
}

func (s *memStore) CreateQCCheck(ctx context.Context, rec *models.QCCheckRecord) error {
	rec.ID = s.newID()
	cp := *rec
	s.checks = append(s.checks, &cp)
	return nil
}

func (s *memStore) CreateDispatch(ctx context.Context, rec *models.DispatchRecord) error {
	rec.ID = s.newID()
	cp := *rec
	cp.LineItems = append([]models.DispatchLineItem(nil), rec.LineItems...)
	cp.BundleIDs = append([]int(nil), rec.BundleIDs...)
	s.dispatches = append(s.dispatches, &cp)
	return nil
}

func (s *memStore) DispatchByIdempotencyKey(ctx context.Context, key string) (*models.DispatchRecord, error) {
	for _, d := range s.dispatches {
		if d.IdempotencyKey == key {
			cp := *d
			cp.LineItems = append([]models.DispatchLineItem(nil), d.LineItems...)
			cp.BundleIDs = append([]int(nil), d.BundleIDs...)
			return &cp, nil
		}
	}
	return nil, nil
}

func copyLine(l *models.ProductionLine) *models.ProductionLine {
	cp := *l
	if l.BarMark != nil {
		mark := *l.BarMark
		cp.BarMark = &mark
	}
	return &cp
}

func copyRecord(r *models.DailyProductionRecord) *models.DailyProductionRecord {
	cp := *r
	cp.Logs = append([]models.ProductionLog(nil), r.Logs...)
	cp.Downtime = make([]models.DowntimeWindow, len(r.Downtime))
	for i, w := range r.Downtime {
		cp.Downtime[i] = w
		if w.EndedAt != nil {
			end := *w.EndedAt
			cp.Downtime[i].EndedAt = &end
		}
	}
	return &cp
}

func copyBundle(b *models.PackingBundle) *models.PackingBundle {
	cp := *b
	return &cp
}

type notFoundError struct {
	kind string
	id   int
}

func (e *notFoundError) Error() string {
	return e.kind + " not found"
}

func errNotFound(kind string, id int) error {
	return &notFoundError{kind: kind, id: id}
}

// fixedClock is a deterministic Clock that only moves when advanced.
type fixedClock struct {
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// captureAuditor records emitted events for assertions.
type captureAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *captureAuditor) Emit(event AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

// newTestEngine builds an engine over a fresh memStore.
func newTestEngine() (*Engine, *memStore, *fixedClock, *captureAuditor) {
	store := newMemStore()
	clock := newFixedClock()
	audit := &captureAuditor{}
	eng, err := New(store, clock, audit)
	if err != nil {
		panic(err)
	}
	return eng, store, clock, audit
}

// seedLine inserts a production line directly into the store.
func seedLine(store *memStore, line models.ProductionLine) *models.ProductionLine {
	if line.Version == 0 {
		line.Version = 1
	}
	if line.ID == 0 {
		line.ID = store.newID()
	}
	if line.ShapeCode == "" {
		line.ShapeCode = "BBS-20A"
	}
	if line.Vertical == "" {
		line.Vertical = models.VerticalRebar
	}
	store.lines[line.ID] = copyLine(&line)
	return copyLine(&line)
}

func strptr(s string) *string { return &s }
