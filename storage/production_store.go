package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/models"
)

// querier is the subset of *sql.DB and *sql.Tx the store runs statements on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ProductionStore implements engine.Store on Postgres. Saves are guarded by an
// optimistic version column: an UPDATE that matches no row because the version
// moved fails with models.ErrConcurrencyConflict, and the engine retries the
// whole operation.
type ProductionStore struct {
	db *sql.DB
	q  querier
}

// NewProductionStore wraps a database handle.
func NewProductionStore(db *sql.DB) *ProductionStore {
	return &ProductionStore{db: db, q: db}
}

// Transact runs fn inside a database transaction. A store that is already
// transactional reuses its transaction, so engine operations compose.
func (s *ProductionStore) Transact(ctx context.Context, fn func(tx engine.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&ProductionStore{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CloseFullyDispatchedLines soft-closes lines whose dispatched quantity has
// reached plan. The allocator closes lines as it drains them; this sweeps up
// lines whose plan was reached by other means, e.g. a lowered plan.
func CloseFullyDispatchedLines(db *sql.DB) error {
	_, err := db.Exec(`
		UPDATE production_line
		SET closed = TRUE, version = version + 1, updated_at = NOW()
		WHERE NOT closed AND dispatched_quantity >= planned_quantity`)
	return err
}

func (s *ProductionStore) GetProductionLine(ctx context.Context, id int) (*models.ProductionLine, error) {
	query := `
		SELECT id, job_order_id, shape_or_product_id, shape_code, bar_mark, vertical,
		       unit_weight_kg, planned_quantity, achieved_quantity, rejected_quantity,
		       recycled_quantity, packed_quantity, dispatched_quantity, closed, version,
		       created_at, updated_at
		FROM production_line WHERE id = $1`

	var line models.ProductionLine
	var barMark sql.NullString
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&line.ID, &line.JobOrderID, &line.ShapeOrProductID, &line.ShapeCode, &barMark, &line.Vertical,
		&line.UnitWeightKg, &line.PlannedQuantity, &line.AchievedQuantity, &line.RejectedQuantity,
		&line.RecycledQuantity, &line.PackedQuantity, &line.DispatchedQuantity, &line.Closed, &line.Version,
		&line.CreatedAt, &line.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("production line %d not found", id)
		}
		return nil, fmt.Errorf("failed to query production line: %w", err)
	}
	if barMark.Valid {
		line.BarMark = &barMark.String
	}
	return &line, nil
}

func (s *ProductionStore) SaveProductionLine(ctx context.Context, line *models.ProductionLine) error {
	query := `
		UPDATE production_line
		SET achieved_quantity = $1, rejected_quantity = $2, recycled_quantity = $3,
		    packed_quantity = $4, dispatched_quantity = $5, closed = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $7 AND version = $8`

	result, err := s.q.ExecContext(ctx, query,
		line.AchievedQuantity, line.RejectedQuantity, line.RecycledQuantity,
		line.PackedQuantity, line.DispatchedQuantity, line.Closed,
		line.ID, line.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update production line: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrConcurrencyConflict
	}
	line.Version++
	return nil
}

func (s *ProductionStore) GetDailyRecord(ctx context.Context, id int) (*models.DailyProductionRecord, error) {
	query := `
		SELECT id, production_line_id, status, started_at, stopped_at, version, created_at, updated_at
		FROM daily_production_record WHERE id = $1`

	rec, err := s.scanDailyRecord(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("daily production record %d not found", id)
		}
		return nil, fmt.Errorf("failed to query daily production record: %w", err)
	}
	if err := s.loadRecordChildren(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ProductionStore) ActiveDailyRecord(ctx context.Context, lineID int) (*models.DailyProductionRecord, error) {
	query := `
		SELECT id, production_line_id, status, started_at, stopped_at, version, created_at, updated_at
		FROM daily_production_record
		WHERE production_line_id = $1 AND status NOT IN ($2, $3)
		ORDER BY id DESC LIMIT 1`

	rec, err := s.scanDailyRecord(s.q.QueryRowContext(ctx, query, lineID, models.ProductionApproved, models.ProductionRejected))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active daily record: %w", err)
	}
	if err := s.loadRecordChildren(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ProductionStore) CreateDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error {
	query := `
		INSERT INTO daily_production_record (production_line_id, status, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4) RETURNING id`

	err := s.q.QueryRowContext(ctx, query, rec.ProductionLineID, rec.Status, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert daily production record: %w", err)
	}
	rec.Version = 1
	return nil
}

func (s *ProductionStore) SaveDailyRecord(ctx context.Context, rec *models.DailyProductionRecord) error {
	query := `
		UPDATE daily_production_record
		SET status = $1, started_at = $2, stopped_at = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`

	result, err := s.q.ExecContext(ctx, query,
		rec.Status, rec.StartedAt, rec.StoppedAt, rec.UpdatedAt, rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to update daily production record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrConcurrencyConflict
	}
	rec.Version++

	if err := s.insertNewLogs(ctx, rec); err != nil {
		return err
	}
	return s.upsertDowntime(ctx, rec)
}

// insertNewLogs persists log entries appended in memory. Logs are append-only;
// rows that already have an id are never touched.
func (s *ProductionStore) insertNewLogs(ctx context.Context, rec *models.DailyProductionRecord) error {
	query := `
		INSERT INTO production_log (daily_record_id, action, description, quantity_delta, user_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	for i := range rec.Logs {
		if rec.Logs[i].ID != 0 {
			continue
		}
		entry := &rec.Logs[i]
		entry.DailyRecordID = rec.ID
		err := s.q.QueryRowContext(ctx, query,
			rec.ID, entry.Action, entry.Description, entry.QuantityDelta, entry.UserName, entry.CreatedAt).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert production log: %w", err)
		}
	}
	return nil
}

// upsertDowntime inserts new downtime windows and stamps the end of windows
// closed in memory.
func (s *ProductionStore) upsertDowntime(ctx context.Context, rec *models.DailyProductionRecord) error {
	insertQuery := `
		INSERT INTO downtime_window (daily_record_id, reason, started_at, ended_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	updateQuery := `UPDATE downtime_window SET ended_at = $1 WHERE id = $2 AND ended_at IS NULL`

	for i := range rec.Downtime {
		w := &rec.Downtime[i]
		if w.ID == 0 {
			w.DailyRecordID = rec.ID
			err := s.q.QueryRowContext(ctx, insertQuery, rec.ID, w.Reason, w.StartedAt, w.EndedAt).Scan(&w.ID)
			if err != nil {
				return fmt.Errorf("failed to insert downtime window: %w", err)
			}
			continue
		}
		if w.EndedAt != nil {
			if _, err := s.q.ExecContext(ctx, updateQuery, w.EndedAt, w.ID); err != nil {
				return fmt.Errorf("failed to close downtime window: %w", err)
			}
		}
	}
	return nil
}

func (s *ProductionStore) scanDailyRecord(row *sql.Row) (*models.DailyProductionRecord, error) {
	var rec models.DailyProductionRecord
	err := row.Scan(&rec.ID, &rec.ProductionLineID, &rec.Status, &rec.StartedAt, &rec.StoppedAt,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ProductionStore) loadRecordChildren(ctx context.Context, rec *models.DailyProductionRecord) error {
	logsQuery := `
		SELECT id, daily_record_id, action, description, quantity_delta, user_name, created_at
		FROM production_log WHERE daily_record_id = $1 ORDER BY id`

	rows, err := s.q.QueryContext(ctx, logsQuery, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query production logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry models.ProductionLog
		if err := rows.Scan(&entry.ID, &entry.DailyRecordID, &entry.Action, &entry.Description,
			&entry.QuantityDelta, &entry.UserName, &entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan production log: %w", err)
		}
		rec.Logs = append(rec.Logs, entry)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	downtimeQuery := `
		SELECT id, daily_record_id, reason, started_at, ended_at
		FROM downtime_window WHERE daily_record_id = $1 ORDER BY id`

	dtRows, err := s.q.QueryContext(ctx, downtimeQuery, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query downtime windows: %w", err)
	}
	defer dtRows.Close()
	for dtRows.Next() {
		var w models.DowntimeWindow
		if err := dtRows.Scan(&w.ID, &w.DailyRecordID, &w.Reason, &w.StartedAt, &w.EndedAt); err != nil {
			return fmt.Errorf("failed to scan downtime window: %w", err)
		}
		rec.Downtime = append(rec.Downtime, w)
	}
	return dtRows.Err()
}

// ListBundles returns packing bundles joined with their production line so the
// allocator can match on the line's group key. Order is created_at then id, the
// FIFO order the allocator walks.
func (s *ProductionStore) ListBundles(ctx context.Context, filter engine.BundleFilter) ([]*models.PackingBundle, error) {
	query := `
		SELECT b.id, b.production_line_id, b.quantity, b.bundle_size, b.stage, b.serial,
		       b.qr_code, b.weight_kg, b.version, b.created_at, b.updated_at
		FROM packing_bundle b
		JOIN production_line pl ON pl.id = b.production_line_id
		WHERE 1=1`
	args := []interface{}{}

	if filter.Stage != "" {
		args = append(args, filter.Stage)
		query += fmt.Sprintf(" AND b.stage = $%d", len(args))
	}
	if filter.ProductionLineID != 0 {
		args = append(args, filter.ProductionLineID)
		query += fmt.Sprintf(" AND b.production_line_id = $%d", len(args))
	}
	if filter.ShapeCode != "" {
		args = append(args, filter.ShapeCode)
		query += fmt.Sprintf(" AND UPPER(BTRIM(pl.shape_code)) = $%d", len(args))
	}
	if filter.MatchEmptyMark {
		// Mirror of engine.NormalizeMark's empty sentinel spellings.
		query += " AND UPPER(BTRIM(COALESCE(pl.bar_mark, ''))) IN ('', '-', 'NA', 'N/A', 'NULL')"
	} else if filter.ShapeCode != "" {
		args = append(args, filter.BarMark)
		query += fmt.Sprintf(" AND COALESCE(pl.bar_mark, '') = $%d", len(args))
	}
	query += " ORDER BY b.created_at, b.id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query packing bundles: %w", err)
	}
	defer rows.Close()

	var bundles []*models.PackingBundle
	for rows.Next() {
		var b models.PackingBundle
		if err := rows.Scan(&b.ID, &b.ProductionLineID, &b.Quantity, &b.BundleSize, &b.Stage, &b.Serial,
			&b.QRCode, &b.WeightKg, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan packing bundle: %w", err)
		}
		bundles = append(bundles, &b)
	}
	return bundles, rows.Err()
}

func (s *ProductionStore) CreateBundles(ctx context.Context, bundles []*models.PackingBundle) error {
	query := `
		INSERT INTO packing_bundle (production_line_id, quantity, bundle_size, stage, serial,
		                            qr_code, weight_kg, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	for _, b := range bundles {
		err := s.q.QueryRowContext(ctx, query,
			b.ProductionLineID, b.Quantity, b.BundleSize, b.Stage, b.Serial,
			b.QRCode, b.WeightKg, b.Version, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert packing bundle: %w", err)
		}
	}
	return nil
}

func (s *ProductionStore) SaveBundle(ctx context.Context, bundle *models.PackingBundle) error {
	query := `
		UPDATE packing_bundle
		SET quantity = $1, stage = $2, weight_kg = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`

	result, err := s.q.ExecContext(ctx, query,
		bundle.Quantity, bundle.Stage, bundle.WeightKg, bundle.UpdatedAt, bundle.ID, bundle.Version)
	if err != nil {
		return fmt.Errorf("failed to update packing bundle: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrConcurrencyConflict
	}
	bundle.Version++
	return nil
}

func (s *ProductionStore) CreateQCCheck(ctx context.Context, rec *models.QCCheckRecord) error {
	query := `
		INSERT INTO qc_check (production_line_id, rejected_delta, recycled_delta, remarks, checked_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := s.q.QueryRowContext(ctx, query,
		rec.ProductionLineID, rec.RejectedDelta, rec.RecycledDelta, rec.Remarks, rec.CheckedBy, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert qc check: %w", err)
	}
	return nil
}

func (s *ProductionStore) CreateDispatch(ctx context.Context, rec *models.DispatchRecord) error {
	query := `
		INSERT INTO dispatch_record (work_order_id, order_number, idempotency_key, bundle_ids,
		                             vehicle_number, driver_name, invoice_number, total_weight_kg,
		                             created_by, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	bundleIDs := make(pq.Int64Array, len(rec.BundleIDs))
	for i, id := range rec.BundleIDs {
		bundleIDs[i] = int64(id)
	}
	err := s.q.QueryRowContext(ctx, query,
		rec.WorkOrderID, rec.OrderNumber, rec.IdempotencyKey, bundleIDs,
		rec.VehicleNumber, rec.DriverName, rec.InvoiceNumber, rec.TotalWeightKg,
		rec.CreatedBy, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}

	itemQuery := `INSERT INTO dispatch_line_item (dispatch_id, group_key, quantity) VALUES ($1, $2, $3) RETURNING id`
	for i := range rec.LineItems {
		item := &rec.LineItems[i]
		if err := s.q.QueryRowContext(ctx, itemQuery, rec.ID, item.GroupKey, item.Quantity).Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to insert dispatch line item: %w", err)
		}
	}
	return nil
}

func (s *ProductionStore) DispatchByIdempotencyKey(ctx context.Context, key string) (*models.DispatchRecord, error) {
	query := `
		SELECT id, work_order_id, order_number, COALESCE(idempotency_key, ''), bundle_ids,
		       vehicle_number, driver_name, invoice_number, total_weight_kg, created_by, created_at
		FROM dispatch_record WHERE idempotency_key = $1`

	var rec models.DispatchRecord
	var bundleIDs pq.Int64Array
	err := s.q.QueryRowContext(ctx, query, key).Scan(
		&rec.ID, &rec.WorkOrderID, &rec.OrderNumber, &rec.IdempotencyKey, &bundleIDs,
		&rec.VehicleNumber, &rec.DriverName, &rec.InvoiceNumber, &rec.TotalWeightKg,
		&rec.CreatedBy, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query dispatch record: %w", err)
	}
	for _, id := range bundleIDs {
		rec.BundleIDs = append(rec.BundleIDs, int(id))
	}
	if err := s.loadDispatchLineItems(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ProductionStore) loadDispatchLineItems(ctx context.Context, rec *models.DispatchRecord) error {
	query := `SELECT id, dispatch_id, group_key, quantity FROM dispatch_line_item WHERE dispatch_id = $1 ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query dispatch line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.DispatchLineItem
		if err := rows.Scan(&item.ID, &item.DispatchID, &item.GroupKey, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan dispatch line item: %w", err)
		}
		rec.LineItems = append(rec.LineItems, item)
	}
	return rows.Err()
}
