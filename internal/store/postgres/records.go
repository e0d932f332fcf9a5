package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
	"fuelbook/backend/internal/xid"
)

// Workflow records are stored whole as JSONB. The columns next to the body carry what
// queries filter on.
const (
	tableDayClosings   = "day_closings"
	tableShiftReadings = "shift_readings"
	tableDipReadings   = "dip_readings"
	tableFuelTestings  = "fuel_testings"
	tableFuelTransfers = "fuel_transfers"
)

type recordKey struct {
	id     string
	pumpID string
	date   time.Time
	state  domain.WorkflowState
}

// saveRecord upserts body and returns the stored created and updated times.
func (s *Store) saveRecord(ctx context.Context, table string, key recordKey, body any) (time.Time, time.Time, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	var createdAt, updatedAt time.Time
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, pump_id, reading_date, state, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		ON CONFLICT (id) DO UPDATE
		SET pump_id = EXCLUDED.pump_id,
			reading_date = EXCLUDED.reading_date,
			state = EXCLUDED.state,
			body = EXCLUDED.body,
			updated_at = now()
		RETURNING created_at, updated_at
	`, table), key.id, key.pumpID, key.date, string(key.state), string(raw)).Scan(&createdAt, &updatedAt)
	if err != nil {
		return time.Time{}, time.Time{}, mapWriteError(err)
	}
	return createdAt.UTC(), updatedAt.UTC(), nil
}

func (s *Store) loadRecord(ctx context.Context, table string, id string, dst any) (time.Time, time.Time, error) {
	var raw []byte
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT body, created_at, updated_at FROM %s WHERE id = $1
	`, table), id).Scan(&raw, &createdAt, &updatedAt)
	if err != nil {
		return time.Time{}, time.Time{}, mapReadError(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	return createdAt.UTC(), updatedAt.UTC(), nil
}

func (s *Store) SaveDayClosing(ctx context.Context, record domain.DayClosing) (*domain.DayClosing, error) {
	if record.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = xid.New("dc")
	}
	if record.Refs == nil {
		record.Refs = domain.DocumentRefs{}
	}
	created, updated, err := s.saveRecord(ctx, tableDayClosings,
		recordKey{id: record.ID, pumpID: record.PumpID, date: record.ReadingDate, state: record.State}, record)
	if err != nil {
		return nil, err
	}
	record.CreatedAt, record.UpdatedAt = created, updated
	return &record, nil
}

func (s *Store) GetDayClosing(ctx context.Context, id string) (*domain.DayClosing, error) {
	var record domain.DayClosing
	created, updated, err := s.loadRecord(ctx, tableDayClosings, id, &record)
	if err != nil {
		return nil, err
	}
	record.CreatedAt, record.UpdatedAt = created, updated
	return &record, nil
}

func (s *Store) scanDayClosings(rows *sql.Rows) ([]domain.DayClosing, error) {
	defer rows.Close()

	result := make([]domain.DayClosing, 0, 32)
	for rows.Next() {
		var raw []byte
		var record domain.DayClosing
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&raw, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
		record.CreatedAt, record.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
		result = append(result, record)
	}
	return result, rows.Err()
}

func (s *Store) ListDayClosings(ctx context.Context, pumpID string, from time.Time, to time.Time) ([]domain.DayClosing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body, created_at, updated_at
		FROM day_closings
		WHERE ($1 = '' OR pump_id = $1)
			AND ($2::timestamptz IS NULL OR reading_date >= $2)
			AND ($3::timestamptz IS NULL OR reading_date < $3)
		ORDER BY reading_date, id
	`, pumpID, nullZero(from), nullZero(to))
	if err != nil {
		return nil, err
	}
	return s.scanDayClosings(rows)
}

func (s *Store) LastSubmittedDayClosing(ctx context.Context, pumpID string, onOrBefore time.Time) (*domain.DayClosing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body, created_at, updated_at
		FROM day_closings
		WHERE pump_id = $1
			AND state IN ($2, $3, $4)
			AND reading_date <= $5
		ORDER BY reading_date DESC, created_at DESC
		LIMIT 1
	`, pumpID, string(domain.StateSubmitted), string(domain.StateApproved), string(domain.StatePendingApproval), onOrBefore)
	if err != nil {
		return nil, err
	}
	records, err := s.scanDayClosings(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	return &records[0], nil
}

// AppendDayClosingRef appends to the stored ref list in one statement so a ref survives
// a crash between two ledger calls.
func (s *Store) AppendDayClosingRef(ctx context.Context, id string, ref domain.DocumentRef) error {
	raw, err := json.Marshal(domain.DocumentRefs{ref})
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE day_closings
		SET body = jsonb_set(body, '{refs}',
				CASE WHEN jsonb_typeof(body->'refs') = 'array' THEN body->'refs' ELSE '[]'::jsonb END || $2::jsonb),
			updated_at = now()
		WHERE id = $1
	`, id, string(raw))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ClearDayClosingRefs(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE day_closings
		SET body = jsonb_set(body, '{refs}', '[]'::jsonb), updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SaveShiftReading(ctx context.Context, reading domain.ShiftReading) (*domain.ShiftReading, error) {
	if reading.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	if reading.ID == "" {
		reading.ID = xid.New("sr")
	}
	created, updated, err := s.saveRecord(ctx, tableShiftReadings,
		recordKey{id: reading.ID, pumpID: reading.PumpID, date: reading.ReadingDate, state: reading.State}, reading)
	if err != nil {
		return nil, err
	}
	reading.CreatedAt, reading.UpdatedAt = created, updated
	return &reading, nil
}

func (s *Store) GetShiftReading(ctx context.Context, id string) (*domain.ShiftReading, error) {
	var reading domain.ShiftReading
	created, updated, err := s.loadRecord(ctx, tableShiftReadings, id, &reading)
	if err != nil {
		return nil, err
	}
	reading.CreatedAt, reading.UpdatedAt = created, updated
	return &reading, nil
}

func (s *Store) SaveDipReading(ctx context.Context, reading domain.DipReading) (*domain.DipReading, error) {
	if reading.TankID == "" {
		return nil, store.ErrInvalidInput
	}
	if reading.ID == "" {
		reading.ID = xid.New("dip")
	}
	created, updated, err := s.saveRecord(ctx, tableDipReadings,
		recordKey{id: reading.ID, pumpID: reading.PumpID, date: reading.ReadingDate, state: reading.State}, reading)
	if err != nil {
		return nil, err
	}
	reading.CreatedAt, reading.UpdatedAt = created, updated
	return &reading, nil
}

func (s *Store) GetDipReading(ctx context.Context, id string) (*domain.DipReading, error) {
	var reading domain.DipReading
	created, updated, err := s.loadRecord(ctx, tableDipReadings, id, &reading)
	if err != nil {
		return nil, err
	}
	reading.CreatedAt, reading.UpdatedAt = created, updated
	return &reading, nil
}

func (s *Store) SaveFuelTesting(ctx context.Context, testing domain.FuelTesting) (*domain.FuelTesting, error) {
	if testing.PumpID == "" {
		return nil, store.ErrInvalidInput
	}
	if testing.ID == "" {
		testing.ID = xid.New("ft")
	}
	created, updated, err := s.saveRecord(ctx, tableFuelTestings,
		recordKey{id: testing.ID, pumpID: testing.PumpID, date: testing.TestDate, state: testing.State}, testing)
	if err != nil {
		return nil, err
	}
	testing.CreatedAt, testing.UpdatedAt = created, updated
	return &testing, nil
}

func (s *Store) GetFuelTesting(ctx context.Context, id string) (*domain.FuelTesting, error) {
	var testing domain.FuelTesting
	created, updated, err := s.loadRecord(ctx, tableFuelTestings, id, &testing)
	if err != nil {
		return nil, err
	}
	testing.CreatedAt, testing.UpdatedAt = created, updated
	return &testing, nil
}

func (s *Store) SaveFuelTransfer(ctx context.Context, transfer domain.FuelTransfer) (*domain.FuelTransfer, error) {
	if transfer.FromTankID == "" || transfer.ToTankID == "" {
		return nil, store.ErrInvalidInput
	}
	if transfer.ID == "" {
		transfer.ID = xid.New("xfer")
	}
	var pumpID string
	if err := s.db.QueryRowContext(ctx, `SELECT pump_id FROM fuel_tanks WHERE id = $1`, transfer.FromTankID).Scan(&pumpID); err != nil {
		return nil, mapReadError(err)
	}
	created, updated, err := s.saveRecord(ctx, tableFuelTransfers,
		recordKey{id: transfer.ID, pumpID: pumpID, date: transfer.TransferDate, state: transfer.State}, transfer)
	if err != nil {
		return nil, err
	}
	transfer.CreatedAt, transfer.UpdatedAt = created, updated
	return &transfer, nil
}

func (s *Store) GetFuelTransfer(ctx context.Context, id string) (*domain.FuelTransfer, error) {
	var transfer domain.FuelTransfer
	created, updated, err := s.loadRecord(ctx, tableFuelTransfers, id, &transfer)
	if err != nil {
		return nil, err
	}
	transfer.CreatedAt, transfer.UpdatedAt = created, updated
	return &transfer, nil
}

func nullZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
