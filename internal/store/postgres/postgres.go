package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
	"fuelbook/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates missing tables and indexes. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	if strings.TrimSpace(pump.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if pump.ID == "" {
		pump.ID = xid.New("pump")
	}
	if pump.CreatedAt.IsZero() {
		pump.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pumps (id, name, company, cost_center, cash_account, receivable_account, payable_account, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, pump.ID, pump.Name, pump.Company, pump.CostCenter, pump.CashAccount, pump.ReceivableAccount, pump.PayableAccount, pump.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := pump
	return &created, nil
}

const pumpColumns = `id, name, company, cost_center, cash_account, receivable_account, payable_account, created_at`

func scanPump(row interface{ Scan(...any) error }) (domain.Pump, error) {
	var p domain.Pump
	err := row.Scan(&p.ID, &p.Name, &p.Company, &p.CostCenter, &p.CashAccount, &p.ReceivableAccount, &p.PayableAccount, &p.CreatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func (s *Store) GetPump(ctx context.Context, id string) (*domain.Pump, error) {
	pump, err := scanPump(s.db.QueryRowContext(ctx, `SELECT `+pumpColumns+` FROM pumps WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &pump, nil
}

func (s *Store) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pumpColumns+` FROM pumps ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pumps := make([]domain.Pump, 0, 8)
	for rows.Next() {
		pump, err := scanPump(rows)
		if err != nil {
			return nil, err
		}
		pumps = append(pumps, pump)
	}
	return pumps, rows.Err()
}

func (s *Store) CreateFuelType(ctx context.Context, fuelType domain.FuelType) (*domain.FuelType, error) {
	if strings.TrimSpace(fuelType.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if fuelType.ID == "" {
		fuelType.ID = xid.New("fuel")
	}
	if fuelType.CreatedAt.IsZero() {
		fuelType.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_types (id, name, item_code, created_at)
		VALUES ($1,$2,$3,$4)
	`, fuelType.ID, fuelType.Name, fuelType.ItemCode, fuelType.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := fuelType
	return &created, nil
}

func (s *Store) GetFuelType(ctx context.Context, id string) (*domain.FuelType, error) {
	var ft domain.FuelType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, item_code, created_at FROM fuel_types WHERE id = $1
	`, id).Scan(&ft.ID, &ft.Name, &ft.ItemCode, &ft.CreatedAt)
	if err != nil {
		return nil, mapReadError(err)
	}
	ft.CreatedAt = ft.CreatedAt.UTC()
	return &ft, nil
}

func (s *Store) ListFuelTypes(ctx context.Context) ([]domain.FuelType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, item_code, created_at FROM fuel_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.FuelType, 0, 4)
	for rows.Next() {
		var ft domain.FuelType
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.ItemCode, &ft.CreatedAt); err != nil {
			return nil, err
		}
		ft.CreatedAt = ft.CreatedAt.UTC()
		result = append(result, ft)
	}
	return result, rows.Err()
}

func (s *Store) CreateTank(ctx context.Context, tank domain.FuelTank) (*domain.FuelTank, error) {
	if tank.PumpID == "" || tank.FuelTypeID == "" || strings.TrimSpace(tank.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if tank.ID == "" {
		tank.ID = xid.New("tank")
	}
	if tank.CreatedAt.IsZero() {
		tank.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_tanks (id, pump_id, name, fuel_type_id, warehouse, capacity, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tank.ID, tank.PumpID, tank.Name, tank.FuelTypeID, tank.Warehouse, tank.Capacity, tank.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := tank
	return &created, nil
}

const tankColumns = `id, pump_id, name, fuel_type_id, warehouse, capacity, created_at`

func scanTank(row interface{ Scan(...any) error }) (domain.FuelTank, error) {
	var t domain.FuelTank
	err := row.Scan(&t.ID, &t.PumpID, &t.Name, &t.FuelTypeID, &t.Warehouse, &t.Capacity, &t.CreatedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func (s *Store) GetTank(ctx context.Context, id string) (*domain.FuelTank, error) {
	tank, err := scanTank(s.db.QueryRowContext(ctx, `SELECT `+tankColumns+` FROM fuel_tanks WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &tank, nil
}

func (s *Store) ListTanks(ctx context.Context, pumpID string) ([]domain.FuelTank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tankColumns+`
		FROM fuel_tanks
		WHERE ($1 = '' OR pump_id = $1)
		ORDER BY name, id
	`, pumpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.FuelTank, 0, 8)
	for rows.Next() {
		tank, err := scanTank(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tank)
	}
	return result, rows.Err()
}

func (s *Store) CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	if nozzle.PumpID == "" || nozzle.TankID == "" || strings.TrimSpace(nozzle.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if nozzle.ID == "" {
		nozzle.ID = xid.New("nozzle")
	}
	if nozzle.CreatedAt.IsZero() {
		nozzle.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nozzles (id, pump_id, name, tank_id, fuel_type_id, opening_reading, last_reading, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, nozzle.ID, nozzle.PumpID, nozzle.Name, nozzle.TankID, nozzle.FuelTypeID,
		nozzle.OpeningReading, nozzle.LastReading, nozzle.Active, nozzle.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := nozzle
	return &created, nil
}

const nozzleColumns = `id, pump_id, name, tank_id, fuel_type_id, opening_reading, last_reading, active, created_at`

func scanNozzle(row interface{ Scan(...any) error }) (domain.Nozzle, error) {
	var n domain.Nozzle
	err := row.Scan(&n.ID, &n.PumpID, &n.Name, &n.TankID, &n.FuelTypeID, &n.OpeningReading, &n.LastReading, &n.Active, &n.CreatedAt)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, err
}

func (s *Store) GetNozzle(ctx context.Context, id string) (*domain.Nozzle, error) {
	nozzle, err := scanNozzle(s.db.QueryRowContext(ctx, `SELECT `+nozzleColumns+` FROM nozzles WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &nozzle, nil
}

func (s *Store) FindNozzleByName(ctx context.Context, pumpID string, name string) (*domain.Nozzle, error) {
	nozzle, err := scanNozzle(s.db.QueryRowContext(ctx, `
		SELECT `+nozzleColumns+` FROM nozzles WHERE pump_id = $1 AND name = $2
	`, pumpID, name))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &nozzle, nil
}

func (s *Store) ListNozzles(ctx context.Context, pumpID string, activeOnly bool) ([]domain.Nozzle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nozzleColumns+`
		FROM nozzles
		WHERE ($1 = '' OR pump_id = $1)
			AND ($2 = false OR active = true)
		ORDER BY name, id
	`, pumpID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Nozzle, 0, 16)
	for rows.Next() {
		nozzle, err := scanNozzle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, nozzle)
	}
	return result, rows.Err()
}

func (s *Store) SetNozzleLastReading(ctx context.Context, id string, reading decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE nozzles SET last_reading = $2 WHERE id = $1`, id, reading)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CreateDispenser(ctx context.Context, dispenser domain.Dispenser) (*domain.Dispenser, error) {
	if dispenser.PumpID == "" || strings.TrimSpace(dispenser.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if dispenser.ID == "" {
		dispenser.ID = xid.New("disp")
	}
	if dispenser.CreatedAt.IsZero() {
		dispenser.CreatedAt = time.Now().UTC()
	}
	if dispenser.NozzleIDs == nil {
		dispenser.NozzleIDs = []string{}
	}

	var found int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM nozzles WHERE id = ANY($1)
	`, dispenser.NozzleIDs).Scan(&found); err != nil {
		return nil, err
	}
	if found != len(uniqueStrings(dispenser.NozzleIDs)) {
		return nil, store.ErrNotFound
	}

	members, err := json.Marshal(dispenser.NozzleIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO dispensers (id, pump_id, name, nozzle_ids, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, dispenser.ID, dispenser.PumpID, dispenser.Name, string(members), dispenser.CreatedAt); err != nil {
		return nil, mapWriteError(err)
	}
	created := dispenser
	return &created, nil
}

func (s *Store) ListDispensers(ctx context.Context, pumpID string) ([]domain.Dispenser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, name, nozzle_ids, created_at
		FROM dispensers
		WHERE ($1 = '' OR pump_id = $1)
		ORDER BY name, id
	`, pumpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Dispenser, 0, 8)
	for rows.Next() {
		var d domain.Dispenser
		var members []byte
		if err := rows.Scan(&d.ID, &d.PumpID, &d.Name, &members, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(members, &d.NozzleIDs); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) CreateFuelPrice(ctx context.Context, price domain.FuelPrice) (*domain.FuelPrice, error) {
	if price.PumpID == "" || price.FuelTypeID == "" || !price.PricePerUnit.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if price.ID == "" {
		price.ID = xid.New("price")
	}
	if price.CreatedAt.IsZero() {
		price.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_prices (id, pump_id, fuel_type_id, price_per_unit, effective_from, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, price.ID, price.PumpID, price.FuelTypeID, price.PricePerUnit, price.EffectiveFrom, price.Active, price.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := price
	return &created, nil
}

const priceColumns = `id, pump_id, fuel_type_id, price_per_unit, effective_from, active, created_at`

func scanPrice(row interface{ Scan(...any) error }) (domain.FuelPrice, error) {
	var p domain.FuelPrice
	err := row.Scan(&p.ID, &p.PumpID, &p.FuelTypeID, &p.PricePerUnit, &p.EffectiveFrom, &p.Active, &p.CreatedAt)
	p.EffectiveFrom = p.EffectiveFrom.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func (s *Store) GetFuelPrice(ctx context.Context, id string) (*domain.FuelPrice, error) {
	price, err := scanPrice(s.db.QueryRowContext(ctx, `SELECT `+priceColumns+` FROM fuel_prices WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &price, nil
}

func (s *Store) ListFuelPrices(ctx context.Context, pumpID string, fuelTypeID string) ([]domain.FuelPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+priceColumns+`
		FROM fuel_prices
		WHERE ($1 = '' OR pump_id = $1)
			AND ($2 = '' OR fuel_type_id = $2)
		ORDER BY effective_from DESC, created_at DESC, id
	`, pumpID, fuelTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.FuelPrice, 0, 16)
	for rows.Next() {
		price, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, price)
	}
	return result, rows.Err()
}

func (s *Store) ActivateFuelPrice(ctx context.Context, id string) (*domain.FuelPrice, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	price, err := scanPrice(pgTx.QueryRowContext(ctx, `
		SELECT `+priceColumns+` FROM fuel_prices WHERE id = $1 FOR UPDATE
	`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE fuel_prices
		SET active = false
		WHERE pump_id = $1 AND fuel_type_id = $2 AND id <> $3 AND active = true
	`, price.PumpID, price.FuelTypeID, price.ID); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `UPDATE fuel_prices SET active = true WHERE id = $1`, price.ID); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	price.Active = true
	return &price, nil
}

func (s *Store) LatestFuelPrice(ctx context.Context, pumpID string, fuelTypeID string, asOf time.Time, activeOnly bool) (*domain.FuelPrice, error) {
	price, err := scanPrice(s.db.QueryRowContext(ctx, `
		SELECT `+priceColumns+`
		FROM fuel_prices
		WHERE pump_id = $1 AND fuel_type_id = $2 AND effective_from <= $3
			AND ($4 = false OR active = true)
		ORDER BY effective_from DESC, created_at DESC, id
		LIMIT 1
	`, pumpID, fuelTypeID, asOf, activeOnly))
	if err != nil {
		return nil, mapReadError(err)
	}
	return &price, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if shift.PumpID == "" || strings.TrimSpace(shift.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.Status == "" {
		shift.Status = domain.ShiftOpen
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, pump_id, name, status, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, shift.ID, shift.PumpID, shift.Name, shift.Status, shift.StartTime, nullTime(shift.EndTime))
	if err != nil {
		return nil, mapWriteError(err)
	}
	created := shift
	return &created, nil
}

func scanShift(row interface{ Scan(...any) error }) (*domain.Shift, error) {
	var shift domain.Shift
	var endTime sql.NullTime
	if err := row.Scan(&shift.ID, &shift.PumpID, &shift.Name, &shift.Status, &shift.StartTime, &endTime); err != nil {
		return nil, mapReadError(err)
	}
	shift.StartTime = shift.StartTime.UTC()
	if endTime.Valid {
		at := endTime.Time.UTC()
		shift.EndTime = &at
	}
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.Shift, error) {
	return scanShift(s.db.QueryRowContext(ctx, `
		SELECT id, pump_id, name, status, start_time, end_time FROM shifts WHERE id = $1
	`, id))
}

func (s *Store) SetShiftStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Shift, error) {
	if status != domain.ShiftOpen && status != domain.ShiftClosed {
		return nil, store.ErrInvalidInput
	}
	return scanShift(s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = $2,
			end_time = CASE WHEN $2 = 'Closed' AND end_time IS NULL THEN $3 ELSE end_time END
		WHERE id = $1
		RETURNING id, pump_id, name, status, start_time, end_time
	`, id, status, at))
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, pump_id, actor_username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.PumpID, entry.ActorUsername, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, actor_username, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.PumpID, &entry.ActorUsername, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "23503":
			return store.ErrNotFound
		}
	}
	return err
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
