package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WorkflowState string

const (
	StateDraft           WorkflowState = "Draft"
	StateSubmitted       WorkflowState = "Submitted"
	StateApproved        WorkflowState = "Approved"
	StatePendingApproval WorkflowState = "PendingApproval"
	StateCancelled       WorkflowState = "Cancelled"
)

// Finalized reports whether a record has been handed to the ledger and can be cancelled.
func (s WorkflowState) Finalized() bool {
	switch s {
	case StateSubmitted, StateApproved, StatePendingApproval:
		return true
	}
	return false
}

const (
	ShiftOpen   = "Open"
	ShiftClosed = "Closed"
)

type Actor struct {
	Username string `json:"username"`
}

type Pump struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Company           string    `json:"company"`
	CostCenter        string    `json:"cost_center"`
	CashAccount       string    `json:"cash_account"`
	ReceivableAccount string    `json:"receivable_account"`
	PayableAccount    string    `json:"payable_account"`
	CreatedAt         time.Time `json:"created_at"`
}

type FuelType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ItemCode  string    `json:"item_code"`
	CreatedAt time.Time `json:"created_at"`
}

type FuelTank struct {
	ID           string          `json:"id"`
	PumpID       string          `json:"pump_id"`
	Name         string          `json:"name"`
	FuelTypeID   string          `json:"fuel_type_id"`
	Warehouse    string          `json:"warehouse"`
	Capacity     decimal.Decimal `json:"capacity"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Nozzle struct {
	ID             string          `json:"id"`
	PumpID         string          `json:"pump_id"`
	Name           string          `json:"name"`
	TankID         string          `json:"tank_id"`
	FuelTypeID     string          `json:"fuel_type_id"`
	OpeningReading decimal.Decimal `json:"opening_reading"`
	LastReading    decimal.Decimal `json:"last_reading"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Dispenser struct {
	ID        string    `json:"id"`
	PumpID    string    `json:"pump_id"`
	Name      string    `json:"name"`
	NozzleIDs []string  `json:"nozzle_ids"`
	CreatedAt time.Time `json:"created_at"`
}

type FuelPrice struct {
	ID            string          `json:"id"`
	PumpID        string          `json:"pump_id"`
	FuelTypeID    string          `json:"fuel_type_id"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	EffectiveFrom time.Time       `json:"effective_from"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Shift struct {
	ID        string     `json:"id"`
	PumpID    string     `json:"pump_id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type NozzleReadingLine struct {
	NozzleID        string          `json:"nozzle_id"`
	NozzleName      string          `json:"nozzle_name"`
	FuelTypeID      string          `json:"fuel_type_id"`
	PreviousReading decimal.Decimal `json:"previous_reading"`
	CurrentReading  decimal.Decimal `json:"current_reading"`
	Dispensed       decimal.Decimal `json:"dispensed"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
}

type CreditSaleLine struct {
	Customer   string          `json:"customer"`
	FuelTypeID string          `json:"fuel_type_id"`
	Liters     decimal.Decimal `json:"liters"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

type CardSaleLine struct {
	BankAccount string          `json:"bank_account"`
	Amount      decimal.Decimal `json:"amount"`
}

type ExpenseLine struct {
	ExpenseAccount string          `json:"expense_account"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
}

type SupplierPaymentLine struct {
	Supplier       string          `json:"supplier"`
	PayableAccount string          `json:"payable_account,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
}

type CreditCollectionLine struct {
	Customer string          `json:"customer"`
	Amount   decimal.Decimal `json:"amount"`
}

// Totals is the computed aggregate block of a DayClosing.
type Totals struct {
	TotalSales             decimal.Decimal `json:"total_sales"`
	TotalLiters            decimal.Decimal `json:"total_liters"`
	CreditLiters           decimal.Decimal `json:"credit_sales_liters"`
	CreditAmount           decimal.Decimal `json:"credit_amount"`
	CardAmount             decimal.Decimal `json:"card_amount"`
	TotalExpenses          decimal.Decimal `json:"total_expenses"`
	TotalSupplierPayments  decimal.Decimal `json:"total_supplier_payments"`
	TotalCreditCollections decimal.Decimal `json:"total_credit_collections"`
	CashAmount             decimal.Decimal `json:"cash_amount"`
	PreviousCash           decimal.Decimal `json:"previous_cash"`
	CashInHand             decimal.Decimal `json:"cash_in_hand"`
	TotalPaymentsReceived  decimal.Decimal `json:"total_payments_received"`
	ExpectedCollection     decimal.Decimal `json:"expected_collection"`
	CashVariance           decimal.Decimal `json:"cash_variance"`
}

type DayClosing struct {
	ID                string                 `json:"id"`
	PumpID            string                 `json:"pump_id"`
	ShiftID           string                 `json:"shift_id,omitempty"`
	ReadingDate       time.Time              `json:"reading_date"`
	State             WorkflowState          `json:"state"`
	CashPolicy        string                 `json:"cash_policy"`
	NozzleReadings    []NozzleReadingLine    `json:"nozzle_readings"`
	CreditSales       []CreditSaleLine       `json:"credit_sales"`
	CardSales         []CardSaleLine         `json:"card_sales"`
	Expenses          []ExpenseLine          `json:"expenses"`
	SupplierPayments  []SupplierPaymentLine  `json:"supplier_payments"`
	CreditCollections []CreditCollectionLine `json:"credit_collections"`
	Totals
	CostOfGoodsSold decimal.Decimal `json:"cost_of_goods_sold"`
	Refs            DocumentRefs    `json:"refs"`
	AmendedFrom     string          `json:"amended_from,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

type ShiftReading struct {
	ID             string              `json:"id"`
	PumpID         string              `json:"pump_id"`
	ShiftID        string              `json:"shift_id,omitempty"`
	ReadingDate    time.Time           `json:"reading_date"`
	State          WorkflowState       `json:"state"`
	NozzleReadings []NozzleReadingLine `json:"nozzle_readings"`
	TotalSales     decimal.Decimal     `json:"total_sales"`
	TotalLiters    decimal.Decimal     `json:"total_liters"`
	Refs           DocumentRefs        `json:"refs"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type DipReading struct {
	ID          string          `json:"id"`
	PumpID      string          `json:"pump_id"`
	TankID      string          `json:"tank_id"`
	ReadingDate time.Time       `json:"reading_date"`
	State       WorkflowState   `json:"state"`
	MeasuredDip decimal.Decimal `json:"measured_dip"`
	SystemStock decimal.Decimal `json:"system_stock"`
	Difference  decimal.Decimal `json:"difference"`
	Refs        DocumentRefs    `json:"refs"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type FuelTestingLine struct {
	NozzleID   string          `json:"nozzle_id"`
	FuelTypeID string          `json:"fuel_type_id"`
	TestLiters decimal.Decimal `json:"test_liters"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

type FuelTesting struct {
	ID              string            `json:"id"`
	PumpID          string            `json:"pump_id"`
	TestDate        time.Time         `json:"test_date"`
	State           WorkflowState     `json:"state"`
	Lines           []FuelTestingLine `json:"lines"`
	TotalTestLiters decimal.Decimal   `json:"total_test_liters"`
	Refs            DocumentRefs      `json:"refs"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type FuelTransfer struct {
	ID           string          `json:"id"`
	FromTankID   string          `json:"from_tank_id"`
	ToTankID     string          `json:"to_tank_id"`
	FuelTypeID   string          `json:"fuel_type_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	TransferDate time.Time       `json:"transfer_date"`
	State        WorkflowState   `json:"state"`
	Refs         DocumentRefs    `json:"refs"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	PumpID        string    `json:"pump_id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type NozzleDefault struct {
	NozzleID        string          `json:"nozzle_id"`
	NozzleName      string          `json:"nozzle_name"`
	FuelTypeID      string          `json:"fuel_type_id"`
	PreviousReading decimal.Decimal `json:"previous_reading"`
	CurrentReading  decimal.Decimal `json:"current_reading"`
	Rate            decimal.Decimal `json:"rate"`
}

type TankStock struct {
	TankID     string          `json:"tank_id"`
	TankName   string          `json:"tank_name"`
	FuelTypeID string          `json:"fuel_type_id"`
	Warehouse  string          `json:"warehouse"`
	Qty        decimal.Decimal `json:"qty"`
}

type BulkNozzleRow struct {
	Name           string          `json:"name"`
	TankID         string          `json:"tank_id"`
	OpeningReading decimal.Decimal `json:"opening_reading"`
	Active         *bool           `json:"active,omitempty"`
}

type BulkNozzleRequest struct {
	PumpID string          `json:"pump_id"`
	Rows   []BulkNozzleRow `json:"rows"`
}

type SkippedNozzle struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type BulkNozzleResponse struct {
	Created []string        `json:"created"`
	Skipped []SkippedNozzle `json:"skipped"`
}

type CashReconciliationRow struct {
	DayClosingID          string          `json:"day_closing_id"`
	ReadingDate           string          `json:"reading_date"`
	PumpID                string          `json:"pump_id"`
	State                 WorkflowState   `json:"state"`
	TotalSales            decimal.Decimal `json:"total_sales"`
	CashAmount            decimal.Decimal `json:"cash_amount"`
	CardAmount            decimal.Decimal `json:"card_amount"`
	CreditAmount          decimal.Decimal `json:"credit_amount"`
	TotalPaymentsReceived decimal.Decimal `json:"total_payments_received"`
	ExpectedCollection    decimal.Decimal `json:"expected_collection"`
	CashVariance          decimal.Decimal `json:"cash_variance"`
	VariancePct           decimal.Decimal `json:"variance_pct"`
	Status                string          `json:"status"`
}

type CashReconciliationReport struct {
	PumpID  string                  `json:"pump_id"`
	From    string                  `json:"from"`
	To      string                  `json:"to"`
	Rows    []CashReconciliationRow `json:"rows"`
	Summary CashReconciliationRow   `json:"summary"`
}

type DailySalesRow struct {
	DayClosingID    string          `json:"day_closing_id"`
	ReadingDate     string          `json:"reading_date"`
	PumpID          string          `json:"pump_id"`
	TotalLiters     decimal.Decimal `json:"total_liters"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	CashAmount      decimal.Decimal `json:"cash_amount"`
	CardAmount      decimal.Decimal `json:"card_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	CashVariance    decimal.Decimal `json:"cash_variance"`
	CostOfGoodsSold decimal.Decimal `json:"cost_of_goods_sold"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitMargin    decimal.Decimal `json:"profit_margin"`
}

type DailySalesReport struct {
	PumpID  string          `json:"pump_id"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Rows    []DailySalesRow `json:"rows"`
	Summary DailySalesRow   `json:"summary"`
}

type FuelPriceHistoryRow struct {
	FuelPriceID   string          `json:"fuel_price_id"`
	PumpID        string          `json:"pump_id"`
	FuelTypeID    string          `json:"fuel_type_id"`
	FuelTypeName  string          `json:"fuel_type_name"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	EffectiveFrom time.Time       `json:"effective_from"`
	Active        bool            `json:"active"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	PriceChange   decimal.Decimal `json:"price_change"`
	ChangePct     decimal.Decimal `json:"change_pct"`
}

type CancelResponse struct {
	ID       string        `json:"id"`
	State    WorkflowState `json:"state"`
	Warnings []string      `json:"warnings,omitempty"`
}
