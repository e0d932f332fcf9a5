package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
)

type pumpRequest struct {
	Name              string `json:"name" validate:"required"`
	Company           string `json:"company" validate:"required"`
	CostCenter        string `json:"cost_center"`
	CashAccount       string `json:"cash_account"`
	ReceivableAccount string `json:"receivable_account"`
	PayableAccount    string `json:"payable_account"`
}

func (r pumpRequest) toDomain() domain.Pump {
	return domain.Pump{
		Name:              r.Name,
		Company:           r.Company,
		CostCenter:        r.CostCenter,
		CashAccount:       r.CashAccount,
		ReceivableAccount: r.ReceivableAccount,
		PayableAccount:    r.PayableAccount,
	}
}

type fuelTypeRequest struct {
	Name     string `json:"name" validate:"required"`
	ItemCode string `json:"item_code" validate:"required"`
}

type tankRequest struct {
	PumpID     string          `json:"pump_id" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	FuelTypeID string          `json:"fuel_type_id" validate:"required"`
	Warehouse  string          `json:"warehouse"`
	Capacity   decimal.Decimal `json:"capacity"`
}

type nozzleRequest struct {
	PumpID         string          `json:"pump_id" validate:"required"`
	Name           string          `json:"name" validate:"required,max=80"`
	TankID         string          `json:"tank_id" validate:"required"`
	OpeningReading decimal.Decimal `json:"opening_reading"`
	Active         *bool           `json:"active"`
}

func (r nozzleRequest) toDomain() domain.Nozzle {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return domain.Nozzle{
		PumpID:         r.PumpID,
		Name:           r.Name,
		TankID:         r.TankID,
		OpeningReading: r.OpeningReading,
		Active:         active,
	}
}

type bulkNozzleRequest struct {
	PumpID string                 `json:"pump_id" validate:"required"`
	Rows   []domain.BulkNozzleRow `json:"rows" validate:"required,min=1,max=200"`
}

type dispenserRequest struct {
	PumpID    string   `json:"pump_id" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	NozzleIDs []string `json:"nozzle_ids" validate:"dive,required"`
}

type shiftRequest struct {
	PumpID    string    `json:"pump_id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	StartTime time.Time `json:"start_time"`
}

type fuelPriceRequest struct {
	PumpID        string          `json:"pump_id" validate:"required"`
	FuelTypeID    string          `json:"fuel_type_id" validate:"required"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	EffectiveFrom time.Time       `json:"effective_from"`
	Activate      bool            `json:"activate"`
}

type nozzleLineRequest struct {
	NozzleID        string          `json:"nozzle_id" validate:"required"`
	PreviousReading decimal.Decimal `json:"previous_reading"`
	CurrentReading  decimal.Decimal `json:"current_reading"`
}

func toReadingLines(lines []nozzleLineRequest) []domain.NozzleReadingLine {
	out := make([]domain.NozzleReadingLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.NozzleReadingLine{
			NozzleID:        line.NozzleID,
			PreviousReading: line.PreviousReading,
			CurrentReading:  line.CurrentReading,
		})
	}
	return out
}

type creditSaleRequest struct {
	Customer   string          `json:"customer" validate:"required"`
	FuelTypeID string          `json:"fuel_type_id" validate:"required"`
	Liters     decimal.Decimal `json:"liters"`
	Rate       decimal.Decimal `json:"rate"`
}

type cardSaleRequest struct {
	BankAccount string          `json:"bank_account" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type expenseRequest struct {
	ExpenseAccount string          `json:"expense_account" validate:"required"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
}

type supplierPaymentRequest struct {
	Supplier       string          `json:"supplier" validate:"required"`
	PayableAccount string          `json:"payable_account"`
	Amount         decimal.Decimal `json:"amount"`
}

type creditCollectionRequest struct {
	Customer string          `json:"customer" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type dayClosingRequest struct {
	PumpID            string                    `json:"pump_id" validate:"required"`
	ShiftID           string                    `json:"shift_id"`
	ReadingDate       time.Time                 `json:"reading_date"`
	NozzleReadings    []nozzleLineRequest       `json:"nozzle_readings" validate:"dive"`
	CreditSales       []creditSaleRequest       `json:"credit_sales" validate:"dive"`
	CardSales         []cardSaleRequest         `json:"card_sales" validate:"dive"`
	Expenses          []expenseRequest          `json:"expenses" validate:"dive"`
	SupplierPayments  []supplierPaymentRequest  `json:"supplier_payments" validate:"dive"`
	CreditCollections []creditCollectionRequest `json:"credit_collections" validate:"dive"`
	CashAmount        decimal.Decimal           `json:"cash_amount"`
	PreviousCash      decimal.Decimal           `json:"previous_cash"`
}

func (r dayClosingRequest) toDomain() domain.DayClosing {
	record := domain.DayClosing{
		PumpID:         r.PumpID,
		ShiftID:        r.ShiftID,
		ReadingDate:    r.ReadingDate,
		NozzleReadings: toReadingLines(r.NozzleReadings),
	}
	record.CashAmount = r.CashAmount
	record.PreviousCash = r.PreviousCash

	for _, line := range r.CreditSales {
		record.CreditSales = append(record.CreditSales, domain.CreditSaleLine{
			Customer: line.Customer, FuelTypeID: line.FuelTypeID, Liters: line.Liters, Rate: line.Rate,
		})
	}
	for _, line := range r.CardSales {
		record.CardSales = append(record.CardSales, domain.CardSaleLine{BankAccount: line.BankAccount, Amount: line.Amount})
	}
	for _, line := range r.Expenses {
		record.Expenses = append(record.Expenses, domain.ExpenseLine{
			ExpenseAccount: line.ExpenseAccount, Description: line.Description, Amount: line.Amount,
		})
	}
	for _, line := range r.SupplierPayments {
		record.SupplierPayments = append(record.SupplierPayments, domain.SupplierPaymentLine{
			Supplier: line.Supplier, PayableAccount: line.PayableAccount, Amount: line.Amount,
		})
	}
	for _, line := range r.CreditCollections {
		record.CreditCollections = append(record.CreditCollections, domain.CreditCollectionLine{
			Customer: line.Customer, Amount: line.Amount,
		})
	}
	return record
}

type shiftReadingRequest struct {
	ID             string              `json:"id"`
	PumpID         string              `json:"pump_id" validate:"required"`
	ShiftID        string              `json:"shift_id"`
	ReadingDate    time.Time           `json:"reading_date"`
	NozzleReadings []nozzleLineRequest `json:"nozzle_readings" validate:"dive"`
}

type dipReadingRequest struct {
	ID          string          `json:"id"`
	TankID      string          `json:"tank_id" validate:"required"`
	ReadingDate time.Time       `json:"reading_date"`
	MeasuredDip decimal.Decimal `json:"measured_dip"`
}

type fuelTestingLineRequest struct {
	NozzleID   string          `json:"nozzle_id" validate:"required"`
	TestLiters decimal.Decimal `json:"test_liters"`
}

type fuelTestingRequest struct {
	ID       string                   `json:"id"`
	PumpID   string                   `json:"pump_id" validate:"required"`
	TestDate time.Time                `json:"test_date"`
	Lines    []fuelTestingLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r fuelTestingRequest) toDomain() domain.FuelTesting {
	testing := domain.FuelTesting{ID: r.ID, PumpID: r.PumpID, TestDate: r.TestDate}
	for _, line := range r.Lines {
		testing.Lines = append(testing.Lines, domain.FuelTestingLine{NozzleID: line.NozzleID, TestLiters: line.TestLiters})
	}
	return testing
}

type fuelTransferRequest struct {
	ID           string          `json:"id"`
	FromTankID   string          `json:"from_tank_id" validate:"required"`
	ToTankID     string          `json:"to_tank_id" validate:"required"`
	FuelTypeID   string          `json:"fuel_type_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	TransferDate time.Time       `json:"transfer_date"`
}
