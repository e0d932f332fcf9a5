// Package closing posts the ledger documents of a submitted day closing and reverses
// them on cancel.
package closing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/metrics"
	"fuelbook/backend/internal/saga"
	"fuelbook/backend/internal/stock"
)

const (
	StepStockEntry        = "stock_entry"
	StepSalesInvoices     = "sales_invoices"
	StepCollections       = "collection_payments"
	StepExpenses          = "expense_entries"
	StepSupplierPayments  = "supplier_payments"
	StepCreditCollections = "credit_collections"
	StepNozzleAdvance     = "nozzle_advance"

	modeCash = "Cash"
	modeBank = "Bank"
)

type Catalog interface {
	GetPump(ctx context.Context, id string) (*domain.Pump, error)
	GetFuelType(ctx context.Context, id string) (*domain.FuelType, error)
}

type RefSink interface {
	AppendDayClosingRef(ctx context.Context, id string, ref domain.DocumentRef) error
	ClearDayClosingRefs(ctx context.Context, id string) error
}

type NozzleStore interface {
	SetNozzleLastReading(ctx context.Context, id string, reading decimal.Decimal) error
}

type StockIssuer interface {
	IssueItems(ctx context.Context, pump *domain.Pump, issues []stock.Issue) ([]ledger.Item, error)
}

type ApprovalPolicy interface {
	ApprovalState(t domain.Totals) domain.WorkflowState
}

type Orchestrator struct {
	ledger       ledger.Ledger
	catalog      Catalog
	refs         RefSink
	nozzles      NozzleStore
	issuer       StockIssuer
	cashCustomer string
	logger       logrus.FieldLogger
}

type Config struct {
	Ledger       ledger.Ledger
	Catalog      Catalog
	Refs         RefSink
	Nozzles      NozzleStore
	Issuer       StockIssuer
	CashCustomer string
	Logger       logrus.FieldLogger
}

func New(cfg Config) *Orchestrator {
	cashCustomer := cfg.CashCustomer
	if cashCustomer == "" {
		cashCustomer = "Cash Customer"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		ledger:       cfg.Ledger,
		catalog:      cfg.Catalog,
		refs:         cfg.Refs,
		nozzles:      cfg.Nozzles,
		issuer:       cfg.Issuer,
		cashCustomer: cashCustomer,
		logger:       logger.WithField("component", "closing"),
	}
}

// Finalize posts the documents of record in dependency order. A failure leaves earlier
// documents in place and returns *domain.OrchestrationError.
func (o *Orchestrator) Finalize(ctx context.Context, record *domain.DayClosing, policy ApprovalPolicy) (domain.WorkflowState, error) {
	pump, err := o.catalog.GetPump(ctx, record.PumpID)
	if err != nil {
		return "", fmt.Errorf("load pump %s: %w", record.PumpID, err)
	}

	r := &run{o: o, record: record, pump: pump}
	coordinator := saga.New(r.steps()...)

	if err := coordinator.Run(ctx); err != nil {
		step := ""
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			step = stepErr.Step
			err = stepErr.Err
		}
		metrics.DayClosingFinalize.WithLabelValues("failed").Inc()
		o.logger.WithFields(logrus.Fields{
			"record_id": record.ID,
			"step":      step,
			"created":   record.Refs.IDs(),
		}).Warn("day closing finalize stopped: " + err.Error())
		return "", &domain.OrchestrationError{
			RecordID: record.ID,
			Step:     step,
			Err:      err,
			Totals:   record.Totals,
			Created:  append(domain.DocumentRefs(nil), record.Refs...),
		}
	}

	state := policy.ApprovalState(record.Totals)
	outcome := "approved"
	if state == domain.StatePendingApproval {
		outcome = "pending"
	}
	metrics.DayClosingFinalize.WithLabelValues(outcome).Inc()
	o.logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"state":     state,
		"documents": len(record.Refs),
	}).Info("day closing finalized")
	return state, nil
}

// Reverse cancels linked documents in reverse posting order, then reverts the nozzle
// checkpoints. Failures come back together as *domain.CompensationError.
func (o *Orchestrator) Reverse(ctx context.Context, record *domain.DayClosing) error {
	r := &run{o: o, record: record}
	var failures []domain.CompensationFailure
	for i := len(postingGroups) - 1; i >= 0; i-- {
		failures = append(failures, r.cancelGroup(ctx, postingGroups[i])...)
	}
	failures = append(failures, r.revertNozzles(ctx)...)

	if err := o.refs.ClearDayClosingRefs(ctx, record.ID); err != nil {
		return fmt.Errorf("clear document links of %s: %w", record.ID, err)
	}
	record.Refs = domain.DocumentRefs{}
	record.CostOfGoodsSold = decimal.Zero

	if len(failures) == 0 {
		return nil
	}
	metrics.CompensationFailures.Add(float64(len(failures)))
	compErr := &domain.CompensationError{Failures: failures}
	o.logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"failures":  compErr.Messages(),
	}).Warn("day closing reversal incomplete")
	return compErr
}
