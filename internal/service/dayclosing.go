package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

const dayClosingKind = "day_closing"

// SaveDayClosing computes and stores a draft. Existing records can only be edited while
// they are drafts.
func (s *Service) SaveDayClosing(ctx context.Context, record domain.DayClosing) (domain.DayClosing, error) {
	if record.PumpID == "" {
		return domain.DayClosing{}, store.ErrInvalidInput
	}
	record.AmendedFrom = ""
	if record.ID != "" {
		existing, err := s.repo.GetDayClosing(ctx, record.ID)
		if err != nil {
			return domain.DayClosing{}, err
		}
		if err := requireState(dayClosingKind, existing.ID, existing.State, domain.StateDraft); err != nil {
			return domain.DayClosing{}, err
		}
		if existing.PumpID != record.PumpID {
			return domain.DayClosing{}, store.ErrInvalidInput
		}
		record.AmendedFrom = existing.AmendedFrom
		record.CreatedAt = existing.CreatedAt
	}

	saved, err := s.storeDraft(ctx, record)
	if err != nil {
		return domain.DayClosing{}, err
	}
	s.logAudit(ctx, saved.PumpID, "day_closing_save", dayClosingKind, saved.ID,
		fmt.Sprintf("total_sales=%s,cash=%s", saved.TotalSales.StringFixed(2), saved.CashAmount.StringFixed(2)))
	return saved, nil
}

func (s *Service) storeDraft(ctx context.Context, record domain.DayClosing) (domain.DayClosing, error) {
	if _, err := s.repo.GetPump(ctx, record.PumpID); err != nil {
		return domain.DayClosing{}, err
	}
	record.ReadingDate = defaultTime(record.ReadingDate)
	record.State = domain.StateDraft
	record.Refs = domain.DocumentRefs{}
	record.SubmittedAt = nil
	record.CancelledAt = nil

	if err := s.fillReadingLines(ctx, record.PumpID, record.NozzleReadings); err != nil {
		return domain.DayClosing{}, err
	}
	if record.PreviousCash.IsZero() {
		previous, err := s.PreviousCash(ctx, record.PumpID, record.ReadingDate)
		if err != nil {
			return domain.DayClosing{}, err
		}
		record.PreviousCash = previous
	}
	if err := s.engine.Compute(ctx, &record); err != nil {
		return domain.DayClosing{}, err
	}
	if err := s.validator.ValidateSave(ctx, &record); err != nil {
		return domain.DayClosing{}, err
	}

	saved, err := s.repo.SaveDayClosing(ctx, record)
	if err != nil {
		return domain.DayClosing{}, err
	}
	return *saved, nil
}

func (s *Service) fillReadingLines(ctx context.Context, pumpID string, lines []domain.NozzleReadingLine) error {
	for i := range lines {
		line := &lines[i]
		if line.NozzleID == "" {
			continue
		}
		nozzle, err := s.repo.GetNozzle(ctx, line.NozzleID)
		if err != nil {
			return fmt.Errorf("nozzle %s: %w", line.NozzleID, err)
		}
		if nozzle.PumpID != pumpID {
			return domain.NewValidationError("nozzle_pump", "Nozzle %s does not belong to this petrol pump.", nozzle.Name)
		}
		if line.NozzleName == "" {
			line.NozzleName = nozzle.Name
		}
		if line.FuelTypeID == "" {
			line.FuelTypeID = nozzle.FuelTypeID
		}
	}
	return nil
}

func (s *Service) GetDayClosing(ctx context.Context, id string) (domain.DayClosing, error) {
	record, err := s.repo.GetDayClosing(ctx, id)
	if err != nil {
		return domain.DayClosing{}, err
	}
	return *record, nil
}

func (s *Service) ListDayClosings(ctx context.Context, pumpID string, from time.Time, to time.Time) ([]domain.DayClosing, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListDayClosings(ctx, pumpID, from, to)
}

// SubmitDayClosing validates the draft and posts its ledger documents. A posting failure
// leaves the record Submitted with the documents created so far and returns
// *domain.OrchestrationError.
func (s *Service) SubmitDayClosing(ctx context.Context, id string) (domain.DayClosing, error) {
	var result domain.DayClosing
	err := s.withRecordLock(ctx, dayClosingKind, id, func(ctx context.Context) error {
		record, err := s.repo.GetDayClosing(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(dayClosingKind, id, record.State, domain.StateDraft); err != nil {
			return err
		}
		if err := s.engine.Compute(ctx, record); err != nil {
			return err
		}
		if err := s.validator.ValidateSubmit(ctx, record); err != nil {
			return err
		}

		now := time.Now().UTC()
		record.State = domain.StateSubmitted
		record.SubmittedAt = &now
		record.Refs = domain.DocumentRefs{}
		record.CostOfGoodsSold = decimal.Zero
		if record, err = s.repo.SaveDayClosing(ctx, *record); err != nil {
			return err
		}

		state, finalizeErr := s.closing.Finalize(ctx, record, s.engine.Policy())
		if finalizeErr != nil {
			if _, err := s.repo.SaveDayClosing(ctx, *record); err != nil {
				s.logger.WithField("record_id", id).Warn("failed to persist partially submitted day closing: " + err.Error())
			}
			s.invalidateReports(ctx, record.PumpID)
			s.logAudit(ctx, record.PumpID, "day_closing_submit_failed", dayClosingKind, id, finalizeErr.Error())
			return finalizeErr
		}

		record.State = state
		saved, err := s.repo.SaveDayClosing(ctx, *record)
		if err != nil {
			return err
		}
		s.invalidateReports(ctx, saved.PumpID)
		s.logAudit(ctx, saved.PumpID, "day_closing_submit", dayClosingKind, id,
			fmt.Sprintf("state=%s,documents=%d,variance=%s", saved.State, len(saved.Refs), saved.CashVariance.StringFixed(2)))
		result = *saved
		return nil
	})
	return result, err
}

// CancelDayClosing reverses the ledger documents of a finalized record. Cancel failures
// do not stop the cancel; they come back as warnings.
func (s *Service) CancelDayClosing(ctx context.Context, id string) (domain.CancelResponse, error) {
	var resp domain.CancelResponse
	err := s.withRecordLock(ctx, dayClosingKind, id, func(ctx context.Context) error {
		record, err := s.repo.GetDayClosing(ctx, id)
		if err != nil {
			return err
		}
		if !record.State.Finalized() {
			return requireState(dayClosingKind, id, record.State, domain.StateSubmitted, domain.StateApproved, domain.StatePendingApproval)
		}

		var warnings []string
		if err := s.closing.Reverse(ctx, record); err != nil {
			var compErr *domain.CompensationError
			if !errors.As(err, &compErr) {
				return err
			}
			warnings = compErr.Messages()
		}

		now := time.Now().UTC()
		record.State = domain.StateCancelled
		record.CancelledAt = &now
		saved, err := s.repo.SaveDayClosing(ctx, *record)
		if err != nil {
			return err
		}
		s.invalidateReports(ctx, saved.PumpID)
		s.logAudit(ctx, saved.PumpID, "day_closing_cancel", dayClosingKind, id, fmt.Sprintf("warnings=%d", len(warnings)))
		resp = domain.CancelResponse{ID: saved.ID, State: saved.State, Warnings: warnings}
		return nil
	})
	return resp, err
}

func (s *Service) ApproveDayClosing(ctx context.Context, id string) (domain.DayClosing, error) {
	var result domain.DayClosing
	err := s.withRecordLock(ctx, dayClosingKind, id, func(ctx context.Context) error {
		record, err := s.repo.GetDayClosing(ctx, id)
		if err != nil {
			return err
		}
		if err := requireState(dayClosingKind, id, record.State, domain.StatePendingApproval); err != nil {
			return err
		}
		record.State = domain.StateApproved
		saved, err := s.repo.SaveDayClosing(ctx, *record)
		if err != nil {
			return err
		}
		s.invalidateReports(ctx, saved.PumpID)
		s.logAudit(ctx, saved.PumpID, "day_closing_approve", dayClosingKind, id, "variance="+saved.CashVariance.StringFixed(2))
		result = *saved
		return nil
	})
	return result, err
}

func (s *Service) AmendDayClosing(ctx context.Context, id string) (domain.DayClosing, error) {
	source, err := s.repo.GetDayClosing(ctx, id)
	if err != nil {
		return domain.DayClosing{}, err
	}
	if err := requireState(dayClosingKind, id, source.State, domain.StateCancelled); err != nil {
		return domain.DayClosing{}, err
	}

	amended := *source
	amended.ID = ""
	amended.AmendedFrom = source.ID
	amended.CostOfGoodsSold = decimal.Zero
	amended.CreatedAt = time.Time{}
	amended.UpdatedAt = time.Time{}
	saved, err := s.storeDraft(ctx, amended)
	if err != nil {
		return domain.DayClosing{}, err
	}
	s.logAudit(ctx, saved.PumpID, "day_closing_amend", dayClosingKind, saved.ID, "amended_from="+source.ID)
	return saved, nil
}

// NozzleDefaults chains previous readings from the last finalized closing, falling
// back to the nozzle checkpoint and then the opening reading.
func (s *Service) NozzleDefaults(ctx context.Context, pumpID string, date time.Time) ([]domain.NozzleDefault, error) {
	if pumpID == "" {
		return nil, store.ErrInvalidInput
	}
	date = defaultTime(date)
	nozzles, err := s.repo.ListNozzles(ctx, pumpID, true)
	if err != nil {
		return nil, err
	}

	carried := make(map[string]decimal.Decimal, len(nozzles))
	last, err := s.repo.LastSubmittedDayClosing(ctx, pumpID, date)
	switch {
	case err == nil:
		for _, line := range last.NozzleReadings {
			if line.NozzleID != "" && line.CurrentReading.IsPositive() {
				carried[line.NozzleID] = line.CurrentReading
			}
		}
	case !isNotFound(err):
		return nil, err
	}

	rows := make([]domain.NozzleDefault, 0, len(nozzles))
	for _, nozzle := range nozzles {
		previous, ok := carried[nozzle.ID]
		if !ok {
			previous = nozzle.LastReading
			if !previous.IsPositive() {
				previous = nozzle.OpeningReading
			}
		}
		rate, err := s.prices.Resolve(ctx, nozzle.FuelTypeID, pumpID, date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.NozzleDefault{
			NozzleID:        nozzle.ID,
			NozzleName:      nozzle.Name,
			FuelTypeID:      nozzle.FuelTypeID,
			PreviousReading: previous,
			CurrentReading:  decimal.Zero,
			Rate:            rate,
		})
	}
	return rows, nil
}

func (s *Service) AvailableStock(ctx context.Context, pumpID string) ([]domain.TankStock, error) {
	if pumpID == "" {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return nil, err
	}
	return s.stock.Tanks(ctx, pumpID)
}

// PreviousCash is the balance of the pump cash account in its cost center strictly
// before date.
func (s *Service) PreviousCash(ctx context.Context, pumpID string, date time.Time) (decimal.Decimal, error) {
	pump, err := s.repo.GetPump(ctx, pumpID)
	if err != nil {
		return decimal.Zero, err
	}
	if pump.CashAccount == "" {
		return decimal.Zero, nil
	}
	balance, err := s.ledger.AccountBalance(ctx, pump.CashAccount, pump.CostCenter, defaultTime(date))
	if err != nil {
		s.logger.WithFields(logrus.Fields{"pump_id": pumpID, "account": pump.CashAccount}).Warn("previous cash lookup failed: " + err.Error())
		return decimal.Zero, fmt.Errorf("cash balance of %s: %w", pump.CashAccount, err)
	}
	return balance, nil
}
