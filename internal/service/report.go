package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/store"
)

const (
	StatusBalanced = "Balanced"
	StatusOver     = "Over"
	StatusShort    = "Short"
)

var hundred = decimal.NewFromInt(100)

// CashReconciliation summarizes finalized closings of a pump between from and to,
// both inclusive dates in YYYY-MM-DD form. Either bound may be empty.
func (s *Service) CashReconciliation(ctx context.Context, pumpID string, from string, to string) (domain.CashReconciliationReport, error) {
	if strings.TrimSpace(pumpID) == "" {
		return domain.CashReconciliationReport{}, store.ErrInvalidInput
	}
	start, end, err := dayRange(from, to)
	if err != nil {
		return domain.CashReconciliationReport{}, err
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return domain.CashReconciliationReport{}, err
	}

	key := from + "|" + to
	if cached, ok, err := s.reports.Get(ctx, pumpID, key); err != nil {
		s.logger.WithField("pump_id", pumpID).Warn("report cache read failed: " + err.Error())
	} else if ok {
		return *cached, nil
	}

	records, err := s.repo.ListDayClosings(ctx, pumpID, start, end)
	if err != nil {
		return domain.CashReconciliationReport{}, err
	}

	report := domain.CashReconciliationReport{
		PumpID: pumpID,
		From:   from,
		To:     to,
		Rows:   make([]domain.CashReconciliationRow, 0, len(records)),
	}
	var summary domain.CashReconciliationRow
	for _, record := range records {
		if !record.State.Finalized() {
			continue
		}
		row := domain.CashReconciliationRow{
			DayClosingID:          record.ID,
			ReadingDate:           record.ReadingDate.UTC().Format("2006-01-02"),
			PumpID:                record.PumpID,
			State:                 record.State,
			TotalSales:            record.TotalSales,
			CashAmount:            record.CashAmount,
			CardAmount:            record.CardAmount,
			CreditAmount:          record.CreditAmount,
			TotalPaymentsReceived: record.TotalPaymentsReceived,
			ExpectedCollection:    record.ExpectedCollection,
			CashVariance:          record.CashVariance,
		}
		s.classify(&row)
		report.Rows = append(report.Rows, row)

		summary.TotalSales = summary.TotalSales.Add(row.TotalSales)
		summary.CashAmount = summary.CashAmount.Add(row.CashAmount)
		summary.CardAmount = summary.CardAmount.Add(row.CardAmount)
		summary.CreditAmount = summary.CreditAmount.Add(row.CreditAmount)
		summary.TotalPaymentsReceived = summary.TotalPaymentsReceived.Add(row.TotalPaymentsReceived)
		summary.ExpectedCollection = summary.ExpectedCollection.Add(row.ExpectedCollection)
		summary.CashVariance = summary.CashVariance.Add(row.CashVariance)
	}
	summary.PumpID = pumpID
	s.classify(&summary)
	report.Summary = summary

	if err := s.reports.Set(ctx, pumpID, key, &report, s.reportTTL); err != nil {
		s.logger.WithField("pump_id", pumpID).Warn("report cache write failed: " + err.Error())
	}
	return report, nil
}

func (s *Service) classify(row *domain.CashReconciliationRow) {
	row.VariancePct = decimal.Zero
	if !row.ExpectedCollection.IsZero() {
		row.VariancePct = row.CashVariance.Div(row.ExpectedCollection).Mul(hundred).Round(2)
	}
	switch {
	case row.CashVariance.Abs().LessThanOrEqual(s.threshold):
		row.Status = StatusBalanced
	case row.CashVariance.IsPositive():
		row.Status = StatusOver
	default:
		row.Status = StatusShort
	}
}

// DailySalesSummary lists finalized closings of a pump newest first with the cost of
// the fuel issued and the resulting gross profit.
func (s *Service) DailySalesSummary(ctx context.Context, pumpID string, from string, to string) (domain.DailySalesReport, error) {
	if strings.TrimSpace(pumpID) == "" {
		return domain.DailySalesReport{}, store.ErrInvalidInput
	}
	start, end, err := dayRange(from, to)
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return domain.DailySalesReport{}, err
	}
	records, err := s.repo.ListDayClosings(ctx, pumpID, start, end)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	report := domain.DailySalesReport{
		PumpID: pumpID,
		From:   from,
		To:     to,
		Rows:   make([]domain.DailySalesRow, 0, len(records)),
	}
	summary := domain.DailySalesRow{PumpID: pumpID}
	for _, record := range records {
		if !record.State.Finalized() {
			continue
		}
		row := domain.DailySalesRow{
			DayClosingID:    record.ID,
			ReadingDate:     record.ReadingDate.UTC().Format("2006-01-02"),
			PumpID:          record.PumpID,
			TotalLiters:     record.TotalLiters,
			TotalSales:      record.TotalSales,
			CashAmount:      record.CashAmount,
			CardAmount:      record.CardAmount,
			CreditAmount:    record.CreditAmount,
			CashVariance:    record.CashVariance,
			CostOfGoodsSold: record.CostOfGoodsSold,
		}
		withProfit(&row)
		report.Rows = append(report.Rows, row)

		summary.TotalLiters = summary.TotalLiters.Add(row.TotalLiters)
		summary.TotalSales = summary.TotalSales.Add(row.TotalSales)
		summary.CashAmount = summary.CashAmount.Add(row.CashAmount)
		summary.CardAmount = summary.CardAmount.Add(row.CardAmount)
		summary.CreditAmount = summary.CreditAmount.Add(row.CreditAmount)
		summary.CashVariance = summary.CashVariance.Add(row.CashVariance)
		summary.CostOfGoodsSold = summary.CostOfGoodsSold.Add(row.CostOfGoodsSold)
	}
	slices.SortStableFunc(report.Rows, func(a, b domain.DailySalesRow) int {
		return strings.Compare(b.ReadingDate, a.ReadingDate)
	})
	withProfit(&summary)
	report.Summary = summary
	return report, nil
}

func withProfit(row *domain.DailySalesRow) {
	row.Profit = row.TotalSales.Sub(row.CostOfGoodsSold)
	row.ProfitMargin = decimal.Zero
	if !row.TotalSales.IsZero() {
		row.ProfitMargin = row.Profit.Div(row.TotalSales).Mul(hundred).Round(2)
	}
}

// FuelPriceHistory lists the prices of a pump grouped by fuel type, newest first, each
// compared with the price it replaced. The comparison uses the full history even when
// from, to or activeOnly narrow the rows returned.
func (s *Service) FuelPriceHistory(ctx context.Context, pumpID string, fuelTypeID string, from string, to string, activeOnly bool) ([]domain.FuelPriceHistoryRow, error) {
	if strings.TrimSpace(pumpID) == "" {
		return nil, store.ErrInvalidInput
	}
	start, end, err := dayRange(from, to)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return nil, err
	}
	prices, err := s.repo.ListFuelPrices(ctx, pumpID, fuelTypeID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(prices, func(a, b domain.FuelPrice) int {
		if c := strings.Compare(a.FuelTypeID, b.FuelTypeID); c != 0 {
			return c
		}
		return b.EffectiveFrom.Compare(a.EffectiveFrom)
	})

	names := make(map[string]string, 4)
	rows := make([]domain.FuelPriceHistoryRow, 0, len(prices))
	for i, price := range prices {
		name, ok := names[price.FuelTypeID]
		if !ok {
			name = price.FuelTypeID
			if fuelType, err := s.repo.GetFuelType(ctx, price.FuelTypeID); err == nil {
				name = fuelType.Name
			}
			names[price.FuelTypeID] = name
		}
		row := domain.FuelPriceHistoryRow{
			FuelPriceID:   price.ID,
			PumpID:        price.PumpID,
			FuelTypeID:    price.FuelTypeID,
			FuelTypeName:  name,
			PricePerUnit:  price.PricePerUnit,
			EffectiveFrom: price.EffectiveFrom,
			Active:        price.Active,
			PreviousPrice: decimal.Zero,
			PriceChange:   decimal.Zero,
			ChangePct:     decimal.Zero,
		}
		if i+1 < len(prices) && prices[i+1].FuelTypeID == price.FuelTypeID {
			previous := prices[i+1].PricePerUnit
			row.PreviousPrice = previous
			row.PriceChange = price.PricePerUnit.Sub(previous)
			if previous.IsPositive() {
				row.ChangePct = row.PriceChange.Div(previous).Mul(hundred).Round(2)
			}
		}

		if activeOnly && !price.Active {
			continue
		}
		if !start.IsZero() && price.EffectiveFrom.Before(start) {
			continue
		}
		if !end.IsZero() && !price.EffectiveFrom.Before(end) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dayRange(from string, to string) (time.Time, time.Time, error) {
	start, err := parseDay(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDay(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.IsZero() {
		end = end.Add(24 * time.Hour)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, store.ErrInvalidInput
	}
	return start, end, nil
}

func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, store.ErrInvalidInput
	}
	return day.UTC(), nil
}
