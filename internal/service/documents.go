package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
	"fuelbook/backend/internal/saga"
	"fuelbook/backend/internal/stock"
)

func fuelQuantities[T any](lines []T, fuel func(T) string, qty func(T) decimal.Decimal) []stock.Issue {
	index := make(map[string]int, 4)
	out := make([]stock.Issue, 0, 4)
	for _, line := range lines {
		id, q := fuel(line), qty(line)
		if id == "" || !q.IsPositive() {
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, stock.Issue{FuelTypeID: id})
		}
		out[i].Qty = out[i].Qty.Add(q)
	}
	return out
}

func (s *Service) postStockIssue(ctx context.Context, pump *domain.Pump, reference string, remark string, at time.Time, issues []stock.Issue) (domain.DocumentRef, error) {
	items, err := s.stock.IssueItems(ctx, pump, issues)
	if err != nil {
		return domain.DocumentRef{}, err
	}
	doc := ledger.Document{
		Type:        domain.DocStockIssue,
		Company:     pump.Company,
		CostCenter:  pump.CostCenter,
		PostingDate: at,
		Reference:   reference,
		Remark:      remark,
		Items:       items,
	}
	return s.postDocument(ctx, domain.GroupStockEntry, doc)
}

func (s *Service) postDocument(ctx context.Context, group domain.RefGroup, doc ledger.Document) (domain.DocumentRef, error) {
	id, err := s.ledger.CreateAndPost(ctx, doc)
	if err != nil {
		return domain.DocumentRef{}, fmt.Errorf("create %s: %w", doc.Type, err)
	}
	s.logger.WithFields(logrus.Fields{
		"reference": doc.Reference,
		"doc_type":  doc.Type,
		"doc_id":    id,
	}).Debug("ledger document created")
	return domain.DocumentRef{Group: group, Type: doc.Type, ID: id}, nil
}

func (s *Service) runCompensated(ctx context.Context, kind string, id string, steps ...saga.Step) error {
	coordinator := saga.New(steps...)
	err := coordinator.Run(ctx)
	if err == nil {
		return nil
	}
	if compErr := coordinator.Compensate(context.WithoutCancel(ctx)); compErr != nil {
		s.logger.WithFields(logrus.Fields{
			"kind":      kind,
			"record_id": id,
			"completed": coordinator.Completed(),
		}).Warn("rollback after failed submit incomplete: " + compErr.Error())
	}
	return err
}

func (s *Service) setNozzleReadings(ctx context.Context, lines []domain.NozzleReadingLine, reading func(domain.NozzleReadingLine) decimal.Decimal) error {
	for _, line := range lines {
		if line.NozzleID == "" || !line.CurrentReading.IsPositive() {
			continue
		}
		if err := s.repo.SetNozzleLastReading(ctx, line.NozzleID, reading(line)); err != nil {
			return fmt.Errorf("nozzle %s: %w", line.NozzleID, err)
		}
	}
	return nil
}

func currentReading(line domain.NozzleReadingLine) decimal.Decimal  { return line.CurrentReading }
func previousReading(line domain.NozzleReadingLine) decimal.Decimal { return line.PreviousReading }
