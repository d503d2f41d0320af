package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sourceKey struct {
	sourceType domain.SourceType
	sourceID   snowflake.ID
	kind       domain.RecordKind
}

func keyOf(r domain.ServiceRecord) sourceKey {
	var id snowflake.ID
	if r.SourceID != nil {
		id = *r.SourceID
	}
	return sourceKey{sourceType: r.SourceType, sourceID: id, kind: r.Kind}
}

// SyncRental brings the receivable and cost records of a rental in line
// with posting. Records are matched by source key and rewritten in place;
// records no longer backed by the posting are removed.
func (s *Service) SyncRental(ctx context.Context, tx *gorm.DB, posting domain.RentalPosting) error {
	if posting.RentalID == 0 {
		return domain.ErrInvalidID
	}
	if posting.CompanyID == 0 {
		return domain.ErrInvalidCompany
	}
	db := s.conn(tx)

	existing, err := s.repo.ListRecordsByRental(ctx, db, posting.RentalID)
	if err != nil {
		return err
	}
	stale := make(map[sourceKey]*domain.ServiceRecord, len(existing))
	for _, record := range existing {
		stale[keyOf(*record)] = record
	}

	for _, next := range rentalRecords(posting) {
		key := keyOf(next)
		prev := stale[key]
		delete(stale, key)
		if _, err := s.putRecord(ctx, db, prev, next); err != nil {
			return err
		}
	}

	leftovers := make([]*domain.ServiceRecord, 0, len(stale))
	for _, record := range stale {
		leftovers = append(leftovers, record)
	}
	sort.Slice(leftovers, func(i, j int) bool { return leftovers[i].ID < leftovers[j].ID })
	for _, record := range leftovers {
		if err := s.removeRecord(ctx, db, record); err != nil {
			return err
		}
	}

	s.log.Debug("rental synced",
		zap.String("rental_id", posting.RentalID.String()),
		zap.String("receivable", posting.Receivable().StringFixed(2)),
		zap.Int("lines", len(posting.Lines)),
		zap.Int("removed", len(leftovers)),
	)
	return nil
}

// RemoveRental reverses and deletes every record derived from the rental.
func (s *Service) RemoveRental(ctx context.Context, tx *gorm.DB, rentalID snowflake.ID) error {
	if rentalID == 0 {
		return domain.ErrInvalidID
	}
	db := s.conn(tx)
	records, err := s.repo.ListRecordsByRental(ctx, db, rentalID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := s.removeRecord(ctx, db, record); err != nil {
			return err
		}
	}
	return nil
}

// SyncShipment keeps exactly one service record for the shipment and
// returns its id.
func (s *Service) SyncShipment(ctx context.Context, tx *gorm.DB, posting domain.ShipmentPosting) (snowflake.ID, error) {
	if posting.ShipmentID == 0 {
		return 0, domain.ErrInvalidID
	}
	if posting.CompanyID == 0 {
		return 0, domain.ErrInvalidCompany
	}
	if !positiveMoney(posting.Amount) {
		return 0, domain.ErrInvalidAmount
	}
	direction := posting.Direction
	if direction == "" {
		direction = domain.RecordDirectionOutgoing
	}
	if direction != domain.RecordDirectionOutgoing && direction != domain.RecordDirectionIncoming {
		return 0, domain.ErrInvalidDirection
	}
	db := s.conn(tx)

	prev, err := s.repo.FindRecordBySource(ctx, db, domain.SourceTypeShipment, posting.ShipmentID, domain.RecordKindShipment)
	if err != nil {
		return 0, err
	}
	shipmentID := posting.ShipmentID
	record, err := s.putRecord(ctx, db, prev, domain.ServiceRecord{
		CompanyID:   posting.CompanyID,
		Date:        posting.Date,
		Amount:      posting.Amount,
		Direction:   direction,
		Kind:        domain.RecordKindShipment,
		SourceType:  domain.SourceTypeShipment,
		SourceID:    &shipmentID,
		ReferenceNo: posting.ReferenceNo,
		Description: posting.Description,
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *Service) RemoveShipment(ctx context.Context, tx *gorm.DB, shipmentID snowflake.ID) error {
	if shipmentID == 0 {
		return domain.ErrInvalidID
	}
	db := s.conn(tx)
	record, err := s.repo.FindRecordBySource(ctx, db, domain.SourceTypeShipment, shipmentID, domain.RecordKindShipment)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return s.removeRecord(ctx, db, record)
}

// rentalRecords lists the records a rental should own: one receivable
// billed to the customer while it is positive, plus a cost record for
// every line with an equipment or transport supplier.
func rentalRecords(posting domain.RentalPosting) []domain.ServiceRecord {
	rentalID := posting.RentalID
	records := make([]domain.ServiceRecord, 0, 1+len(posting.Lines))

	if receivable := posting.Receivable(); positiveMoney(receivable) {
		records = append(records, domain.ServiceRecord{
			CompanyID:   posting.CompanyID,
			Date:        posting.ReceivableDate(),
			Amount:      receivable,
			Direction:   domain.RecordDirectionOutgoing,
			Kind:        domain.RecordKindRentalReceivable,
			SourceType:  domain.SourceTypeRental,
			SourceID:    &rentalID,
			RentalID:    &rentalID,
			ReferenceNo: posting.FormNumber,
			Description: fmt.Sprintf("Rental %s", posting.FormNumber),
		})
	}

	for _, line := range posting.Lines {
		lineID := line.LineID
		if line.EquipmentSupplierID != nil {
			if cost := line.EquipmentCost(); positiveMoney(cost) {
				records = append(records, domain.ServiceRecord{
					CompanyID:   *line.EquipmentSupplierID,
					Date:        line.Start,
					Amount:      cost,
					Direction:   domain.RecordDirectionIncoming,
					Kind:        domain.RecordKindEquipmentCost,
					SourceType:  domain.SourceTypeRentalLine,
					SourceID:    &lineID,
					RentalID:    &rentalID,
					ReferenceNo: posting.FormNumber,
					Description: fmt.Sprintf("%s rental cost, %d days", line.Label, line.Days()),
				})
			}
		}
		if line.TransportSupplierID != nil && positiveMoney(line.TransportCost) {
			records = append(records, domain.ServiceRecord{
				CompanyID:   *line.TransportSupplierID,
				Date:        line.Start,
				Amount:      line.TransportCost,
				Direction:   domain.RecordDirectionIncoming,
				Kind:        domain.RecordKindTransportCost,
				SourceType:  domain.SourceTypeRentalLine,
				SourceID:    &lineID,
				RentalID:    &rentalID,
				ReferenceNo: posting.FormNumber,
				Description: fmt.Sprintf("%s transport", line.Label),
			})
		}
	}
	return records
}
