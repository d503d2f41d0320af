package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateRecord(ctx context.Context, req domain.RecordRequest) (domain.ServiceRecord, error) {
	if err := validateRecord(req); err != nil {
		return domain.ServiceRecord{}, err
	}

	var created domain.ServiceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.putRecord(ctx, tx, nil, manualRecord(req))
		if err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.log.Info("service record created",
		zap.String("record_id", created.ID.String()),
		zap.String("company_id", created.CompanyID.String()),
		zap.String("direction", string(created.Direction)),
	)
	return created, nil
}

// UpdateRecord edits a manual record. Records owned by a rental or a
// shipment change only through their source.
func (s *Service) UpdateRecord(ctx context.Context, id snowflake.ID, req domain.RecordRequest) (domain.ServiceRecord, error) {
	if id == 0 {
		return domain.ServiceRecord{}, domain.ErrInvalidID
	}
	if err := validateRecord(req); err != nil {
		return domain.ServiceRecord{}, err
	}

	var updated domain.ServiceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := s.repo.FindRecordForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return domain.ErrRecordNotFound
		}
		if prev.IsManaged() {
			return domain.ErrManagedRecord
		}
		record, err := s.putRecord(ctx, tx, prev, manualRecord(req))
		if err != nil {
			return err
		}
		updated = record
		return nil
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	return updated, nil
}

func (s *Service) DeleteRecord(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindRecordForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrRecordNotFound
		}
		if record.IsManaged() {
			return domain.ErrManagedRecord
		}
		return s.removeRecord(ctx, tx, record)
	})
}

func (s *Service) GetRecord(ctx context.Context, id snowflake.ID) (domain.ServiceRecord, error) {
	if id == 0 {
		return domain.ServiceRecord{}, domain.ErrInvalidID
	}
	record, err := s.repo.FindRecordByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if record == nil {
		return domain.ServiceRecord{}, domain.ErrRecordNotFound
	}
	return *record, nil
}

func (s *Service) ListRecords(ctx context.Context, companyID snowflake.ID) ([]domain.ServiceRecord, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	rows, err := s.repo.ListRecordsByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	return derefRecords(rows), nil
}

func (s *Service) ListRentalRecords(ctx context.Context, rentalID snowflake.ID) ([]domain.ServiceRecord, error) {
	if rentalID == 0 {
		return nil, domain.ErrInvalidID
	}
	rows, err := s.repo.ListRecordsByRental(ctx, s.db, rentalID)
	if err != nil {
		return nil, err
	}
	return derefRecords(rows), nil
}

func validateRecord(req domain.RecordRequest) error {
	if req.CompanyID == 0 {
		return domain.ErrInvalidCompany
	}
	if !positiveMoney(req.Amount) {
		return domain.ErrInvalidAmount
	}
	if req.Date.IsZero() {
		return domain.ErrInvalidDate
	}
	switch req.Direction {
	case domain.RecordDirectionOutgoing, domain.RecordDirectionIncoming:
		return nil
	default:
		return domain.ErrInvalidDirection
	}
}

func manualRecord(req domain.RecordRequest) domain.ServiceRecord {
	return domain.ServiceRecord{
		CompanyID:   req.CompanyID,
		Date:        req.Date,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Kind:        domain.RecordKindManual,
		SourceType:  domain.SourceTypeManual,
		ReferenceNo: strings.TrimSpace(req.ReferenceNo),
		Description: strings.TrimSpace(req.Description),
		DueDate:     dateOrNil(req.DueDate),
	}
}

func derefRecords(rows []*domain.ServiceRecord) []domain.ServiceRecord {
	records := make([]domain.ServiceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, *r)
	}
	return records
}
