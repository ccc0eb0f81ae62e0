package persistence

import (
	"context"

	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransitionRecordRepository implements request.TransitionRepository
// using GORM. Records are insert-only; there is no update or delete path.
type GormTransitionRecordRepository struct {
	db *gorm.DB
}

// NewGormTransitionRecordRepository creates a new GormTransitionRecordRepository
func NewGormTransitionRecordRepository(db *gorm.DB) *GormTransitionRecordRepository {
	return &GormTransitionRecordRepository{db: db}
}

// Append inserts audit records in one batch
func (r *GormTransitionRecordRepository) Append(ctx context.Context, records []request.TransitionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*models.TransitionRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.TransitionRecordModelFromDomain(rec)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListForRequest returns the audit trail for a request, oldest first
func (r *GormTransitionRecordRepository) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]request.TransitionRecord, error) {
	var rows []models.TransitionRecordModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]request.TransitionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
