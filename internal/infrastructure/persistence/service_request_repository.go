package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/fieldbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormServiceRequestRepository implements request.Repository using GORM
type GormServiceRequestRepository struct {
	db *gorm.DB
}

// NewGormServiceRequestRepository creates a new GormServiceRequestRepository
func NewGormServiceRequestRepository(db *gorm.DB) *GormServiceRequestRepository {
	return &GormServiceRequestRepository{db: db}
}

// Create inserts a new request; the unique index on correlation_id turns a
// duplicate submission race into shared.ErrAlreadyExists.
func (r *GormServiceRequestRepository) Create(ctx context.Context, req *request.ServiceRequest) error {
	model := models.ServiceRequestModelFromDomain(req)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormServiceRequestRepository) SaveWithLock(ctx context.Context, req *request.ServiceRequest) error {
	currentVersion := req.Version
	req.IncrementVersion()
	req.UpdatedAt = time.Now()

	model := models.ServiceRequestModelFromDomain(req)
	result := r.db.WithContext(ctx).Model(&models.ServiceRequestModel{}).
		Where("id = ? AND version = ?", req.ID, currentVersion).
		Updates(map[string]interface{}{
			"state":               model.State,
			"category":            model.Category,
			"auto_resolvable":     model.AutoResolvable,
			"external_ticket_ref": model.ExternalTicketRef,
			"external_order_ref":  model.ExternalOrderRef,
			"assigned_resource":   model.AssignedResource,
			"error_message":       model.ErrorMessage,
			"error_kind":          model.ErrorKind,
			"attempt_count":       model.AttemptCount,
			"next_retry_at":       model.NextRetryAt,
			"decided_by":          model.DecidedBy,
			"decision_reason":     model.DecisionReason,
			"decided_at":          model.DecidedAt,
			"completed_at":        model.CompletedAt,
			"failed_at":           model.FailedAt,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		req.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		req.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a request by its ID
func (r *GormServiceRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*request.ServiceRequest, error) {
	var model models.ServiceRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCorrelationID finds a request by its correlation ID
func (r *GormServiceRequestRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*request.ServiceRequest, error) {
	var model models.ServiceRequestModel
	if err := r.db.WithContext(ctx).
		First(&model, "correlation_id = ?", correlationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTicketRef finds a request by its ITSM ticket reference
func (r *GormServiceRequestRepository) FindByTicketRef(ctx context.Context, ticketRef string) (*request.ServiceRequest, error) {
	var model models.ServiceRequestModel
	if err := r.db.WithContext(ctx).
		First(&model, "external_ticket_ref = ?", ticketRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds requests matching the filter with pagination
func (r *GormServiceRequestRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*request.ServiceRequest, error) {
	var rows []models.ServiceRequestModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ServiceRequestModel{}), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*request.ServiceRequest, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Count counts requests matching the filter
func (r *GormServiceRequestRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var total int64
	query := r.applyConditions(r.db.WithContext(ctx).Model(&models.ServiceRequestModel{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// FindDueForRetry returns EXTERNAL_FAILED requests whose retry time has come
func (r *GormServiceRequestRepository) FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*request.ServiceRequest, error) {
	var rows []models.ServiceRequestModel
	if err := r.db.WithContext(ctx).
		Where("state = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			request.StateExternalFailed, now).
		Order("next_retry_at asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*request.ServiceRequest, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindMissingTicket returns PENDING_REVIEW requests without an ITSM ticket
func (r *GormServiceRequestRepository) FindMissingTicket(ctx context.Context, limit int) ([]*request.ServiceRequest, error) {
	var rows []models.ServiceRequestModel
	if err := r.db.WithContext(ctx).
		Where("state = ? AND external_ticket_ref IS NULL", request.StatePendingReview).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*request.ServiceRequest, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// CountDeadLetters counts requests parked in FAILED_TERMINAL, for the
// telemetry gauge.
func (r *GormServiceRequestRepository) CountDeadLetters(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ServiceRequestModel{}).
		Where("state = ?", request.StateFailedTerminal).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormServiceRequestRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyConditions(query, filter)

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir != "asc" {
		orderDir = "desc"
	}
	query = query.Order(orderBy + " " + orderDir)

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	return query
}

func (r *GormServiceRequestRepository) applyConditions(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if state, ok := filter.Filters["state"]; ok {
		query = query.Where("state = ?", state)
	}
	if kind, ok := filter.Filters["kind"]; ok {
		query = query.Where("kind = ?", kind)
	}
	if category, ok := filter.Filters["category"]; ok {
		query = query.Where("category = ?", category)
	}
	return query
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
