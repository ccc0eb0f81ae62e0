package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/fieldbridge/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRequestTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ServiceRequestModel{}, &models.TransitionRecordModel{})
	require.NoError(t, err)

	return db
}

func newStoredRequest(t *testing.T, repo *GormServiceRequestRepository, corr string) *request.ServiceRequest {
	t.Helper()
	req, err := request.NewServiceRequest(corr, request.KindWorkOrder, request.RequestPayload{
		Subject:       "Inspect boiler",
		Priority:      request.PriorityNormal,
		CostCenter:    "cc-7",
		EstimatedCost: decimal.NewFromInt(120),
	})
	require.NoError(t, err)
	req.TakePendingTransitions()
	require.NoError(t, repo.Create(context.Background(), req))
	return req
}

func TestServiceRequestRepository_CreateAndFind(t *testing.T) {
	db := setupRequestTestDB(t)
	repo := NewGormServiceRequestRepository(db)
	ctx := context.Background()

	t.Run("round-trips the aggregate including the payload", func(t *testing.T) {
		req := newStoredRequest(t, repo, "corr-1")

		found, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.CorrelationID, found.CorrelationID)
		assert.Equal(t, req.PayloadHash, found.PayloadHash)
		assert.Equal(t, "Inspect boiler", found.Payload.Subject)
		assert.True(t, req.Payload.EstimatedCost.Equal(found.Payload.EstimatedCost))
		assert.Equal(t, request.StatePendingReview, found.State)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("finds by correlation id", func(t *testing.T) {
		found, err := repo.FindByCorrelationID(ctx, "corr-1")
		require.NoError(t, err)
		assert.Equal(t, "corr-1", found.CorrelationID)
	})

	t.Run("finds by ticket ref", func(t *testing.T) {
		req := newStoredRequest(t, repo, "corr-ticket")
		require.NoError(t, req.AcceptTicketRef("INC-7"))
		require.NoError(t, repo.SaveWithLock(ctx, req))

		found, err := repo.FindByTicketRef(ctx, "INC-7")
		require.NoError(t, err)
		assert.Equal(t, req.ID, found.ID)

		_, err = repo.FindByTicketRef(ctx, "INC-none")
		assert.Equal(t, shared.ErrNotFound, err)
	})

	t.Run("duplicate correlation id maps to already exists", func(t *testing.T) {
		dup, err := request.NewServiceRequest("corr-1", request.KindAppointment, request.RequestPayload{
			Subject:       "Other subject",
			Priority:      request.PriorityLow,
			EstimatedCost: decimal.Zero,
		})
		require.NoError(t, err)

		err = repo.Create(ctx, dup)
		assert.Equal(t, shared.ErrAlreadyExists, err)
	})

	t.Run("missing rows map to not found", func(t *testing.T) {
		_, err := repo.FindByCorrelationID(ctx, "nope")
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestServiceRequestRepository_SaveWithLock(t *testing.T) {
	db := setupRequestTestDB(t)
	repo := NewGormServiceRequestRepository(db)
	ctx := context.Background()

	t.Run("persists state changes and bumps the version", func(t *testing.T) {
		req := newStoredRequest(t, repo, "corr-1")

		require.NoError(t, req.Approve("alice", "tech-1", "ok"))
		require.NoError(t, repo.SaveWithLock(ctx, req))
		assert.Equal(t, 2, req.Version)

		found, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, request.StateApproved, found.State)
		assert.Equal(t, "alice", found.DecidedBy)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("stale version loses the write", func(t *testing.T) {
		req := newStoredRequest(t, repo, "corr-2")

		winner, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)
		loser, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)

		require.NoError(t, winner.Approve("alice", "", ""))
		require.NoError(t, repo.SaveWithLock(ctx, winner))

		require.NoError(t, loser.Reject("bob", "no", ""))
		err = repo.SaveWithLock(ctx, loser)
		assert.Equal(t, shared.ErrConcurrencyConflict, err)

		// Losing write must not change the stored state
		found, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, request.StateApproved, found.State)
	})
}

func TestServiceRequestRepository_Scans(t *testing.T) {
	db := setupRequestTestDB(t)
	repo := NewGormServiceRequestRepository(db)
	ctx := context.Background()

	failRequest := func(corr string, retryAt *time.Time) *request.ServiceRequest {
		req := newStoredRequest(t, repo, corr)
		require.NoError(t, req.Approve("alice", "", ""))
		require.NoError(t, req.MarkDispatched("system"))
		require.NoError(t, req.MarkExternalFailed("system", request.ErrorKindTransient, "timeout", retryAt))
		req.TakePendingTransitions()
		require.NoError(t, repo.SaveWithLock(ctx, req))
		return req
	}

	t.Run("due retries ordered by retry time", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		earlier := time.Now().Add(-2 * time.Minute)
		future := time.Now().Add(time.Hour)
		failRequest("corr-due-1", &past)
		failRequest("corr-due-2", &earlier)
		failRequest("corr-later", &future)
		failRequest("corr-manual", nil)

		due, err := repo.FindDueForRetry(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, "corr-due-2", due[0].CorrelationID)
		assert.Equal(t, "corr-due-1", due[1].CorrelationID)
	})

	t.Run("missing ticket scan skips ticketed and decided requests", func(t *testing.T) {
		fresh := newStoredRequest(t, repo, "corr-fresh")

		ticketed := newStoredRequest(t, repo, "corr-ticketed")
		require.NoError(t, ticketed.AcceptTicketRef("INC-1"))
		require.NoError(t, repo.SaveWithLock(ctx, ticketed))

		missing, err := repo.FindMissingTicket(ctx, 10)
		require.NoError(t, err)
		require.Len(t, missing, 1)
		assert.Equal(t, fresh.ID, missing[0].ID)
	})

	t.Run("list filters by state", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters["state"] = string(request.StateExternalFailed)

		items, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		total, err := repo.Count(ctx, filter)
		require.NoError(t, err)

		assert.Equal(t, int64(4), total)
		assert.Len(t, items, 4)
		for _, item := range items {
			assert.Equal(t, request.StateExternalFailed, item.State)
		}
	})
}

func TestTransitionRecordRepository(t *testing.T) {
	db := setupRequestTestDB(t)
	requests := NewGormServiceRequestRepository(db)
	transitions := NewGormTransitionRecordRepository(db)
	ctx := context.Background()

	req := newStoredRequest(t, requests, "corr-1")
	require.NoError(t, req.Approve("alice", "", "fine"))
	require.NoError(t, req.MarkDispatched("system"))

	require.NoError(t, transitions.Append(ctx, req.TakePendingTransitions()))

	trail, err := transitions.ListForRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, request.StateApproved, trail[0].ToState)
	assert.Equal(t, request.StateSentToExternal, trail[1].ToState)
	assert.Equal(t, "alice", trail[0].Actor)

	t.Run("empty append is a no-op", func(t *testing.T) {
		assert.NoError(t, transitions.Append(ctx, nil))
	})
}
