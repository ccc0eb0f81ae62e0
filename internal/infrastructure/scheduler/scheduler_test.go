package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingExecutor struct {
	mu   sync.Mutex
	jobs []*Job
	err  error
	done chan struct{} // closed once, when the first job lands
	once sync.Once
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{done: make(chan struct{})}
}

func (e *recordingExecutor) Execute(ctx context.Context, job *Job) error {
	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.mu.Unlock()
	e.once.Do(func() { close(e.done) })
	return e.err
}

func (e *recordingExecutor) executed() []*Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Job(nil), e.jobs...)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job execution")
	}
}

func TestSchedulerRunsSubmittedJobs(t *testing.T) {
	exec := newRecordingExecutor()
	s := NewScheduler(Config{Workers: 2, QueueSize: 8}, exec, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	job := NewEnsureTicketJob(uuid.New())
	require.NoError(t, s.Submit(job))

	waitFor(t, exec.done)
	jobs := exec.executed()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, JobTypeEnsureTicket, jobs[0].Type)
}

func TestSchedulerEnqueueEnsureTicket(t *testing.T) {
	exec := newRecordingExecutor()
	s := NewScheduler(Config{Workers: 1, QueueSize: 4}, exec, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	id := uuid.New()
	require.NoError(t, s.EnqueueEnsureTicket(id))

	waitFor(t, exec.done)
	jobs := exec.executed()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobTypeEnsureTicket, jobs[0].Type)
	assert.Equal(t, id, jobs[0].RequestID)
}

func TestSchedulerRejectsWhenNotRunning(t *testing.T) {
	s := NewScheduler(Config{Workers: 1, QueueSize: 1}, newRecordingExecutor(), zap.NewNop())
	err := s.Submit(NewJob(JobTypeRetryScan))
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSchedulerRejectsWhenQueueFull(t *testing.T) {
	// no workers consume the queue until Start, so fill it before starting
	s := NewScheduler(Config{Workers: 1, QueueSize: 1}, newRecordingExecutor(), zap.NewNop())
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	require.NoError(t, s.Submit(NewJob(JobTypeRetryScan)))
	err := s.Submit(NewJob(JobTypeRetryScan))
	assert.ErrorIs(t, err, ErrJobQueueFull)
}

func TestSchedulerStopDrains(t *testing.T) {
	exec := newRecordingExecutor()
	s := NewScheduler(Config{Workers: 1, QueueSize: 8}, exec, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Submit(NewJob(JobTypeTicketScan)))
	waitFor(t, exec.done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// stopping twice is a no-op
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Submit(NewJob(JobTypeTicketScan)), ErrSchedulerNotRunning)
}

type stubOrchestration struct {
	mu        sync.Mutex
	ensured   []uuid.UUID
	scans     int
	retries   int
	ensureErr error
}

func (s *stubOrchestration) EnsureTicket(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = append(s.ensured, id)
	return s.ensureErr
}

func (s *stubOrchestration) EnsureTickets(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = limit
	return 0, nil
}

func (s *stubOrchestration) DispatchDueRetries(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = limit
	return 0, nil
}

func TestOrchestrationExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("ensure ticket routes the request id", func(t *testing.T) {
		orch := &stubOrchestration{}
		exec := NewOrchestrationExecutor(orch, 25)

		id := uuid.New()
		require.NoError(t, exec.Execute(ctx, NewEnsureTicketJob(id)))
		assert.Equal(t, []uuid.UUID{id}, orch.ensured)
	})

	t.Run("scan jobs carry their batch size", func(t *testing.T) {
		orch := &stubOrchestration{}
		exec := NewOrchestrationExecutor(orch, 25)

		job := NewJob(JobTypeTicketScan)
		job.BatchSize = 10
		require.NoError(t, exec.Execute(ctx, job))
		assert.Equal(t, 10, orch.scans)

		require.NoError(t, exec.Execute(ctx, NewJob(JobTypeRetryScan)))
		assert.Equal(t, 25, orch.retries)
	})

	t.Run("executor errors surface", func(t *testing.T) {
		orch := &stubOrchestration{ensureErr: errors.New("itsm down")}
		exec := NewOrchestrationExecutor(orch, 25)
		assert.Error(t, exec.Execute(ctx, NewEnsureTicketJob(uuid.New())))
	})

	t.Run("unknown job type", func(t *testing.T) {
		exec := NewOrchestrationExecutor(&stubOrchestration{}, 25)
		err := exec.Execute(ctx, NewJob(JobType("BOGUS")))
		assert.ErrorIs(t, err, ErrUnknownJobType)
	})
}

func TestScanTriggerEnqueuesBothScans(t *testing.T) {
	exec := newRecordingExecutor()
	s := NewScheduler(Config{Workers: 2, QueueSize: 16}, exec, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	trigger := NewScanTrigger(ScanTriggerConfig{
		TicketScanInterval: 10 * time.Millisecond,
		RetryScanInterval:  10 * time.Millisecond,
		BatchSize:          7,
	}, s, zap.NewNop())
	require.NoError(t, trigger.Start(context.Background()))
	defer trigger.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		types := map[JobType]bool{}
		for _, job := range exec.executed() {
			types[job.Type] = true
			assert.Equal(t, 7, job.BatchSize)
		}
		if types[JobTypeTicketScan] && types[JobTypeRetryScan] {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected both scan job types to run")
}

func TestScanTriggerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(Config{Workers: 1, QueueSize: 4}, newRecordingExecutor(), zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	trigger := NewScanTrigger(DefaultScanTriggerConfig(), s, zap.NewNop())
	require.NoError(t, trigger.Start(context.Background()))
	trigger.Stop()
	trigger.Stop()
}
