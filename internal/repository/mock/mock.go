// Package mock provides in-memory repository.* implementations for
// usecase-level tests, following the teacher's repository/mock pattern.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
)

var (
	_ repository.JobRepository    = (*JobRepository)(nil)
	_ repository.SubJobRepository = (*SubJobRepository)(nil)
	_ repository.ResultRepository = (*ResultRepository)(nil)
	_ repository.WorkerRepository = (*WorkerRepository)(nil)
	_ repository.TopicRepository  = (*TopicRepository)(nil)
)

// JobRepository is an in-memory mock of repository.JobRepository.
type JobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
	data map[uuid.UUID][]domain.ResultSummary

	CreateFunc func(ctx context.Context, job *domain.Job) error
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[uuid.UUID]*domain.Job),
		data: make(map[uuid.UUID][]domain.ResultSummary),
	}
}

func (m *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *JobRepository) GetWithData(ctx context.Context, id uuid.UUID) (*domain.JobWithData, error) {
	job, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.JobWithData{Job: *job, Data: append([]domain.ResultSummary{}, m.data[id]...)}, nil
}

func (m *JobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = domain.JobCompleted
	return nil
}

// Get returns the stored Job directly, for test assertions.
func (m *JobRepository) Get(id uuid.UUID) (*domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

// SubJobRepository is an in-memory mock of repository.SubJobRepository.
type SubJobRepository struct {
	mu      sync.Mutex
	subJobs map[uuid.UUID]*domain.SubJob

	CreateFunc func(ctx context.Context, subJob *domain.SubJob) error
}

func NewSubJobRepository() *SubJobRepository {
	return &SubJobRepository{subJobs: make(map[uuid.UUID]*domain.SubJob)}
}

func (m *SubJobRepository) Create(ctx context.Context, subJob *domain.SubJob) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, subJob)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	subJob.CreatedAt = time.Now().UTC()
	subJob.UpdatedAt = subJob.CreatedAt
	cp := *subJob
	m.subJobs[subJob.ID] = &cp
	return nil
}

func (m *SubJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subJobs[id]
	if !ok {
		return nil, domain.ErrSubJobNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *SubJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subJobs[id]
	if !ok {
		return 0, domain.ErrSubJobNotFound
	}
	if s.Status == domain.JobPending {
		s.Status = status
	}
	pending := 0
	for _, other := range m.subJobs {
		if other.JobID == s.JobID && other.Status == domain.JobPending {
			pending++
		}
	}
	return pending, nil
}

// Get returns the stored SubJob directly, for test assertions.
func (m *SubJobRepository) Get(id uuid.UUID) (*domain.SubJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subJobs[id]
	return s, ok
}

// ResultRepository is an in-memory mock of repository.ResultRepository.
type ResultRepository struct {
	mu      sync.Mutex
	results map[uuid.UUID]*domain.ResultRecord
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{results: make(map[uuid.UUID]*domain.ResultRecord)}
}

func (m *ResultRepository) Insert(ctx context.Context, result *domain.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[result.RunID]; exists {
		return domain.ErrDuplicateRun
	}
	result.CreatedAt = time.Now().UTC()
	cp := *result
	m.results[result.RunID] = &cp
	return nil
}

// Count returns the number of rows inserted, for test assertions.
func (m *ResultRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// WorkerRepository is an in-memory mock of repository.WorkerRepository.
type WorkerRepository struct {
	mu      sync.Mutex
	workers map[string]*domain.Worker
}

func NewWorkerRepository() *WorkerRepository {
	return &WorkerRepository{workers: make(map[string]*domain.Worker)}
}

func (m *WorkerRepository) apply(name string, ts time.Time, mutate func(w *domain.Worker)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[name]
	if !ok {
		w = &domain.Worker{Name: name}
		m.workers[name] = w
	}
	if !w.LastSeen.IsZero() && !ts.After(w.LastSeen) {
		return nil
	}
	mutate(w)
	w.LastSeen = ts
	return nil
}

func (m *WorkerRepository) UpsertOnline(ctx context.Context, name string, ts time.Time) error {
	return m.apply(name, ts, func(w *domain.Worker) {
		w.Status = domain.WorkerOnline
		started := ts
		w.StartedAt = &started
	})
}

func (m *WorkerRepository) UpsertOffline(ctx context.Context, name string, ts time.Time) error {
	return m.apply(name, ts, func(w *domain.Worker) {
		w.Status = domain.WorkerOffline
		shutdown := ts
		w.ShutdownAt = &shutdown
	})
}

func (m *WorkerRepository) SetCurrentJob(ctx context.Context, name string, jobID *uuid.UUID, ts time.Time) error {
	return m.apply(name, ts, func(w *domain.Worker) {
		w.CurrentJob = jobID
	})
}

func (m *WorkerRepository) Touch(ctx context.Context, name string, ts time.Time) error {
	return m.apply(name, ts, func(w *domain.Worker) {})
}

func (m *WorkerRepository) Get(ctx context.Context, name string) (*domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[name]
	if !ok {
		return nil, domain.ErrWorkerNotFound
	}
	cp := *w
	return &cp, nil
}

// TopicRepository is an in-memory mock of repository.TopicRepository.
type TopicRepository struct {
	mu     sync.Mutex
	byName map[string]map[string]bool
}

func NewTopicRepository() *TopicRepository {
	return &TopicRepository{byName: make(map[string]map[string]bool)}
}

func (m *TopicRepository) AssociateAll(ctx context.Context, workerName string, topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.byName[workerName]
	if !ok {
		set = make(map[string]bool)
		m.byName[workerName] = set
	}
	for _, t := range topics {
		set[t] = true
	}
	return nil
}

func (m *TopicRepository) RemoveAll(ctx context.Context, workerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, workerName)
	return nil
}

// Topics returns the current topic set for a worker, for test assertions.
func (m *TopicRepository) Topics(workerName string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[workerName]
}
