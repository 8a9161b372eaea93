package schedulerapi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository/mock"
)

func newTestRegistry() (*Registry, *mock.WorkerRepository, *mock.TopicRepository) {
	workers := mock.NewWorkerRepository()
	topics := mock.NewTopicRepository()
	return &Registry{workers: workers, topics: topics, log: zap.NewNop()}, workers, topics
}

func TestRegistry_OnlineThenOffline(t *testing.T) {
	r, workers, topics := newTestRegistry()
	ctx := context.Background()
	base := time.Now().UTC()

	online := broker.NewLifecycleStatus("worker-1", base, []string{"x", "all"}, true)
	if err := r.apply(ctx, online); err != nil {
		t.Fatalf("apply online: %v", err)
	}
	w, err := workers.Get(ctx, "worker-1")
	if err != nil {
		t.Fatalf("expected worker row, got %v", err)
	}
	if w.Status != domain.WorkerOnline {
		t.Errorf("expected online, got %s", w.Status)
	}
	if set := topics.Topics("worker-1"); !set["x"] || !set["all"] {
		t.Errorf("expected worker-1 associated with x and all, got %v", set)
	}

	offline := broker.NewLifecycleStatus("worker-1", base.Add(time.Second), nil, false)
	if err := r.apply(ctx, offline); err != nil {
		t.Fatalf("apply offline: %v", err)
	}
	w, _ = workers.Get(ctx, "worker-1")
	if w.Status != domain.WorkerOffline {
		t.Errorf("expected offline, got %s", w.Status)
	}
	if set := topics.Topics("worker-1"); len(set) != 0 {
		t.Errorf("expected topics purged on offline, got %v", set)
	}
}

// TestRegistry_OutOfOrderDeliveryIsMonotone drives scenario 5 from spec.md
// §8: updates are fed in both orders and the row's last_seen must only
// ever move forward, per the `WHERE last_seen < incoming.timestamp`
// predicate the repository layer enforces.
func TestRegistry_OutOfOrderDeliveryIsMonotone(t *testing.T) {
	r, workers, _ := newTestRegistry()
	ctx := context.Background()
	baseT := time.Now().UTC()

	online := broker.NewLifecycleStatus("worker-1", baseT, nil, true)
	if err := r.apply(ctx, online); err != nil {
		t.Fatalf("apply online: %v", err)
	}
	heartbeat := broker.NewHeartbeatStatus("worker-1", baseT.Add(3*time.Second))
	if err := r.apply(ctx, heartbeat); err != nil {
		t.Fatalf("apply heartbeat: %v", err)
	}

	w, err := workers.Get(ctx, "worker-1")
	if err != nil {
		t.Fatalf("expected worker row, got %v", err)
	}
	if w.Status != domain.WorkerOnline {
		t.Errorf("expected online, got %s", w.Status)
	}
	if !w.LastSeen.Equal(baseT.Add(3 * time.Second)) {
		t.Errorf("expected last_seen = T+3, got %v", w.LastSeen)
	}

	// A stale Lifecycle message with an earlier timestamp than what's
	// already stored must be dropped entirely, not just partially applied.
	stale := broker.NewLifecycleStatus("worker-1", baseT.Add(time.Second), nil, false)
	if err := r.apply(ctx, stale); err != nil {
		t.Fatalf("apply stale offline: %v", err)
	}
	w, _ = workers.Get(ctx, "worker-1")
	if w.Status != domain.WorkerOnline {
		t.Errorf("stale offline must not regress status, got %s", w.Status)
	}
	if !w.LastSeen.Equal(baseT.Add(3 * time.Second)) {
		t.Errorf("stale message must not move last_seen, got %v", w.LastSeen)
	}
}

// TestRegistry_HeartbeatBeforeOnlineUpsertsAndKeepsMaxLastSeen drives the
// true reverse of spec.md §8 Scenario 5: a Heartbeat for a worker the
// registry has never seen a Lifecycle(Online) row for, with a *later*
// timestamp than the Online message that is still in flight. The
// Heartbeat must not silently no-op for lack of an existing row — it has
// to create one, exactly like Lifecycle does — and the Online message
// that lands afterward, carrying an older timestamp than what's already
// stored, must not regress last_seen back to T.
func TestRegistry_HeartbeatBeforeOnlineUpsertsAndKeepsMaxLastSeen(t *testing.T) {
	r, workers, _ := newTestRegistry()
	ctx := context.Background()
	baseT := time.Now().UTC()

	heartbeat := broker.NewHeartbeatStatus("worker-1", baseT.Add(3*time.Second))
	if err := r.apply(ctx, heartbeat); err != nil {
		t.Fatalf("apply heartbeat: %v", err)
	}
	w, err := workers.Get(ctx, "worker-1")
	if err != nil {
		t.Fatalf("expected heartbeat to create a worker row, got %v", err)
	}
	if !w.LastSeen.Equal(baseT.Add(3 * time.Second)) {
		t.Fatalf("expected last_seen = T+3 after heartbeat, got %v", w.LastSeen)
	}

	online := broker.NewLifecycleStatus("worker-1", baseT, nil, true)
	if err := r.apply(ctx, online); err != nil {
		t.Fatalf("apply online: %v", err)
	}

	w, _ = workers.Get(ctx, "worker-1")
	if !w.LastSeen.Equal(baseT.Add(3 * time.Second)) {
		t.Errorf("expected last_seen to remain max(T, T+3) = T+3, got %v", w.LastSeen)
	}
}

func TestRegistry_DoubleOfflineIsIdempotent(t *testing.T) {
	r, workers, topics := newTestRegistry()
	ctx := context.Background()
	ts := time.Now().UTC()

	_ = r.apply(ctx, broker.NewLifecycleStatus("worker-1", ts, []string{"all"}, true))
	_ = r.apply(ctx, broker.NewLifecycleStatus("worker-1", ts.Add(time.Second), nil, false))
	firstWorker, _ := workers.Get(ctx, "worker-1")
	firstTopics := topics.Topics("worker-1")

	// Re-applying the identical offline message must leave state unchanged.
	_ = r.apply(ctx, broker.NewLifecycleStatus("worker-1", ts.Add(time.Second), nil, false))
	secondWorker, _ := workers.Get(ctx, "worker-1")
	secondTopics := topics.Topics("worker-1")

	if firstWorker.Status != secondWorker.Status || !firstWorker.LastSeen.Equal(secondWorker.LastSeen) {
		t.Errorf("expected identical worker state after repeat offline, got %+v vs %+v", firstWorker, secondWorker)
	}
	if len(firstTopics) != len(secondTopics) {
		t.Errorf("expected identical topic set after repeat offline, got %v vs %v", firstTopics, secondTopics)
	}
}

func TestRegistry_JobStatusTransitions(t *testing.T) {
	r, workers, _ := newTestRegistry()
	ctx := context.Background()
	ts := time.Now().UTC()
	jobID := uuid.New()

	_ = r.apply(ctx, broker.NewLifecycleStatus("worker-1", ts, []string{"all"}, true))
	started := broker.NewJobStatus("worker-1", ts.Add(time.Second), broker.JobStatus{JobID: jobID, WorkerName: "worker-1"})
	if err := r.apply(ctx, started); err != nil {
		t.Fatalf("apply job started: %v", err)
	}
	w, _ := workers.Get(ctx, "worker-1")
	if w.CurrentJob == nil || *w.CurrentJob != jobID {
		t.Errorf("expected current_job_id set, got %v", w.CurrentJob)
	}

	cleared := broker.NewJobClearedStatus("worker-1", ts.Add(2*time.Second))
	if err := r.apply(ctx, cleared); err != nil {
		t.Fatalf("apply job cleared: %v", err)
	}
	w, _ = workers.Get(ctx, "worker-1")
	if w.CurrentJob != nil {
		t.Errorf("expected current_job_id cleared, got %v", w.CurrentJob)
	}
}
