package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkerStatus is a Worker's liveness state in the registry.
type WorkerStatus string

const (
	WorkerOnline  WorkerStatus = "online"
	WorkerOffline WorkerStatus = "offline"
)

// Worker is the scheduler's liveness record for one worker process, keyed
// by worker name. Every field update is applied monotonically: only when
// the incoming timestamp strictly exceeds the stored LastSeen.
type Worker struct {
	Name        string       `json:"worker_name"`
	Status      WorkerStatus `json:"status"`
	LastSeen    time.Time    `json:"last_seen"`
	CurrentJob  *uuid.UUID   `json:"current_job_id,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	ShutdownAt  *time.Time   `json:"shutdown_at,omitempty"`
}

// Topic is a named routing-key pattern a worker binds to on job_exchange.
// "all" is always implicit in a worker's effective topic set.
type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

const ImplicitTopic = "all"

// NormalizeTopics dedups a raw comma-separated WORKER_TOPICS value and
// forcibly extends it to contain the implicit "all" topic, preserving
// first-seen order.
func NormalizeTopics(raw []string) []string {
	seen := make(map[string]bool, len(raw)+1)
	out := make([]string, 0, len(raw)+1)
	for _, t := range raw {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if !seen[ImplicitTopic] {
		out = append(out, ImplicitTopic)
	}
	return out
}
