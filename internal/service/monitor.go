package service

import (
	"sync"
	"time"
)

// Monitor collects in-process counters for the reconciliation engine
// and its side effects. Exposed read-only on the admin API.
type Monitor struct {
	mu sync.RWMutex

	WebhookReceived   int64
	WebhookHandled    int64
	WebhookDuplicates int64
	WebhookUnhandled  int64
	WebhookFailures   int64

	TasksProcessed     int64
	SideEffectFailures int64

	AmountMismatches int64

	LastWebhookAt time.Time
	LastFailureAt time.Time
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) RecordWebhookReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookReceived++
	m.LastWebhookAt = time.Now()
}

func (m *Monitor) RecordWebhookHandled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookHandled++
}

func (m *Monitor) RecordWebhookDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookDuplicates++
}

func (m *Monitor) RecordWebhookUnhandled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookUnhandled++
}

func (m *Monitor) RecordWebhookFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookFailures++
	m.LastFailureAt = time.Now()
}

func (m *Monitor) RecordTaskProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TasksProcessed++
}

func (m *Monitor) RecordSideEffectFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SideEffectFailures++
	m.LastFailureAt = time.Now()
}

func (m *Monitor) RecordAmountMismatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AmountMismatches++
}

// MonitorSnapshot is a point-in-time copy of the counters, safe to
// serialize.
type MonitorSnapshot struct {
	WebhookReceived   int64
	WebhookHandled    int64
	WebhookDuplicates int64
	WebhookUnhandled  int64
	WebhookFailures   int64

	TasksProcessed     int64
	SideEffectFailures int64

	AmountMismatches int64

	LastWebhookAt time.Time
	LastFailureAt time.Time
}

// Snapshot returns a copy safe to serialize.
func (m *Monitor) Snapshot() MonitorSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MonitorSnapshot{
		WebhookReceived:    m.WebhookReceived,
		WebhookHandled:     m.WebhookHandled,
		WebhookDuplicates:  m.WebhookDuplicates,
		WebhookUnhandled:   m.WebhookUnhandled,
		WebhookFailures:    m.WebhookFailures,
		TasksProcessed:     m.TasksProcessed,
		SideEffectFailures: m.SideEffectFailures,
		AmountMismatches:   m.AmountMismatches,
		LastWebhookAt:      m.LastWebhookAt,
		LastFailureAt:      m.LastFailureAt,
	}
}
