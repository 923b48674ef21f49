package service

import (
	"fmt"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"
)

const (
	redisEventDoneKey     = "stripe:event:done:%s"
	redisEventInflightKey = "stripe:event:inflight:%s"

	eventDoneTTLSeconds     = 48 * 3600
	eventInflightTTLSeconds = 60
)

// EventGuard is a best-effort duplicate suppressor over Redis. It is
// advisory only: the durable anchors (PendingOrder.IsProcessed, the
// unique session index, Order.PaymentStatus) stay correct without it,
// it just cuts obvious redeliveries before they hit the database.
// A nil client disables the guard entirely.
type EventGuard struct {
	client radix.Client
}

func NewEventGuard(client radix.Client) *EventGuard {
	return &EventGuard{client: client}
}

// Begin reports whether processing may start: false when the event was
// already completed or is currently in flight on another request.
func (g *EventGuard) Begin(eventID string) bool {
	if g == nil || g.client == nil || eventID == "" {
		return true
	}
	var done string
	if err := g.client.Do(radix.Cmd(&done, "GET", fmt.Sprintf(redisEventDoneKey, eventID))); err != nil {
		zap.L().Warn("event guard unavailable, continuing without it", zap.Error(err))
		return true
	}
	if done != "" {
		return false
	}
	var resp string
	err := g.client.Do(radix.Cmd(&resp, "SET",
		fmt.Sprintf(redisEventInflightKey, eventID), "1",
		"NX", "EX", fmt.Sprintf("%d", eventInflightTTLSeconds)))
	if err != nil {
		zap.L().Warn("event guard unavailable, continuing without it", zap.Error(err))
		return true
	}
	return resp == "OK"
}

// Done marks the event as fully processed and drops the in-flight mark.
func (g *EventGuard) Done(eventID string) {
	if g == nil || g.client == nil || eventID == "" {
		return
	}
	_ = g.client.Do(radix.Cmd(nil, "SETEX",
		fmt.Sprintf(redisEventDoneKey, eventID),
		fmt.Sprintf("%d", eventDoneTTLSeconds), "1"))
	_ = g.client.Do(radix.Cmd(nil, "DEL", fmt.Sprintf(redisEventInflightKey, eventID)))
}

// Abort drops the in-flight mark after a failure so the provider's
// redelivery is not suppressed.
func (g *EventGuard) Abort(eventID string) {
	if g == nil || g.client == nil || eventID == "" {
		return
	}
	_ = g.client.Do(radix.Cmd(nil, "DEL", fmt.Sprintf(redisEventInflightKey, eventID)))
}
