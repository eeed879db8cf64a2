// Package listener provides a Postgres LISTEN/NOTIFY consumer for run
// events. It holds a dedicated pgx connection (not from the pool) listening
// on the `fusion_events` channel.
//
// The store notifies inside its save and publish transactions, so an event
// arrives only once the new rows are visible. The API uses it to drop cached
// responses as soon as a run lands.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	// Channel is the NOTIFY channel the store publishes on.
	Channel          = "fusion_events"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Event kinds.
const (
	KindResolved  = "resolved"
	KindPublished = "published"
)

// Event is the JSON payload from pg_notify('fusion_events', ...).
type Event struct {
	Kind      string `json:"kind"`
	RunID     string `json:"run_id"`
	Count     int    `json:"count"`
	Timestamp int64  `json:"ts"`
}

// ParseEvent decodes a notification payload.
func ParseEvent(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	if e.Kind != KindResolved && e.Kind != KindPublished {
		return Event{}, fmt.Errorf("parse event: unknown kind %q", e.Kind)
	}
	return e, nil
}

// Handler receives parsed events. It runs on the listener goroutine and
// should return quickly.
type Handler func(Event)

// Start opens a dedicated connection and listens on Channel. It reconnects
// automatically on connection loss. Blocks until ctx is cancelled. Intended
// to be called with `go`.
func Start(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Run listener stopped (context cancelled)")
			return
		}

		logger.Error("Run listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Run listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := ParseEvent(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse run event",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("Run event received",
			"kind", event.Kind,
			"run_id", event.RunID,
			"count", event.Count)
		handle(event)
	}
}

// Payload encodes an event for pg_notify.
func Payload(kind, runID string, count int, now time.Time) string {
	b, _ := json.Marshal(Event{Kind: kind, RunID: runID, Count: count, Timestamp: now.Unix()})
	return string(b)
}
