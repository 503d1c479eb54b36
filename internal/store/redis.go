package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seenimoa/moodpulse/pkg/models"
)

// runHistoryLen bounds the list of recent run reports kept in Redis.
const runHistoryLen = 100

// Mirror copies each run's combined store and report into Redis so other
// services can read moods without access to the output directory.
//
// Keys, for prefix "moodpulse":
//
//	moodpulse:moods        hash id → record JSON
//	moodpulse:last_run     string, report JSON
//	moodpulse:runs         list of report JSON, newest first
//	moodpulse:events       pub/sub channel, run_completed events
type Mirror struct {
	client *redis.Client
	prefix string
}

// NewMirror connects to redisURL (a redis:// URL or a bare host:port) and
// verifies the connection with PING.
func NewMirror(ctx context.Context, redisURL, prefix string) (*Mirror, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	opt.DialTimeout = 5 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}
	if prefix == "" {
		prefix = "moodpulse"
	}
	return &Mirror{client: client, prefix: prefix}, nil
}

// Key returns the prefixed Redis key for name.
func (m *Mirror) Key(name string) string {
	return m.prefix + ":" + name
}

// Publish replaces the mirrored store, records the report and notifies
// subscribers, all in one MULTI/EXEC transaction.
func (m *Mirror) Publish(ctx context.Context, st models.Store, report *models.RunReport) error {
	fields := make(map[string]any, len(st))
	for id, rec := range st {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", id, err)
		}
		fields[id] = string(data)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("store: encode report: %w", err)
	}
	event, err := json.Marshal(RunEvent{Type: EventRunCompleted, Data: report})
	if err != nil {
		return fmt.Errorf("store: encode event: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.Key("moods"))
		if len(fields) > 0 {
			pipe.HSet(ctx, m.Key("moods"), fields)
		}
		pipe.Set(ctx, m.Key("last_run"), reportJSON, 0)
		pipe.LPush(ctx, m.Key("runs"), reportJSON)
		pipe.LTrim(ctx, m.Key("runs"), 0, runHistoryLen-1)
		pipe.Publish(ctx, m.Key("events"), event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: redis publish: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (m *Mirror) Close() error {
	return m.client.Close()
}

// EventRunCompleted is the event type sent after every run.
const EventRunCompleted = "run_completed"

// RunEvent is the notification payload shared by the Redis channel and the
// websocket hub.
type RunEvent struct {
	Type string            `json:"type"`
	Data *models.RunReport `json:"data"`
}
