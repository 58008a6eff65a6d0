package batchlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// BatchRecord is the operator-visible status of one batch run. Records
// expire after the configured TTL; the durable outcome lives on the prompt
// records themselves.
type BatchRecord struct {
	BatchID   string    `json:"batchId"`
	ActorID   string    `json:"actorId"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RedisLog stores batch run records in redis hashes with a TTL.
type RedisLog struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLog connects a batch log to redis.
func NewRedisLog(addr, password string, ttl time.Duration) (*RedisLog, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisLog{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: "promptdeck:batch",
		ttl:    ttl,
	}, nil
}

// Begin records a batch as running.
func (l *RedisLog) Begin(ctx context.Context, batchID, actorID string, total int) error {
	now := time.Now().UTC()
	rec := BatchRecord{
		BatchID:   batchID,
		ActorID:   actorID,
		Status:    StatusRunning,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return l.write(ctx, rec)
}

// Complete marks a batch finished with its final counts.
func (l *RedisLog) Complete(ctx context.Context, batchID string, success, failed int) error {
	rec, ok, err := l.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	rec.Status = StatusCompleted
	rec.Success = success
	rec.Failed = failed
	rec.UpdatedAt = time.Now().UTC()
	return l.write(ctx, rec)
}

// Get returns a batch record by ID.
func (l *RedisLog) Get(ctx context.Context, batchID string) (BatchRecord, bool, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return BatchRecord{}, false, nil
	}
	data, err := l.client.HGetAll(ctx, l.key(batchID)).Result()
	if err != nil {
		return BatchRecord{}, false, err
	}
	if len(data) == 0 {
		return BatchRecord{}, false, nil
	}
	return decodeRecord(batchID, data), true, nil
}

func (l *RedisLog) write(ctx context.Context, rec BatchRecord) error {
	key := l.key(rec.BatchID)
	payload := map[string]any{
		"batchId":   rec.BatchID,
		"actorId":   rec.ActorID,
		"status":    rec.Status,
		"total":     strconv.Itoa(rec.Total),
		"success":   strconv.Itoa(rec.Success),
		"failed":    strconv.Itoa(rec.Failed),
		"createdAt": rec.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := l.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = l.client.Expire(ctx, key, l.ttl).Err()
	return nil
}

func (l *RedisLog) key(batchID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, batchID)
}

func decodeRecord(batchID string, data map[string]string) BatchRecord {
	rec := BatchRecord{BatchID: batchID}
	rec.ActorID = data["actorId"]
	rec.Status = data["status"]
	if v := data["total"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.Total = n
		}
	}
	if v := data["success"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.Success = n
		}
	}
	if v := data["failed"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.Failed = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.UpdatedAt = t
		}
	}
	return rec
}
