package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Job kinds processed by the advisor's background workers.
const (
	KindTitle   = "title"
	KindInsight = "insight"
)

// readRetryDelay throttles the consume loop when redis is unreachable,
// so a dead connection does not spin it hot.
const readRetryDelay = time.Second

// Job is one unit of background work tied to a conversation.
type Job struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	ConversationID string    `json:"conversationId"`
	Specialist     string    `json:"specialist,omitempty"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Handler processes one claimed job. A returned error triggers a retry until
// the attempt budget is exhausted, after which the job is marked failed.
type Handler func(ctx context.Context, job Job) error

// RedisJobQueue is a redis-streams backed job queue with consumer-group
// delivery, stale-claim recovery, and bounded retries. It replaces
// unsupervised fire-and-forget goroutines for title and insight jobs so
// failures are observable and concurrency is bounded.
type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	once         sync.Once
}

// Config tunes the queue. Zero values get sensible defaults.
type Config struct {
	Client     *redis.Client
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
}

// NewRedisJobQueue builds a queue on an existing redis client.
func NewRedisJobQueue(cfg Config) (*RedisJobQueue, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "advisor-jobs"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}

	return &RedisJobQueue{
		client:       cfg.Client,
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
	}, nil
}

// Enqueue appends a job to the stream and records its status.
func (q *RedisJobQueue) Enqueue(ctx context.Context, kind, conversationID, specialist string) (Job, error) {
	kind = strings.TrimSpace(kind)
	conversationID = strings.TrimSpace(conversationID)
	if kind == "" || conversationID == "" {
		return Job{}, errors.New("job kind and conversationId required")
	}
	job := Job{
		ID:             uuid.NewString(),
		Kind:           kind,
		ConversationID: conversationID,
		Specialist:     specialist,
		Status:         StatusQueued,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: jobValues(job),
	}).Err(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// GetJob loads a job's status by ID.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, false, err
	}
	if len(data) == 0 {
		return Job{}, false, nil
	}
	return decodeJob(jobID, data), true, nil
}

// Start launches worker goroutines until ctx is cancelled.
func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("create consumer group", "stream", q.stream, "err", err)
		}
	})
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				slog.Warn("read job stream", "stream", q.stream, "err", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(readRetryDelay):
				}
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	job := jobFromValues(msg.Values)
	if job.ID == "" || job.Kind == "" || job.ConversationID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, job)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, job); err == nil {
		_ = q.setStatus(ctx, job.ID, StatusDone, "")
		q.ackAndDel(ctx, msg.ID)
		return
	} else if job.Attempts >= q.maxRetries {
		slog.Error("background job failed", "kind", job.Kind, "conversation", job.ConversationID, "attempts", job.Attempts, "err", err)
		_ = q.setStatus(ctx, job.ID, StatusFailed, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	} else {
		slog.Warn("background job retrying", "kind", job.Kind, "conversation", job.ConversationID, "attempt", job.Attempts, "err", err)
		_ = q.setStatus(ctx, job.ID, StatusQueued, err.Error())
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, job)
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID string, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: jobValues(job),
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) markProcessing(ctx context.Context, job Job) (Job, error) {
	stored, ok, err := q.GetJob(ctx, job.ID)
	if err != nil {
		return Job{}, err
	}
	if ok {
		job.Attempts = stored.Attempts
		job.CreatedAt = stored.CreatedAt
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) setStatus(ctx context.Context, jobID, status, errMsg string) error {
	job, ok, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		job = Job{ID: jobID, CreatedAt: time.Now().UTC()}
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job Job) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":             job.ID,
		"kind":           job.Kind,
		"conversationId": job.ConversationID,
		"specialist":     job.Specialist,
		"status":         job.Status,
		"error":          job.ErrorMessage,
		"attempts":       strconv.Itoa(job.Attempts),
		"createdAt":      job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":      job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisJobQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func jobValues(job Job) map[string]any {
	return map[string]any{
		"job_id":          job.ID,
		"kind":            job.Kind,
		"conversation_id": job.ConversationID,
		"specialist":      job.Specialist,
	}
}

func jobFromValues(values map[string]any) Job {
	id, _ := values["job_id"].(string)
	kind, _ := values["kind"].(string)
	conversationID, _ := values["conversation_id"].(string)
	specialist, _ := values["specialist"].(string)
	return Job{
		ID:             id,
		Kind:           kind,
		ConversationID: conversationID,
		Specialist:     specialist,
	}
}

func decodeJob(jobID string, data map[string]string) Job {
	job := Job{ID: jobID}
	job.Kind = data["kind"]
	job.ConversationID = data["conversationId"]
	job.Specialist = data["specialist"]
	job.Status = data["status"]
	job.ErrorMessage = data["error"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	return job
}
