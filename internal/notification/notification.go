package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const queueKey = "coursepay:notifications:enrollment"

// EnrollmentJob is the payload a delivery worker picks up to email the
// buyer after entitlement lands. JobID lets the worker dedup its own
// retries.
type EnrollmentJob struct {
	JobID        uuid.UUID    `json:"job_id"`
	UserID       snowflake.ID `json:"user_id"`
	OrderID      snowflake.ID `json:"order_id"`
	CourseTitles []string     `json:"course_titles"`
	AmountCents  int64        `json:"amount_cents"`
	EnqueuedAt   time.Time    `json:"enqueued_at"`
}

type Publisher interface {
	EnrollmentCompleted(ctx context.Context, job EnrollmentJob) error
}

// redisPublisher pushes jobs onto a Redis list. Failures are logged and
// swallowed: notification delivery never gates entitlement.
type redisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewPublisher(client *redis.Client, log *zap.Logger) Publisher {
	return &redisPublisher{client: client, log: log.Named("notification")}
}

func (p *redisPublisher) EnrollmentCompleted(ctx context.Context, job EnrollmentJob) error {
	if p.client == nil {
		return nil
	}
	if job.JobID == uuid.Nil {
		job.JobID = uuid.New()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := p.client.LPush(ctx, queueKey, raw).Err(); err != nil {
		p.log.Warn("enqueue failed",
			zap.Int64("order_id", int64(job.OrderID)),
			zap.Error(err),
		)
		return nil
	}
	p.log.Info("enrollment notification enqueued",
		zap.Int64("order_id", int64(job.OrderID)),
		zap.Int("courses", len(job.CourseTitles)),
	)
	return nil
}
