package marking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classroom/internal/docstore"
	"classroom/internal/queue"
)

// QueuePublisher sends score rows to the worker through a queue.
type QueuePublisher struct {
	Q queue.Queue
}

func (p QueuePublisher) PublishScore(ctx context.Context, s ScorePayload) error {
	msg, err := queue.NewMessage(queue.TypeScore, s)
	if err != nil {
		return err
	}
	return p.Q.Publish(ctx, msg)
}

// Mirror drains score messages into the scores collection until ctx ends or the
// queue closes. Other message types are skipped.
func Mirror(ctx context.Context, q queue.Queue, db docstore.Store, now func() time.Time, log *zap.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("marking.Mirror: %w", err)
	}
	for msg := range msgs {
		if msg.Type != queue.TypeScore {
			log.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}
		var p ScorePayload
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			log.Warn("bad score message", zap.Error(err))
			continue
		}
		if err := StoreScore(ctx, db, p, now()); err != nil {
			log.Error("score mirror failed", zap.String("student", p.StudentCode), zap.Error(err))
			continue
		}
		log.Info("score mirrored", zap.String("student", p.StudentCode), zap.String("assignment", p.Assignment))
	}
	return nil
}
