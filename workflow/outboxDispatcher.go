package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher publishes committed outbox_events rows through an EventPublisher.
// Several dispatchers may share a table: rows are claimed with SKIP LOCKED and a
// PROCESSING row whose lock is older than LockTimeout is reclaimed.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Publisher    config.EventPublisher
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, publisher config.EventPublisher, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Publisher:      publisher,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.dispatchOnce(ctx); err != nil && ctx.Err() == nil {
			config.LogError(d.Logger, "OutboxDispatcher", "Run", "dispatch batch", d.DispatcherID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) claimQuery(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return tx
}

// dispatchOnce claims one batch, publishes it and returns how many rows were sent.
func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) (int, error) {
	if d.DB == nil || d.Publisher == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.OutboxEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := d.claimQuery(tx).
			Where(`
				(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR
				(publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize)
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			d.logDead(rec, fmt.Errorf("max publish attempts exceeded (%d)", d.MaxAttempts))
			continue
		}
		body, err := json.Marshal(rec.Envelope())
		if err != nil {
			d.markPublishFailed(ctx, rec, err)
			continue
		}
		msgId, err := d.Publisher.Publish(ctx, strconv.Itoa(rec.AggregateId), body)
		if err != nil {
			d.markPublishFailed(ctx, rec, err)
			continue
		}
		d.markPublishSent(ctx, rec.ID, msgId)
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordId int, msgId string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusSent,
			"published_at":    &now,
			"message_id":      &msgId,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
	if err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishSent", "update outbox row", recordId, err)
	}
}

// backoff doubles InitialBackoff per previous attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	wait := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if d.MaxBackoff > 0 && wait >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return wait
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OutboxEvent, cause error) {
	msg := cause.Error()
	updates := map[string]interface{}{
		"last_publish_error": &msg,
		"locked_at":          nil,
		"locked_by":          nil,
	}
	dead := d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts
	var next time.Time
	if dead {
		updates["publish_status"] = models.OutboxPublishStatusDead
		updates["next_attempt_at"] = nil
	} else {
		next = time.Now().UTC().Add(d.backoff(rec.PublishAttempts))
		updates["publish_status"] = models.OutboxPublishStatusFailed
		updates["next_attempt_at"] = &next
	}
	if err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishFailed", "update outbox row", rec.ID, err)
	}

	if dead {
		d.logDead(rec, cause)
		return
	}
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"record_id":       rec.ID,
			"event_type":      rec.EventType,
			"correlation_id":  rec.CorrelationId,
			"attempt":         rec.PublishAttempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).WithError(cause).Error("outbox publish failed")
	}
}

func (d *OutboxDispatcher) logDead(rec models.OutboxEvent, cause error) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":          "OutboxDispatcher",
		"record_id":      rec.ID,
		"event_type":     rec.EventType,
		"correlation_id": rec.CorrelationId,
		"attempt":        rec.PublishAttempts,
	}).WithError(cause).Error("outbox event moved to DEAD")
}
