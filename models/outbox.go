package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/almacen/inventory_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxEvent is written in the same transaction as the change it announces and
// published after commit by workflow.OutboxDispatcher.
type OutboxEvent struct {
	ID               int        `gorm:"primaryKey" json:"id"`
	EventType        string     `gorm:"size:100;not null;index" json:"event_type"`
	AggregateId      int        `gorm:"index" json:"aggregate_id"`
	Payload          string     `gorm:"type:text" json:"payload"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	PublishedAt      *time.Time `json:"published_at"`
	MessageId        *string    `gorm:"size:255" json:"message_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// Envelope is the published message body.
type Envelope struct {
	ID            int             `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateId   int             `json:"aggregate_id"`
	CorrelationId string          `json:"correlation_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

func (e OutboxEvent) Envelope() Envelope {
	data := json.RawMessage(e.Payload)
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Envelope{
		ID:            e.ID,
		EventType:     e.EventType,
		AggregateId:   e.AggregateId,
		CorrelationId: e.CorrelationId,
		OccurredAt:    e.CreatedAt,
		Data:          data,
	}
}

func enqueueEvent(ctx context.Context, tx *gorm.DB, eventType string, aggregateId int, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxEvent{
		EventType:     eventType,
		AggregateId:   aggregateId,
		Payload:       string(b),
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
