package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

type deadLetterStore interface {
	List(ctx context.Context, eventType enums.OutboxEventType, limit int) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// deadLetterCommand is the operator side of the DLQ: listing entries and
// handing one back to the publisher.
type deadLetterCommand struct {
	List      bool
	EventType string
	Limit     int
	Requeue   string
}

func (c deadLetterCommand) requested() bool {
	return c.List || c.Requeue != ""
}

type deadLetterLine struct {
	EventID      uuid.UUID                  `json:"event_id"`
	EventType    enums.OutboxEventType      `json:"event_type"`
	AggregateID  uuid.UUID                  `json:"aggregate_id"`
	Reason       enums.OutboxDLQErrorReason `json:"reason"`
	Error        string                     `json:"error,omitempty"`
	AttemptCount int                        `json:"attempt_count"`
	FailedAt     string                     `json:"failed_at"`
}

func (c deadLetterCommand) run(ctx context.Context, store deadLetterStore, out io.Writer) error {
	if c.Requeue != "" {
		eventID, err := uuid.Parse(c.Requeue)
		if err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		entry, err := store.FindByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("event %s is not in the dead letter table", eventID)
		}
		if err := store.Requeue(ctx, eventID); err != nil {
			return fmt.Errorf("requeue %s: %w", eventID, err)
		}
		_, err = fmt.Fprintf(out, "requeued %s (%s, %s)\n", eventID, entry.EventType, entry.ErrorReason)
		return err
	}

	var eventType enums.OutboxEventType
	if c.EventType != "" {
		parsed, err := enums.ParseOutboxEventType(c.EventType)
		if err != nil {
			return err
		}
		eventType = parsed
	}
	entries, err := store.List(ctx, eventType, c.Limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, entry := range entries {
		line := deadLetterLine{
			EventID:      entry.EventID,
			EventType:    entry.EventType,
			AggregateID:  entry.AggregateID,
			Reason:       entry.ErrorReason,
			AttemptCount: entry.AttemptCount,
			FailedAt:     entry.FailedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if entry.ErrorMessage != nil {
			line.Error = *entry.ErrorMessage
		}
		if err := enc.Encode(line); err != nil {
			return errors.Join(fmt.Errorf("write dead letter %s", entry.EventID), err)
		}
	}
	return nil
}
