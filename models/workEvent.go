package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
)

type WorkEventType string

const (
	WorkEventTypeCheckIn  WorkEventType = "check_in"
	WorkEventTypeCheckOut WorkEventType = "check_out"
)

// WorkEvent is an immutable fact produced by the check-in/check-out surface.
// Rows are never updated or deleted; reconciliation reads them per period.
// Ordering within a worker's timeline is by event_time, ties broken by id
// (insertion order).
type WorkEvent struct {
	ID        int           `gorm:"primary_key" json:"id"`
	WorkerId  int           `gorm:"index:idx_work_events_worker_time;not null" json:"worker_id" binding:"required"`
	EventType WorkEventType `gorm:"type:enum('check_in','check_out');not null" json:"event_type" binding:"required"`
	EventTime time.Time     `gorm:"index:idx_work_events_worker_time;not null" json:"event_time" binding:"required"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type NewWorkEvent struct {
	EventType string     `json:"event_type" binding:"required" validate:"oneof=check_in check_out"`
	EventTime *time.Time `json:"event_time"`
}

// CreateWorkEvent records a check-in/check-out for the given worker. A nil
// event time means "now" (the common path for the mobile clock UI).
func CreateWorkEvent(ctx context.Context, workerId int, input NewWorkEvent) (WorkEvent, error) {
	var event WorkEvent

	if err := utils.ValidateStruct(input); err != nil {
		return event, err
	}
	if workerId <= 0 {
		return event, fmt.Errorf("%w: worker id is required", utils.ErrorInvalidInput)
	}

	eventTime := utils.DereferencePtr(input.EventTime, time.Now()).UTC()

	event = WorkEvent{
		WorkerId:  workerId,
		EventType: WorkEventType(input.EventType),
		EventTime: eventTime,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return event, fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return event, nil
}

// ListWorkEvents returns one worker's events inside [from, to], ordered by
// event_time with id as the stable tiebreaker. The period filter lives here,
// not in the reconciler.
func ListWorkEvents(ctx context.Context, workerId int, from time.Time, to time.Time) ([]WorkEvent, error) {
	var events []WorkEvent
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("worker_id = ? AND event_time >= ? AND event_time <= ?", workerId, from, to).
		Order("event_time ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
