package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/office-calendar/internal/lock"
	"github.com/example/office-calendar/internal/scheduler"
)

// ReservationSnapshotProvider loads the reservations that occupy a room on a date.
type ReservationSnapshotProvider interface {
	ListRoomBookings(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error)
	ListRoomEvents(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error)
}

// GuardRequest describes the room slot a mutation wants to occupy.
// ExcludeID is the id of the reservation being edited, if any.
type GuardRequest struct {
	Kind      scheduler.ReservationKind
	RoomID    string
	Date      scheduler.Date
	Start     scheduler.TimeOfDay
	End       scheduler.TimeOfDay
	ExcludeID string
}

func (r GuardRequest) interval() scheduler.Interval {
	return scheduler.Interval{Date: r.Date, Start: r.Start, End: r.End}
}

// ConflictPolicy rejects room mutations that would overlap an existing
// reservation. The check and the write run under a per-room, per-date lock.
//
// Bookings are checked against other bookings only, while events are checked
// against bookings and events. Setting uniform makes bookings check events too.
type ConflictPolicy struct {
	snapshots ReservationSnapshotProvider
	locker    lock.Locker
	uniform   bool
	logger    *slog.Logger
}

// NewConflictPolicy constructs a ConflictPolicy. A nil locker falls back to
// an in-process lock.
func NewConflictPolicy(snapshots ReservationSnapshotProvider, locker lock.Locker, uniform bool, logger *slog.Logger) *ConflictPolicy {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &ConflictPolicy{snapshots: snapshots, locker: locker, uniform: uniform, logger: defaultLogger(logger)}
}

func (p *ConflictPolicy) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, p.logger, "ConflictPolicy", operation, attrs...)
}

// Guard runs commit only when req does not overlap an existing reservation.
// A request without a room skips the check. On overlap the returned error is
// a *RoomConflictError and commit is never called.
func (p *ConflictPolicy) Guard(ctx context.Context, req GuardRequest, commit func(ctx context.Context) error) (err error) {
	if p == nil {
		return fmt.Errorf("ConflictPolicy is nil")
	}
	if vErr := validateSlot(req.Start, req.End); vErr.HasErrors() {
		return vErr
	}
	if req.RoomID == "" {
		return commit(ctx)
	}

	logger := p.loggerWith(ctx, "Guard",
		"kind", string(req.Kind),
		"room_id", req.RoomID,
		"date", req.Date.String(),
		"start", req.Start.String(),
		"end", req.End.String(),
	)

	var release func()
	release, err = p.locker.Acquire(ctx, lockKey(req.RoomID, req.Date))
	if err != nil {
		err = fmt.Errorf("lock room %s: %w", req.RoomID, err)
		logger.ErrorContext(ctx, "failed to lock room", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	defer release()

	var snapshot []scheduler.Reservation
	snapshot, err = p.snapshot(ctx, req)
	if err != nil {
		return err
	}

	if conflict, found := scheduler.FirstConflict(snapshot, req.Date, req.Start, req.End, req.ExcludeID); found {
		err = &RoomConflictError{RoomID: req.RoomID, Requested: req.interval(), Conflicting: conflict}
		logger.With(
			"conflict_id", conflict.ID,
			"conflict_kind", string(conflict.Kind),
		).WarnContext(ctx, "room conflict", "error_kind", ErrorKind(err))
		return err
	}

	return commit(ctx)
}

// Check lists every reservation req would overlap without taking the lock or
// writing anything.
func (p *ConflictPolicy) Check(ctx context.Context, req GuardRequest) ([]scheduler.Reservation, error) {
	if p == nil {
		return nil, fmt.Errorf("ConflictPolicy is nil")
	}
	if vErr := validateSlot(req.Start, req.End); vErr.HasErrors() {
		return nil, vErr
	}
	if req.RoomID == "" {
		return nil, nil
	}
	snapshot, err := p.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	return scheduler.Conflicts(snapshot, req.Date, req.Start, req.End, req.ExcludeID), nil
}

func (p *ConflictPolicy) snapshot(ctx context.Context, req GuardRequest) ([]scheduler.Reservation, error) {
	if p.snapshots == nil {
		return nil, nil
	}
	bookings, err := p.snapshots.ListRoomBookings(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("load bookings for room %s: %w", req.RoomID, err)
	}
	if req.Kind != scheduler.KindEvent && !p.uniform {
		return bookings, nil
	}
	events, err := p.snapshots.ListRoomEvents(ctx, req.RoomID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("load events for room %s: %w", req.RoomID, err)
	}
	return append(bookings, events...), nil
}

func validateSlot(start, end scheduler.TimeOfDay) *ValidationError {
	vErr := &ValidationError{}
	if start >= end {
		vErr.add("end_time", "end time must be after start time")
	}
	return vErr
}

func lockKey(roomID string, date scheduler.Date) string {
	return roomID + "|" + date.String()
}
