package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/office-calendar/internal/notify"
	"github.com/example/office-calendar/internal/scheduler"
	"github.com/example/office-calendar/internal/testfixtures"
)

// memoryCalendar is an in-memory room, booking and event store.
type memoryCalendar struct {
	mu       sync.Mutex
	rooms    map[string]Room
	bookings map[string]Booking
	events   map[string]Event

	// writeDelay widens the gap between reading a snapshot and writing.
	writeDelay time.Duration
	writes     int
}

func newMemoryCalendar(roomIDs ...string) *memoryCalendar {
	c := &memoryCalendar{
		rooms:    make(map[string]Room),
		bookings: make(map[string]Booking),
		events:   make(map[string]Event),
	}
	for _, id := range roomIDs {
		c.rooms[id] = Room{ID: id, Name: "Room " + id}
	}
	return c
}

func (c *memoryCalendar) GetRoom(ctx context.Context, id string) (Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (c *memoryCalendar) write(apply func()) {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	apply()
}

func (c *memoryCalendar) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	c.write(func() { c.bookings[booking.ID] = booking })
	return booking, nil
}

func (c *memoryCalendar) UpdateBooking(ctx context.Context, booking Booking) (Booking, error) {
	c.mu.Lock()
	_, ok := c.bookings[booking.ID]
	c.mu.Unlock()
	if !ok {
		return Booking{}, ErrNotFound
	}
	c.write(func() { c.bookings[booking.ID] = booking })
	return booking, nil
}

func (c *memoryCalendar) GetBooking(ctx context.Context, id string) (Booking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (c *memoryCalendar) DeleteBooking(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(c.bookings, id)
	c.writes++
	return nil
}

func (c *memoryCalendar) filterBookings(keep func(Booking) bool) []Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []Booking{}
	for _, b := range c.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *memoryCalendar) ListBookingsByRoom(ctx context.Context, roomID string) ([]Booking, error) {
	return c.filterBookings(func(b Booking) bool { return b.RoomID == roomID }), nil
}

func (c *memoryCalendar) ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error) {
	return c.filterBookings(func(b Booking) bool { return b.UserID == userID }), nil
}

func (c *memoryCalendar) CreateEvent(ctx context.Context, event Event) (Event, error) {
	c.write(func() { c.events[event.ID] = event })
	return event, nil
}

func (c *memoryCalendar) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	c.mu.Lock()
	_, ok := c.events[event.ID]
	c.mu.Unlock()
	if !ok {
		return Event{}, ErrNotFound
	}
	c.write(func() { c.events[event.ID] = event })
	return event, nil
}

func (c *memoryCalendar) GetEvent(ctx context.Context, id string) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (c *memoryCalendar) DeleteEvent(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return ErrNotFound
	}
	delete(c.events, id)
	return nil
}

func (c *memoryCalendar) ListEvents(ctx context.Context, from, to scheduler.Date) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []Event{}
	for _, e := range c.events {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(e.Date) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCalendar) ListRoomBookings(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	for _, b := range c.filterBookings(func(b Booking) bool { return b.RoomID == roomID && b.Date == date }) {
		out = append(out, b.Reservation())
	}
	return out, nil
}

func (c *memoryCalendar) ListRoomEvents(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []scheduler.Reservation
	for _, e := range c.events {
		if r, ok := e.Reservation(); ok && r.RoomID == roomID && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *memoryCalendar) addBooking(id, roomID, userID, date, start, end string) Booking {
	b := Booking{
		ID:     id,
		RoomID: roomID,
		UserID: userID,
		Date:   scheduler.MustParseDate(date),
		Start:  scheduler.MustParseTimeOfDay(start),
		End:    scheduler.MustParseTimeOfDay(end),
	}
	c.mu.Lock()
	c.bookings[id] = b
	c.mu.Unlock()
	return b
}

func (c *memoryCalendar) addEvent(id, roomID, date, start, end string) Event {
	e := Event{
		ID:        id,
		Title:     "Event " + id,
		Date:      scheduler.MustParseDate(date),
		Start:     scheduler.MustParseTimeOfDay(start),
		End:       scheduler.MustParseTimeOfDay(end),
		CreatedBy: "admin",
	}
	if roomID != "" {
		e.RoomID = &roomID
	}
	c.mu.Lock()
	c.events[id] = e
	c.mu.Unlock()
	return e
}

func (c *memoryCalendar) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type publisherStub struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (p *publisherStub) Publish(ctx context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *publisherStub) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.Type
	}
	return out
}

func sequenceIDs(prefix string) func() string {
	return testfixtures.NewIDGenerator(prefix).NextFunc()
}
