package scheduler

// ReservationKind distinguishes the two things that can occupy a room.
type ReservationKind string

const (
	// KindBooking is a user's room booking.
	KindBooking ReservationKind = "booking"
	// KindEvent is an administrator-managed calendar event.
	KindEvent ReservationKind = "event"
)

// Valid reports whether k is a known kind.
func (k ReservationKind) Valid() bool {
	return k == KindBooking || k == KindEvent
}

// Interval is a half-open [Start, End) window on a single date.
type Interval struct {
	Date  Date
	Start TimeOfDay
	End   TimeOfDay
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool {
	return i.Start < i.End
}

// Reservation is a booking or an event occupying a room.
type Reservation struct {
	ID     string
	Kind   ReservationKind
	RoomID string
	Interval
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// IsRoomAvailable reports whether the candidate window on date collides with
// none of the reservations. Reservations on other dates and the one whose ID
// equals excludeID are ignored; an empty excludeID excludes nothing.
func IsRoomAvailable(reservations []Reservation, date Date, start, end TimeOfDay, excludeID string) bool {
	_, found := FirstConflict(reservations, date, start, end, excludeID)
	return !found
}

// FirstConflict returns the first reservation, in snapshot order, that
// collides with the candidate window.
func FirstConflict(reservations []Reservation, date Date, start, end TimeOfDay, excludeID string) (Reservation, bool) {
	for _, r := range reservations {
		if conflicts(r, date, start, end, excludeID) {
			return r, true
		}
	}
	return Reservation{}, false
}

// Conflicts returns every colliding reservation in snapshot order.
func Conflicts(reservations []Reservation, date Date, start, end TimeOfDay, excludeID string) []Reservation {
	var out []Reservation
	for _, r := range reservations {
		if conflicts(r, date, start, end, excludeID) {
			out = append(out, r)
		}
	}
	return out
}

func conflicts(r Reservation, date Date, start, end TimeOfDay, excludeID string) bool {
	if r.Date != date {
		return false
	}
	if excludeID != "" && r.ID == excludeID {
		return false
	}
	return Overlaps(start, end, r.Start, r.End)
}
