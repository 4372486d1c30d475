package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/scheduler"
)

var (
	testMember = application.Principal{UserID: "u1"}
	testAdmin  = application.Principal{UserID: "admin", IsAdmin: true}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAuthService struct {
	login      func(application.LoginParams) (application.LoginResult, error)
	logoutWith string
}

func (f *fakeAuthService) Login(ctx context.Context, params application.LoginParams) (application.LoginResult, error) {
	return f.login(params)
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	f.logoutWith = token
	return nil
}

type fakeRegistrar struct{ err error }

func (f fakeRegistrar) Register(ctx context.Context, params application.RegisterParams) (application.User, error) {
	if f.err != nil {
		return application.User{}, f.err
	}
	return application.User{ID: "new", Email: params.Email, Name: params.Name}, nil
}

type fakeBookingService struct {
	bookErr   error
	lastInput application.BookingInput
	principal application.Principal
}

func (f *fakeBookingService) BookRoom(ctx context.Context, params application.BookRoomParams) (application.Booking, error) {
	f.lastInput = params.Input
	f.principal = params.Principal
	if f.bookErr != nil {
		return application.Booking{}, f.bookErr
	}
	return application.Booking{
		ID:     "b-new",
		RoomID: params.Input.RoomID,
		UserID: params.Principal.UserID,
		Date:   scheduler.MustParseDate(params.Input.Date),
		Start:  scheduler.MustParseTimeOfDay(params.Input.StartTime),
		End:    scheduler.MustParseTimeOfDay(params.Input.EndTime),
	}, nil
}

func (f *fakeBookingService) UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	if params.BookingID != "b1" {
		return application.Booking{}, application.ErrNotFound
	}
	return application.Booking{ID: "b1"}, nil
}

func (f *fakeBookingService) CancelBooking(ctx context.Context, principal application.Principal, bookingID string) error {
	if principal.UserID != "u1" {
		return application.ErrUnauthorized
	}
	return nil
}

func (f *fakeBookingService) GetBooking(ctx context.Context, bookingID string) (application.Booking, error) {
	return application.Booking{ID: bookingID}, nil
}

func (f *fakeBookingService) ListMyBookings(ctx context.Context, principal application.Principal) ([]application.Booking, error) {
	return []application.Booking{{ID: "b1", UserID: principal.UserID}}, nil
}

type fakeRoomSchedule struct {
	query application.AvailabilityQuery
}

func (f *fakeRoomSchedule) ListBookingsByRoom(ctx context.Context, principal application.Principal, roomID string) ([]application.Booking, error) {
	if roomID != "r1" {
		return nil, application.ErrNotFound
	}
	return []application.Booking{{ID: "b1", RoomID: roomID}}, nil
}

func (f *fakeRoomSchedule) CheckAvailability(ctx context.Context, query application.AvailabilityQuery) (application.Availability, error) {
	f.query = query
	return application.Availability{
		Available: false,
		Conflicts: []scheduler.Reservation{{
			ID:     "b1",
			Kind:   scheduler.KindBooking,
			RoomID: query.RoomID,
			Interval: scheduler.Interval{
				Date:  scheduler.MustParseDate("2024-06-10"),
				Start: scheduler.NewTimeOfDay(9, 0),
				End:   scheduler.NewTimeOfDay(10, 0),
			},
		}},
	}, nil
}

type fakeRoomService struct{}

func (fakeRoomService) CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error) {
	if !params.Principal.IsAdmin {
		return application.Room{}, application.ErrUnauthorized
	}
	if strings.TrimSpace(params.Input.Name) == "" {
		return application.Room{}, &application.ValidationError{FieldErrors: map[string]string{"name": "name is required"}}
	}
	return application.Room{ID: "r-new", Name: params.Input.Name, Capacity: params.Input.Capacity}, nil
}

func (fakeRoomService) UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return application.Room{ID: params.RoomID, Name: params.Input.Name}, nil
}

func (fakeRoomService) DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error {
	return nil
}

func (fakeRoomService) ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error) {
	return []application.Room{{ID: "r1", Name: "Aspen"}}, nil
}

func (fakeRoomService) ListRoomsWithBookings(ctx context.Context, principal application.Principal) ([]application.RoomWithBookings, error) {
	return []application.RoomWithBookings{{
		Room:     application.Room{ID: "r1", Name: "Aspen"},
		Bookings: []application.Booking{{ID: "b1", RoomID: "r1"}},
	}}, nil
}

type fakeEventService struct{}

func (fakeEventService) CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error) {
	if !params.Principal.IsAdmin {
		return application.Event{}, application.ErrUnauthorized
	}
	return application.Event{ID: "e-new", Title: params.Input.Title, RoomID: params.Input.RoomID, CreatedBy: params.Principal.UserID}, nil
}

func (fakeEventService) UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error) {
	return application.Event{ID: params.EventID}, nil
}

func (fakeEventService) DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error {
	return nil
}

func (fakeEventService) GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (fakeEventService) ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error) {
	if params.From == "bad" {
		return nil, &application.ValidationError{FieldErrors: map[string]string{"from": "from must be YYYY-MM-DD"}}
	}
	return []application.Event{{ID: "e1", Title: "All hands"}}, nil
}

type routerFixture struct {
	handler  http.Handler
	auth     *fakeAuthService
	bookings *fakeBookingService
	schedule *fakeRoomSchedule
}

func newRouterFixture(principal application.Principal) routerFixture {
	logger := discardLogger()
	f := routerFixture{
		auth: &fakeAuthService{login: func(p application.LoginParams) (application.LoginResult, error) {
			if p.Password != "secret-password" {
				return application.LoginResult{}, application.ErrInvalidCredentials
			}
			return application.LoginResult{
				User:    application.User{ID: "u1", Email: p.Email},
				Session: application.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
				Token:   "signed-token",
			}, nil
		}},
		bookings: &fakeBookingService{},
		schedule: &fakeRoomSchedule{},
	}
	f.handler = NewRouter(RouterConfig{
		Auth:           NewAuthHandler(f.auth, fakeRegistrar{}, false, logger),
		Users:          NewUserHandler(nil, logger),
		Rooms:          NewRoomHandler(fakeRoomService{}, f.schedule, logger),
		Bookings:       NewBookingHandler(f.bookings, logger),
		Events:         NewEventHandler(fakeEventService{}, logger),
		RequireSession: RequireSession(fakeSessionValidator{principal: principal}, logger),
		Middleware:     []func(http.Handler) http.Handler{RequestLogger(logger)},
	})
	return f
}

func (f routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and body", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"u1@example.com","password":"secret-password"}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body loginResponse
		decodeBody(t, rec, &body)
		if body.Token != "signed-token" || body.User.ID != "u1" {
			t.Fatalf("unexpected login body: %+v", body)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].Value != "signed-token" || !cookies[0].HttpOnly {
			t.Fatalf("expected session cookie, got %+v", cookies)
		}
	})

	t.Run("login rejects bad credentials with 401", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"u1@example.com","password":"nope"}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("register does not need a session", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"new@example.com","name":"New","password":"password1"}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("logout revokes the presented token and clears the cookie", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		rec := f.do(t, http.MethodPost, "/auth/logout", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if f.auth.logoutWith != "valid-token" {
			t.Fatalf("expected token to be revoked, got %q", f.auth.logoutWith)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected cleared cookie, got %+v", cookies)
		}
	})

	t.Run("malformed bodies are rejected", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBookingHandlers(t *testing.T) {
	t.Parallel()

	t.Run("creates bookings for the caller", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		rec := f.do(t, http.MethodPost, "/bookings", `{"room_id":"r1","date":"2024-06-10","start_time":"09:00","end_time":"10:00"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var body bookingResponse
		decodeBody(t, rec, &body)
		if body.Booking.StartTime != "09:00" || body.Booking.UserID != "u1" {
			t.Fatalf("unexpected booking: %+v", body.Booking)
		}
		if f.bookings.principal != testMember {
			t.Fatalf("expected principal from session, got %+v", f.bookings.principal)
		}
	})

	t.Run("room conflicts map to 409 with the conflicting reservation", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		f.bookings.bookErr = &application.RoomConflictError{
			RoomID:    "r1",
			Requested: scheduler.Interval{Date: scheduler.MustParseDate("2024-06-10"), Start: scheduler.NewTimeOfDay(9, 30), End: scheduler.NewTimeOfDay(10, 30)},
			Conflicting: scheduler.Reservation{
				ID: "b1", Kind: scheduler.KindBooking, RoomID: "r1",
				Interval: scheduler.Interval{Date: scheduler.MustParseDate("2024-06-10"), Start: scheduler.NewTimeOfDay(9, 0), End: scheduler.NewTimeOfDay(10, 0)},
			},
		}
		rec := f.do(t, http.MethodPost, "/bookings", `{"room_id":"r1","date":"2024-06-10","start_time":"09:30","end_time":"10:30"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Message != application.RoomConflictMessage || body.ErrorCode != "ROOM_CONFLICT" {
			t.Fatalf("unexpected error body: %+v", body)
		}
		if body.Conflict == nil || body.Conflict.ID != "b1" || body.Conflict.StartTime != "09:00" {
			t.Fatalf("expected conflicting booking b1, got %+v", body.Conflict)
		}
	})

	t.Run("validation errors map to 422 with field details", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		f.bookings.bookErr = &application.ValidationError{FieldErrors: map[string]string{"end_time": "end time must be after start time"}}
		rec := f.do(t, http.MethodPost, "/bookings", `{"room_id":"r1","date":"2024-06-10","start_time":"10:00","end_time":"09:00"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if _, ok := body.Errors["end_time"]; !ok {
			t.Fatalf("expected end_time detail, got %+v", body.Errors)
		}
	})

	t.Run("sentinel errors map to status codes", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(application.Principal{UserID: "u2"})
		if rec := f.do(t, http.MethodDelete, "/bookings/b1", ""); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if rec := f.do(t, http.MethodPut, "/bookings/missing", `{"date":"2024-06-10","start_time":"09:00","end_time":"10:00"}`); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("lists the caller's bookings", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		rec := f.do(t, http.MethodGet, "/bookings", "")
		var body listBookingsResponse
		decodeBody(t, rec, &body)
		if rec.Code != http.StatusOK || len(body.Bookings) != 1 || body.Bookings[0].UserID != "u1" {
			t.Fatalf("unexpected response %d: %+v", rec.Code, body)
		}
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("allow non-admins to list rooms", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		rec := f.do(t, http.MethodGet, "/rooms", "")
		var body listRoomsResponse
		decodeBody(t, rec, &body)
		if rec.Code != http.StatusOK || len(body.Rooms) != 1 {
			t.Fatalf("unexpected response %d: %+v", rec.Code, body)
		}
	})

	t.Run("require admin role for mutations", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		if rec := f.do(t, http.MethodPost, "/rooms", `{"name":"Birch"}`); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		admin := newRouterFixture(testAdmin)
		if rec := admin.do(t, http.MethodPost, "/rooms", `{"name":"Birch","capacity":6}`); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if rec := admin.do(t, http.MethodPost, "/rooms", `{"name":" "}`); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("availability passes query parameters through", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		rec := f.do(t, http.MethodGet, "/rooms/r1/availability?date=2024-06-10&start=09:30&end=10:30&exclude=b9&kind=event", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		q := f.schedule.query
		if q.RoomID != "r1" || q.Date != "2024-06-10" || q.StartTime != "09:30" || q.EndTime != "10:30" || q.ExcludeID != "b9" || q.Kind != scheduler.KindEvent {
			t.Fatalf("unexpected query: %+v", q)
		}
		var body availabilityResponse
		decodeBody(t, rec, &body)
		if body.Available || len(body.Conflicts) != 1 || body.Conflicts[0].Kind != "booking" {
			t.Fatalf("unexpected availability: %+v", body)
		}
	})

	t.Run("room bookings and the combined listing", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		if rec := f.do(t, http.MethodGet, "/rooms/missing/bookings", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		rec := f.do(t, http.MethodGet, "/rooms-with-bookings", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bookings":[{"id":"b1"`) {
			t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"name":"Aspen"`) {
			t.Fatalf("expected room fields inline, got %s", rec.Body.String())
		}
	})

	t.Run("unsupported methods are rejected", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testAdmin)
		if rec := f.do(t, http.MethodPatch, "/rooms/r1", `{}`); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestEventHandlers(t *testing.T) {
	t.Parallel()

	t.Run("room-less events serialize a null room", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testAdmin)
		rec := f.do(t, http.MethodPost, "/events", `{"title":"Offsite","date":"2024-06-10","start_time":"09:00","end_time":"17:00"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"room_id":null`) || !strings.Contains(rec.Body.String(), `"attendee_ids":[]`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("members cannot create events", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		if rec := f.do(t, http.MethodPost, "/events", `{"title":"Party"}`); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("list validates the date range", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(testMember)
		if rec := f.do(t, http.MethodGet, "/events?from=bad", ""); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if rec := f.do(t, http.MethodGet, "/events/missing", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestResponderMapsUnexpectedErrors(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newResponder(discardLogger()).handleServiceError(context.Background(), rec, errors.New("disk on fire"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("internal error details leaked: %s", rec.Body.String())
	}
}
