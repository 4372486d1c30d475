package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/logging"
)

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookieToken    *http.Cookie
			headerToken    string
			lookupError    error
			expectedStatus int
			expectedCode   string
		}{
			{
				name:           "missing credentials",
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_REQUIRED",
			},
			{
				name:           "non-bearer header",
				headerToken:    "Basic dXNlcjpwYXNz",
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_REQUIRED",
			},
			{
				name:           "invalid bearer token",
				headerToken:    "Bearer malformed",
				lookupError:    application.ErrInvalidCredentials,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_INVALID_SESSION",
			},
			{
				name:           "revoked session",
				cookieToken:    &http.Cookie{Name: sessionCookieName, Value: "revoked-token"},
				lookupError:    application.ErrSessionRevoked,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_EXPIRED",
			},
			{
				name:           "expired session",
				headerToken:    "bearer expired-token",
				lookupError:    application.ErrSessionExpired,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_EXPIRED",
			},
			{
				name:           "store failure",
				headerToken:    "Bearer transient",
				lookupError:    errors.New("database is locked"),
				expectedStatus: http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}
				recorder := httptest.NewRecorder()

				handler := RequireSession(fakeSessionValidator{err: tc.lookupError}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.expectedStatus {
					t.Fatalf("expected status %d, got %d", tc.expectedStatus, recorder.Code)
				}
				if tc.expectedCode != "" {
					var body errorResponse
					decodeBody(t, recorder, &body)
					if body.ErrorCode != tc.expectedCode {
						t.Fatalf("expected error code %s, got %+v", tc.expectedCode, body)
					}
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "employee-123", IsAdmin: true}
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "valid-token"})
		recorder := httptest.NewRecorder()

		var captured application.Principal
		handler := RequireSession(fakeSessionValidator{principal: principal}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			captured = p
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if captured != principal {
			t.Fatalf("expected %+v, got %+v", principal, captured)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("generates a request id and exposes a logger", func(t *testing.T) {
		t.Parallel()

		var sawLogger bool
		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawLogger = logging.FromContext(r.Context()) != nil
			w.WriteHeader(http.StatusTeapot)
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if !sawLogger {
			t.Fatalf("expected request logger in context")
		}
		if rec.Code != http.StatusTeapot {
			t.Fatalf("expected status to pass through, got %d", rec.Code)
		}
		if len(rec.Header().Get(RequestIDHeader)) != 36 {
			t.Fatalf("expected generated uuid, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("reuses an incoming request id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("expected req-42, got %q", got)
		}
	})
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}
