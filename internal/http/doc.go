// Package http exposes the calendar over JSON HTTP.
//
// Routes:
//   - POST /auth/register, POST /auth/login, POST /auth/logout. Login returns
//     {"token","expires_at","user"} and sets a `session_token` cookie.
//   - GET /users: the directory used to pick event attendees.
//   - GET|POST /rooms, PUT|DELETE /rooms/{id}: room catalog. Mutations are
//     admin only.
//   - GET /rooms/{id}/bookings and GET /rooms-with-bookings.
//   - GET /rooms/{id}/availability?date=&start=&end=&exclude=&kind=: a dry run
//     of the room conflict check.
//   - GET|POST /bookings, GET|PUT|DELETE /bookings/{id}. GET /bookings lists
//     the caller's own bookings.
//   - GET|POST /events, GET|PUT|DELETE /events/{id}. Mutations are admin only.
//
// Every route except register and login needs a bearer token or the session
// cookie. A room conflict is answered with 409 and the conflicting reservation.
package http
