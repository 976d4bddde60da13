// Package http provides HTTP handlers and middleware for the reservation API.
//
// The router exposes the following endpoints:
//   - POST /auth/sign-up, POST /auth/sign-in: create an account or open a
//     session. Response: {"token","expires_at","user":{...}} with the token also
//     surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - POST /auth/sign-out: revokes the current session token extracted from the
//     Authorization header or session cookie and clears the cookie.
//   - POST /auth/password-reset, POST /auth/password-reset/confirm: dispatch a
//     signed reset token and exchange it for a new password.
//   - GET /auth/me: the profile behind the current session, with the admin flag.
//   - GET /rooms: the bookable rooms.
//   - GET /reservations, POST /reservations, GET/PUT/DELETE /reservations/{id}:
//     reservation endpoints exchanging the `reservationDTO` payload defined in
//     reservation_handler.go. Listing accepts `date`, `room`, `requester`,
//     `mine` and `sort` query parameters.
//   - GET /reservations/export: the filtered listing as a PDF download.
//   - GET /reservations/stream: server-sent events carrying every snapshot.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth. Error messages are pt-BR.
package http
