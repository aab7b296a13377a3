// Package http exposes the parking marketplace as a JSON API.
//
// The router exposes the following endpoints:
//   - POST /signup, POST /login, POST /logout: account registration and
//     session management. Login returns {"token","expires_at","user"} and also
//     surfaces the token via the `X-Session-Token` header and a `session_token`
//     cookie. Logout revokes the token from the Authorization header or cookie.
//   - GET /spaces, GET /spaces/{id}: public listing of available spaces and a
//     single listing. Both are served without a session.
//   - POST /spaces, PUT /spaces/{id}, DELETE /spaces/{id},
//     POST /spaces/{id}/availability, POST /spaces/{id}/images, GET /host/spaces:
//     owner managed listings exchanging the `spaceDTO` payload. Prices are
//     decimal strings such as "4.50".
//   - POST /spaces/{id}/bookings: requests a booking. The response carries the
//     pending booking plus advisory `warnings` for approved bookings it overlaps.
//   - GET /spaces/{id}/conflicts?start=&end=&duration_type=: read-only conflict preview.
//   - GET /bookings/{id}, POST /bookings/{id}/approve|decline|cancel: booking
//     summary and lifecycle transitions. A blocked approval answers 409 with the
//     conflicting bookings under `conflicts`.
//   - GET /my-bookings, GET /host/bookings: renter and owner booking views.
//
// Timestamps are RFC 3339 in UTC. Errors are {"error_code","message","errors"}
// where error_code is the upper-cased application error kind.
package http
