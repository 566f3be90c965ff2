// Package types holds the domain types shared by every whiteboard backend
// package: boards, teams, elements, sessions, the push payloads exchanged
// with clients, the error taxonomy and the [Logger] interface.
//
// # Errors
//
// Store and service packages never leak AWS error types to callers. They
// wrap one of the sentinel errors defined here instead, so callers can use
// [errors.Is] or [KindOf]:
//
//   - [ErrNotFound]       board, team, member or session absent
//   - [ErrInvalidInput]   malformed element, oversized name, element limit
//   - [ErrInvalidState]   operating on a DELETED board
//   - [ErrConflict]       create-if-absent violated
//   - [ErrInvalidSession] relay message from an unknown connection
//   - [ErrTransient]      retryable store failure that exhausted its retries
package types
