// Package service holds the reservation workflows that sit between the HTTP
// handlers and the repositories: policy loading, locked validation, the
// lifecycle transitions and the background sweeper.
package service

import "errors"

var (
	// ErrUserBanned is returned when a banned user tries to reserve.
	ErrUserBanned = errors.New("user is banned")
	// ErrNotOwner is returned when a patron touches someone else's reservation.
	ErrNotOwner = errors.New("reservation belongs to another user")
	// ErrAlreadyStarted is returned when cancelling a reservation that has begun.
	ErrAlreadyStarted = errors.New("reservation has already started")
	// ErrNotStarted is returned for in-session actions before the reservation
	// begins or after it ends.
	ErrNotStarted = errors.New("reservation is not in progress")
	// ErrInvalidState covers transitions that do not apply to the current
	// reservation state, e.g. returning without having left.
	ErrInvalidState = errors.New("invalid reservation state")
	// ErrInvalidRole is returned for accounts without a booking role.
	ErrInvalidRole = errors.New("user has no booking role")
	// ErrInvalidPolicy wraps settings updates that do not compile.
	ErrInvalidPolicy = errors.New("invalid policy")
)
