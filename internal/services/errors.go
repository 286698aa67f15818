// Package services defines the business logic for the machine launch wizard.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing chat messages is performed at the transport layer.
package services

import "errors"

var (
	// ErrStoreUnavailable indicates that the catalog database could not be
	// reached or a query failed. The session, when one exists, is left at
	// its prior stage; the user can retry only by restarting the wizard.
	ErrStoreUnavailable = errors.New("catalog store unavailable")

	// ErrSessionCorrupt indicates that a session reached the final step
	// without a terminal URL. This violates the wizard's invariants and
	// should not occur; the session is destroyed defensively.
	ErrSessionCorrupt = errors.New("selection session corrupt")
)
