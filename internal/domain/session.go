// Package domain – selection sessions
//
// A SelectionSession tracks one user's progress through the launch wizard:
// pick a city, pick a shop, pick a machine, fire the relay pulse. Sessions
// live only in memory and are keyed by the Telegram user ID; a user has at
// most one live session, and starting the wizard again replaces it.
package domain

import "time"

// Stage identifies which wizard step a session is waiting on. Stages only
// ever advance; a stale callback for an earlier stage is ignored rather
// than rewinding the session.
type Stage int

const (
	// StageAwaitingCity means the city keyboard has been shown.
	StageAwaitingCity Stage = iota + 1
	// StageAwaitingShop means a city was chosen and the shop keyboard is up.
	StageAwaitingShop
	// StageAwaitingMachine means a shop with a configured terminal was chosen.
	StageAwaitingMachine
)

// String returns a short human-readable stage name for logs.
func (s Stage) String() string {
	switch s {
	case StageAwaitingCity:
		return "awaiting_city"
	case StageAwaitingShop:
		return "awaiting_shop"
	case StageAwaitingMachine:
		return "awaiting_machine"
	default:
		return "unknown"
	}
}

// SelectionSession is the in-progress wizard state for one user.
//
// TerminalURL is captured when the shop is chosen and never changes for the
// rest of the session's life. CityID and ShopID are recorded as the user
// advances, mainly for logging.
type SelectionSession struct {
	ID          string // correlation ID for logs, assigned at creation
	UserID      int64
	Stage       Stage
	CityID      int64
	ShopID      int64
	TerminalURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
