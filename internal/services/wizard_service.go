// Package services – WizardService
//
// This file implements the WizardService, the state machine driving a user
// through city → shop → machine selection and, on the final pick, firing a
// relay pulse against the shop's terminal. It owns the session lifecycle and
// enforces stage-gating: an incoming action is validated only against the
// session's current stage, so re-delivered or stale button taps are ignored
// instead of corrupting a newer session.
//
// Service-level errors (ErrStoreUnavailable, ErrSessionCorrupt) are returned
// for predictable failures so the transport can map them to chat messages
// consistently. Relay failures are user-visible outcomes, not errors: they
// terminate the session and come back as a ReplyLaunchFailure.
package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/washpoint/launchbot/internal/domain"
	"github.com/washpoint/launchbot/internal/observability"
	"github.com/washpoint/launchbot/internal/repo"
	"github.com/washpoint/launchbot/internal/session"
)

// CatalogRepo defines the repository contract required by WizardService.
// Implementations expose the read-only query shapes of the catalog.
type CatalogRepo interface {
	// ListCities returns every city ordered by name.
	ListCities(ctx context.Context, db *gorm.DB) ([]domain.City, error)

	// ListShops returns a city's shops ordered by name.
	ListShops(ctx context.Context, db *gorm.DB, cityID int64) ([]domain.Shop, error)

	// ListMachines returns a shop's machines ordered by machine number.
	ListMachines(ctx context.Context, db *gorm.DB, shopID int64) ([]domain.Machine, error)

	// GetMachine fetches one machine or repo.ErrNotFound.
	GetMachine(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error)

	// GetShopTerminalURL fetches a shop's terminal URL ("" when unset).
	GetShopTerminalURL(ctx context.Context, db *gorm.DB, shopID int64) (string, error)
}

// Pulser defines the relay client contract required by WizardService.
type Pulser interface {
	// Pulse asserts then deasserts the controller's lock relay.
	Pulse(ctx context.Context, terminalBaseURL string, controller int64) error
}

// WizardService drives the selection wizard. All four operations serialize
// per user through the session store, so a double-tapped button cannot
// interleave with itself; users are independent of each other.
type WizardService struct {
	// DB is the GORM handle used for catalog lookups.
	DB *gorm.DB
	// Repo is the catalog repository used by this service.
	Repo CatalogRepo
	// Sessions stores in-progress selections keyed by user ID.
	Sessions *session.Store
	// Relay performs the unlock pulse against a shop terminal.
	Relay Pulser
	// Metrics records step outcomes; may be nil in tests.
	Metrics *observability.Metrics
}

// NewWizardService constructs a WizardService.
func NewWizardService(db *gorm.DB, r CatalogRepo, sessions *session.Store, relay Pulser, m *observability.Metrics) *WizardService {
	return &WizardService{
		DB:       db,
		Repo:     r,
		Sessions: sessions,
		Relay:    relay,
		Metrics:  m,
	}
}

// Start discards any prior session for userID and begins a new selection at
// the city stage. On success it returns a city prompt. When the catalog is
// unreachable it returns ErrStoreUnavailable and no session exists.
func (s *WizardService) Start(ctx context.Context, userID int64) (reply *Reply, err error) {
	s.Sessions.Serialize(userID, func() {
		reply, err = s.start(ctx, userID)
	})
	s.observe("start", reply, err)
	return reply, err
}

func (s *WizardService) start(ctx context.Context, userID int64) (*Reply, error) {
	// A restart always abandons the previous attempt, even if the city
	// fetch below fails.
	s.Sessions.End(userID)

	cities, err := s.Repo.ListCities(ctx, s.DB)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("wizard: list cities failed")
		return nil, ErrStoreUnavailable
	}
	if len(cities) == 0 {
		return &Reply{Kind: ReplyNoCities}, nil
	}

	sess := s.Sessions.Begin(userID)
	log.Info().Str("session_id", sess.ID).Int64("user_id", userID).Msg("wizard: started")

	opts := make([]Option, 0, len(cities))
	for _, c := range cities {
		opts = append(opts, Option{ID: c.ID, Label: c.Name})
	}
	return &Reply{Kind: ReplyCityPrompt, Options: opts}, nil
}

// SelectCity records the chosen city and advances to the shop stage. Valid
// only while the session awaits a city; anything else is a stale action and
// yields (nil, nil). On catalog failure the session is untouched.
func (s *WizardService) SelectCity(ctx context.Context, userID, cityID int64) (reply *Reply, err error) {
	s.Sessions.Serialize(userID, func() {
		reply, err = s.selectCity(ctx, userID, cityID)
	})
	s.observe("select_city", reply, err)
	return reply, err
}

func (s *WizardService) selectCity(ctx context.Context, userID, cityID int64) (*Reply, error) {
	sess := s.Sessions.Get(userID)
	if sess == nil || sess.Stage != domain.StageAwaitingCity {
		s.logStale("select_city", userID, sess)
		return nil, nil
	}

	shops, err := s.Repo.ListShops(ctx, s.DB, cityID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Int64("city_id", cityID).Msg("wizard: list shops failed")
		return nil, ErrStoreUnavailable
	}

	sess.CityID = cityID
	sess.Stage = domain.StageAwaitingShop
	s.Sessions.Touch(userID)

	if len(shops) == 0 {
		return &Reply{Kind: ReplyNoShops}, nil
	}

	opts := make([]Option, 0, len(shops))
	for _, sh := range shops {
		opts = append(opts, Option{ID: sh.ID, Label: sh.Name})
	}
	return &Reply{Kind: ReplyShopPrompt, Options: opts}, nil
}

// SelectShop resolves the shop's terminal URL and advances to the machine
// stage. A shop without a terminal URL is a dead end: the user is told the
// shop is not configured and the session stays at the shop stage. Valid
// only while the session awaits a shop.
func (s *WizardService) SelectShop(ctx context.Context, userID, shopID int64) (reply *Reply, err error) {
	s.Sessions.Serialize(userID, func() {
		reply, err = s.selectShop(ctx, userID, shopID)
	})
	s.observe("select_shop", reply, err)
	return reply, err
}

func (s *WizardService) selectShop(ctx context.Context, userID, shopID int64) (*Reply, error) {
	sess := s.Sessions.Get(userID)
	if sess == nil || sess.Stage != domain.StageAwaitingShop {
		s.logStale("select_shop", userID, sess)
		return nil, nil
	}

	terminalURL, err := s.Repo.GetShopTerminalURL(ctx, s.DB, shopID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Error().Err(err).Str("session_id", sess.ID).Int64("shop_id", shopID).Msg("wizard: terminal lookup failed")
		return nil, ErrStoreUnavailable
	}
	// A vanished shop renders the same as one without a terminal: the
	// machines behind it cannot be launched.
	if terminalURL == "" {
		return &Reply{Kind: ReplyNotConfigured}, nil
	}

	machines, err := s.Repo.ListMachines(ctx, s.DB, shopID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Int64("shop_id", shopID).Msg("wizard: list machines failed")
		return nil, ErrStoreUnavailable
	}

	sess.ShopID = shopID
	sess.TerminalURL = terminalURL
	sess.Stage = domain.StageAwaitingMachine
	s.Sessions.Touch(userID)

	if len(machines) == 0 {
		return &Reply{Kind: ReplyNoMachines}, nil
	}

	opts := make([]Option, 0, len(machines))
	for _, m := range machines {
		opts = append(opts, Option{ID: m.ID, Label: strconv.FormatInt(m.Label(), 10)})
	}
	return &Reply{Kind: ReplyMachinePrompt, Options: opts}, nil
}

// SelectMachine fires the relay pulse for the chosen machine. Whatever the
// pulse outcome, the session is destroyed: success returns a receipt,
// failure names the terminal that was attempted. Valid only while the
// session awaits a machine.
func (s *WizardService) SelectMachine(ctx context.Context, userID, machineID int64) (reply *Reply, err error) {
	s.Sessions.Serialize(userID, func() {
		reply, err = s.selectMachine(ctx, userID, machineID)
	})
	s.observe("select_machine", reply, err)
	return reply, err
}

func (s *WizardService) selectMachine(ctx context.Context, userID, machineID int64) (*Reply, error) {
	sess := s.Sessions.Get(userID)
	if sess == nil || sess.Stage != domain.StageAwaitingMachine {
		s.logStale("select_machine", userID, sess)
		return nil, nil
	}

	if sess.TerminalURL == "" {
		// Unreachable if stage transitions are correct; handled anyway so a
		// broken session cannot linger.
		log.Error().Str("session_id", sess.ID).Int64("user_id", userID).Msg("wizard: session has no terminal url")
		s.Sessions.End(userID)
		return nil, ErrSessionCorrupt
	}

	m, err := s.Repo.GetMachine(ctx, s.DB, machineID)
	if errors.Is(err, repo.ErrNotFound) {
		return &Reply{Kind: ReplyMachineMissing}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Int64("machine_id", machineID).Msg("wizard: machine lookup failed")
		return nil, ErrStoreUnavailable
	}

	terminalURL := sess.TerminalURL
	controller := m.Controller()
	log.Info().
		Str("session_id", sess.ID).
		Int64("machine_id", m.ID).
		Int64("controller", controller).
		Str("terminal_url", terminalURL).
		Msg("wizard: launching machine")

	if err := s.Relay.Pulse(ctx, terminalURL, controller); err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Int64("machine_id", m.ID).Msg("wizard: pulse failed")
		s.Sessions.End(userID)
		return &Reply{Kind: ReplyLaunchFailure, TerminalURL: terminalURL}, nil
	}

	s.Sessions.End(userID)
	return &Reply{
		Kind: ReplyLaunchSuccess,
		Receipt: &Receipt{
			MachineLabel: m.Label(),
			KG:           m.KG,
			CountWashes:  m.CountWashes,
		},
	}, nil
}

// logStale records an ignored out-of-stage action at debug level.
func (s *WizardService) logStale(step string, userID int64, sess *domain.SelectionSession) {
	ev := log.Debug().Str("step", step).Int64("user_id", userID)
	if sess != nil {
		ev = ev.Str("session_id", sess.ID).Stringer("stage", sess.Stage)
	}
	ev.Msg("wizard: stale action ignored")
}

// observe feeds the step outcome into metrics, when metrics are wired.
func (s *WizardService) observe(step string, reply *Reply, err error) {
	if s.Metrics == nil {
		return
	}
	switch {
	case err != nil:
		s.Metrics.WizardStep(step, "error")
	case reply == nil:
		s.Metrics.WizardStep(step, "stale")
	case reply.Kind == ReplyLaunchFailure:
		s.Metrics.WizardStep(step, "relay_failure")
	default:
		s.Metrics.WizardStep(step, "ok")
	}
}
