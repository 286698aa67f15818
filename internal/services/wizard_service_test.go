package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/washpoint/launchbot/internal/domain"
	"github.com/washpoint/launchbot/internal/repo"
	"github.com/washpoint/launchbot/internal/session"
)

// ----- Fake catalog -----

type fakeCatalog struct {
	cities    []domain.City
	citiesErr error

	shops     map[int64][]domain.Shop
	shopsErr  error
	shopsCity int64 // capture

	terminals   map[int64]string // shopID -> URL; absent means ErrNotFound
	terminalErr error

	machines    map[int64][]domain.Machine
	machinesErr error

	machine    map[int64]*domain.Machine
	machineErr error
}

func (f *fakeCatalog) ListCities(ctx context.Context, db *gorm.DB) ([]domain.City, error) {
	return f.cities, f.citiesErr
}

func (f *fakeCatalog) ListShops(ctx context.Context, db *gorm.DB, cityID int64) ([]domain.Shop, error) {
	f.shopsCity = cityID
	return f.shops[cityID], f.shopsErr
}

func (f *fakeCatalog) ListMachines(ctx context.Context, db *gorm.DB, shopID int64) ([]domain.Machine, error) {
	return f.machines[shopID], f.machinesErr
}

func (f *fakeCatalog) GetMachine(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error) {
	if f.machineErr != nil {
		return nil, f.machineErr
	}
	m, ok := f.machine[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeCatalog) GetShopTerminalURL(ctx context.Context, db *gorm.DB, shopID int64) (string, error) {
	if f.terminalErr != nil {
		return "", f.terminalErr
	}
	url, ok := f.terminals[shopID]
	if !ok {
		return "", repo.ErrNotFound
	}
	return url, nil
}

// ----- Fake relay -----

type fakePulser struct {
	calls       int
	gotBase     string
	gotCtrl     int64
	err         error
	blockUntil  chan struct{} // when non-nil, Pulse waits before returning
	enteredOnce chan struct{} // closed on first entry, when non-nil
}

func (f *fakePulser) Pulse(ctx context.Context, terminalBaseURL string, controller int64) error {
	f.calls++
	f.gotBase = terminalBaseURL
	f.gotCtrl = controller
	if f.enteredOnce != nil && f.calls == 1 {
		close(f.enteredOnce)
	}
	if f.blockUntil != nil {
		<-f.blockUntil
	}
	return f.err
}

// ----- Helpers -----

func newWizard(cat CatalogRepo, p Pulser) (*WizardService, *session.Store) {
	st := session.NewStore(time.Hour)
	return NewWizardService(nil, cat, st, p, nil), st
}

func intp(v int64) *int64 { return &v }

// walkToMachineStage drives user 1 to the machine-selection stage.
func walkToMachineStage(t *testing.T, w *WizardService) {
	t.Helper()
	ctx := context.Background()
	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity: %v", err)
	}
	reply, err := w.SelectShop(ctx, 1, 10)
	if err != nil {
		t.Fatalf("SelectShop: %v", err)
	}
	if reply == nil || reply.Kind != ReplyMachinePrompt {
		t.Fatalf("expected machine prompt, got %+v", reply)
	}
}

// standardCatalog reproduces the canonical walkthrough data: two cities,
// one launchable shop in Kazan, one machine with controller 3.
func standardCatalog() *fakeCatalog {
	return &fakeCatalog{
		cities: []domain.City{{ID: 1, Name: "Moscow"}, {ID: 2, Name: "Kazan"}},
		shops: map[int64][]domain.Shop{
			2: {{ID: 10, CityID: 2, Name: "Shop A"}},
		},
		terminals: map[int64]string{10: "http://host/term"},
		machines: map[int64][]domain.Machine{
			10: {{ID: 100, ShopID: 10, Name: "M1", KG: 5.0, MachineNumber: intp(1), ControllerNumber: intp(3), CountWashes: 12}},
		},
		machine: map[int64]*domain.Machine{
			100: {ID: 100, ShopID: 10, Name: "M1", KG: 5.0, MachineNumber: intp(1), ControllerNumber: intp(3), CountWashes: 12},
		},
	}
}

// ----- Tests -----

func TestStart_RendersCityOptions(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})

	reply, err := w.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if reply.Kind != ReplyCityPrompt {
		t.Fatalf("Kind = %v; want city prompt", reply.Kind)
	}
	if len(reply.Options) != 2 || reply.Options[0].Label != "Moscow" || reply.Options[1].Label != "Kazan" {
		t.Fatalf("options = %+v", reply.Options)
	}
	sess := st.Get(1)
	if sess == nil || sess.Stage != domain.StageAwaitingCity {
		t.Fatalf("session = %+v; want stage awaiting city", sess)
	}
}

func TestStart_StoreUnavailable_NoSession(t *testing.T) {
	cat := standardCatalog()
	cat.citiesErr = errors.New("dial tcp: connection refused")
	w, st := newWizard(cat, &fakePulser{})

	_, err := w.Start(context.Background(), 1)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v; want ErrStoreUnavailable", err)
	}
	if st.Get(1) != nil {
		t.Fatalf("no session should exist after failed start")
	}
}

func TestStart_NoCities_NoSession(t *testing.T) {
	w, st := newWizard(&fakeCatalog{}, &fakePulser{})

	reply, err := w.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if reply.Kind != ReplyNoCities {
		t.Fatalf("Kind = %v; want no-cities notice", reply.Kind)
	}
	if st.Get(1) != nil {
		t.Fatalf("no session should exist when the catalog is empty")
	}

	// With no session a city selection is a stale action.
	reply, err = w.SelectCity(context.Background(), 1, 2)
	if err != nil || reply != nil {
		t.Fatalf("stale selection should be silent, got reply=%+v err=%v", reply, err)
	}
}

func TestSelectCity_WithoutSession_IsNoOp(t *testing.T) {
	w, _ := newWizard(standardCatalog(), &fakePulser{})

	reply, err := w.SelectCity(context.Background(), 1, 2)
	if err != nil || reply != nil {
		t.Fatalf("expected silent no-op, got reply=%+v err=%v", reply, err)
	}
}

func TestSelectCity_AdvancesAndRendersShops(t *testing.T) {
	cat := standardCatalog()
	w, st := newWizard(cat, &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reply, err := w.SelectCity(ctx, 1, 2)
	if err != nil {
		t.Fatalf("SelectCity: %v", err)
	}
	if reply.Kind != ReplyShopPrompt || len(reply.Options) != 1 || reply.Options[0].ID != 10 {
		t.Fatalf("reply = %+v", reply)
	}
	if cat.shopsCity != 2 {
		t.Fatalf("queried city %d; want 2", cat.shopsCity)
	}
	sess := st.Get(1)
	if sess.Stage != domain.StageAwaitingShop || sess.CityID != 2 {
		t.Fatalf("session = %+v", sess)
	}
}

func TestSelectCity_EmptyShops_AdvancesToIdleShopStage(t *testing.T) {
	cat := standardCatalog()
	w, st := newWizard(cat, &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reply, err := w.SelectCity(ctx, 1, 1) // Moscow has no shops
	if err != nil {
		t.Fatalf("SelectCity: %v", err)
	}
	if reply.Kind != ReplyNoShops {
		t.Fatalf("Kind = %v; want no-shops notice", reply.Kind)
	}
	if st.Get(1).Stage != domain.StageAwaitingShop {
		t.Fatalf("session should sit at the shop stage")
	}

	// The stage advanced, so re-tapping the city button is now stale.
	reply, err = w.SelectCity(ctx, 1, 2)
	if err != nil || reply != nil {
		t.Fatalf("re-tapped city should be silent, got reply=%+v err=%v", reply, err)
	}
}

func TestSelectCity_StoreError_LeavesSessionUntouched(t *testing.T) {
	cat := standardCatalog()
	w, st := newWizard(cat, &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cat.shopsErr = errors.New("timeout")

	_, err := w.SelectCity(ctx, 1, 2)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v; want ErrStoreUnavailable", err)
	}
	sess := st.Get(1)
	if sess.Stage != domain.StageAwaitingCity || sess.CityID != 0 {
		t.Fatalf("session mutated on failure: %+v", sess)
	}
}

func TestSelectShop_NotConfigured_NeverReachesMachineStage(t *testing.T) {
	cat := standardCatalog()
	cat.terminals[10] = ""
	w, st := newWizard(cat, &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity: %v", err)
	}

	reply, err := w.SelectShop(ctx, 1, 10)
	if err != nil {
		t.Fatalf("SelectShop: %v", err)
	}
	if reply.Kind != ReplyNotConfigured {
		t.Fatalf("Kind = %v; want not-configured notice", reply.Kind)
	}
	sess := st.Get(1)
	if sess.Stage != domain.StageAwaitingShop || sess.TerminalURL != "" {
		t.Fatalf("session = %+v; must stay at shop stage without a terminal", sess)
	}
}

func TestSelectShop_MissingShop_TreatedAsNotConfigured(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity: %v", err)
	}

	reply, err := w.SelectShop(ctx, 1, 999)
	if err != nil {
		t.Fatalf("SelectShop: %v", err)
	}
	if reply.Kind != ReplyNotConfigured {
		t.Fatalf("Kind = %v; want not-configured notice", reply.Kind)
	}
	if st.Get(1).Stage != domain.StageAwaitingShop {
		t.Fatalf("session must stay at shop stage")
	}
}

func TestSelectShop_CapturesTerminalAndAdvances(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})
	walkToMachineStage(t, w)

	sess := st.Get(1)
	if sess.Stage != domain.StageAwaitingMachine {
		t.Fatalf("stage = %v", sess.Stage)
	}
	if sess.TerminalURL != "http://host/term" || sess.ShopID != 10 {
		t.Fatalf("session = %+v", sess)
	}
}

func TestSelectShop_EmptyMachines_AdvancesToIdleMachineStage(t *testing.T) {
	cat := standardCatalog()
	cat.machines = map[int64][]domain.Machine{}
	w, st := newWizard(cat, &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity: %v", err)
	}

	reply, err := w.SelectShop(ctx, 1, 10)
	if err != nil {
		t.Fatalf("SelectShop: %v", err)
	}
	if reply.Kind != ReplyNoMachines {
		t.Fatalf("Kind = %v; want no-machines notice", reply.Kind)
	}
	if st.Get(1).Stage != domain.StageAwaitingMachine {
		t.Fatalf("session should sit at the machine stage")
	}
}

func TestSelectMachine_MissingTerminal_CorruptSessionDestroyed(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})
	walkToMachineStage(t, w)

	// Break the invariant by hand.
	st.Get(1).TerminalURL = ""

	_, err := w.SelectMachine(context.Background(), 1, 100)
	if !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("err = %v; want ErrSessionCorrupt", err)
	}
	if st.Get(1) != nil {
		t.Fatalf("corrupt session must be destroyed")
	}
}

func TestSelectMachine_MachineGone_SessionKept(t *testing.T) {
	cat := standardCatalog()
	w, st := newWizard(cat, &fakePulser{})
	walkToMachineStage(t, w)

	reply, err := w.SelectMachine(context.Background(), 1, 404)
	if err != nil {
		t.Fatalf("SelectMachine: %v", err)
	}
	if reply.Kind != ReplyMachineMissing {
		t.Fatalf("Kind = %v; want machine-missing notice", reply.Kind)
	}
	if st.Get(1) == nil {
		t.Fatalf("session should survive a missing machine row")
	}
}

func TestSelectMachine_RelayFailure_DestroysSessionAndNamesTerminal(t *testing.T) {
	p := &fakePulser{err: errors.New("status=500")}
	w, st := newWizard(standardCatalog(), p)
	walkToMachineStage(t, w)

	reply, err := w.SelectMachine(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("SelectMachine: %v", err)
	}
	if reply.Kind != ReplyLaunchFailure {
		t.Fatalf("Kind = %v; want launch failure", reply.Kind)
	}
	if reply.TerminalURL != "http://host/term" {
		t.Fatalf("TerminalURL = %q", reply.TerminalURL)
	}
	if st.Get(1) != nil {
		t.Fatalf("session must be destroyed after a relay failure")
	}
}

func TestSelectMachine_ControllerFallsBackToID(t *testing.T) {
	cat := standardCatalog()
	cat.machine[100].ControllerNumber = nil
	p := &fakePulser{}
	w, _ := newWizard(cat, p)
	walkToMachineStage(t, w)

	if _, err := w.SelectMachine(context.Background(), 1, 100); err != nil {
		t.Fatalf("SelectMachine: %v", err)
	}
	if p.gotCtrl != 100 {
		t.Fatalf("controller = %d; want machine ID fallback 100", p.gotCtrl)
	}
}

func TestFullWalkthrough(t *testing.T) {
	p := &fakePulser{}
	w, st := newWizard(standardCatalog(), p)
	ctx := context.Background()

	walkToMachineStage(t, w)

	reply, err := w.SelectMachine(ctx, 1, 100)
	if err != nil {
		t.Fatalf("SelectMachine: %v", err)
	}
	if p.calls != 1 || p.gotBase != "http://host/term" || p.gotCtrl != 3 {
		t.Fatalf("pulse call = %d %q %d", p.calls, p.gotBase, p.gotCtrl)
	}
	if reply.Kind != ReplyLaunchSuccess {
		t.Fatalf("Kind = %v; want launch success", reply.Kind)
	}
	r := reply.Receipt
	if r.MachineLabel != 1 || r.KG != 5.0 || r.CountWashes != 12 {
		t.Fatalf("receipt = %+v", r)
	}
	if st.Get(1) != nil {
		t.Fatalf("session must be destroyed after success")
	}

	// Everything after completion is stale.
	reply, err = w.SelectMachine(ctx, 1, 100)
	if err != nil || reply != nil {
		t.Fatalf("post-completion tap should be silent, got reply=%+v err=%v", reply, err)
	}
}

func TestRestart_DiscardsOldSessionAndStaleCallbacks(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity: %v", err)
	}
	firstID := st.Get(1).ID

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	sess := st.Get(1)
	if sess.ID == firstID {
		t.Fatalf("restart must create a fresh session")
	}
	if sess.Stage != domain.StageAwaitingCity {
		t.Fatalf("stage = %v; want awaiting city", sess.Stage)
	}

	// A button from the old session's shop keyboard is out of stage now.
	reply, err := w.SelectShop(ctx, 1, 10)
	if err != nil || reply != nil {
		t.Fatalf("stale shop tap should be silent, got reply=%+v err=%v", reply, err)
	}
	if st.Get(1).Stage != domain.StageAwaitingCity {
		t.Fatalf("stale tap corrupted the new session")
	}
}

func TestUsers_AreIsolated(t *testing.T) {
	w, st := newWizard(standardCatalog(), &fakePulser{})
	ctx := context.Background()

	if _, err := w.Start(ctx, 1); err != nil {
		t.Fatalf("Start user 1: %v", err)
	}
	if _, err := w.Start(ctx, 2); err != nil {
		t.Fatalf("Start user 2: %v", err)
	}
	if _, err := w.SelectCity(ctx, 1, 2); err != nil {
		t.Fatalf("SelectCity user 1: %v", err)
	}

	if st.Get(1).Stage != domain.StageAwaitingShop {
		t.Fatalf("user 1 should be at shop stage")
	}
	if st.Get(2).Stage != domain.StageAwaitingCity {
		t.Fatalf("user 2 must be unaffected by user 1's progress")
	}
}

func TestSerialization_SlowPulseDoesNotBlockOtherUsers(t *testing.T) {
	p := &fakePulser{
		blockUntil:  make(chan struct{}),
		enteredOnce: make(chan struct{}),
	}
	w, _ := newWizard(standardCatalog(), p)
	ctx := context.Background()

	walkToMachineStage(t, w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.SelectMachine(ctx, 1, 100)
	}()
	<-p.enteredOnce

	// User 2 makes full progress while user 1's pulse is in flight.
	if _, err := w.Start(ctx, 2); err != nil {
		t.Fatalf("Start user 2: %v", err)
	}
	if _, err := w.SelectCity(ctx, 2, 2); err != nil {
		t.Fatalf("SelectCity user 2: %v", err)
	}

	close(p.blockUntil)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pulse goroutine never finished")
	}
}
