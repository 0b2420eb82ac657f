package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"hivegrid/internal/auth"
	escrowapp "hivegrid/internal/escrow/application"
	escrow "hivegrid/internal/escrow/domain"
	escrowmem "hivegrid/internal/escrow/infrastructure/memory"
	"hivegrid/internal/eventing"
	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
	hivemem "hivegrid/internal/registry/hives/infrastructure/memory"
	meters "hivegrid/internal/registry/meters/domain"
	metermem "hivegrid/internal/registry/meters/infrastructure/memory"
	tariffs "hivegrid/internal/registry/tariffs/domain"
	tariffmem "hivegrid/internal/registry/tariffs/infrastructure/memory"
	settlement "hivegrid/internal/settlement/domain"
	recordmem "hivegrid/internal/settlement/infrastructure/memory"
	"hivegrid/internal/token"
)

var (
	vaultAddr      = registry.MustAddress("0x0000000000000000000000000000000000000ec0")
	hiveAddr       = registry.MustAddress("0x0000000000000000000000000000000000000200")
	otherHive      = registry.MustAddress("0x0000000000000000000000000000000000000201")
	hiveOwner      = registry.MustAddress("0x0000000000000000000000000000000000000500")
	consumerAddr   = registry.MustAddress("0x0000000000000000000000000000000000000101")
	producerAddr   = registry.MustAddress("0x0000000000000000000000000000000000000102")
	strayMeter     = registry.MustAddress("0x0000000000000000000000000000000000000103")
	noUserMeter    = registry.MustAddress("0x0000000000000000000000000000000000000104")
	orphanMeter    = registry.MustAddress("0x0000000000000000000000000000000000000105")
	walletAddr     = registry.MustAddress("0x0000000000000000000000000000000000000300")
	producerWallet = registry.MustAddress("0x0000000000000000000000000000000000000301")
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

type fixture struct {
	engine *Engine
	vault  *escrowapp.Vault
	ledger *token.MemoryLedger
	bus    *eventing.InMemoryBus
	now    time.Time
}

// newFixture wires an engine over memory stores: one registered hive with a
// consumer and a producer meter, the seed tariff book, plus a meter whose
// hive was never registered, one with no hive at all and one with no
// end-user wallet.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	meterReg := metermem.NewRegistry()
	err := meterReg.RegisterBatch(ctx, []meters.Meter{
		{Key: consumerAddr, Hive: hiveAddr, User: walletAddr, Rating: 5000, Type: meters.MeterTypeConsumer, Description: "household"},
		{Key: producerAddr, Hive: hiveAddr, User: producerWallet, Rating: 8000, Type: meters.MeterTypeProducer, Description: "rooftop pv"},
		{Key: strayMeter, Hive: otherHive, User: walletAddr, Rating: 5000, Type: meters.MeterTypeConsumer, Description: "dropped hive"},
		{Key: noUserMeter, Hive: hiveAddr, Rating: 8000, Type: meters.MeterTypeProducer, Description: "no end user"},
		{Key: orphanMeter, User: walletAddr, Rating: 5000, Type: meters.MeterTypeConsumer, Description: "unassigned"},
	})
	if err != nil {
		t.Fatalf("register meters: %v", err)
	}

	hiveReg := hivemem.NewRegistry()
	if err := hiveReg.Add(ctx, hives.Hive{Key: hiveAddr, Owner: hiveOwner}); err != nil {
		t.Fatalf("add hive: %v", err)
	}

	tariffReg := tariffmem.NewRegistry()
	err = tariffReg.AddBatch(ctx, []tariffs.Tariff{
		{Name: "high", Direction: tariffs.DirectionBuy, Price: 1000},
		{Name: "low", Direction: tariffs.DirectionBuy, Price: 500},
		{Name: "sell", Direction: tariffs.DirectionSell, Price: 400},
	})
	if err != nil {
		t.Fatalf("seed tariffs: %v", err)
	}

	ledger := token.NewMemoryLedger()
	ledger.Mint(walletAddr, 100_000)
	ledger.Mint(hiveOwner, 100_000)

	bus := eventing.NewInMemoryBus()
	vault, err := escrowapp.NewVault(vaultAddr, escrowmem.NewRepository(), ledger, meterReg, hiveReg, bus, nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	engine, err := NewEngine(meterReg, hiveReg, tariffReg, vault, recordmem.NewRecordRepository(), recordmem.NewJournal(), fixedClock{at: now}, bus, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &fixture{engine: engine, vault: vault, ledger: ledger, bus: bus, now: now}
}

func (f *fixture) fundMeter(t *testing.T, meter registry.Address, amount uint64) {
	t.Helper()
	ctx := auth.WithIdentity(context.Background(), auth.Identity{Address: walletAddr, Role: auth.RoleMeter})
	if err := f.ledger.Approve(ctx, walletAddr, vaultAddr, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.vault.Deposit(ctx, meter.String(), hiveAddr.String()); err != nil {
		t.Fatalf("fund meter: %v", err)
	}
}

func (f *fixture) fundPool(t *testing.T, amount uint64) {
	t.Helper()
	ctx := auth.WithIdentity(context.Background(), auth.Identity{Address: hiveOwner, Role: auth.RoleViewer})
	if err := f.ledger.Approve(ctx, hiveOwner, vaultAddr, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.vault.DepositHiveOwner(ctx, hiveAddr.String()); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
}

func meterCtx(meter registry.Address) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{Address: meter, Role: auth.RoleMeter})
}

func hiveCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{Address: hiveAddr, Role: auth.RoleHive})
}

func (f *fixture) lastSlot() settlement.Slot {
	return settlement.SlotAt(f.now).Prev()
}

func TestSubmit_ChargesConsumer(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 2000)
	ownerBefore, _ := f.ledger.BalanceOf(context.Background(), hiveOwner)

	// 1*1000 + 1*500 - 1*400 = 1100 owed by the consumer.
	entry, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
		{Tariff: "low", Amount: 1},
		{Tariff: "sell", Amount: 1},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if entry.Net != 1100 || entry.Meter != consumerAddr.String() || entry.Hive != hiveAddr.String() {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	ctx := context.Background()
	balance, _ := f.vault.EscrowBalance(ctx, consumerAddr)
	if balance != 900 {
		t.Fatalf("unexpected escrow balance: %d", balance)
	}
	ownerAfter, _ := f.ledger.BalanceOf(ctx, hiveOwner)
	if ownerAfter != ownerBefore+1100 {
		t.Fatalf("charge should pay the hive owner wallet: %d -> %d", ownerBefore, ownerAfter)
	}
}

func TestSubmit_PaysProducerFromPool(t *testing.T) {
	f := newFixture(t)
	f.fundPool(t, 1000)

	// 2*400 sold, nothing bought: the pool owes the end user 800.
	entry, err := f.engine.SubmitEnergyFlows(meterCtx(producerAddr), f.lastSlot(), []Flow{
		{Tariff: "sell", Amount: 2},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if entry.Net != -800 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	ctx := context.Background()
	wallet, _ := f.ledger.BalanceOf(ctx, producerWallet)
	if wallet != 800 {
		t.Fatalf("payout should reach the end-user wallet, got %d", wallet)
	}
	pool, _ := f.vault.PoolBalance(ctx, hiveAddr)
	if pool != 200 {
		t.Fatalf("unexpected pool balance: %d", pool)
	}
}

func TestSubmit_SecondSubmissionRejected(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 5000)
	flows := []Flow{{Tariff: "high", Amount: 1}}

	if _, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows)
	if !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	balance, _ := f.vault.EscrowBalance(context.Background(), consumerAddr)
	if balance != 4000 {
		t.Fatalf("duplicate submission moved value: %d", balance)
	}
}

func TestSubmit_ZeroNetStillSettles(t *testing.T) {
	f := newFixture(t)

	// 2*1000 bought and 5*400 sold cancel out exactly; no funds needed.
	entry, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 2},
		{Tariff: "sell", Amount: 5},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if entry.Net != 0 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	_, err = f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "low", Amount: 1},
	})
	if !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Fatalf("zero-net slot should still be settled, got %v", err)
	}
}

func TestSubmit_UnknownTariffRejectsWholeSubmission(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 5000)

	_, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
		{Tariff: "peak", Amount: 1},
	})
	if !errors.Is(err, settlement.ErrUnknownTariff) {
		t.Fatalf("expected ErrUnknownTariff, got %v", err)
	}

	balance, _ := f.vault.EscrowBalance(context.Background(), consumerAddr)
	if balance != 5000 {
		t.Fatalf("rejected submission moved value: %d", balance)
	}
	settled, _ := f.engine.records.IsSettled(context.Background(), consumerAddr, f.lastSlot())
	if settled {
		t.Fatalf("rejected submission marked the slot settled")
	}
}

func TestSubmit_OpenSlotRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), settlement.SlotAt(f.now), []Flow{
		{Tariff: "high", Amount: 1},
	})
	if !errors.Is(err, settlement.ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
}

func TestSubmit_EmptyFlowsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), nil)
	if !errors.Is(err, settlement.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmit_UnregisteredMeterRejected(t *testing.T) {
	f := newFixture(t)
	unknown := registry.MustAddress("0x000000000000000000000000000000000000beef")
	_, err := f.engine.SubmitEnergyFlows(meterCtx(unknown), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
	})
	if !errors.Is(err, meters.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSubmit_DanglingHiveRejected(t *testing.T) {
	f := newFixture(t)

	// strayMeter references a hive that was never registered.
	_, err := f.engine.SubmitEnergyFlows(meterCtx(strayMeter), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
	})
	if !errors.Is(err, settlement.ErrDanglingHive) {
		t.Fatalf("expected ErrDanglingHive for dropped hive, got %v", err)
	}

	// orphanMeter has no hive assignment at all.
	_, err = f.engine.SubmitEnergyFlows(meterCtx(orphanMeter), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
	})
	if !errors.Is(err, settlement.ErrDanglingHive) {
		t.Fatalf("expected ErrDanglingHive for unassigned meter, got %v", err)
	}
}

func TestSubmit_MissingEndUserRejected(t *testing.T) {
	f := newFixture(t)
	f.fundPool(t, 5000)

	_, err := f.engine.SubmitEnergyFlows(meterCtx(noUserMeter), f.lastSlot(), []Flow{
		{Tariff: "sell", Amount: 2},
	})
	if !errors.Is(err, settlement.ErrDanglingUser) {
		t.Fatalf("expected ErrDanglingUser, got %v", err)
	}
	pool, _ := f.vault.PoolBalance(context.Background(), hiveAddr)
	if pool != 5000 {
		t.Fatalf("rejected payout drained the pool: %d", pool)
	}
}

func TestSubmit_RequiresMeterRole(t *testing.T) {
	f := newFixture(t)
	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleHive} {
		ctx := auth.WithIdentity(context.Background(), auth.Identity{Address: consumerAddr, Role: role})
		_, err := f.engine.SubmitEnergyFlows(ctx, f.lastSlot(), []Flow{
			{Tariff: "high", Amount: 1},
		})
		if !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("role %s: expected ErrUnauthorized, got %v", role, err)
		}
	}
}

func TestSubmit_InsufficientEscrowRejected(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 100)
	flows := []Flow{{Tariff: "high", Amount: 1}}

	_, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows)
	if !errors.Is(err, escrow.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The slot stays open, so topping up and retrying succeeds.
	f.fundMeter(t, consumerAddr, 1000)
	if _, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows); err != nil {
		t.Fatalf("retry after top-up: %v", err)
	}
}

// faultyVault fails a configured number of transfers before delegating to the
// real vault.
type faultyVault struct {
	Vault
	failures int
}

func (v *faultyVault) SettleCharge(ctx context.Context, meter, ownerWallet registry.Address, amount uint64) error {
	if v.failures > 0 {
		v.failures--
		return errors.New("token ledger unavailable")
	}
	return v.Vault.SettleCharge(ctx, meter, ownerWallet, amount)
}

func TestSubmit_FailedTransferReopensSlot(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 2000)

	broken := &faultyVault{Vault: f.vault, failures: 1}
	engine, err := NewEngine(f.engine.meters, f.engine.hives, f.engine.tariffs, broken, f.engine.records, f.engine.journal, fixedClock{at: f.now}, f.bus, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	flows := []Flow{{Tariff: "high", Amount: 1}}

	if _, err := engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows); err == nil {
		t.Fatalf("expected the transfer failure to surface")
	}

	ctx := context.Background()
	settled, _ := engine.records.IsSettled(ctx, consumerAddr, f.lastSlot())
	if settled {
		t.Fatalf("failed transfer left the slot settled")
	}
	if history, _ := engine.journal.ListByMeter(ctx, consumerAddr); len(history) != 0 {
		t.Fatalf("failed transfer left journal entries: %+v", history)
	}
	if balance, _ := f.vault.EscrowBalance(ctx, consumerAddr); balance != 2000 {
		t.Fatalf("failed transfer moved value: %d", balance)
	}

	// The slot reopened, so the retry settles normally.
	entry, err := engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if entry.Net != 1000 {
		t.Fatalf("unexpected retry entry: %+v", entry)
	}
}

// failingJournal rejects every append.
type failingJournal struct {
	settlement.Journal
}

func (failingJournal) Append(ctx context.Context, entries []settlement.JournalEntry) error {
	return errors.New("journal unavailable")
}

func TestSubmit_FailedJournalReopensSlot(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 2000)

	journal := recordmem.NewJournal()
	engine, err := NewEngine(f.engine.meters, f.engine.hives, f.engine.tariffs, f.vault, f.engine.records, failingJournal{Journal: journal}, fixedClock{at: f.now}, f.bus, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	flows := []Flow{{Tariff: "high", Amount: 1}}

	if _, err := engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), flows); err == nil {
		t.Fatalf("expected the journal failure to surface")
	}

	ctx := context.Background()
	settled, _ := engine.records.IsSettled(ctx, consumerAddr, f.lastSlot())
	if settled {
		t.Fatalf("failed journal append left the slot settled")
	}
	if balance, _ := f.vault.EscrowBalance(ctx, consumerAddr); balance != 2000 {
		t.Fatalf("failed journal append moved value: %d", balance)
	}
}

func TestSubmit_ConservesTokenSupply(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 3000)
	f.fundPool(t, 2000)
	supplyBefore := f.ledger.TotalSupply()

	if _, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 2},
	}); err != nil {
		t.Fatalf("charge submit: %v", err)
	}
	if _, err := f.engine.SubmitEnergyFlows(meterCtx(producerAddr), f.lastSlot(), []Flow{
		{Tariff: "sell", Amount: 3},
	}); err != nil {
		t.Fatalf("payout submit: %v", err)
	}

	ctx := context.Background()
	consumer, _ := f.vault.EscrowBalance(ctx, consumerAddr)
	pool, _ := f.vault.PoolBalance(ctx, hiveAddr)
	vaultTokens, _ := f.ledger.BalanceOf(ctx, vaultAddr)
	if consumer+pool != vaultTokens {
		t.Fatalf("books diverged from vault holdings: %d + %d != %d", consumer, pool, vaultTokens)
	}
	if f.ledger.TotalSupply() != supplyBefore {
		t.Fatalf("settlement touched the token supply")
	}
}

func TestSubmit_PublishesSettledEvent(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 2000)

	var published []eventing.SettlementSettled
	eventing.On(f.bus, func(ctx context.Context, event eventing.SettlementSettled) error {
		published = append(published, event)
		return nil
	})

	if _, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "low", Amount: 2},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("expected one event, got %d", len(published))
	}
	evt := published[0]
	if evt.NetAmount != 1000 || evt.Slot != int(f.lastSlot()) || evt.Meter != consumerAddr.String() {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestSlots(t *testing.T) {
	f := newFixture(t)
	want := settlement.Slot(2026*12 + 3)
	if f.engine.CurrentSlot() != want {
		t.Fatalf("CurrentSlot = %d, want %d", f.engine.CurrentSlot(), want)
	}
	if f.engine.LastSlot() != want-1 {
		t.Fatalf("LastSlot = %d, want %d", f.engine.LastSlot(), want-1)
	}
}

func TestRoster(t *testing.T) {
	f := newFixture(t)
	ctx := hiveCtx()

	err := f.engine.AddMeters(ctx, []string{consumerAddr.String(), producerAddr.String(), consumerAddr.String()})
	if err != nil {
		t.Fatalf("add meters: %v", err)
	}
	roster, err := f.engine.GetMeters(ctx)
	if err != nil {
		t.Fatalf("get meters: %v", err)
	}
	if len(roster) != 2 || roster[0] != consumerAddr || roster[1] != producerAddr {
		t.Fatalf("unexpected roster: %v", roster)
	}

	viewer := auth.WithIdentity(context.Background(), auth.Identity{Address: walletAddr, Role: auth.RoleViewer})
	if err := f.engine.AddMeters(viewer, []string{consumerAddr.String()}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.fundMeter(t, consumerAddr, 5000)

	if _, err := f.engine.SubmitEnergyFlows(meterCtx(consumerAddr), f.lastSlot(), []Flow{
		{Tariff: "high", Amount: 1},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx := hiveCtx()
	history, err := f.engine.History(ctx, consumerAddr.String())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Net != 1000 || history[0].Slot != f.lastSlot() {
		t.Fatalf("unexpected history: %+v", history)
	}

	bySlot, err := f.engine.SlotHistory(ctx, f.lastSlot())
	if err != nil {
		t.Fatalf("slot history: %v", err)
	}
	if len(bySlot) != 1 {
		t.Fatalf("unexpected slot history: %+v", bySlot)
	}
}
