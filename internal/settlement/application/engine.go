package application

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	escrow "hivegrid/internal/escrow/domain"
	"hivegrid/internal/eventing"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
	meters "hivegrid/internal/registry/meters/domain"
	tariffs "hivegrid/internal/registry/tariffs/domain"
	settlement "hivegrid/internal/settlement/domain"
)

// MeterDirectory resolves meter records during validation.
type MeterDirectory interface {
	Get(ctx context.Context, key registry.Address) (*meters.Meter, error)
}

// HiveDirectory resolves a meter's hive to its record, owner included.
type HiveDirectory interface {
	Info(ctx context.Context, key registry.Address) (*hives.Hive, error)
}

// TariffDirectory resolves tariff names to price rules.
type TariffDirectory interface {
	Get(ctx context.Context, name string) (*tariffs.Tariff, error)
}

// Vault pays settled value out of escrow: charges drain the meter's escrow
// balance to the hive owner's wallet, payouts drain the hive owner pool to
// the end-user wallet. It also exposes the balance reads the engine
// pre-checks against.
type Vault interface {
	SettleCharge(ctx context.Context, meter, ownerWallet registry.Address, amount uint64) error
	SettlePayout(ctx context.Context, hive, userWallet registry.Address, amount uint64) error
	EscrowBalance(ctx context.Context, meter registry.Address) (uint64, error)
	PoolBalance(ctx context.Context, hive registry.Address) (uint64, error)
}

// Flow is one line of a meter's slot report: how much energy moved under
// which tariff. All lines of a submission are netted into one signed total
// before any value moves.
type Flow struct {
	Tariff string
	Amount uint64
}

// Engine settles closed billing slots, one meter per submission. The caller
// is the meter: its identity address is the meter key. A submission is
// validated completely before any state changes, so a rejected one leaves
// balances and records untouched. The engine mutex serializes submissions;
// together with the record store's (meter, slot) uniqueness this makes
// settlement exactly-once.
type Engine struct {
	mu sync.Mutex

	meters  MeterDirectory
	hives   HiveDirectory
	tariffs TariffDirectory
	vault   Vault
	records settlement.RecordRepository
	journal settlement.Journal
	clock   settlement.Clock
	bus     eventing.EventBus
	auditor audit.Logger

	rosterMu sync.RWMutex
	roster   map[registry.Address][]registry.Address
}

// NewEngine constructs the engine. bus and auditor may be nil.
func NewEngine(meterDir MeterDirectory, hiveDir HiveDirectory, tariffDir TariffDirectory, vault Vault, records settlement.RecordRepository, journal settlement.Journal, clock settlement.Clock, bus eventing.EventBus, auditor audit.Logger) (*Engine, error) {
	if meterDir == nil || hiveDir == nil || tariffDir == nil || vault == nil || records == nil || journal == nil {
		return nil, errors.New("engine: nil dependency")
	}
	if clock == nil {
		clock = settlement.SystemClock{}
	}
	return &Engine{
		meters:  meterDir,
		hives:   hiveDir,
		tariffs: tariffDir,
		vault:   vault,
		records: records,
		journal: journal,
		clock:   clock,
		bus:     bus,
		auditor: auditor,
		roster:  make(map[registry.Address][]registry.Address),
	}, nil
}

// CurrentSlot returns the slot containing the present moment. The current
// slot is still open and cannot be settled.
func (e *Engine) CurrentSlot() settlement.Slot {
	return settlement.SlotAt(e.clock.Now())
}

// LastSlot returns the most recent closed slot, the latest one a submission
// may settle.
func (e *Engine) LastSlot() settlement.Slot {
	return e.CurrentSlot().Prev()
}

// SubmitEnergyFlows settles one closed slot for the calling meter. The slot
// must be closed, the (meter, slot) pair unsettled, every tariff registered,
// and the meter's hive link resolvable to a registered hive. The flows are
// netted into one signed total: a positive net charges the meter's escrow
// balance and pays the hive owner's wallet, a negative net drains the hive
// owner pool and pays the meter's end-user wallet. A zero net still consumes
// the slot. Any failed check rejects the whole submission with no effects.
func (e *Engine) SubmitEnergyFlows(ctx context.Context, slot settlement.Slot, flows []Flow) (entry settlement.JournalEntry, err error) {
	start := time.Now()
	defer func() { metrics.ObserveSettlement(start, err) }()

	identity, err := auth.RequireRole(ctx, auth.RoleMeter)
	if err != nil {
		return settlement.JournalEntry{}, err
	}
	meter := identity.Address

	if len(flows) == 0 {
		return settlement.JournalEntry{}, settlement.ErrInvalidInput
	}
	if slot > e.LastSlot() {
		return settlement.JournalEntry{}, settlement.ErrInvalidSlot
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	settled, err := e.records.IsSettled(ctx, meter, slot)
	if err != nil {
		return settlement.JournalEntry{}, err
	}
	if settled {
		return settlement.JournalEntry{}, settlement.ErrAlreadySettled
	}

	net, err := e.netCashFlow(ctx, flows)
	if err != nil {
		return settlement.JournalEntry{}, err
	}

	record, err := e.meters.Get(ctx, meter)
	if err != nil {
		return settlement.JournalEntry{}, err
	}
	if record.Hive.IsZero() {
		return settlement.JournalEntry{}, settlement.ErrDanglingHive
	}
	hive, err := e.hives.Info(ctx, record.Hive)
	if err != nil {
		if errors.Is(err, hives.ErrNotFound) {
			return settlement.JournalEntry{}, settlement.ErrDanglingHive
		}
		return settlement.JournalEntry{}, err
	}

	if err = e.checkFunds(ctx, record, net); err != nil {
		return settlement.JournalEntry{}, err
	}

	settledAt := e.clock.Now()
	if err = e.records.MarkSettled(ctx, []settlement.Record{{Meter: meter, Slot: slot, SettledAt: settledAt}}); err != nil {
		return settlement.JournalEntry{}, err
	}

	entry = settlement.JournalEntry{
		Meter:     meter.String(),
		Hive:      record.Hive.String(),
		Slot:      slot,
		Net:       net,
		SettledAt: settledAt,
	}
	if err = e.journal.Append(ctx, []settlement.JournalEntry{entry}); err != nil {
		_ = e.records.Unmark(ctx, meter, slot)
		return settlement.JournalEntry{}, err
	}

	// Funds were checked above and the engine mutex excludes concurrent
	// writers, so a transfer only fails on infrastructure faults. The vault
	// leaves its own balances unchanged on failure; reopening the record and
	// discarding the journal entry keeps the retry path clean.
	switch {
	case net > 0:
		err = e.vault.SettleCharge(ctx, meter, hive.Owner, uint64(net))
	case net < 0:
		err = e.vault.SettlePayout(ctx, record.Hive, record.User, uint64(-net))
	}
	if err != nil {
		_ = e.journal.Discard(ctx, meter, slot)
		_ = e.records.Unmark(ctx, meter, slot)
		return settlement.JournalEntry{}, err
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, eventing.SettlementSettled{
			EventID:    eventing.NewEventID(),
			Meter:      meter.String(),
			Hive:       record.Hive.String(),
			Slot:       int(slot),
			NetAmount:  net,
			OccurredAt: settledAt,
		})
	}
	e.logAudit(ctx, identity, slot, net)
	return entry, nil
}

// netCashFlow prices and nets the submitted flows without touching any
// state.
func (e *Engine) netCashFlow(ctx context.Context, flows []Flow) (int64, error) {
	var net int64
	for _, flow := range flows {
		tariff, err := e.tariffs.Get(ctx, flow.Tariff)
		if err != nil {
			if errors.Is(err, tariffs.ErrNotFound) {
				return 0, settlement.ErrUnknownTariff
			}
			return 0, err
		}
		amount, err := chargeFor(flow.Amount, tariff.Price)
		if err != nil {
			return 0, err
		}
		net, err = addSigned(net, tariff.Direction.Sign(), amount)
		if err != nil {
			return 0, err
		}
	}
	return net, nil
}

// checkFunds verifies the transfer of step six can succeed: a charge must be
// covered by the meter's escrow balance, a payout by the hive owner pool and
// an assigned end-user wallet to receive it.
func (e *Engine) checkFunds(ctx context.Context, record *meters.Meter, net int64) error {
	switch {
	case net > 0:
		balance, err := e.vault.EscrowBalance(ctx, record.Key)
		if err != nil {
			return err
		}
		if balance < uint64(net) {
			return escrow.ErrInsufficientBalance
		}
	case net < 0:
		if record.User.IsZero() {
			return settlement.ErrDanglingUser
		}
		pool, err := e.vault.PoolBalance(ctx, record.Hive)
		if err != nil {
			return err
		}
		if pool < uint64(-net) {
			return escrow.ErrInsufficientBalance
		}
	}
	return nil
}

// AddMeters records meter addresses on the calling hive's settlement
// roster. The roster is a convenience projection for display and iteration;
// meter-to-hive ownership itself lives in the meter registry.
func (e *Engine) AddMeters(ctx context.Context, keys []string) error {
	identity, err := auth.RequireAnyRole(ctx, auth.RoleHive, auth.RoleAdmin)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return settlement.ErrInvalidInput
	}
	addrs := make([]registry.Address, 0, len(keys))
	for _, key := range keys {
		addr, err := registry.ParseAddress(key)
		if err != nil {
			return settlement.ErrInvalidInput
		}
		if _, err := e.meters.Get(ctx, addr); err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}

	e.rosterMu.Lock()
	defer e.rosterMu.Unlock()
	existing := e.roster[identity.Address]
	for _, addr := range addrs {
		if !containsAddress(existing, addr) {
			existing = append(existing, addr)
		}
	}
	e.roster[identity.Address] = existing
	return nil
}

// GetMeters returns the calling hive's roster in insertion order.
func (e *Engine) GetMeters(ctx context.Context) ([]registry.Address, error) {
	identity, err := auth.RequireAnyRole(ctx, auth.RoleHive, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	e.rosterMu.RLock()
	defer e.rosterMu.RUnlock()
	return append([]registry.Address(nil), e.roster[identity.Address]...), nil
}

// History returns the settlement journal of one meter.
func (e *Engine) History(ctx context.Context, meter string) ([]settlement.JournalEntry, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	meterAddr, err := registry.ParseAddress(meter)
	if err != nil {
		return nil, settlement.ErrInvalidInput
	}
	return e.journal.ListByMeter(ctx, meterAddr)
}

// SlotHistory returns the settlement journal of one slot.
func (e *Engine) SlotHistory(ctx context.Context, slot settlement.Slot) ([]settlement.JournalEntry, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return e.journal.ListBySlot(ctx, slot)
}

// FullHistory returns the whole settlement journal.
func (e *Engine) FullHistory(ctx context.Context) ([]settlement.JournalEntry, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return e.journal.List(ctx)
}

func (e *Engine) logAudit(ctx context.Context, identity auth.Identity, slot settlement.Slot, net int64) {
	if e.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{
		"slot":       int(slot),
		"net_amount": net,
	})
	_ = e.auditor.Log(ctx, audit.Entry{
		Actor:        identity.Address.String(),
		Role:         string(identity.Role),
		Action:       "settlement.submit",
		ResourceType: "settlement",
		ResourceID:   identity.Address.String(),
		Metadata:     metadata,
	})
}

// chargeFor computes flow*price with overflow checks, bounded so the result
// also fits the signed netting arithmetic.
func chargeFor(flow, price uint64) (uint64, error) {
	if price != 0 && flow > math.MaxUint64/price {
		return 0, settlement.ErrAmountOverflow
	}
	amount := flow * price
	if amount > math.MaxInt64 {
		return 0, settlement.ErrAmountOverflow
	}
	return amount, nil
}

// addSigned accumulates sign*amount onto net with overflow checks.
func addSigned(net, sign int64, amount uint64) (int64, error) {
	delta := int64(amount)
	if sign < 0 {
		delta = -delta
	}
	sum := net + delta
	if (delta > 0 && sum < net) || (delta < 0 && sum > net) {
		return 0, settlement.ErrAmountOverflow
	}
	return sum, nil
}

func containsAddress(list []registry.Address, addr registry.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
