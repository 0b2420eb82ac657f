package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	escrow "hivegrid/internal/escrow/domain"
	"hivegrid/internal/eventing"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	meters "hivegrid/internal/registry/meters/domain"
	"hivegrid/internal/token"
)

// MeterDirectory resolves meters for deposit and withdrawal checks.
type MeterDirectory interface {
	Get(ctx context.Context, key registry.Address) (*meters.Meter, error)
}

// HiveDirectory answers hive membership for owner-pool deposits.
type HiveDirectory interface {
	IsHive(ctx context.Context, key registry.Address) (bool, error)
}

// Vault escrows settlement tokens. Wallets fund a meter's escrow balance by
// approving the vault's token account and calling Deposit, which pulls the
// entire approved amount. Hives drain settled balances with Withdraw. The
// settlement engine pays settled value back out of the vault's token
// holdings through SettleCharge and SettlePayout.
type Vault struct {
	account registry.Address
	books   escrow.Repository
	tokens  token.Ledger
	meters  MeterDirectory
	hives   HiveDirectory
	bus     eventing.EventBus
	auditor audit.Logger
}

// NewVault constructs the vault. account is the vault's own token-ledger
// address, the recipient of every deposit pull. bus and auditor may be nil.
func NewVault(account registry.Address, books escrow.Repository, tokens token.Ledger, meterDir MeterDirectory, hiveDir HiveDirectory, bus eventing.EventBus, auditor audit.Logger) (*Vault, error) {
	if account.IsZero() {
		return nil, errors.New("vault: zero account address")
	}
	if books == nil || tokens == nil || meterDir == nil || hiveDir == nil {
		return nil, errors.New("vault: nil dependency")
	}
	return &Vault{
		account: account,
		books:   books,
		tokens:  tokens,
		meters:  meterDir,
		hives:   hiveDir,
		bus:     bus,
		auditor: auditor,
	}, nil
}

// Account returns the vault's token-ledger address.
func (v *Vault) Account() registry.Address {
	return v.account
}

// Deposit pulls the caller's entire outstanding allowance into the vault and
// credits it to the meter's escrow balance. The claimed hive must match the
// meter's registered hive; on mismatch the allowance is left untouched so
// the caller can retry or cancel.
func (v *Vault) Deposit(ctx context.Context, meter, claimedHive string) (err error) {
	defer func() { metrics.ObserveDeposit(err) }()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.ErrUnauthorized
	}
	meterAddr, err := registry.ParseAddress(meter)
	if err != nil {
		return escrow.ErrInvalidInput
	}
	hiveAddr, err := registry.ParseAddress(claimedHive)
	if err != nil {
		return escrow.ErrInvalidInput
	}
	record, err := v.meters.Get(ctx, meterAddr)
	if err != nil {
		return err
	}
	if record.Hive != hiveAddr {
		return escrow.ErrHiveMismatch
	}
	amount, err := v.tokens.Allowance(ctx, identity.Address, v.account)
	if err != nil {
		return err
	}
	if amount == 0 {
		return escrow.ErrInvalidInput
	}
	if err = v.tokens.TransferFrom(ctx, v.account, identity.Address, v.account, amount); err != nil {
		return err
	}
	if err = v.books.Credit(ctx, meterAddr, amount); err != nil {
		return err
	}
	v.publish(ctx, eventing.EscrowDeposited{
		EventID:    eventing.NewEventID(),
		Account:    meterAddr.String(),
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
	v.logAudit(ctx, identity, "escrow.deposit", meter, amount)
	return nil
}

// DepositHiveOwner pulls the caller's entire outstanding allowance into the
// vault and credits it to the hive's owner pool. The pool funds payouts to
// producing meters at settlement.
func (v *Vault) DepositHiveOwner(ctx context.Context, hive string) (err error) {
	defer func() { metrics.ObserveDeposit(err) }()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.ErrUnauthorized
	}
	hiveAddr, err := registry.ParseAddress(hive)
	if err != nil {
		return escrow.ErrInvalidInput
	}
	known, err := v.hives.IsHive(ctx, hiveAddr)
	if err != nil {
		return err
	}
	if !known {
		return escrow.ErrInvalidInput
	}
	amount, err := v.tokens.Allowance(ctx, identity.Address, v.account)
	if err != nil {
		return err
	}
	if amount == 0 {
		return escrow.ErrInvalidInput
	}
	if err = v.tokens.TransferFrom(ctx, v.account, identity.Address, v.account, amount); err != nil {
		return err
	}
	if err = v.books.CreditHive(ctx, hiveAddr, amount); err != nil {
		return err
	}
	v.publish(ctx, eventing.EscrowDeposited{
		EventID:    eventing.NewEventID(),
		Account:    hiveAddr.String(),
		Amount:     amount,
		OwnerPool:  true,
		OccurredAt: time.Now().UTC(),
	})
	v.logAudit(ctx, identity, "escrow.deposit_hive_owner", hive, amount)
	return nil
}

// CancelDeposit revokes the caller's outstanding allowance towards the
// vault. The escape hatch after a failed deposit.
func (v *Vault) CancelDeposit(ctx context.Context) error {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.ErrUnauthorized
	}
	return v.tokens.Approve(ctx, identity.Address, v.account, 0)
}

// Withdraw moves amount from a meter's escrow balance to an external token
// wallet. Only the meter's current hive may withdraw.
func (v *Vault) Withdraw(ctx context.Context, fromMeter, toWallet string, amount uint64) (err error) {
	defer func() { metrics.ObserveWithdrawal(err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleHive)
	if err != nil {
		return err
	}
	meterAddr, err := registry.ParseAddress(fromMeter)
	if err != nil {
		return escrow.ErrInvalidInput
	}
	walletAddr, err := registry.ParseAddress(toWallet)
	if err != nil {
		return escrow.ErrInvalidInput
	}
	if amount == 0 {
		return escrow.ErrInvalidInput
	}
	record, err := v.meters.Get(ctx, meterAddr)
	if err != nil {
		return err
	}
	if record.Hive != identity.Address {
		return auth.ErrForbidden
	}
	if err = v.books.Debit(ctx, meterAddr, amount); err != nil {
		return err
	}
	if err = v.tokens.Transfer(ctx, v.account, walletAddr, amount); err != nil {
		// Restore the internal balance so the books stay consistent
		// with the vault's token holdings.
		_ = v.books.Credit(ctx, meterAddr, amount)
		return err
	}
	v.publish(ctx, eventing.EscrowWithdrawn{
		EventID:    eventing.NewEventID(),
		Meter:      meterAddr.String(),
		Wallet:     walletAddr.String(),
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
	v.logAudit(ctx, identity, "escrow.withdraw", fromMeter, amount)
	return nil
}

// SettleCharge pays a settled debt out of a meter's escrow balance to the
// hive owner's token wallet. Called by the settlement engine only; the
// engine has already authorized the submission.
func (v *Vault) SettleCharge(ctx context.Context, meter, ownerWallet registry.Address, amount uint64) error {
	if err := v.books.Debit(ctx, meter, amount); err != nil {
		return err
	}
	if err := v.tokens.Transfer(ctx, v.account, ownerWallet, amount); err != nil {
		_ = v.books.Credit(ctx, meter, amount)
		return err
	}
	return nil
}

// SettlePayout pays a settled credit out of a hive's owner pool to the
// end-user's token wallet. Called by the settlement engine only.
func (v *Vault) SettlePayout(ctx context.Context, hive, userWallet registry.Address, amount uint64) error {
	if err := v.books.DebitHive(ctx, hive, amount); err != nil {
		return err
	}
	if err := v.tokens.Transfer(ctx, v.account, userWallet, amount); err != nil {
		_ = v.books.CreditHive(ctx, hive, amount)
		return err
	}
	return nil
}

// EscrowBalance returns a meter's escrow balance without an ambient
// identity check. Called by the settlement engine during validation.
func (v *Vault) EscrowBalance(ctx context.Context, meter registry.Address) (uint64, error) {
	return v.books.BalanceOf(ctx, meter)
}

// PoolBalance returns a hive's owner-pool balance without an ambient
// identity check. Called by the settlement engine during validation.
func (v *Vault) PoolBalance(ctx context.Context, hive registry.Address) (uint64, error) {
	return v.books.HiveBalanceOf(ctx, hive)
}

// BalanceOf returns a meter's escrow balance.
func (v *Vault) BalanceOf(ctx context.Context, meter string) (uint64, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return 0, auth.ErrUnauthorized
	}
	meterAddr, err := registry.ParseAddress(meter)
	if err != nil {
		return 0, escrow.ErrInvalidInput
	}
	return v.books.BalanceOf(ctx, meterAddr)
}

// HiveBalanceOf returns a hive's owner-pool balance.
func (v *Vault) HiveBalanceOf(ctx context.Context, hive string) (uint64, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return 0, auth.ErrUnauthorized
	}
	hiveAddr, err := registry.ParseAddress(hive)
	if err != nil {
		return 0, escrow.ErrInvalidInput
	}
	return v.books.HiveBalanceOf(ctx, hiveAddr)
}

// ListBalances returns all meter escrow balances.
func (v *Vault) ListBalances(ctx context.Context) ([]escrow.MeterBalance, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return v.books.ListBalances(ctx)
}

// ListHiveBalances returns all hive owner-pool balances.
func (v *Vault) ListHiveBalances(ctx context.Context) ([]escrow.HiveBalance, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return v.books.ListHiveBalances(ctx)
}

// publish is fire and forget; event delivery never fails a completed
// transfer.
func (v *Vault) publish(ctx context.Context, event any) {
	if v.bus == nil {
		return
	}
	_ = v.bus.Publish(ctx, event)
}

func (v *Vault) logAudit(ctx context.Context, identity auth.Identity, action, resource string, amount uint64) {
	if v.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"amount": amount})
	_ = v.auditor.Log(ctx, audit.Entry{
		Actor:        identity.Address.String(),
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "escrow",
		ResourceID:   resource,
		Metadata:     metadata,
	})
}
