package application

import (
	"context"
	"errors"
	"testing"

	"hivegrid/internal/auth"
	escrow "hivegrid/internal/escrow/domain"
	escrowmem "hivegrid/internal/escrow/infrastructure/memory"
	"hivegrid/internal/eventing"
	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
	hivemem "hivegrid/internal/registry/hives/infrastructure/memory"
	meters "hivegrid/internal/registry/meters/domain"
	metermem "hivegrid/internal/registry/meters/infrastructure/memory"
	"hivegrid/internal/token"
)

var (
	vaultAddr  = registry.MustAddress("0x0000000000000000000000000000000000000ec0")
	meterAddr  = registry.MustAddress("0x0000000000000000000000000000000000000100")
	hiveAddr   = registry.MustAddress("0x0000000000000000000000000000000000000200")
	wrongHive  = registry.MustAddress("0x0000000000000000000000000000000000000201")
	walletAddr = registry.MustAddress("0x0000000000000000000000000000000000000300")
	payoutAddr = registry.MustAddress("0x0000000000000000000000000000000000000400")
	hiveOwner  = registry.MustAddress("0x0000000000000000000000000000000000000500")
)

type fixture struct {
	vault  *Vault
	ledger *token.MemoryLedger
	bus    *eventing.InMemoryBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meterReg := metermem.NewRegistry()
	err := meterReg.RegisterBatch(context.Background(), []meters.Meter{{
		Key:         meterAddr,
		Hive:        hiveAddr,
		User:        walletAddr,
		Rating:      5000,
		Type:        meters.MeterTypeConsumer,
		Description: "household meter",
	}})
	if err != nil {
		t.Fatalf("register meter: %v", err)
	}
	hiveReg := hivemem.NewRegistry()
	if err := hiveReg.Add(context.Background(), hives.Hive{Key: hiveAddr, Owner: hiveOwner}); err != nil {
		t.Fatalf("add hive: %v", err)
	}
	ledger := token.NewMemoryLedger()
	ledger.Mint(walletAddr, 10_000)
	ledger.Mint(hiveOwner, 10_000)

	bus := eventing.NewInMemoryBus()
	vault, err := NewVault(vaultAddr, escrowmem.NewRepository(), ledger, meterReg, hiveReg, bus, nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return &fixture{vault: vault, ledger: ledger, bus: bus}
}

func identityCtx(address registry.Address, role auth.Role) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{Address: address, Role: role})
}

func TestDeposit_PullsEntireAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := identityCtx(walletAddr, auth.RoleMeter)

	if err := f.ledger.Approve(ctx, walletAddr, vaultAddr, 2500); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.vault.Deposit(ctx, meterAddr.String(), hiveAddr.String()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	balance, err := f.vault.BalanceOf(ctx, meterAddr.String())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 2500 {
		t.Fatalf("unexpected escrow balance: %d", balance)
	}
	wallet, _ := f.ledger.BalanceOf(ctx, walletAddr)
	if wallet != 7500 {
		t.Fatalf("unexpected wallet balance: %d", wallet)
	}
	allowance, _ := f.ledger.Allowance(ctx, walletAddr, vaultAddr)
	if allowance != 0 {
		t.Fatalf("allowance not consumed: %d", allowance)
	}
}

func TestDeposit_HiveMismatchLeavesAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := identityCtx(walletAddr, auth.RoleMeter)
	_ = f.ledger.Approve(ctx, walletAddr, vaultAddr, 2500)

	err := f.vault.Deposit(ctx, meterAddr.String(), wrongHive.String())
	if !errors.Is(err, escrow.ErrHiveMismatch) {
		t.Fatalf("expected ErrHiveMismatch, got %v", err)
	}

	allowance, _ := f.ledger.Allowance(ctx, walletAddr, vaultAddr)
	if allowance != 2500 {
		t.Fatalf("allowance should survive a failed deposit, got %d", allowance)
	}
	balance, _ := f.vault.BalanceOf(ctx, meterAddr.String())
	if balance != 0 {
		t.Fatalf("escrow balance should stay zero, got %d", balance)
	}

	if err := f.vault.CancelDeposit(ctx); err != nil {
		t.Fatalf("cancel deposit: %v", err)
	}
	allowance, _ = f.ledger.Allowance(ctx, walletAddr, vaultAddr)
	if allowance != 0 {
		t.Fatalf("cancel should revoke allowance, got %d", allowance)
	}
}

func TestDeposit_ZeroAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := identityCtx(walletAddr, auth.RoleMeter)

	err := f.vault.Deposit(ctx, meterAddr.String(), hiveAddr.String())
	if !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeposit_UnregisteredMeter(t *testing.T) {
	f := newFixture(t)
	ctx := identityCtx(walletAddr, auth.RoleMeter)
	_ = f.ledger.Approve(ctx, walletAddr, vaultAddr, 100)

	unknown := registry.MustAddress("0x000000000000000000000000000000000000dead")
	err := f.vault.Deposit(ctx, unknown.String(), hiveAddr.String())
	if !errors.Is(err, meters.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestDepositHiveOwner(t *testing.T) {
	f := newFixture(t)
	ctx := identityCtx(hiveOwner, auth.RoleViewer)
	_ = f.ledger.Approve(ctx, hiveOwner, vaultAddr, 4000)

	if err := f.vault.DepositHiveOwner(ctx, hiveAddr.String()); err != nil {
		t.Fatalf("deposit hive owner: %v", err)
	}
	pool, err := f.vault.HiveBalanceOf(ctx, hiveAddr.String())
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if pool != 4000 {
		t.Fatalf("unexpected pool balance: %d", pool)
	}

	_ = f.ledger.Approve(ctx, hiveOwner, vaultAddr, 100)
	if err := f.vault.DepositHiveOwner(ctx, wrongHive.String()); !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown hive, got %v", err)
	}
}

func TestWithdraw_RequiresMeterHive(t *testing.T) {
	f := newFixture(t)
	depositCtx := identityCtx(walletAddr, auth.RoleMeter)
	_ = f.ledger.Approve(depositCtx, walletAddr, vaultAddr, 2500)
	if err := f.vault.Deposit(depositCtx, meterAddr.String(), hiveAddr.String()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	strangerCtx := identityCtx(wrongHive, auth.RoleHive)
	if err := f.vault.Withdraw(strangerCtx, meterAddr.String(), payoutAddr.String(), 1000); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong hive, got %v", err)
	}

	viewerCtx := identityCtx(hiveAddr, auth.RoleViewer)
	if err := f.vault.Withdraw(viewerCtx, meterAddr.String(), payoutAddr.String(), 1000); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong role, got %v", err)
	}

	hiveCtx := identityCtx(hiveAddr, auth.RoleHive)
	if err := f.vault.Withdraw(hiveCtx, meterAddr.String(), payoutAddr.String(), 1000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	balance, _ := f.vault.BalanceOf(hiveCtx, meterAddr.String())
	if balance != 1500 {
		t.Fatalf("unexpected remaining escrow balance: %d", balance)
	}
	wallet, _ := f.ledger.BalanceOf(context.Background(), payoutAddr)
	if wallet != 1000 {
		t.Fatalf("unexpected payout wallet balance: %d", wallet)
	}
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	hiveCtx := identityCtx(hiveAddr, auth.RoleHive)

	err := f.vault.Withdraw(hiveCtx, meterAddr.String(), payoutAddr.String(), 1)
	if !errors.Is(err, escrow.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSettleChargeAndPayout(t *testing.T) {
	f := newFixture(t)
	depositCtx := identityCtx(walletAddr, auth.RoleMeter)
	_ = f.ledger.Approve(depositCtx, walletAddr, vaultAddr, 2000)
	if err := f.vault.Deposit(depositCtx, meterAddr.String(), hiveAddr.String()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	ctx := context.Background()
	if err := f.vault.SettleCharge(ctx, meterAddr, hiveOwner, 1200); err != nil {
		t.Fatalf("settle charge: %v", err)
	}
	readCtx := identityCtx(hiveAddr, auth.RoleHive)
	balance, _ := f.vault.BalanceOf(readCtx, meterAddr.String())
	if balance != 800 {
		t.Fatalf("unexpected escrow balance after charge: %d", balance)
	}
	ownerWallet, _ := f.ledger.BalanceOf(ctx, hiveOwner)
	if ownerWallet != 11_200 {
		t.Fatalf("charge should pay the hive owner wallet, got %d", ownerWallet)
	}

	ownerCtx := identityCtx(hiveOwner, auth.RoleViewer)
	_ = f.ledger.Approve(ownerCtx, hiveOwner, vaultAddr, 500)
	if err := f.vault.DepositHiveOwner(ownerCtx, hiveAddr.String()); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
	if err := f.vault.SettlePayout(ctx, hiveAddr, walletAddr, 200); err != nil {
		t.Fatalf("settle payout: %v", err)
	}
	pool, _ := f.vault.HiveBalanceOf(readCtx, hiveAddr.String())
	if pool != 300 {
		t.Fatalf("unexpected pool after payout: %d", pool)
	}
	userWallet, _ := f.ledger.BalanceOf(ctx, walletAddr)
	if userWallet != 8200 {
		t.Fatalf("payout should pay the end-user wallet, got %d", userWallet)
	}

	if err := f.vault.SettlePayout(ctx, hiveAddr, walletAddr, 5000); !errors.Is(err, escrow.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance on drained pool, got %v", err)
	}
}

func TestVault_PublishesEscrowEvents(t *testing.T) {
	f := newFixture(t)
	var deposits []eventing.EscrowDeposited
	var withdrawals []eventing.EscrowWithdrawn
	eventing.On(f.bus, func(ctx context.Context, event eventing.EscrowDeposited) error {
		deposits = append(deposits, event)
		return nil
	})
	eventing.On(f.bus, func(ctx context.Context, event eventing.EscrowWithdrawn) error {
		withdrawals = append(withdrawals, event)
		return nil
	})

	depositCtx := identityCtx(walletAddr, auth.RoleMeter)
	_ = f.ledger.Approve(depositCtx, walletAddr, vaultAddr, 2500)
	if err := f.vault.Deposit(depositCtx, meterAddr.String(), hiveAddr.String()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	ownerCtx := identityCtx(hiveOwner, auth.RoleViewer)
	_ = f.ledger.Approve(ownerCtx, hiveOwner, vaultAddr, 4000)
	if err := f.vault.DepositHiveOwner(ownerCtx, hiveAddr.String()); err != nil {
		t.Fatalf("deposit hive owner: %v", err)
	}

	hiveCtx := identityCtx(hiveAddr, auth.RoleHive)
	if err := f.vault.Withdraw(hiveCtx, meterAddr.String(), payoutAddr.String(), 1000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(deposits) != 2 {
		t.Fatalf("expected two deposit events, got %d", len(deposits))
	}
	if deposits[0].Account != meterAddr.String() || deposits[0].Amount != 2500 || deposits[0].OwnerPool {
		t.Fatalf("unexpected meter deposit event: %+v", deposits[0])
	}
	if deposits[1].Account != hiveAddr.String() || deposits[1].Amount != 4000 || !deposits[1].OwnerPool {
		t.Fatalf("unexpected pool deposit event: %+v", deposits[1])
	}
	if len(withdrawals) != 1 {
		t.Fatalf("expected one withdrawal event, got %d", len(withdrawals))
	}
	if withdrawals[0].Meter != meterAddr.String() || withdrawals[0].Wallet != payoutAddr.String() || withdrawals[0].Amount != 1000 {
		t.Fatalf("unexpected withdrawal event: %+v", withdrawals[0])
	}
	if deposits[0].EventID == "" || deposits[0].OccurredAt.IsZero() {
		t.Fatalf("event missing id or timestamp: %+v", deposits[0])
	}

	// A rejected deposit publishes nothing.
	if err := f.vault.Deposit(depositCtx, meterAddr.String(), wrongHive.String()); !errors.Is(err, escrow.ErrInvalidInput) && !errors.Is(err, escrow.ErrHiveMismatch) {
		t.Fatalf("expected rejected deposit, got %v", err)
	}
	if len(deposits) != 2 {
		t.Fatalf("rejected deposit published an event")
	}
}

func TestDeposit_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	err := f.vault.Deposit(context.Background(), meterAddr.String(), hiveAddr.String())
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
