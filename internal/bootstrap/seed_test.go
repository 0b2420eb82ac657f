package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	hivemem "hivegrid/internal/registry/hives/infrastructure/memory"
	metermem "hivegrid/internal/registry/meters/infrastructure/memory"
	tariffmem "hivegrid/internal/registry/tariffs/infrastructure/memory"
	"hivegrid/internal/token"
)

func testStores() Stores {
	return Stores{
		Tariffs: tariffmem.NewRegistry(),
		Hives:   hivemem.NewRegistry(),
		Meters:  metermem.NewRegistry(),
		Ledger:  token.NewMemoryLedger(),
	}
}

func TestApply_DefaultSeed(t *testing.T) {
	stores := testStores()
	if err := Apply(context.Background(), DefaultSeed(), stores); err != nil {
		t.Fatalf("apply: %v", err)
	}

	book, err := stores.Tariffs.List(context.Background())
	if err != nil {
		t.Fatalf("list tariffs: %v", err)
	}
	if len(book) != 3 {
		t.Fatalf("expected three seed tariffs, got %d", len(book))
	}
	high, err := stores.Tariffs.Get(context.Background(), "high")
	if err != nil {
		t.Fatalf("get high: %v", err)
	}
	if high.Price != 1000 {
		t.Fatalf("unexpected high price: %d", high.Price)
	}
}

func TestLoadSeed_File(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("testdata", "seed.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	stores := testStores()
	if err := Apply(context.Background(), seed, stores); err != nil {
		t.Fatalf("apply: %v", err)
	}

	owner, err := seed.TariffOwnerAddress()
	if err != nil {
		t.Fatalf("tariff owner: %v", err)
	}
	if owner.IsZero() {
		t.Fatalf("expected a tariff owner from the file")
	}

	hiveList, err := stores.Hives.List(context.Background())
	if err != nil {
		t.Fatalf("list hives: %v", err)
	}
	if len(hiveList) != 1 {
		t.Fatalf("expected one seeded hive, got %d", len(hiveList))
	}
	meterList, err := stores.Meters.List(context.Background())
	if err != nil {
		t.Fatalf("list meters: %v", err)
	}
	if len(meterList) != 2 {
		t.Fatalf("expected two seeded meters, got %d", len(meterList))
	}
	if meterList[0].Hive != hiveList[0] {
		t.Fatalf("seeded meter not linked to seeded hive")
	}
	balance, _ := stores.Ledger.BalanceOf(context.Background(), meterList[0].User)
	if balance != 50000 {
		t.Fatalf("unexpected seeded balance: %d", balance)
	}
}

func TestLoadSeed_EmptyPathUsesDefault(t *testing.T) {
	seed, err := LoadSeed("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seed.Tariffs) != 3 {
		t.Fatalf("expected the default tariff book, got %d entries", len(seed.Tariffs))
	}
}
