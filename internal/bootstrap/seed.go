package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
	meters "hivegrid/internal/registry/meters/domain"
	tariffs "hivegrid/internal/registry/tariffs/domain"
	"hivegrid/internal/token"
)

// SeedTariff is one tariff row in a seed file.
type SeedTariff struct {
	Name      string `yaml:"name"`
	Direction int    `yaml:"direction"`
	Price     uint64 `yaml:"price"`
}

// SeedHive is one hive row in a seed file.
type SeedHive struct {
	Key   string `yaml:"key"`
	Owner string `yaml:"owner"`
}

// SeedMeter is one meter row in a seed file.
type SeedMeter struct {
	Key         string `yaml:"key"`
	Hive        string `yaml:"hive"`
	User        string `yaml:"user"`
	Rating      uint64 `yaml:"rating"`
	Type        int    `yaml:"type"`
	Description string `yaml:"description"`
}

// SeedBalance is one token balance row in a seed file.
type SeedBalance struct {
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// Seed describes the initial registry and ledger state loaded at startup.
type Seed struct {
	TariffOwner string        `yaml:"tariff_owner"`
	Tariffs     []SeedTariff  `yaml:"tariffs"`
	Hives       []SeedHive    `yaml:"hives"`
	Meters      []SeedMeter   `yaml:"meters"`
	Balances    []SeedBalance `yaml:"balances"`
}

// DefaultSeed returns the standard tariff book: two buy rates and one sell
// rate.
func DefaultSeed() Seed {
	return Seed{
		Tariffs: []SeedTariff{
			{Name: "high", Direction: int(tariffs.DirectionBuy), Price: 1000},
			{Name: "low", Direction: int(tariffs.DirectionBuy), Price: 500},
			{Name: "sell", Direction: int(tariffs.DirectionSell), Price: 400},
		},
	}
}

// LoadSeed reads a seed file. An empty path yields the default seed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	seed := DefaultSeed()
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// Stores collects the write targets the seed is applied to. Ledger may be
// nil when the token ledger is external.
type Stores struct {
	Tariffs tariffs.Registry
	Hives   hives.Registry
	Meters  meters.Registry
	Ledger  *token.MemoryLedger
}

// Apply writes the seed into the stores. Seeding happens before the server
// accepts requests, so it bypasses the service-level authorization. A store
// that already holds tariffs is considered bootstrapped and left alone, so
// restarts against a persistent backend are safe.
func Apply(ctx context.Context, seed Seed, stores Stores) error {
	if stores.Tariffs == nil || stores.Hives == nil || stores.Meters == nil {
		return errors.New("bootstrap: nil store")
	}
	existing, err := stores.Tariffs.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: inspect tariffs: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	if len(seed.Tariffs) > 0 {
		batch := make([]tariffs.Tariff, 0, len(seed.Tariffs))
		for _, row := range seed.Tariffs {
			batch = append(batch, tariffs.Tariff{
				Name:      row.Name,
				Direction: tariffs.Direction(row.Direction),
				Price:     row.Price,
			})
		}
		if err := stores.Tariffs.AddBatch(ctx, batch); err != nil {
			return fmt.Errorf("bootstrap: seed tariffs: %w", err)
		}
	}

	for _, row := range seed.Hives {
		key, err := registry.ParseAddress(row.Key)
		if err != nil {
			return fmt.Errorf("bootstrap: hive key %q: %w", row.Key, err)
		}
		owner, err := registry.ParseAddress(row.Owner)
		if err != nil {
			return fmt.Errorf("bootstrap: hive owner %q: %w", row.Owner, err)
		}
		if err := stores.Hives.Add(ctx, hives.Hive{Key: key, Owner: owner}); err != nil {
			return fmt.Errorf("bootstrap: seed hive %s: %w", row.Key, err)
		}
	}

	if len(seed.Meters) > 0 {
		batch := make([]meters.Meter, 0, len(seed.Meters))
		for _, row := range seed.Meters {
			key, err := registry.ParseAddress(row.Key)
			if err != nil {
				return fmt.Errorf("bootstrap: meter key %q: %w", row.Key, err)
			}
			hive, err := parseOptional(row.Hive)
			if err != nil {
				return fmt.Errorf("bootstrap: meter hive %q: %w", row.Hive, err)
			}
			user, err := parseOptional(row.User)
			if err != nil {
				return fmt.Errorf("bootstrap: meter user %q: %w", row.User, err)
			}
			batch = append(batch, meters.Meter{
				Key:         key,
				Hive:        hive,
				User:        user,
				Rating:      row.Rating,
				Type:        meters.MeterType(row.Type),
				Description: row.Description,
			})
		}
		if err := stores.Meters.RegisterBatch(ctx, batch); err != nil {
			return fmt.Errorf("bootstrap: seed meters: %w", err)
		}
	}

	if stores.Ledger != nil {
		for _, row := range seed.Balances {
			account, err := registry.ParseAddress(row.Account)
			if err != nil {
				return fmt.Errorf("bootstrap: balance account %q: %w", row.Account, err)
			}
			stores.Ledger.Mint(account, row.Amount)
		}
	}
	return nil
}

// TariffOwnerAddress parses the seed's tariff owner wallet. A missing owner is
// the zero address, which disables tariff-owner updates.
func (s Seed) TariffOwnerAddress() (registry.Address, error) {
	if s.TariffOwner == "" {
		return registry.ZeroAddress, nil
	}
	return registry.ParseAddress(s.TariffOwner)
}

func parseOptional(value string) (registry.Address, error) {
	if value == "" || value == "0" {
		return registry.ZeroAddress, nil
	}
	return registry.ParseAddress(value)
}
