package hives

import (
	"context"

	"hivegrid/internal/registry"
)

// Registry persists hive records and an enumerable address list. Removal
// uses a swap-and-pop compaction: the relative order of remaining entries is
// not preserved, but each entry's key/owner pairing is.
type Registry interface {
	Add(ctx context.Context, hive Hive) error
	Drop(ctx context.Context, key registry.Address) error
	ChangeOwner(ctx context.Context, key, newOwner registry.Address) error

	List(ctx context.Context) ([]registry.Address, error)
	Info(ctx context.Context, key registry.Address) (*Hive, error)
	IsHive(ctx context.Context, key registry.Address) (bool, error)
}
