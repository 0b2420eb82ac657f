package meters

import (
	"context"

	"hivegrid/internal/registry"
)

// Registry persists meter records. Every batch mutation is atomic: if any
// element fails a precondition, none of the batch is applied.
type Registry interface {
	RegisterBatch(ctx context.Context, batch []Meter) error
	UpdateBatch(ctx context.Context, batch []Meter) error
	RemoveBatch(ctx context.Context, keys []registry.Address) error
	AssignHive(ctx context.Context, keys []registry.Address, hive registry.Address) error
	SetEndUsers(ctx context.Context, keys []registry.Address, users []registry.Address) error

	IsRegistered(ctx context.Context, key registry.Address) (bool, error)
	Get(ctx context.Context, key registry.Address) (*Meter, error)
	List(ctx context.Context) ([]Meter, error)
}
