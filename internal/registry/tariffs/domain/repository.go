package tariffs

import "context"

// Registry persists tariffs keyed by name. Batch mutations are atomic.
type Registry interface {
	AddBatch(ctx context.Context, batch []Tariff) error
	UpdateBatch(ctx context.Context, batch []Tariff) error
	RemoveBatch(ctx context.Context, names []string) error

	Get(ctx context.Context, name string) (*Tariff, error)
	IsRegistered(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]Tariff, error)
}
