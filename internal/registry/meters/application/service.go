package application

import (
	"context"
	"encoding/json"
	"errors"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	meters "hivegrid/internal/registry/meters/domain"
)

// Service exposes the meter registry operations with authorization and
// auditing. Mutations require the registry administrator role; the batch
// parallel-array wire shape is validated here before any record is built.
type Service struct {
	registry meters.Registry
	auditor  audit.Logger
}

// NewService constructs the service.
func NewService(registry meters.Registry, auditor audit.Logger) (*Service, error) {
	if registry == nil {
		return nil, errors.New("meter service: nil registry")
	}
	return &Service{registry: registry, auditor: auditor}, nil
}

// Registration is one element of a batch register/update request.
type Registration struct {
	Key         string
	Hive        string
	User        string
	Rating      uint64
	Type        int
	Description string
}

// RegisterBatch registers all meters or none.
func (s *Service) RegisterBatch(ctx context.Context, keys, hives, users []string, ratings []uint64, types []int, descriptions []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "register", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	batch, err := buildBatch(keys, hives, users, ratings, types, descriptions)
	if err != nil {
		return err
	}
	if err = s.registry.RegisterBatch(ctx, batch); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.register", keys)
	return nil
}

// UpdateBatch overwrites all fields of all meters or none.
func (s *Service) UpdateBatch(ctx context.Context, keys, hives, users []string, ratings []uint64, types []int, descriptions []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "update", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	batch, err := buildBatch(keys, hives, users, ratings, types, descriptions)
	if err != nil {
		return err
	}
	if err = s.registry.UpdateBatch(ctx, batch); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.update", keys)
	return nil
}

// RemoveBatch erases all meters or none.
func (s *Service) RemoveBatch(ctx context.Context, keys []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "remove", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	if err = s.registry.RemoveBatch(ctx, parsed); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.remove", keys)
	return nil
}

// AssignToHive links all meters to the hive, or none. The hive is not
// required to exist in the hive registry.
func (s *Service) AssignToHive(ctx context.Context, keys []string, hive string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "assign_hive", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	hiveAddr, err := registry.ParseAddress(hive)
	if err != nil {
		return meters.ErrInvalidInput
	}
	if err = s.registry.AssignHive(ctx, parsed, hiveAddr); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.assign_hive", keys)
	return nil
}

// UnassignFromHive resets the hive link of all meters to the zero address.
func (s *Service) UnassignFromHive(ctx context.Context, keys []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "unassign_hive", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	if err = s.registry.AssignHive(ctx, parsed, registry.ZeroAddress); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.unassign_hive", keys)
	return nil
}

// SetEndUser sets the end-user wallet of each meter, all or none.
func (s *Service) SetEndUser(ctx context.Context, keys, wallets []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "set_end_user", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	if len(keys) != len(wallets) {
		return meters.ErrInvalidInput
	}
	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	users := make([]registry.Address, len(wallets))
	for i, wallet := range wallets {
		addr, err := registry.ParseAddress(wallet)
		if err != nil {
			return meters.ErrInvalidInput
		}
		users[i] = addr
	}
	if err = s.registry.SetEndUsers(ctx, parsed, users); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.set_end_user", keys)
	return nil
}

// ClearEndUser resets the end-user wallet of all meters to the zero address.
func (s *Service) ClearEndUser(ctx context.Context, keys []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("meters", "clear_end_user", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	parsed, err := parseKeys(keys)
	if err != nil {
		return err
	}
	users := make([]registry.Address, len(parsed))
	for i := range users {
		users[i] = registry.ZeroAddress
	}
	if err = s.registry.SetEndUsers(ctx, parsed, users); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "meters.clear_end_user", keys)
	return nil
}

// IsRegistered reports whether the key is present.
func (s *Service) IsRegistered(ctx context.Context, key string) (bool, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return false, auth.ErrUnauthorized
	}
	addr, err := registry.ParseAddress(key)
	if err != nil {
		return false, meters.ErrInvalidInput
	}
	return s.registry.IsRegistered(ctx, addr)
}

// Get returns the full record for key.
func (s *Service) Get(ctx context.Context, key string) (*meters.Meter, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	addr, err := registry.ParseAddress(key)
	if err != nil {
		return nil, meters.ErrInvalidInput
	}
	return s.registry.Get(ctx, addr)
}

// HiveOf returns the hive assigned to key. A zero address means the meter
// is registered but unassigned.
func (s *Service) HiveOf(ctx context.Context, key string) (registry.Address, error) {
	record, err := s.Get(ctx, key)
	if err != nil {
		return registry.ZeroAddress, err
	}
	return record.Hive, nil
}

// UserOf returns the end-user wallet assigned to key. A zero address means
// no end user is set.
func (s *Service) UserOf(ctx context.Context, key string) (registry.Address, error) {
	record, err := s.Get(ctx, key)
	if err != nil {
		return registry.ZeroAddress, err
	}
	return record.User, nil
}

// List returns all meter records in registration order.
func (s *Service) List(ctx context.Context) ([]meters.Meter, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return s.registry.List(ctx)
}

func buildBatch(keys, hives, users []string, ratings []uint64, types []int, descriptions []string) ([]meters.Meter, error) {
	n := len(keys)
	if len(hives) != n || len(users) != n || len(ratings) != n || len(types) != n || len(descriptions) != n {
		return nil, meters.ErrInvalidInput
	}
	batch := make([]meters.Meter, 0, n)
	for i := 0; i < n; i++ {
		key, err := registry.ParseAddress(keys[i])
		if err != nil {
			return nil, meters.ErrInvalidInput
		}
		hive, err := parseOptionalAddress(hives[i])
		if err != nil {
			return nil, meters.ErrInvalidInput
		}
		user, err := parseOptionalAddress(users[i])
		if err != nil {
			return nil, meters.ErrInvalidInput
		}
		m := meters.Meter{
			Key:         key,
			Hive:        hive,
			User:        user,
			Rating:      ratings[i],
			Type:        meters.MeterType(types[i]),
			Description: descriptions[i],
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func parseKeys(keys []string) ([]registry.Address, error) {
	parsed := make([]registry.Address, len(keys))
	for i, key := range keys {
		addr, err := registry.ParseAddress(key)
		if err != nil {
			return nil, meters.ErrInvalidInput
		}
		parsed[i] = addr
	}
	return parsed, nil
}

func parseOptionalAddress(value string) (registry.Address, error) {
	if value == "" || value == "0" || value == registry.ZeroAddress.String() {
		return registry.ZeroAddress, nil
	}
	return registry.ParseAddress(value)
}

func (s *Service) logAudit(ctx context.Context, identity auth.Identity, action string, keys []string) {
	if s.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"keys": keys})
	_ = s.auditor.Log(ctx, audit.Entry{
		Actor:        identity.Address.String(),
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "meter",
		Metadata:     metadata,
	})
}
