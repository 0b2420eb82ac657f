package application

import (
	"context"
	"encoding/json"
	"errors"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
)

// Service exposes hive registry operations with authorization and auditing.
type Service struct {
	registry hives.Registry
	auditor  audit.Logger
}

// NewService constructs the service.
func NewService(registry hives.Registry, auditor audit.Logger) (*Service, error) {
	if registry == nil {
		return nil, errors.New("hive service: nil registry")
	}
	return &Service{registry: registry, auditor: auditor}, nil
}

// Add registers a hive with its owner wallet.
func (s *Service) Add(ctx context.Context, key, owner string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("hives", "add", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	hiveAddr, err := registry.ParseAddress(key)
	if err != nil {
		return hives.ErrInvalidInput
	}
	ownerAddr, err := registry.ParseAddress(owner)
	if err != nil {
		return hives.ErrInvalidInput
	}
	if err = s.registry.Add(ctx, hives.Hive{Key: hiveAddr, Owner: ownerAddr}); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "hives.add", key)
	return nil
}

// Drop removes a hive from the enumerable list. Meters referencing the hive
// keep their dangling reference; that is a valid state.
func (s *Service) Drop(ctx context.Context, key string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("hives", "drop", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	hiveAddr, err := registry.ParseAddress(key)
	if err != nil {
		return hives.ErrInvalidInput
	}
	if err = s.registry.Drop(ctx, hiveAddr); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "hives.drop", key)
	return nil
}

// ChangeOwner updates the owner wallet of a hive.
func (s *Service) ChangeOwner(ctx context.Context, key, newOwner string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("hives", "change_owner", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	hiveAddr, err := registry.ParseAddress(key)
	if err != nil {
		return hives.ErrInvalidInput
	}
	ownerAddr, err := registry.ParseAddress(newOwner)
	if err != nil {
		return hives.ErrInvalidInput
	}
	if err = s.registry.ChangeOwner(ctx, hiveAddr, ownerAddr); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "hives.change_owner", key)
	return nil
}

// List returns the enumerable hive keys.
func (s *Service) List(ctx context.Context) ([]registry.Address, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return s.registry.List(ctx)
}

// Info returns the (key, owner) pair for a hive.
func (s *Service) Info(ctx context.Context, key string) (*hives.Hive, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	hiveAddr, err := registry.ParseAddress(key)
	if err != nil {
		return nil, hives.ErrInvalidInput
	}
	return s.registry.Info(ctx, hiveAddr)
}

// IsHive reports key presence.
func (s *Service) IsHive(ctx context.Context, key string) (bool, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return false, auth.ErrUnauthorized
	}
	hiveAddr, err := registry.ParseAddress(key)
	if err != nil {
		return false, hives.ErrInvalidInput
	}
	return s.registry.IsHive(ctx, hiveAddr)
}

func (s *Service) logAudit(ctx context.Context, identity auth.Identity, action, key string) {
	if s.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"hive": key})
	_ = s.auditor.Log(ctx, audit.Entry{
		Actor:        identity.Address.String(),
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "hive",
		ResourceID:   key,
		Metadata:     metadata,
	})
}
