package application

import (
	"context"
	"encoding/json"
	"errors"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	tariffs "hivegrid/internal/registry/tariffs/domain"
)

// Service exposes tariff registry operations. Add and remove are restricted
// to the registry administrator; update is the one dual-role operation,
// allowed for the administrator or the designated tariff-owner wallet.
type Service struct {
	registry tariffs.Registry
	owner    registry.Address
	auditor  audit.Logger
}

// NewService constructs the service with the designated tariff-owner wallet.
func NewService(reg tariffs.Registry, owner registry.Address, auditor audit.Logger) (*Service, error) {
	if reg == nil {
		return nil, errors.New("tariff service: nil registry")
	}
	return &Service{registry: reg, owner: owner, auditor: auditor}, nil
}

// Owner returns the designated tariff-owner wallet.
func (s *Service) Owner() registry.Address { return s.owner }

// AddBatch inserts all tariffs or none. Administrator only: the tariff
// owner may reprice existing tariffs but never introduce new ones.
func (s *Service) AddBatch(ctx context.Context, names []string, directions []int, prices []uint64) (err error) {
	defer func() { metrics.ObserveRegistryMutation("tariffs", "add", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	batch, err := buildBatch(names, directions, prices)
	if err != nil {
		return err
	}
	if err = s.registry.AddBatch(ctx, batch); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "tariffs.add", names)
	return nil
}

// RemoveBatch removes all tariffs or none. Administrator only.
func (s *Service) RemoveBatch(ctx context.Context, names []string) (err error) {
	defer func() { metrics.ObserveRegistryMutation("tariffs", "remove", err) }()
	identity, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	if err = s.registry.RemoveBatch(ctx, names); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "tariffs.remove", names)
	return nil
}

// UpdateBatch overwrites all tariffs or none. Allowed for the administrator
// or the designated tariff-owner wallet.
func (s *Service) UpdateBatch(ctx context.Context, names []string, directions []int, prices []uint64) (err error) {
	defer func() { metrics.ObserveRegistryMutation("tariffs", "update", err) }()
	identity, err := s.authorizeUpdate(ctx)
	if err != nil {
		return err
	}
	batch, err := buildBatch(names, directions, prices)
	if err != nil {
		return err
	}
	if err = s.registry.UpdateBatch(ctx, batch); err != nil {
		return err
	}
	s.logAudit(ctx, identity, "tariffs.update", names)
	return nil
}

// Get returns (price, direction) for a tariff name.
func (s *Service) Get(ctx context.Context, name string) (*tariffs.Tariff, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return s.registry.Get(ctx, name)
}

// IsRegistered reports name presence.
func (s *Service) IsRegistered(ctx context.Context, name string) (bool, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return false, auth.ErrUnauthorized
	}
	return s.registry.IsRegistered(ctx, name)
}

// List returns all tariffs.
func (s *Service) List(ctx context.Context) ([]tariffs.Tariff, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	return s.registry.List(ctx)
}

func (s *Service) authorizeUpdate(ctx context.Context) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	if identity.Role == auth.RoleAdmin {
		return identity, nil
	}
	if identity.Role == auth.RoleTariffOwner && !s.owner.IsZero() && identity.Address == s.owner {
		return identity, nil
	}
	return auth.Identity{}, auth.ErrUnauthorized
}

func buildBatch(names []string, directions []int, prices []uint64) ([]tariffs.Tariff, error) {
	n := len(names)
	if len(directions) != n || len(prices) != n {
		return nil, tariffs.ErrInvalidInput
	}
	batch := make([]tariffs.Tariff, 0, n)
	for i := 0; i < n; i++ {
		t := tariffs.Tariff{
			Name:      names[i],
			Direction: tariffs.Direction(directions[i]),
			Price:     prices[i],
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		batch = append(batch, t)
	}
	return batch, nil
}

func (s *Service) logAudit(ctx context.Context, identity auth.Identity, action string, names []string) {
	if s.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"names": names})
	_ = s.auditor.Log(ctx, audit.Entry{
		Actor:        identity.Address.String(),
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "tariff",
		Metadata:     metadata,
	})
}
