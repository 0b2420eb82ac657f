package memory

import (
	"context"
	"errors"
	"testing"

	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
)

var (
	hive1  = registry.MustAddress("0x30466f0df8ba9618793e9afc711262b872c80a01")
	hive2  = registry.MustAddress("0x30466f0df8ba9618793e9afc711262b872c80a02")
	hive3  = registry.MustAddress("0x30466f0df8ba9618793e9afc711262b872c80a03")
	owner1 = registry.MustAddress("0x30466f0df8ba9618793e9afc711262b872c80a11")
	owner2 = registry.MustAddress("0x30466f0df8ba9618793e9afc711262b872c80a12")
)

func TestAddAndInfo(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(list))
	}

	if err := r.Add(ctx, hives.Hive{Key: hive1, Owner: owner1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add(ctx, hives.Hive{Key: hive2, Owner: owner2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	info, err := r.Info(ctx, hive1)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Key != hive1 || info.Owner != owner1 {
		t.Fatalf("unexpected info: %+v", info)
	}

	list, _ = r.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 hives, got %d", len(list))
	}

	if err := r.Add(ctx, hives.Hive{Key: hive1, Owner: owner2}); !errors.Is(err, hives.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDrop_SwapAndPop(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	for _, h := range []hives.Hive{
		{Key: hive1, Owner: owner1},
		{Key: hive2, Owner: owner2},
		{Key: hive3, Owner: owner1},
	} {
		if err := r.Add(ctx, h); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := r.Drop(ctx, hive1); err != nil {
		t.Fatalf("drop: %v", err)
	}

	isHive, _ := r.IsHive(ctx, hive1)
	if isHive {
		t.Fatal("dropped hive still present")
	}
	if _, err := r.Info(ctx, hive1); !errors.Is(err, hives.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Remaining entries keep their own key/owner pairing.
	list, _ := r.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 hives after drop, got %d", len(list))
	}
	seen := map[registry.Address]bool{}
	for _, key := range list {
		info, err := r.Info(ctx, key)
		if err != nil {
			t.Fatalf("info %s: %v", key, err)
		}
		if info.Key != key {
			t.Fatalf("key/record mismatch: %s vs %+v", key, info)
		}
		seen[key] = true
	}
	if !seen[hive2] || !seen[hive3] {
		t.Fatalf("unexpected surviving set: %v", list)
	}

	if err := r.Drop(ctx, hive1); !errors.Is(err, hives.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double drop, got %v", err)
	}
}

func TestChangeOwner(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Add(ctx, hives.Hive{Key: hive1, Owner: owner1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.ChangeOwner(ctx, hive1, owner2); err != nil {
		t.Fatalf("change owner: %v", err)
	}
	info, _ := r.Info(ctx, hive1)
	if info.Owner != owner2 {
		t.Fatalf("owner not changed: %+v", info)
	}
	if err := r.ChangeOwner(ctx, hive2, owner1); !errors.Is(err, hives.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
