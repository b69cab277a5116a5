package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
)

// SeedOptions controls what Seed creates on an empty database.
type SeedOptions struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
	BcryptCost    int
	Demo          bool // two floors with a mix of slot categories
}

type demoBlock struct {
	prefix   string
	count    int
	category model.Category
}

var demoFloors = []struct {
	name    string
	details string
	blocks  []demoBlock
}{
	{"Floor 1", "35 Regular, 17 EV, 10 VIP", []demoBlock{
		{"T", 15, model.CategoryTwoWheeler},
		{"A", 20, model.CategoryRegular},
		{"TE", 7, model.CategoryTwoWheelerEV},
		{"E", 10, model.CategoryEV},
		{"V", 10, model.CategoryVIP},
	}},
	{"Floor 2", "25 Regular, 5 EV, 5 VIP", []demoBlock{
		{"F", 10, model.CategoryTwoWheeler},
		{"B", 25, model.CategoryRegular},
		{"FE", 5, model.CategoryEV},
		{"VP", 5, model.CategoryVIP},
		{"H", 2, model.CategoryHandicap},
	}},
}

// Seed creates the configured admin account when no user with that email
// exists, and the demo floors when Demo is set and there are no floors
// yet.  Running it again is a no-op.
func (a *AdminService) Seed(ctx context.Context, opts SeedOptions) error {
	if opts.AdminEmail != "" && opts.AdminPassword != "" {
		_, err := a.d.Users.GetByEmail(ctx, opts.AdminEmail)
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			name := opts.AdminName
			if name == "" {
				name = "Admin"
			}
			id, err := a.d.Users.Create(ctx, name, opts.AdminEmail, opts.AdminPassword, model.RoleAdmin, opts.BcryptCost)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			a.d.Logger.Info("seeded admin user", "user_id", id)
		case err != nil:
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	if !opts.Demo {
		return nil
	}
	n, err := a.d.Floors.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, df := range demoFloors {
		f, err := a.CreateFloor(ctx, df.name, df.details)
		if err != nil {
			return fmt.Errorf("seed floor %s: %w", df.name, err)
		}
		for _, b := range df.blocks {
			for i := 1; i <= b.count; i++ {
				in := SlotInput{FloorID: f.ID, SlotNumber: fmt.Sprintf("%s%d", b.prefix, i), Category: b.category}
				if _, err := a.CreateSlot(ctx, in); err != nil {
					return fmt.Errorf("seed slot %s: %w", in.SlotNumber, err)
				}
			}
		}
	}
	a.d.Logger.Info("seeded demo floors", "floors", len(demoFloors))
	return nil
}
