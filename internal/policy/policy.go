package policy

import (
	"context"
	"fmt"

	"didauday/internal/models"

	"github.com/rs/zerolog"
)

const (
	RoleTraveller = "traveller"
	RolePartner   = "partner"
	RoleAdmin     = "admin"
)

const (
	ResourceBooking = "booking"
	ResourceCoupon  = "coupon"
	ResourceLedger  = "ledger"
	ResourceProfile = "profile"
)

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
)

const (
	PossessionOwn = "own"
	PossessionAny = "any"
)

// DefaultGrants is the role/resource matrix seeded on startup.
// Travellers book and see their own bookings; partners manage their own
// coupons and read bookings against their inventory; admins see all.
func DefaultGrants() []models.PermissionGrant {
	return []models.PermissionGrant{
		{Role: RoleTraveller, Resource: ResourceBooking, Action: ActionCreate, Possession: PossessionOwn},
		{Role: RoleTraveller, Resource: ResourceBooking, Action: ActionRead, Possession: PossessionOwn},
		// Travellers look up and redeem codes against their own cart.
		{Role: RoleTraveller, Resource: ResourceCoupon, Action: ActionRead, Possession: PossessionOwn},
		{Role: RoleTraveller, Resource: ResourceProfile, Action: ActionRead, Possession: PossessionOwn},
		{Role: RoleTraveller, Resource: ResourceProfile, Action: ActionUpdate, Possession: PossessionOwn},

		{Role: RolePartner, Resource: ResourceCoupon, Action: ActionCreate, Possession: PossessionOwn},
		{Role: RolePartner, Resource: ResourceCoupon, Action: ActionRead, Possession: PossessionOwn},
		{Role: RolePartner, Resource: ResourceCoupon, Action: ActionUpdate, Possession: PossessionOwn},
		{Role: RolePartner, Resource: ResourceBooking, Action: ActionRead, Possession: PossessionOwn},
		{Role: RolePartner, Resource: ResourceProfile, Action: ActionRead, Possession: PossessionOwn},
		{Role: RolePartner, Resource: ResourceProfile, Action: ActionUpdate, Possession: PossessionOwn},

		{Role: RoleAdmin, Resource: ResourceBooking, Action: ActionCreate, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceBooking, Action: ActionRead, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceCoupon, Action: ActionCreate, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceCoupon, Action: ActionRead, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceCoupon, Action: ActionUpdate, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceLedger, Action: ActionRead, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceProfile, Action: ActionRead, Possession: PossessionAny},
		{Role: RoleAdmin, Resource: ResourceProfile, Action: ActionUpdate, Possession: PossessionAny},
	}
}

// Seeder applies the default grant matrix with versioned idempotency.
type Seeder interface {
	ApplyPermissionSeed(ctx context.Context, version int64, grants []models.PermissionGrant) (bool, error)
}

func Seed(ctx context.Context, db Seeder, version int64, logger *zerolog.Logger) error {
	applied, err := db.ApplyPermissionSeed(ctx, version, DefaultGrants())
	if err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}
	if applied {
		logger.Info().Int64("version", version).Msg("permission seed applied")
	}
	return nil
}

// PermissionStore is the lookup side of the grant matrix.
type PermissionStore interface {
	HasPermission(ctx context.Context, role, resource, action, possession string) (bool, error)
}

// Checker answers permission questions against the stored grant matrix.
type Checker struct {
	db PermissionStore
}

func NewChecker(db PermissionStore) *Checker {
	return &Checker{db: db}
}

func (c *Checker) Allowed(ctx context.Context, role, resource, action, possession string) (bool, error) {
	return c.db.HasPermission(ctx, role, resource, action, possession)
}
