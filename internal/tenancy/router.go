package tenancy

import (
	"context"
	"fmt"

	"warrantyhub/internal/common"

	"github.com/google/uuid"
)

// Scope names the partition a request operates on.
type Scope string

const (
	ScopeMaster Scope = "master"
	ScopeTenant Scope = "tenant"
)

// Decision is the routing outcome for one request. It is a pure value; no
// connection is opened until the registry materializes it.
type Decision struct {
	Scope    Scope
	DealerID uuid.UUID
}

// Owner returns the dealer the routed partition belongs to, or nil for the
// master partition. Row writers stamp it into dealer_id columns, so
// master-resident rows stay unattached.
func (d Decision) Owner() *uuid.UUID {
	if d.Scope != ScopeTenant || d.DealerID == uuid.Nil {
		return nil
	}
	id := d.DealerID
	return &id
}

// Route decides which partition serves the identity. Platform operators work
// on master unless they name a dealer to inspect. Dealer roles are pinned to
// the dealer in their own claim; naming any other dealer is an authorization
// failure, never a reroute.
func Route(identity common.Identity, override *uuid.UUID) (Decision, error) {
	switch identity.Role {
	case common.RoleSuperAdmin, common.RoleAdmin:
		if override != nil && *override != uuid.Nil {
			return Decision{Scope: ScopeTenant, DealerID: *override}, nil
		}
		return Decision{Scope: ScopeMaster}, nil

	case common.RoleDealerAdmin, common.RoleDealerUser:
		if identity.DealerID == nil || *identity.DealerID == uuid.Nil {
			return Decision{}, fmt.Errorf("role %s requires a dealer claim", identity.Role)
		}
		if override != nil && *override != uuid.Nil && *override != *identity.DealerID {
			return Decision{}, ErrCrossTenantDenied
		}
		return Decision{Scope: ScopeTenant, DealerID: *identity.DealerID}, nil

	default:
		return Decision{}, fmt.Errorf("unknown role %q", identity.Role)
	}
}

// HandleFor materializes a routing decision against the registry.
func (r *Registry) HandleFor(ctx context.Context, d Decision) (Handle, error) {
	if d.Scope == ScopeMaster {
		return r.master, nil
	}
	return r.Resolve(ctx, d.DealerID)
}
