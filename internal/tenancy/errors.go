package tenancy

import "errors"

var (
	// ErrTenantNotConfigured means no active database mapping exists for the
	// dealer. Terminal for the request; provisioning is the only cure.
	ErrTenantNotConfigured = errors.New("tenant database not configured for dealer")

	// ErrTenantUnreachable means a mapping exists but a healthy connection
	// could not be established within this call.
	ErrTenantUnreachable = errors.New("tenant database unreachable")

	// ErrCrossTenantDenied is returned when a dealer-scoped identity asks for
	// a dealer other than the one in its own claim.
	ErrCrossTenantDenied = errors.New("cross-tenant access denied")

	// ErrRegistryClosed is returned by Resolve after Shutdown.
	ErrRegistryClosed = errors.New("connection registry is shut down")
)
