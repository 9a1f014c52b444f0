package vault

import (
	"fmt"

	"github.com/org/credvault/pkg/models"
)

// Vaults bundles the variants the resolver can pick from.
type Vaults struct {
	Server     *ServerVault
	Ephemeral  *EphemeralVault
	Session    *SessionVault
	Persistent *PersistentVault
}

// Resolve selects the vault variant for a caller. Authenticated callers are
// always routed to the server vault; a requestedScope hint is ignored so an
// authenticated client cannot opt a server-tracked credential into guest
// semantics. Unauthenticated callers must name a scope — absence is a
// validation error, not a default.
func Resolve(vaults Vaults, isAuthenticated bool, requestedScope models.CredentialScope) (Credentialer, error) {
	if isAuthenticated {
		if vaults.Server == nil {
			return nil, fmt.Errorf("%w: server vault is not configured", ErrConfigurationError)
		}
		return vaults.Server, nil
	}

	switch requestedScope {
	case models.ScopeEphemeral:
		if vaults.Ephemeral == nil {
			return nil, fmt.Errorf("%w: ephemeral tier is not configured", ErrConfigurationError)
		}
		return vaults.Ephemeral, nil
	case models.ScopeSession:
		if vaults.Session == nil {
			return nil, fmt.Errorf("%w: session tier is not configured", ErrConfigurationError)
		}
		return vaults.Session, nil
	case models.ScopePersistent:
		if vaults.Persistent == nil {
			return nil, fmt.Errorf("%w: persistent tier is not configured", ErrConfigurationError)
		}
		return vaults.Persistent, nil
	case "":
		return nil, fmt.Errorf("%w: unauthenticated callers must request a scope", ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, requestedScope)
	}
}
