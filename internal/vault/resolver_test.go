package vault

import (
	"errors"
	"testing"

	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/pkg/models"
)

func testVaults(t *testing.T) Vaults {
	t.Helper()
	holder, err := NewKeyHolder()
	if err != nil {
		t.Fatalf("NewKeyHolder failed: %v", err)
	}
	return Vaults{
		Server:     newTestServerVault(t, newMemStore()),
		Ephemeral:  NewEphemeralVault(holder),
		Session:    NewSessionVault(holder, storage.NewMemorySecretStore()),
		Persistent: NewPersistentVault(storage.NewMemorySecretStore()),
	}
}

func TestResolveAuthenticatedAlwaysServer(t *testing.T) {
	vaults := testVaults(t)

	// Scope hints from authenticated callers are ignored.
	for _, scope := range []models.CredentialScope{"", models.ScopeEphemeral, models.ScopeSession, models.ScopePersistent} {
		got, err := Resolve(vaults, true, scope)
		if err != nil {
			t.Fatalf("Resolve(auth, %q) failed: %v", scope, err)
		}
		if got != Credentialer(vaults.Server) {
			t.Errorf("authenticated caller with scope %q should get the server vault", scope)
		}
	}
}

func TestResolveGuestTiers(t *testing.T) {
	vaults := testVaults(t)

	tests := []struct {
		scope models.CredentialScope
		want  Credentialer
	}{
		{models.ScopeEphemeral, vaults.Ephemeral},
		{models.ScopeSession, vaults.Session},
		{models.ScopePersistent, vaults.Persistent},
	}
	for _, tt := range tests {
		got, err := Resolve(vaults, false, tt.scope)
		if err != nil {
			t.Fatalf("Resolve(guest, %q) failed: %v", tt.scope, err)
		}
		if got != tt.want {
			t.Errorf("scope %q resolved to the wrong vault", tt.scope)
		}
	}
}

func TestResolveGuestRequiresScope(t *testing.T) {
	vaults := testVaults(t)
	if _, err := Resolve(vaults, false, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing scope should be ErrInvalidInput, got %v", err)
	}
	if _, err := Resolve(vaults, false, "forever"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown scope should be ErrInvalidInput, got %v", err)
	}
}
