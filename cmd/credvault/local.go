package main

import (
	"fmt"
	"os"

	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/internal/vault"
	"github.com/org/credvault/pkg/models"
	"github.com/spf13/cobra"
)

// localVaults builds the guest-tier vault set for this process. The
// persistent tier is backed by the credential file under ~/.credvault;
// the ephemeral and session tiers hold keys in process memory only, so
// anything saved to them is gone when the command exits.
func localVaults() (vault.Vaults, error) {
	holder, err := vault.NewKeyHolder()
	if err != nil {
		return vault.Vaults{}, err
	}
	return vault.Vaults{
		Ephemeral:  vault.NewEphemeralVault(holder),
		Session:    vault.NewSessionVault(holder, storage.NewMemorySecretStore()),
		Persistent: vault.NewPersistentVault(storage.NewFileSecretStore(localStorePath())),
	}, nil
}

func resolveLocal(scope string) (vault.Credentialer, error) {
	vaults, err := localVaults()
	if err != nil {
		return nil, err
	}
	s := models.CredentialScope(scope)
	if s == models.ScopeEphemeral || s == models.ScopeSession {
		fmt.Fprintf(os.Stderr, "Warning: scope %q does not outlive this process; use --scope persistent to keep the credential.\n", scope)
	}
	return vault.Resolve(vaults, false, s)
}

func localOptions(scope string) vault.Options {
	opts := vault.Options{}
	if models.CredentialScope(scope) == models.ScopePersistent {
		opts.Passphrase = promptSecret("Passphrase")
	}
	return opts
}

// localCmd manages credentials stored on this machine without a server,
// encrypted client-side.
func localCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "local", Short: "Manage locally stored credentials"}

	var scope string

	saveCmd := &cobra.Command{
		Use:   "save <provider> [secret]",
		Short: "Encrypt and store a credential locally",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			var secret string
			if len(args) > 1 {
				secret = args[1]
			} else {
				secret = promptSecret("Secret")
			}
			opts := localOptions(scope)
			v, err := resolveLocal(scope)
			if err != nil {
				printError(err.Error())
				return nil
			}
			cred, err := v.Save(cmd.Context(), provider, secret, opts)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(map[string]any{
				"provider":     cred.Provider,
				"scope":        scope,
				"masked_value": cred.MaskedDisplay,
			})
			return nil
		},
	}

	revealCmd := &cobra.Command{
		Use:   "reveal <provider>",
		Short: "Decrypt and print a locally stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := localOptions(scope)
			v, err := resolveLocal(scope)
			if err != nil {
				printError(err.Error())
				return nil
			}
			plaintext, err := v.Reveal(cmd.Context(), args[0], opts)
			if err != nil {
				printError(err.Error())
				return nil
			}
			fmt.Println(plaintext)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a locally stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := resolveLocal(scope)
			if err != nil {
				printError(err.Error())
				return nil
			}
			if err := v.Delete(cmd.Context(), args[0], vault.Options{}); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Credential deleted.")
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&scope, "scope", "persistent", "Credential scope: ephemeral, session, persistent")
	cmd.AddCommand(saveCmd, revealCmd, deleteCmd)
	return cmd
}
