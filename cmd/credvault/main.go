package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "CredVault CLI",
	Long:  "A CLI for managing provider credentials in CredVault.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(localCmd())
}

// promptSecret reads a value from stdin when it was not passed as an
// argument, keeping it out of shell history.
func promptSecret(label string) string {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// --- login ---

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Save an API token for subsequent commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) > 0 {
				token = args[0]
			} else {
				token = promptSecret("API Token")
			}
			if token == "" {
				printError("a token is required")
				return nil
			}
			cfg.Token = token
			if err := saveConfig(); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Token saved to config.")
			return nil
		},
	}
}

// --- save ---

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <provider> [secret]",
		Short: "Store a provider credential",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			var secret string
			if len(args) > 1 {
				secret = args[1]
			} else {
				secret = promptSecret("Secret")
			}
			client := newClient()
			result, err := client.put("/v1/credentials/"+provider, map[string]any{"secret": secret})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- list ---

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/credentials")
			if err != nil {
				printError(err.Error())
				return nil
			}
			rows, ok := result["data"].([]any)
			if !ok || outputFormat != "table" {
				printResult(result)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tVALUE\tLAST ROTATED")
			for _, row := range rows {
				m, ok := row.(map[string]any)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%v\t%v\t%v\n", m["provider"], m["masked_value"], m["last_rotated_at"])
			}
			w.Flush()
			return nil
		},
	}
}

// --- delete ---

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/credentials/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Credential deleted.")
			return nil
		},
	}
}

// --- rotate ---

func rotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate <provider>",
		Short: "Rotate a credential to a new secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newSecret, _ := cmd.Flags().GetString("new-secret")
			autoGenerate, _ := cmd.Flags().GetBool("auto-generate")
			if newSecret == "" && !autoGenerate {
				newSecret = promptSecret("New Secret")
			}
			client := newClient()
			result, err := client.post("/v1/credentials/"+args[0]+"/rotate", map[string]any{
				"new_secret":    newSecret,
				"auto_generate": autoGenerate,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			if generated, ok := result["new_secret"].(string); ok {
				fmt.Fprintln(os.Stderr, "The generated secret is shown once and cannot be retrieved again:")
				fmt.Println(generated)
				delete(result, "new_secret")
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("new-secret", "", "The replacement secret")
	cmd.Flags().Bool("auto-generate", false, "Generate the replacement secret server-side")
	return cmd
}

// --- status ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <provider>",
		Short: "Show rotation-policy status for a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/credentials/" + args[0] + "/rotation-status")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit log entries for the current owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			event, _ := cmd.Flags().GetString("event")
			provider, _ := cmd.Flags().GetString("provider")
			limit, _ := cmd.Flags().GetInt("limit")

			q := []string{}
			if event != "" {
				q = append(q, "event="+event)
			}
			if provider != "" {
				q = append(q, "provider="+provider)
			}
			if limit > 0 {
				q = append(q, "limit="+strconv.Itoa(limit))
			}
			path := "/v1/sys/audit-log"
			if len(q) > 0 {
				path += "?" + strings.Join(q, "&")
			}

			client := newClient()
			result, err := client.get(path)
			if err != nil {
				printError(err.Error())
				return nil
			}
			rows, ok := result["data"].([]any)
			if !ok || outputFormat != "table" {
				printResult(result)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tEVENT\tPROVIDER\tCODE")
			for _, row := range rows {
				m, ok := row.(map[string]any)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", m["timestamp"], m["event"], m["provider"], m["response_code"])
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().String("event", "", "Filter by event name")
	cmd.Flags().String("provider", "", "Filter by provider")
	cmd.Flags().Int("limit", 100, "Maximum entries to return")
	return cmd
}
