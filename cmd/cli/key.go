package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

// newKeyCommand builds `key`, the root for all key ring operations.
// newKeyCommand 构建 `key` 命令，即所有密钥环操作的根命令。
func newKeyCommand(opts *globalOptions) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the shared key ring",
	}
	keyCmd.AddCommand(
		newKeyGenerateCommand(opts),
		newKeyListCommand(opts),
		newKeyRevokeCommand(opts),
		newKeyPurgeCommand(opts),
		newKeyEnsureCommand(opts),
	)
	return keyCmd
}

func newKeyGenerateCommand(opts *globalOptions) *cobra.Command {
	var activatesAt string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key",
		Long:  `Generates a key and writes it to the key store. Without --activates-at it protects new cookies immediately.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if activatesAt != "" {
				parsed, err := time.Parse(time.RFC3339, activatesAt)
				if err != nil {
					return fmt.Errorf("invalid --activates-at: %w", err)
				}
				at = parsed
			}

			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			md, err := env.keys.GenerateKey(cmd.Context(), at)
			if err != nil {
				return err
			}
			return printJSON(cmd, md)
		},
	}
	cmd.Flags().StringVar(&activatesAt, "activates-at", "", "activation time (RFC3339)")
	return cmd
}

func newKeyListCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keys without their material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			keys, err := env.keys.ListKeys(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, keys)
			}
			printKeyTable(cmd, keys)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newKeyRevokeCommand(opts *globalOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a key; cookies protected by it stop validating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseKeyID(args[0])
			if err != nil {
				return err
			}
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.keys.RevokeKey(cmd.Context(), id, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked key %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the revocation")
	return cmd
}

func newKeyPurgeCommand(opts *globalOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "purge <key-id>",
		Short: "Delete a key from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseKeyID(args[0])
			if err != nil {
				return err
			}
			if !confirm {
				return fmt.Errorf("purging %s is irreversible, pass --yes to confirm", id)
			}
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.keys.PurgeKey(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged key %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the deletion")
	return cmd
}

func newKeyEnsureCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Generate a key if none is usable or the current one is about to expire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			md, generated, err := env.keys.EnsureKey(cmd.Context())
			if err != nil {
				return err
			}
			if generated {
				fmt.Fprintf(cmd.OutOrStdout(), "Generated key %s (activates %s)\n", md.ID, md.ActivatesAt.Format(time.RFC3339))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Key ring is up to date, current key %s\n", md.ID)
			}
			return nil
		},
	}
}

func parseKeyID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.ErrInvalidConfig("key-id", "not a valid key id").WithCause(err)
	}
	return id, nil
}

func printKeyTable(cmd *cobra.Command, keys []models.KeyMetadata) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tACTIVATES\tEXPIRES\tREASON")
	for _, k := range keys {
		reason := "-"
		if k.RevocationReason != "" {
			reason = k.RevocationReason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			k.ID, k.Status,
			k.CreatedAt.Format(time.RFC3339),
			k.ActivatesAt.Format(time.RFC3339),
			k.ExpiresAt.Format(time.RFC3339),
			reason,
		)
	}
	w.Flush()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
