package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/internal/application/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

// newTicketCommand builds `ticket`, which issues and inspects cookies offline.
// newTicketCommand 构建 `ticket` 命令，用于离线签发和检查 Cookie。
func newTicketCommand(opts *globalOptions) *cobra.Command {
	ticketCmd := &cobra.Command{
		Use:   "ticket",
		Short: "Issue or inspect shared cookies",
	}
	ticketCmd.AddCommand(newTicketIssueCommand(opts), newTicketInspectCommand(opts))
	return ticketCmd
}

// codecFor builds the cookie codec over the environment's key ring.
func codecFor(env *environment) (*crypto.TicketCodec, error) {
	protector, err := crypto.NewProtector(env.cfg.Protection.Purposes, env.cfg.Protection.CipherCacheTTL)
	if err != nil {
		return nil, err
	}
	return crypto.NewTicketCodec(env.ring, protector), nil
}

func newTicketIssueCommand(opts *globalOptions) *cobra.Command {
	var (
		email      string
		ttl        time.Duration
		persistent bool
		valueOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a login cookie for an email address",
		Long: `Issues a cookie exactly as the login endpoint would, using the current key
of the configured key ring. Useful for testing cooperating applications.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			codec, err := codecFor(env)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("persistent") {
				persistent = env.cfg.Cookie.Persistent
			}

			issuer := service.NewSessionIssuer(codec, env.cfg.Cookie, service.NewIdentityProfile(&env.cfg.Identity), env.log,
				service.WithClock(opts.clock))
			issued, err := issuer.Issue(cmd.Context(), email, persistent, env.cfg.Cookie.AllowRefresh, ttl)
			if err != nil {
				return err
			}

			if valueOnly {
				fmt.Fprintln(cmd.OutOrStdout(), issued.Value)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set-Cookie: %s\n", issued.HTTPCookie().String())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email address")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "cookie lifetime (default from config)")
	cmd.Flags().BoolVar(&persistent, "persistent", false, "issue a persistent cookie (default from config)")
	cmd.Flags().BoolVar(&valueOnly, "value-only", false, "print only the cookie value")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// inspection is the report printed by `ticket inspect`.
type inspection struct {
	KeyID        string                 `json:"key_id"`
	Valid        bool                   `json:"valid"`
	Error        string                 `json:"error,omitempty"`
	Principal    *dto.PrincipalResponse `json:"principal,omitempty"`
	IsPersistent bool                   `json:"is_persistent,omitempty"`
}

func newTicketInspectCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <cookie-value>",
		Short: "Show the key id of a cookie and whether the key ring accepts it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			keyID, err := crypto.InspectKeyID(value)
			if err != nil {
				return err
			}

			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			codec, err := codecFor(env)
			if err != nil {
				return err
			}

			report := inspection{KeyID: keyID}
			validator := service.NewSessionValidator(codec, env.log)
			ticket, err := validator.ValidateTicket(cmd.Context(), value, opts.clock.Now())
			if err != nil {
				report.Error = string(errors.KindOf(err))
			} else {
				report.Valid = true
				report.Principal = dto.NewPrincipalResponse(ticket.Principal, ticket)
				report.IsPersistent = ticket.IsPersistent
			}
			return printJSON(cmd, report)
		},
	}
}
