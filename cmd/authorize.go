package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/config"
)

func newAuthorizeCmd() *cobra.Command {
	var (
		reset        bool
		savePassword bool
		status       bool
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant calbridge access to your calendars",
		Long: `Ask for calendar access now instead of on first use, and remember the
answer. Run it in a terminal: servers started by an MCP host cannot ask and
treat a missing decision as a denial.

For iCloud, create an app-specific password at appleid.apple.com and store it
with --save-password. Use --reset to be asked again after saying no.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())

			if savePassword {
				if err := promptAndSavePassword(env); err != nil {
					return err
				}
				p.done("Password saved to " + env.path)
			}

			_, s, err := openStore(env, bridgeOptions{})
			if err != nil {
				return err
			}
			if status {
				err = printGrants(cmd, p, s)
			} else if reset {
				err = resetGrant(cmd, p, s)
			}
			// the session below reopens the ledger
			if closeErr := s.Close(); err == nil {
				err = closeErr
			}
			if err != nil || status {
				return err
			}

			session, err := openSession(cmd.Context(), env, bridgeOptions{})
			if err != nil {
				return err
			}
			defer session.Close()

			names, err := access.ListCalendars(cmd.Context(), session.client)
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Calendar access granted (%d calendars)", len(names)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the recorded decision and ask again")
	cmd.Flags().BoolVar(&savePassword, "save-password", false, "Prompt for the CalDAV password and store it in the config file")
	cmd.Flags().BoolVar(&status, "status", false, "Show the recorded decisions and exit")
	return cmd
}

func resetGrant(cmd *cobra.Command, p *printer, s *session) error {
	if s.ledger == nil {
		p.line("The " + s.store + " store keeps no access decision; nothing to reset.")
		return nil
	}
	if err := s.ledger.Reset(cmd.Context(), s.account); err != nil {
		return err
	}
	p.done("Forgot the access decision for " + s.account)
	return nil
}

func printGrants(cmd *cobra.Command, p *printer, s *session) error {
	if s.ledger == nil {
		p.line("The " + s.store + " store keeps no access decisions.")
		return nil
	}
	grants, err := s.ledger.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		p.line("No access decisions recorded.")
		return nil
	}
	for _, g := range grants {
		p.line(fmt.Sprintf("%s: %s (%s)", g.Account, g.Status, g.DecidedAt.Local().Format("2006-01-02 15:04")))
	}
	return nil
}

// promptAndSavePassword reads the password without echo and writes it to the
// config file. Environment overrides are not written back.
func promptAndSavePassword(env *environment) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("--save-password needs a terminal")
	}

	fmt.Fprintf(os.Stderr, "CalDAV password for %s: ", env.cfg.CalDAV.Username)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return errors.New("password is empty")
	}

	fileCfg, err := config.Load(env.path)
	if err != nil {
		return err
	}
	fileCfg.CalDAV.Password = password
	if fileCfg.CalDAV.Username == "" {
		fileCfg.CalDAV.Username = env.cfg.CalDAV.Username
	}
	if err := config.Save(env.path, fileCfg); err != nil {
		return err
	}
	env.cfg.CalDAV.Password = password
	return nil
}
