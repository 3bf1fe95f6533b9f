package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/version"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the Claw menu in the terminal",
	Long: `Walks the same menu as the tray: Status, Onboard, Gateway, Terminal,
Dashboard, Pairing and Check for Updates. The chosen action is sent to the
running daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctrl := menu.NewController(menu.NewTUIPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cl)
		if err := ctrl.Run(cmd.Context()); err != nil && !errors.Is(err, menu.ErrDismissed) {
			return err
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Send one command to its session",
	Long: `Commands:
  status | dashboard | onboard | tui
  gateway [run|status|start|stop|restart]
  pairing <app> <code>
  install | update`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := command.Parse(args[0], args[1:]...)
		if err != nil {
			return err
		}
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := cl.Run(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %q to the %s session\n", c.Name(), c.Role())
		return nil
	},
}

var checkInstall bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the Claw package is installed and current",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := cl.Check(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Message)
		if res.Offer == "" {
			return nil
		}
		if !checkInstall {
			fmt.Fprintf(out, "run with --install to %s\n", strings.ToLower(res.Offer))
			return nil
		}
		if err := cl.Install(cmd.Context(), res.Result); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s sent to the %s session\n", res.Offer, session.Secondary)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon status indicator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		s, err := cl.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.State, s.Text, s.Tooltip)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		list, err := cl.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tLABEL\tTERMINAL\tSINCE")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Role, s.Label, s.TerminalID, s.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var outputLines int

var outputCmd = &cobra.Command{
	Use:   "output <primary|secondary>",
	Short: "Print the recent output of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := session.ParseRole(args[0])
		if err != nil {
			return err
		}
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		lines, err := cl.Output(cmd.Context(), role, outputLines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

var historyFilter db.DispatchFilter

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent dispatches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient(cmd)
		if err != nil {
			return err
		}
		list, err := cl.History(cmd.Context(), historyFilter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tROLE\tOUTCOME\tLINE\tERROR")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.CreatedAt.Local().Format(time.DateTime), d.Role, d.Outcome, d.Line, d.Error)
		}
		return w.Flush()
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <current> <latest>",
	Short: "Report whether current is an older version than latest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), compareVersions(args[0], args[1]))
		return nil
	},
}

func compareVersions(current, latest string) string {
	if version.IsOlder(current, latest) {
		return fmt.Sprintf("%s is older than %s", current, latest)
	}
	return fmt.Sprintf("%s is not older than %s", current, latest)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the clawbridge version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "clawbridge", buildVersion)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkInstall, "install", false, "Install or update when the check offers it")
	outputCmd.Flags().IntVarP(&outputLines, "lines", "n", 50, "Number of lines to print")
	historyCmd.Flags().StringVar(&historyFilter.Role, "role", "", "Only dispatches to this role")
	historyCmd.Flags().StringVar(&historyFilter.Outcome, "outcome", "", "Only dispatches with this outcome (sent, failed)")
	historyCmd.Flags().IntVar(&historyFilter.Limit, "limit", 20, "Maximum rows")
}
