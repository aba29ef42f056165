package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meszmate/buddylist/internal/prpl"
	"github.com/meszmate/buddylist/internal/value"
)

var accountOpts struct {
	protocol string
	password string
	remember bool
	alias    string
	status   string
	message  string
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tPROTOCOL\tALIAS\tENABLED\tSTATUS")
		roster.Do(func() {
			ui := roster.Accounts().UI()
			for _, a := range roster.Accounts().Accounts() {
				st := "-"
				if s := a.ActiveStatus(); s != nil {
					st = s.ID()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", a.Username(), a.ProtocolID(), a.Alias(), a.Enabled(ui), st)
			}
		})
		return w.Flush()
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Add, remove, enable or disable accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			if roster.Accounts().Protocols().Find(accountOpts.protocol) == nil {
				err = fmt.Errorf("unknown protocol %q", accountOpts.protocol)
				return
			}
			if roster.FindAccount(args[0], accountOpts.protocol) != nil {
				err = fmt.Errorf("account %q already exists", args[0])
				return
			}
			a := roster.Accounts().NewAccount(args[0], accountOpts.protocol)
			a.SetAlias(accountOpts.alias)
			a.SetRememberPassword(accountOpts.remember)
			a.SetPassword(accountOpts.password)
			roster.Accounts().Add(a)
			if accountOpts.status != "" {
				attrs := map[string]value.Value{}
				if accountOpts.message != "" {
					attrs["message"] = value.String(accountOpts.message)
				}
				err = roster.Accounts().SetStatusList(a, accountOpts.status, true, attrs)
			}
		})
		return err
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Delete an account with its buddies, chats, pounces and log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			a, ferr := findAccount(args[0], accountOpts.protocol)
			if ferr != nil {
				err = ferr
				return
			}
			roster.DeleteAccount(a)
		})
		return err
	},
}

func setEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			a, ferr := findAccount(args[0], accountOpts.protocol)
			if ferr != nil {
				err = ferr
				return
			}
			roster.Accounts().SetEnabled(a, roster.Accounts().UI(), enabled)
		})
		return err
	}
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable an account",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabled(true),
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable an account",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabled(false),
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountAddCmd, accountRemoveCmd, accountEnableCmd, accountDisableCmd)

	accountCmd.PersistentFlags().StringVarP(&accountOpts.protocol, "protocol", "p", "",
		"Protocol id (prpl-jabber, prpl-generic)")
	accountAddCmd.Flags().StringVar(&accountOpts.password, "password", "", "Account password")
	accountAddCmd.Flags().BoolVar(&accountOpts.remember, "remember", false, "Store the password in accounts.xml")
	accountAddCmd.Flags().StringVar(&accountOpts.alias, "alias", "", "Local alias")
	accountAddCmd.Flags().StringVar(&accountOpts.status, "status", "", "Initial status id")
	accountAddCmd.Flags().StringVar(&accountOpts.message, "message", "", "Initial status message")

	accountAddCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if accountOpts.protocol == "" {
			accountOpts.protocol = prpl.JabberID
		}
	}
}
