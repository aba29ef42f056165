package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meszmate/buddylist/internal/pounce"
)

var pounceOpts struct {
	protocol string
	events   string
	message  string
	popup    bool
	save     bool
}

var pounceCmd = &cobra.Command{
	Use:   "pounce",
	Short: "Manage buddy pounces",
	Long: `A pounce watches a buddy and fires when it signs on or off, goes away,
returns, goes idle or stops being idle.

Events: sign-on, sign-off, away, away-return, idle, idle-return`,
}

var pounceAddCmd = &cobra.Command{
	Use:   "add <account> <who>",
	Short: "Add a pounce",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := pounce.ParseEvents(pounceOpts.events)
		if err != nil {
			return err
		}
		actions := map[string]string{}
		if pounceOpts.message != "" {
			actions["send-message"] = pounceOpts.message
		}
		if pounceOpts.popup {
			actions["popup"] = ""
		}

		roster.Do(func() {
			a, ferr := findAccount(args[0], pounceOpts.protocol)
			if ferr != nil {
				err = ferr
				return
			}
			var p *pounce.Pounce
			p, err = roster.Pounces().Add(a, args[1], ev, actions, pounceOpts.save)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Added pounce %s\n", p.ID)
			}
		})
		return err
	},
}

var pounceListCmd = &cobra.Command{
	Use:   "list [account]",
	Short: "List pounces",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		var pounces []*pounce.Pounce
		roster.Do(func() {
			if len(args) == 0 {
				pounces = roster.Pounces().All()
				return
			}
			a, ferr := findAccount(args[0], pounceOpts.protocol)
			if ferr != nil {
				err = ferr
				return
			}
			pounces = roster.Pounces().ForAccount(a)
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACCOUNT\tWHO\tEVENTS\tACTIONS\tSAVE\tCREATED")
		for _, p := range pounces {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
				p.ID, p.Account.Username(), p.Who, p.Events, describeActions(p.Actions), p.Save, humanize.Time(p.Created))
		}
		return w.Flush()
	},
}

func describeActions(actions map[string]string) string {
	if len(actions) == 0 {
		return "-"
	}
	names := make([]string, 0, len(actions))
	for k, v := range actions {
		if v != "" {
			k += "=" + v
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func init() {
	rootCmd.AddCommand(pounceCmd)
	pounceCmd.AddCommand(pounceAddCmd, pounceListCmd)

	pounceCmd.PersistentFlags().StringVarP(&pounceOpts.protocol, "protocol", "p", "",
		"Protocol of the account when the name is ambiguous")
	pounceAddCmd.Flags().StringVarP(&pounceOpts.events, "events", "e", "sign-on",
		"Comma separated events to watch")
	pounceAddCmd.Flags().StringVarP(&pounceOpts.message, "message", "m", "",
		"Message to send when the pounce fires")
	pounceAddCmd.Flags().BoolVar(&pounceOpts.popup, "popup", false,
		"Show a notification when the pounce fires")
	pounceAddCmd.Flags().BoolVar(&pounceOpts.save, "save", false,
		"Keep the pounce after it fires")
}
