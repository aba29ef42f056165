package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
)

var buddyOpts struct {
	protocol string
	alias    string
	group    string
}

// findBuddy resolves <account> <name>
func findBuddy(username, name string) (*account.Account, *blist.Buddy, error) {
	a, err := findAccount(username, buddyOpts.protocol)
	if err != nil {
		return nil, nil, err
	}
	if buddyOpts.group != "" {
		g := roster.List().FindGroup(buddyOpts.group)
		if g == nil {
			return nil, nil, fmt.Errorf("no group %q", buddyOpts.group)
		}
		if b := roster.List().FindBuddyInGroup(a, name, g); b != nil {
			return a, b, nil
		}
		return nil, nil, fmt.Errorf("%s is not in %s", name, buddyOpts.group)
	}
	b := roster.List().FindBuddy(a, name)
	if b == nil {
		return nil, nil, fmt.Errorf("%s is not on the list of %s", name, username)
	}
	return a, b, nil
}

// buddyCommand runs fn on the buddy named by the two arguments
func buddyCommand(fn func(args []string, b *blist.Buddy) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			_, b, ferr := findBuddy(args[0], args[1])
			if ferr != nil {
				err = ferr
				return
			}
			err = fn(args, b)
		})
		return err
	}
}

var buddyCmd = &cobra.Command{
	Use:   "buddy",
	Short: "Add, remove, alias or move buddies",
}

var buddyAddCmd = &cobra.Command{
	Use:   "add <account> <name>",
	Short: "Add a buddy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			a, ferr := findAccount(args[0], buddyOpts.protocol)
			if ferr != nil {
				err = ferr
				return
			}
			roster.AddBuddy(a, args[1], buddyOpts.alias, buddyOpts.group)
		})
		return err
	},
}

var buddyRemoveCmd = &cobra.Command{
	Use:   "remove <account> <name>",
	Short: "Remove a buddy",
	Args:  cobra.ExactArgs(2),
	RunE: buddyCommand(func(_ []string, b *blist.Buddy) error {
		roster.RemoveBuddy(b)
		return nil
	}),
}

var buddyAliasCmd = &cobra.Command{
	Use:   "alias <account> <name> <alias>",
	Short: "Set the local alias of a buddy; an empty alias clears it",
	Args:  cobra.ExactArgs(3),
	RunE: buddyCommand(func(args []string, b *blist.Buddy) error {
		roster.List().AliasBuddy(b, args[2])
		return nil
	}),
}

var buddyMoveCmd = &cobra.Command{
	Use:   "move <account> <name> <group>",
	Short: "Move a buddy to another group",
	Args:  cobra.ExactArgs(3),
	RunE: buddyCommand(func(args []string, b *blist.Buddy) error {
		g := roster.AddGroup(args[2])
		roster.List().AddBuddy(b, nil, g, nil)
		return nil
	}),
}

var iconCmd = &cobra.Command{
	Use:   "icon",
	Short: "Set or clear buddy icons",
}

var iconSetCmd = &cobra.Command{
	Use:   "set <account> <name> <file>",
	Short: "Set the icon of every entry for a buddy",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("failed to read icon: %w", err)
		}
		roster.Do(func() {
			a, _, ferr := findBuddy(args[0], args[1])
			if ferr != nil {
				err = ferr
				return
			}
			icon := roster.Icons().New(a, args[1], data)
			icon.Unref()
		})
		return err
	},
}

var iconClearCmd = &cobra.Command{
	Use:   "clear <account> <name>",
	Short: "Remove the icon of every entry for a buddy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			a, _, ferr := findBuddy(args[0], args[1])
			if ferr != nil {
				err = ferr
				return
			}
			for _, b := range roster.List().FindBuddies(a, args[1]) {
				roster.List().SetBuddyIcon(b, nil)
			}
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(buddyCmd, iconCmd)
	buddyCmd.AddCommand(buddyAddCmd, buddyRemoveCmd, buddyAliasCmd, buddyMoveCmd)
	iconCmd.AddCommand(iconSetCmd, iconClearCmd)

	for _, c := range []*cobra.Command{buddyCmd, iconCmd} {
		c.PersistentFlags().StringVarP(&buddyOpts.protocol, "protocol", "p", "",
			"Protocol of the account when the name is ambiguous")
	}
	buddyAddCmd.Flags().StringVar(&buddyOpts.alias, "alias", "", "Local alias")
	for _, c := range []*cobra.Command{buddyAddCmd, buddyRemoveCmd, buddyAliasCmd} {
		c.Flags().StringVarP(&buddyOpts.group, "group", "g", "", "Group of the buddy")
	}
}
