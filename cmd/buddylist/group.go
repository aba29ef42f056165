package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Add, rename or remove groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Append a group to the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster.Do(func() { roster.AddGroup(args[0]) })
		return nil
	},
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a group, merging it into an existing one of the new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			g := roster.List().FindGroup(args[0])
			if g == nil {
				err = fmt.Errorf("no group %q", args[0])
				return
			}
			roster.List().RenameGroup(g, args[1])
		})
		return err
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an empty group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		roster.Do(func() {
			g := roster.List().FindGroup(args[0])
			if g == nil {
				err = fmt.Errorf("no group %q", args[0])
				return
			}
			err = roster.List().RemoveGroup(g)
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupAddCmd, groupRenameCmd, groupRemoveCmd)
}
