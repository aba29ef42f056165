package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/meszmate/buddylist/internal/blist"
)

var listOpts struct {
	format  string
	offline bool
}

// listGroup is the dump of one group
type listGroup struct {
	Name     string        `json:"name" yaml:"name"`
	Online   int           `json:"online" yaml:"online"`
	Total    int           `json:"total" yaml:"total"`
	Contacts []listContact `json:"contacts,omitempty" yaml:"contacts,omitempty"`
	Chats    []listChat    `json:"chats,omitempty" yaml:"chats,omitempty"`
}

type listContact struct {
	Name    string      `json:"name" yaml:"name"`
	Buddies []listBuddy `json:"buddies" yaml:"buddies"`
}

type listBuddy struct {
	Account  string     `json:"account" yaml:"account"`
	Protocol string     `json:"protocol" yaml:"protocol"`
	Name     string     `json:"name" yaml:"name"`
	Alias    string     `json:"alias,omitempty" yaml:"alias,omitempty"`
	Status   string     `json:"status" yaml:"status"`
	Message  string     `json:"message,omitempty" yaml:"message,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
	IdleFrom *time.Time `json:"idle_since,omitempty" yaml:"idle_since,omitempty"`
	IconSize int        `json:"icon_size,omitempty" yaml:"icon_size,omitempty"`
}

type listChat struct {
	Account string `json:"account" yaml:"account"`
	Name    string `json:"name" yaml:"name"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the buddy list",
	Long: `Print groups, contacts, buddies and chats in list order.

Formats:
  text  indented tree with relative times (default)
  yaml  structured dump
  json  structured dump`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "text",
		"Output format (text, yaml, json)")
	listCmd.Flags().BoolVar(&listOpts.offline, "offline", true,
		"Include buddies that are offline")
}

func runList(cmd *cobra.Command, args []string) error {
	var groups []listGroup
	roster.Do(func() {
		groups = dumpList(roster.List(), listOpts.offline)
	})

	out := cmd.OutOrStdout()
	switch listOpts.format {
	case "text":
		printList(out, groups)
		return nil
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(groups); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	default:
		return fmt.Errorf("unknown format %q", listOpts.format)
	}
}

func dumpList(l *blist.List, offline bool) []listGroup {
	var groups []listGroup
	for _, g := range l.Groups() {
		lg := listGroup{Name: g.Name(), Online: g.OnlineSize(), Total: g.TotalSize()}
		for _, c := range g.Contacts() {
			lc := listContact{Name: c.DisplayName()}
			for _, b := range c.Buddies() {
				if !offline && !b.Presence().IsOnline() {
					continue
				}
				lc.Buddies = append(lc.Buddies, dumpBuddy(l, b))
			}
			if len(lc.Buddies) > 0 {
				lg.Contacts = append(lg.Contacts, lc)
			}
		}
		for _, ch := range g.Chats() {
			lg.Chats = append(lg.Chats, listChat{Account: ch.Account().Username(), Name: ch.DisplayName()})
		}
		groups = append(groups, lg)
	}
	return groups
}

func dumpBuddy(l *blist.List, b *blist.Buddy) listBuddy {
	lb := listBuddy{
		Account:  b.Account().Username(),
		Protocol: b.Account().ProtocolID(),
		Name:     b.Name(),
		Alias:    b.Alias(),
	}
	p := b.Presence()
	if s := p.ActiveStatus(); s != nil {
		lb.Status = s.ID()
		lb.Message = s.AttrString("message")
	}
	if seen := b.GetInt("last_seen", 0); seen > 0 {
		t := time.Unix(int64(seen), 0)
		lb.LastSeen = &t
	}
	if p.IsIdle() && !p.IdleTime().IsZero() {
		t := p.IdleTime()
		lb.IdleFrom = &t
	}
	if icon := l.LoadBuddyIcon(b); icon != nil {
		lb.IconSize = icon.Len()
	}
	return lb
}

func printList(w io.Writer, groups []listGroup) {
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d/%d)\n", g.Name, g.Online, g.Total)
		for _, c := range g.Contacts {
			if len(c.Buddies) > 1 {
				fmt.Fprintf(w, "  %s\n", c.Name)
			}
			indent := "  "
			if len(c.Buddies) > 1 {
				indent = "    "
			}
			for _, b := range c.Buddies {
				fmt.Fprintf(w, "%s%s\n", indent, describeBuddy(b))
			}
		}
		for _, ch := range g.Chats {
			fmt.Fprintf(w, "  #%s [%s]\n", ch.Name, ch.Account)
		}
	}
}

func describeBuddy(b listBuddy) string {
	var sb strings.Builder
	sb.WriteString(b.Name)
	if b.Alias != "" {
		fmt.Fprintf(&sb, " (%s)", b.Alias)
	}
	fmt.Fprintf(&sb, " [%s] %s", b.Account, b.Status)
	if b.Message != "" {
		fmt.Fprintf(&sb, ": %s", b.Message)
	}
	if b.IdleFrom != nil {
		fmt.Fprintf(&sb, ", idle since %s", humanize.Time(*b.IdleFrom))
	}
	if b.LastSeen != nil && b.Status == "offline" {
		fmt.Fprintf(&sb, ", last seen %s", humanize.Time(*b.LastSeen))
	}
	if b.IconSize > 0 {
		fmt.Fprintf(&sb, ", icon %s", humanize.Bytes(uint64(b.IconSize)))
	}
	return sb.String()
}
