package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meszmate/buddylist/internal/app"
	"github.com/meszmate/buddylist/internal/storage/xmlstore"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report edits other programs make to the buddy list",
	Long: `Watch accounts.xml and blist.xml in the data directory. After each change
the files are read into a fresh context and a summary is printed.

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changed := make(chan string, 1)
	w, err := xmlstore.NewWatcher(cfg.General.DataDir, func(file string) {
		select {
		case changed <- file:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.General.DataDir, err)
	}
	defer w.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", cfg.General.DataDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case file := <-changed:
			// let the writer finish its rename
			time.Sleep(100 * time.Millisecond)
			fmt.Fprintf(out, "%s  %s changed: %s\n", time.Now().Format(time.TimeOnly), file, summarize())
		}
	}
}

// summarize loads the data directory into a context of its own. Its
// database is off so the watcher never holds buddylist.db open.
func summarize() string {
	c := *cfg
	c.Storage.Database = false
	fresh, err := app.New(&c)
	if err != nil {
		return err.Error()
	}
	defer fresh.Close()
	if err := fresh.Load(); err != nil {
		return err.Error()
	}

	var s string
	fresh.Do(func() {
		buddies := 0
		groups := fresh.List().Groups()
		for _, g := range groups {
			buddies += g.TotalSize()
		}
		s = fmt.Sprintf("%d accounts, %d groups, %d buddies", len(fresh.Accounts().Accounts()), len(groups), buddies)
	})
	return s
}
