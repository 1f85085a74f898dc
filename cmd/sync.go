package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ccstats/internal/cli"
	"ccstats/internal/model"
)

var flagSyncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest session logs into the aggregate store",
	Long:  "Scan the Claude data directory and fold new usage into the aggregate store.\nUse --full to discard aggregates and rescan everything.",
	RunE:  runSync,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current sync run",
	RunE:  runSyncStatus,
}

var syncPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the daemon's active sync run",
	RunE:  runSyncControl("pause"),
}

var syncResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused sync run",
	RunE:  runSyncControl("resume"),
}

var syncCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the daemon's active sync run",
	RunE:  runSyncControl("cancel"),
}

func init() {
	syncCmd.Flags().BoolVar(&flagSyncFull, "full", false, "Rebuild aggregates from scratch")

	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncPauseCmd)
	syncCmd.AddCommand(syncResumeCmd)
	syncCmd.AddCommand(syncCancelCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSync(_ *cobra.Command, _ []string) error {
	eng, _, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	mode := model.SyncIncremental
	if flagSyncFull {
		mode = model.SyncFull
		if !flagQuiet {
			fmt.Fprintln(os.Stderr, "  Rebuilding aggregates from scratch...")
		}
	}

	// Ctrl-C cancels cooperatively: committed files stay committed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := eng.RunSync(ctx, mode)
	if err != nil {
		return err
	}

	if !flagQuiet {
		fmt.Fprint(os.Stderr, "\r")
	}
	fmt.Println(cli.RenderSyncRun(run))

	if run.State == model.SyncFailed {
		return fmt.Errorf("sync failed: %s", run.LastError)
	}
	return nil
}

func runSyncStatus(_ *cobra.Command, _ []string) error {
	st, err := fetchDaemonStatus()
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	fmt.Println(cli.RenderSyncRun(st.Sync))
	return nil
}

func runSyncControl(action string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		run, err := postDaemonSyncControl(action)
		if err != nil {
			return err
		}
		fmt.Printf("  Sync %s requested (state: %s)\n", action, run.State)
		return nil
	}
}
