package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/star-discord/legion-kanri-bot/internal/ops"
)

func main() {
	root := &cobra.Command{
		Use:           "legion-ops",
		Short:         "Operational tooling for the quest data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(backupCmd(), restoreCmd(), inspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func backupCmd() *cobra.Command {
	var dataDir, out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the data directory to a .tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				ts := time.Now().UTC().Format("20060102T150405Z")
				out = filepath.Join("backups", "legion-"+ts+".tar.gz")
			}
			if err := ops.BackupDataDir(dataDir, out); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	cmd.Flags().StringVar(&out, "out", "", "output archive path (.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var archive, target string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup archive into a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if archive == "" {
				return fmt.Errorf("--archive is required")
			}
			return ops.RestoreDataDir(archive, target)
		},
	}
	cmd.Flags().StringVar(&archive, "archive", "", "input backup archive (.tar.gz)")
	cmd.Flags().StringVar(&target, "target-dir", "data-restored", "restore target directory")
	return cmd
}

func inspectCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print per-guild quest counts and slot usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := ops.InspectDataDir(dataDir)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("no guilds found")
				return nil
			}
			for _, s := range summaries {
				fmt.Printf("guild %s: %d quests (%d open, %d closed, %d archived), %d/%d slots committed\n",
					s.GuildID, s.Quests, s.Open, s.Closed, s.Archived, s.Committed, s.Capacity)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	return cmd
}
