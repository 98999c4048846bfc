// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/history"
	"github.com/pdiddy/content-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded pipeline runs (list, show, export)",
	Long: `History reads the local SQLite database of pipeline runs. Every run
records its topic, backend, outcome, the per-stage log, and the state each
stage produced, so a failed run can be inspected and resumed.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	topic, _ := cmd.Flags().GetString("topic")

	runs, err := store.List(context.Background(), history.ListOptions{
		Limit:  limit,
		Status: types.RunStatus(status),
		Topic:  topic,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistoryList(cmd.OutOrStdout(), runs, jsonOutput)
}

func formatHistoryList(w io.Writer, runs []types.RunRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-5s  %-19s  %-9s  %-14s  %-8s  %s\n",
		"ID", "Started", "Status", "Failed stage", "Time", "Topic")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, r := range runs {
		topic := truncate(r.Topic, 30)
		failed := r.FailedStage
		if failed == "" {
			failed = "-"
		}
		fmt.Fprintf(w, "%-5d  %-19s  %-9s  %-14s  %-8s  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, failed,
			(time.Duration(r.DurationMS) * time.Millisecond).Round(100*time.Millisecond), topic)
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its stage log and state",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(context.Background(), id)
	if err != nil {
		return err
	}

	if key, _ := cmd.Flags().GetString("key"); key != "" {
		v, ok := rec.State[key]
		if !ok {
			return fmt.Errorf("run %d has no state key %q", id, key)
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(rec)
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every recorded run to a YAML file",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ExportYAML(context.Background(), out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", n, out)
	return nil
}

// --- shared helpers ---

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.History)
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "", "directory containing history.db (default output)")
	viper.BindPFlag("history.dir", historyCmd.PersistentFlags().Lookup("history-dir"))

	historyListCmd.Flags().Int("limit", 20, "maximum runs to list (negative = all)")
	historyListCmd.Flags().String("status", "", "filter by status: completed or failed")
	historyListCmd.Flags().String("topic", "", "filter by topic substring")
	historyListCmd.Flags().Bool("json", false, "output runs as JSON")

	historyShowCmd.Flags().String("key", "", "print only this state key (e.g. formatted)")

	historyExportCmd.Flags().String("out", "history-export.yaml", "output file")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
