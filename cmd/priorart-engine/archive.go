// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/priorart-engine/internal/archive"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse stored search sessions (list, show, search, export)",
	Long: `Archive manages the local SQLite store of finished search reports. Use
subcommands to list sessions, print one report, search cited references by
title, or export references to YAML or JSON.`,
}

// --- list subcommand ---

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, newest first",
	RunE:  runArchiveList,
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := store.Sessions(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return encodeJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions archived.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-6s  %-7s  %s\n",
		"Session", "Outcome", "Critical", "Rounds", "Queries", "Created")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, s := range sessions {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-6d  %-7d  %s\n",
			s.ID, s.Outcome, s.CriticalDate, s.Rounds, s.TotalQueries, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// --- show subcommand ---

var archiveShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print an archived search report",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return encodeJSON(r)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// --- search subcommand ---

var archiveSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cited references across sessions",
	Long: `Search finds archived references with FTS5 full-text search over their
titles, structured filters (tag, session), or both.`,
	RunE: runArchiveSearch,
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	opts := queryOptsFromFlags(cmd, args)
	if opts.Query == "" && opts.Tag == "" && opts.SessionID == "" {
		return fmt.Errorf("query or filter required: provide a search query, --tag, or --session")
	}

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Documents(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return encodeJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-3s  %-4s  %-50s  %-20s  %s\n",
		"Rank", "Tag", "Role", "Title", "Reference", "Session")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for i, r := range results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		ref := r.UID
		if len(ref) > 20 {
			ref = ref[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-3s  %-4s  %-50s  %-20s  %s\n",
			i+1, r.Tag, r.Role, title, ref, r.SessionID)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived references to YAML or JSON",
	Long: `Export writes every archived reference (or a filtered subset) to
<archive-dir>/export.yaml or export.json. Supports the same filter flags
as search.`,
	RunE: runArchiveExport,
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("archive-dir"); dir != "" {
		cfg.Archive.Dir = dir
	}
	return archive.NewStore(cfg.Archive)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) archive.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	tag, _ := cmd.Flags().GetString("tag")
	session, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	return archive.QueryOptions{
		Query:      queryText,
		Tag:        types.Tag(strings.ToUpper(tag)),
		SessionID:  session,
		MaxResults: limit,
	}
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	archiveCmd.PersistentFlags().String("archive-dir", "", "archive directory (default from config: archive)")

	archiveListCmd.Flags().Int("limit", 0, "maximum sessions (0 = use default)")
	archiveListCmd.Flags().Bool("json", false, "output as JSON")

	archiveShowCmd.Flags().Bool("json", false, "output as JSON instead of YAML")

	archiveSearchCmd.Flags().String("query", "", "full-text search over reference titles")
	archiveSearchCmd.Flags().String("tag", "", "filter by category: X, Y, A, E")
	archiveSearchCmd.Flags().String("session", "", "filter by session ID")
	archiveSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	archiveSearchCmd.Flags().Bool("json", false, "output results as JSON")

	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	archiveExportCmd.Flags().String("tag", "", "filter by category for partial export")
	archiveExportCmd.Flags().String("session", "", "filter by session ID for partial export")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveExportCmd)

	rootCmd.AddCommand(archiveCmd)
}
