package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sitecms/api/internal/store"
)

var archiveLimit int

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived content versions",
}

var archiveHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		_, versions, err := openArchive(appConfig, store.NewPostgresStore(db))
		if err != nil {
			return err
		}
		entries, err := versions.ListVersions(cmd.Context(), archiveLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tARCHIVED AT")
		for _, entry := range entries {
			fmt.Fprintf(tw, "%s\t%s\n", entry.ID, entry.ArchivedAt.UTC().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		_, versions, err := openArchive(appConfig, store.NewPostgresStore(db))
		if err != nil {
			return err
		}
		body, err := versions.GetVersion(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err != nil {
			return fmt.Errorf("archived body is not valid JSON: %w", err)
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(cmd.OutOrStdout())
		return err
	},
}

func init() {
	archiveHistoryCmd.Flags().IntVar(&archiveLimit, "limit", 20, "maximum versions to list")
	archiveCmd.AddCommand(archiveHistoryCmd, archiveShowCmd)
}
