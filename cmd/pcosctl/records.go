package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/tracker"
)

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", config.DefaultLiteConfig().AssessmentDBPath(), "SQLite tracker database")
	cmd.Flags().String("database-url", "", "PostgreSQL URL; overrides --db")
}

// openStore opens the PostgreSQL tracker when --database-url is set and the SQLite
// tracker otherwise.
func openStore(cmd *cobra.Command) (tracker.Store, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return tracker.NewPostgresStoreFromURL(url)
	}
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		return nil, errors.New("either --db or --database-url is required")
	}
	return tracker.NewSQLiteStore(path)
}

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage stored patient assessments",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List assessments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			records, err := store.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATIENT\tDIAGNOSIS\tPHENOTYPE\tRISK\tCREATED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d (%s)\t%s\n", r.ID, r.PatientName, r.Result.Diagnosis,
					r.Result.PhenotypeLabel(), r.Result.RiskScore, r.Result.RiskLevel, r.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().Int("limit", 50, "Maximum records to show")
	list.Flags().Int("offset", 0, "Records to skip")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print one assessment as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print tracker totals as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Export every assessment as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			out, _ := cmd.Flags().GetString("out")
			if out == "" || out == "-" {
				return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := store.ExportJSON(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	export.Flags().StringP("out", "o", "", "Output file, stdout when empty")

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Import assessments from an export file, skipping existing ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d assessments, skipped %d\n", imported, skipped)
			return nil
		},
	}

	for _, sub := range []*cobra.Command{list, get, del, summary, export, imp} {
		addStoreFlags(sub)
		cmd.AddCommand(sub)
	}
	return cmd
}
