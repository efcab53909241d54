package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcos-assessment-server/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate criteria catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cat.Document())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate one or more catalog files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				cat, err := catalog.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (version %s)\n", path, cat.Version())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs are invalid", failed, len(args))
			}
			return nil
		},
	})

	return cmd
}
