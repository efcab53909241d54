package main

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pcos-assessment-server/internal/catalog"
	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/domain"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pcosctl",
		Short:         "Rotterdam PCOS assessments and patient tracker tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("catalog", "", "Path to a criteria catalog (YAML or JSON); empty uses the built-in catalog")
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newAssessCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newRecordsCmd())
	root.AddCommand(newSetupCmd())
	return root
}

// newLogger logs to the command's error stream so stdout carries only results.
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := config.NewLogger(domain.LoggingConfig{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}

func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	path, _ := cmd.Flags().GetString("catalog")
	return catalog.LoadOrDefault(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
