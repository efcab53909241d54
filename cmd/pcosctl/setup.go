package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/setup"
)

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the lite MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().String("client-config", "", "Client config file; empty uses the platform default")

	register := &cobra.Command{
		Use:   "register",
		Short: "Add or update the server entry in the client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := clientConfigPath(cmd)
			if err != nil {
				return err
			}
			binary, _ := cmd.Flags().GetString("binary")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			catalogPath, _ := cmd.Flags().GetString("catalog")

			entry, err := setup.Register(path, setup.Options{BinaryPath: binary, DataDir: dataDir, CatalogPath: catalogPath})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s in %s\nRestart the client to load it.\n", setup.ServerKey, entry.Command, path)
			return nil
		},
	}
	register.Flags().String("binary", "", "Path to mcp-server-lite; empty searches PATH")
	register.Flags().String("data-dir", "", "Data directory passed as PCOS_DATA_DIR")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := clientConfigPath(cmd)
			if err != nil {
				return err
			}
			s, err := setup.GetStatus(path, config.DefaultLiteConfig().DataDir)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}

	cmd.AddCommand(register, status)
	return cmd
}

func clientConfigPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("client-config"); path != "" {
		return path, nil
	}
	return setup.DefaultConfigPath()
}
