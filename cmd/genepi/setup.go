package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/genepilepsy-guide/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register genepi as an MCP server with the desktop client",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientConfig, _ := cmd.Flags().GetString("client-config")
		out := cmd.OutOrStdout()

		if check, _ := cmd.Flags().GetBool("check"); check {
			status, err := setup.Check(clientConfig)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Client config: %s\nRegistered: %t\n", status.ConfigPath, status.Registered)
			if status.Registered {
				fmt.Fprintf(out, "Command: %s %v\n", status.Entry.Command, status.Entry.Args)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			if len(status.Issues) > 0 {
				return fmt.Errorf("setup has %d issue(s)", len(status.Issues))
			}
			return nil
		}

		binary, _ := cmd.Flags().GetString("binary")
		if binary == "" {
			if self, err := os.Executable(); err == nil {
				binary = self
			}
		}
		configFile, _ := cmd.Flags().GetString("config")

		path, err := setup.Register(setup.Options{
			ConfigPath: clientConfig,
			BinaryPath: binary,
			ConfigFile: configFile,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Registered %s in %s\nRestart the client to load the tools.\n", setup.ServerName, path)
		return nil
	},
}

func init() {
	setupCmd.Flags().String("client-config", "", "desktop client config file (default: the platform location)")
	setupCmd.Flags().String("binary", "", "genepi binary to register (default: this executable)")
	setupCmd.Flags().Bool("check", false, "only report the current registration")

	rootCmd.AddCommand(setupCmd)
}
