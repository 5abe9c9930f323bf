// Command modelrouter runs the hybrid model router and its clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/modelrouter/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "modelrouter",
	Short: "Multi-model chat router with a calculator agent and document retrieval",
	Long: `modelrouter classifies each chat message (rules first, then a model) and
dispatches it to the general, code, math or document backend.

Configuration comes from an optional YAML/TOML file (--config or
MODELROUTER_CONFIG) overlaid by environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(classifyCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	return config.LoadPath(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
