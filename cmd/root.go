// Package cmd implements the pricewatch command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigPath = "config.yml"

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pricewatch",
	Short: "Sourcing price monitor with margin-protected repricing",
	Long: `pricewatch polls upstream retailer pages for price and stock changes,
reprices products against a target margin and pushes the new price to the
linked sales channels.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./config.yml, env CONFIG_PATH)")

	viper.SetDefault("config", defaultConfigPath)
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("bind config flag: %v", err))
	}
	if err := viper.BindEnv("config", "CONFIG_PATH"); err != nil {
		panic(fmt.Sprintf("bind CONFIG_PATH: %v", err))
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("pricewatch %s\n", Version)
		},
	})
}

// configPath resolves the config file: flag, then CONFIG_PATH, then default.
func configPath() string {
	return viper.GetString("config")
}
