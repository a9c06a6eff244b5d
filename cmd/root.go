// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "github-metrics",
	Short: "A CLI tool to track daily activity of a GitHub repository.",
	Long: `github-metrics collects clones, views, stars, forks and commits of a
GitHub repository, keeps a durable daily traffic history beyond the 14 days
GitHub retains, and renders time-aligned dashboards.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is .github-metrics.yaml in . or $HOME)")
}

// initConfig sets up the config file lookup and environment variables.
func initConfig() {
	if configFile, _ := rootCmd.PersistentFlags().GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".github-metrics")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	bindEnv()
}

// bindEnv maps GITHUB_METRICS_* variables onto config keys. The repository
// identity and token also accept the plain names used by CI workflows.
func bindEnv() {
	viper.SetEnvPrefix("GITHUB_METRICS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("owner", "GITHUB_METRICS_OWNER", "OWNER")
	_ = viper.BindEnv("repo", "GITHUB_METRICS_REPO", "REPO")
	_ = viper.BindEnv("token", "GITHUB_METRICS_TOKEN", "GH_TOKEN", "GITHUB_TOKEN")
}

// readConfigFile loads the config file if one is present.
func readConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
