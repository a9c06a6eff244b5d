package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-metrics/internal/config"
	"github.com/naka-gawa/github-metrics/internal/gateway"
	"github.com/naka-gawa/github-metrics/internal/history"
	"github.com/naka-gawa/github-metrics/internal/render"
	"github.com/naka-gawa/github-metrics/internal/usecase"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Updates the traffic history and renders activity dashboards",
	Long: `Fetches traffic, stargazers, forks and commits of the target repository,
merges the last 14 days of traffic into the local history, and renders the
activity and growth dashboards for the requested window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(cfg.Token, cfg.MaxPages, cfg.RequestTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		fs := afero.NewOsFs()
		store, err := history.Open(ctx, cfg, fs)
		if err != nil {
			return fmt.Errorf("failed to open traffic history: %w", err)
		}
		defer func() { _ = store.Close() }()

		renderer := render.NewChartRenderer(fs, cfg.OutputDir)
		pipeline := usecase.NewPipeline(githubGateway, store, renderer, logger)

		dashboard, err := pipeline.Run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to build dashboards: %w", err)
		}

		if cfg.Output == config.JSONOut {
			return render.WriteJSON(os.Stdout, dashboard)
		}
		return render.WriteTable(os.Stdout, dashboard)
	},
}

// loadConfig merges flags, environment and config file, then validates once.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return config.Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := readConfigFile(); err != nil {
		return config.Config{}, err
	}
	var input config.RawInput
	if err := viper.Unmarshal(&input); err != nil {
		return config.Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return config.FromRaw(input)
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	addDashboardFlags(dashboardCmd.Flags())
}

func addDashboardFlags(flags *pflag.FlagSet) {
	flags.StringP("owner", "o", "", "Owner of the target repository (required)")
	flags.StringP("repo", "r", "", "Name of the target repository (required)")
	flags.String("token", "", "GitHub access token (prefer GH_TOKEN or GITHUB_TOKEN)")
	flags.IntP("window", "w", config.DefaultWindowDays, "Number of days shown in the dashboards")
	flags.Int("retention", config.DefaultRetentionDays, "Days of traffic history to keep")
	flags.Int("max-pages", config.DefaultMaxPages, "Maximum pages fetched per list endpoint")
	flags.Int("workers", config.DefaultWorkers, "Number of concurrent fetches")
	flags.Duration("timeout", config.DefaultRequestTimeout, "Timeout of a single API request")
	flags.Bool("totals", false, "Also fetch lifetime totals using the GraphQL API")
	flags.String("history-backend", config.JSONBackend, "Traffic history backend: json or sqlite")
	flags.String("history-path", "", "Traffic history location (default depends on the backend)")
	flags.String("out-dir", config.DefaultOutputDir, "Directory the dashboard images are written to")
	flags.String("output", config.TextOut, "Summary format: text or json")
}
