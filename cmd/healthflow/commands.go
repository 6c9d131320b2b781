package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"healthflow/config"
	"healthflow/internal/app"
	"healthflow/internal/hrv"
	"healthflow/internal/logging"
	"healthflow/internal/version"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "healthflow",
		Short:         "HealthFlow AI recovery and workout agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newCacheCmd(),
		newHRVCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads configuration and installs the configured slog logger.
func loadConfig(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Format, cfg.Logging.Level, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			slog.Info("starting healthflow",
				"version", version.Version,
				"commit", version.Commit,
				"build_date", version.Date,
			)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("shutdown error", "error", shutdownErr)
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the response cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return sweepCache(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}

func sweepCache(ctx context.Context, w io.Writer, cfg *config.Config) error {
	responses, err := app.NewResponseCache(cfg, nil)
	if err != nil {
		return err
	}
	defer responses.Close()

	if !responses.Enabled() {
		fmt.Fprintln(w, "Response cache is disabled.")
		return nil
	}
	removed := responses.EvictExpired(ctx)
	fmt.Fprintf(w, "Removed %d expired entries.\n", removed)
	return nil
}

func newHRVCmd() *cobra.Command {
	var (
		days int
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "hrv",
		Short: "Print simulated HRV readings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, 0))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hrv.Generate(days, time.Now(), rng))
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one from the clock)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
