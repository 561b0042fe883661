package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/globserve/globserve"
	"github.com/ZanzyTHEbar/globserve/globserve/config"
	"github.com/ZanzyTHEbar/globserve/globserve/server"
	"github.com/ZanzyTHEbar/globserve/globserve/trees"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "globserve",
		Short:         "Serve the files under a directory that match a glob pattern",
		Long:          "globserve indexes the files under a directory that match a glob pattern once at startup,\nthen serves exactly those files over HTTP. Everything else is a 404.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().SortFlags = false

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file to load (defaults to ./config.* or ~/.config/globserve/config.*)")
	flags.String("path", internal.DefaultServePath, "base directory to index and serve")
	flags.String("pattern", internal.DefaultPattern, "glob pattern applied at every directory level (supports **)")
	flags.StringSlice("exclude", nil, "gitignore-style pattern to leave out of the index (repeatable)")
	flags.String("exclude-file", "", "file with gitignore-style patterns to leave out of the index")
	flags.String("log-level", internal.DefaultLogLevel, "log level, one of [trace, debug, info, warn, error]")
	flags.String("log-format", internal.DefaultLogFormat, "log format, one of [text, json]")

	cmd.Flags().String("address", internal.DefaultAddress, "address to listen on")
	cmd.Flags().Int("port", internal.DefaultPort, "port to listen on (0 picks a free port)")
	cmd.Flags().String("status-addr", "", "serve a JSON status document on this host:port")

	cmd.RunE = wrapErr("run globserve", func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	})

	cmd.AddCommand(checkCmd())

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and report what would be served",
		Args:  cobra.NoArgs,
	}

	list := cmd.Flags().Bool("list", false, "print every indexed path relative to the base directory")

	cmd.RunE = wrapErr("check configuration", func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		idx, err := buildIndex(cfg, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d files match %q under %s\n", idx.Count(), idx.Pattern(), idx.Base())
		if *list {
			for _, p := range idx.RelativePaths() {
				fmt.Fprintln(out, p)
			}
		}
		return nil
	})

	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("validate config: %w", err)
	}

	logger, err := internal.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("configure logger: %w", err)
	}
	return cfg, logger, nil
}

func buildIndex(cfg *config.Config, logger zerolog.Logger) (*trees.PathIndex, error) {
	opts := []trees.Option{trees.WithLogger(logger)}

	excludes, err := cfg.Excludes()
	if err != nil {
		return nil, err
	}
	if excludes != nil {
		opts = append(opts, trees.WithExcludes(excludes))
	}

	idx, err := trees.New(cfg.Path, cfg.Pattern, opts...)
	if err != nil {
		return nil, err
	}
	idx.Build()
	return idx, nil
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	idx, err := buildIndex(cfg, logger)
	if err != nil {
		return err
	}

	handler := server.NewHandler(idx, nil, logger)
	srv := &server.Server{
		Addr:    cfg.ListenAddress(),
		Handler: handler.Router(),
		Logger:  logger,
	}

	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	logger.Info().
		Int("files", idx.Count()).
		Str("addr", ln.Addr().String()).
		Msgf("Serving %d files on %s", idx.Count(), ln.Addr())

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return srv.Serve(ctx, ln)
	})
	if cfg.StatusAddr != "" {
		p.Go(func(ctx context.Context) error {
			logger.Debug().Str("addr", cfg.StatusAddr).Msg("running status server")
			return server.RunStatus(ctx, cfg.StatusAddr, logger, server.StatusFunc(idx, handler.Metrics()))
		})
	}
	return p.Wait()
}

func wrapErr(msg string, runErr func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := runErr(cmd, args); err != nil {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return nil
	}
}
