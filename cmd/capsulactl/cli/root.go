// Package cli implements the capsulactl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/capsula-erp/capsula/internal/app"
	"github.com/capsula-erp/capsula/internal/observability"
	"github.com/capsula-erp/capsula/internal/platform/cache"
	"github.com/capsula-erp/capsula/internal/platform/db"
)

// runtime carries what PersistentPreRunE resolved for the subcommands.
type runtime struct {
	envFile string
	cfg     *app.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
}

// NewRoot builds the capsulactl command tree.
func NewRoot() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:          "capsulactl",
		Short:        "Operate the capsula manufacturing backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rt.close()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.AddCommand(newMigrateCmd(rt), newSeedCmd(rt), newUsersCmd(rt), newJobsCmd(rt))
	return root
}

func (rt *runtime) init(stderr io.Writer) error {
	if rt.envFile != "" {
		if err := godotenv.Load(rt.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", rt.envFile, err)
		}
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return nil
}

// database opens the pool on first use so commands that only talk to
// Redis never need Postgres.
func (rt *runtime) database(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.pool != nil {
		return rt.pool, nil
	}
	pool, err := db.New(ctx, rt.cfg.PGDSN, db.PoolOptions{MaxConns: 4, ApplicationName: "capsulactl"})
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	return pool, nil
}

func (rt *runtime) services(ctx context.Context) (*app.Services, error) {
	pool, err := rt.database(ctx)
	if err != nil {
		return nil, err
	}
	if rt.redis == nil {
		client, err := cache.Connect(ctx, rt.cfg.Redis())
		if err != nil {
			rt.logger.Warn("redis unavailable, overview cache will not be invalidated", slog.Any("error", err))
		}
		rt.redis = client
	}
	return app.NewServices(rt.cfg, pool, rt.redis, observability.NewMetrics(), rt.logger), nil
}

func (rt *runtime) close() error {
	if rt.pool != nil {
		rt.pool.Close()
		rt.pool = nil
	}
	if rt.redis != nil {
		err := rt.redis.Close()
		rt.redis = nil
		return err
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
