package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"vizintel/api/internal/config"
	"vizintel/api/internal/db"
	"vizintel/api/internal/identity"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository/postgres"
	"vizintel/api/internal/services"
)

func newRootCmd() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:           "vizintelctl",
		Short:         "Operator tasks for the VizIntel API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if databaseURL == "" {
				databaseURL = config.Load().DatabaseURL
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to DATABASE_URL)")

	root.AddCommand(newMigrateCmd(&databaseURL), newAdminCmd(&databaseURL), newTrafficCmd(&databaseURL))
	return root
}

func withPool(ctx context.Context, databaseURL string, fn func(*pgxpool.Pool) error) error {
	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

func newMigrateCmd(databaseURL *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), *databaseURL, func(pool *pgxpool.Pool) error {
					if err := db.Migrate(cmd.Context(), pool); err != nil {
						return err
					}
					version, err := db.Version(cmd.Context(), pool)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied state of each migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), *databaseURL, func(pool *pgxpool.Pool) error {
					return db.Status(cmd.Context(), pool)
				})
			},
		},
	)
	return cmd
}

func newAdminCmd(databaseURL *string) *cobra.Command {
	var in services.RegisterInput

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a superadmin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), *databaseURL, func(pool *pgxpool.Pool) error {
				log := logging.NewJSON(os.Stderr, "warn")
				sessions := services.NewSessions(postgres.NewStore(pool), identity.Disabled{}, "unused", log)
				account, err := sessions.Register(cmd.Context(), model.RoleSuperAdmin, in)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", account.Email, account.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.Email, "email", "", "login email")
	create.Flags().StringVar(&in.Password, "password", "", "initial password")
	create.Flags().StringVar(&in.SchoolName, "school", "", "security answer used for password reset")
	for _, name := range []string{"name", "email", "password", "school"} {
		_ = create.MarkFlagRequired(name)
	}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage superadmin accounts",
	}
	cmd.AddCommand(create)
	return cmd
}

func newTrafficCmd(databaseURL *string) *cobra.Command {
	var retention time.Duration

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete traffic counters older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if retention <= 0 {
				return fmt.Errorf("--retention must be positive")
			}
			return withPool(cmd.Context(), *databaseURL, func(pool *pgxpool.Pool) error {
				n, err := services.NewTraffic(postgres.NewStore(pool)).Prune(cmd.Context(), time.Now(), retention)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d day(s)\n", n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&retention, "retention", 30*24*time.Hour, "keep counters newer than this")

	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Maintain the daily traffic counters",
	}
	cmd.AddCommand(prune)
	return cmd
}
